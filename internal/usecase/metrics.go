package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	otpIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_otp_issued_total",
		Help: "One-time passwords generated, by purpose.",
	}, []string{"purpose"})

	otpDeliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_otp_delivery_failures_total",
		Help: "One-time password deliveries rejected by the notification gateway, by purpose.",
	}, []string{"purpose"})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_login_attempts_total",
		Help: "Login attempts, by outcome.",
	}, []string{"outcome"})
)
