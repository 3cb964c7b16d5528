package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	"github.com/joyebene/unimart-backend/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse = middleware.ErrorResponse

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, kind domain.ErrorKind, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		Code:    string(kind),
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccountSummary is the public view of an account.
type AccountSummary struct {
	ID         string    `json:"id"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newAccountSummary(a domain.Account) AccountSummary {
	return AccountSummary{
		ID:         a.ID,
		FullName:   a.FullName,
		Email:      a.Email,
		IsVerified: a.IsVerified,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// RegisterRequest defines the payload for account registration.
type RegisterRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse is returned once the account exists.
type RegisterResponse struct {
	Message string         `json:"message"`
	Account AccountSummary `json:"account"`
}

// VerifyOTPRequest confirms a one-time password for the given purpose.
type VerifyOTPRequest struct {
	Email   string `json:"email"`
	OTP     string `json:"otp"`
	Purpose string `json:"purpose"`
}

// VerifyOTPResponse carries the verified account for register verifications.
type VerifyOTPResponse struct {
	Message string          `json:"message"`
	Account *AccountSummary `json:"account,omitempty"`
}

// EmailRequest is shared by resend-otp and forgot-password.
type EmailRequest struct {
	Email string `json:"email"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	Account   AccountSummary `json:"account"`
	Token     string         `json:"token"`
	TokenType string         `json:"token_type"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// ResetPasswordRequest completes a forgot-password flow.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// ChangePasswordRequest changes the password of the authenticated account.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AccountResponse wraps a single account.
type AccountResponse struct {
	Account AccountSummary `json:"account"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
