package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joyebene/unimart-backend/internal/core/domain"
)

func TestForgotThenResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "pw1")

	f.otp.queue("117733")
	require.NoError(t, f.svc.ForgotPassword(ctx, "a@u.edu"))

	stored := f.stored(t, "a@u.edu")
	require.True(t, stored.HasPendingOTP())
	assert.Equal(t, "117733", *stored.PendingOTP)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), *stored.OTPExpiresAt)
	assert.Equal(t, sentOTP{email: "a@u.edu", code: "117733"}, f.gateway.last())

	require.NoError(t, f.svc.ResetPassword(ctx, "a@u.edu", "117733", "newpw"))

	stored = f.stored(t, "a@u.edu")
	assert.Nil(t, stored.PendingOTP)
	assert.Nil(t, stored.OTPExpiresAt)

	_, err := f.svc.Login(ctx, "a@u.edu", "pw1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "a@u.edu", "newpw")
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, "a@u.edu", "117733", "another")
	require.ErrorIs(t, err, ErrInvalidOrExpiredOTP, "reset codes are single-use")

	require.Len(t, f.events.resets, 1)
	assert.Equal(t, "a@u.edu", f.gateway.last().email)
	require.Len(t, f.events.changed, 1)
	assert.Equal(t, "reset", f.events.changed[0].Method)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := newFixture(t)
	err := f.svc.ForgotPassword(context.Background(), "nobody@u.edu")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.gateway.sent)
}

func TestForgotPasswordHidesDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, "pw1")
	f.gateway.failWith(errGatewayDown)

	before := testutil.ToFloat64(otpDeliveryFailures.WithLabelValues(string(domain.OTPPurposeForgotPassword)))

	f.otp.queue("117733")
	require.NoError(t, f.svc.ForgotPassword(context.Background(), "a@u.edu"))

	after := testutil.ToFloat64(otpDeliveryFailures.WithLabelValues(string(domain.OTPPurposeForgotPassword)))
	assert.Equal(t, before+1, after)

	stored := f.stored(t, "a@u.edu")
	require.True(t, stored.HasPendingOTP())
	assert.Equal(t, "117733", *stored.PendingOTP)
}

func TestResetPasswordRejectsExpiredCode(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, "pw1")
	f.otp.queue("117733")
	require.NoError(t, f.svc.ForgotPassword(context.Background(), "a@u.edu"))

	f.clock.Advance(10*time.Minute + time.Second)

	err := f.svc.ResetPassword(context.Background(), "a@u.edu", "117733", "newpw")
	require.ErrorIs(t, err, ErrInvalidOrExpiredOTP)

	_, err = f.svc.Login(context.Background(), "a@u.edu", "pw1")
	require.NoError(t, err, "password is unchanged")
}

func TestResetPasswordFailures(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ResetPassword(context.Background(), "nobody@u.edu", "117733", "newpw")
	require.ErrorIs(t, err, ErrNotFound)

	f.registerVerified(t, "pw1")
	err = f.svc.ResetPassword(context.Background(), "a@u.edu", "117733", "newpw")
	require.ErrorIs(t, err, ErrInvalidOrExpiredOTP, "no code pending")

	err = f.svc.ResetPassword(context.Background(), "a@u.edu", "", "newpw")
	requireKind(t, err, domain.KindValidation)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.registerVerified(t, "pw1")
	session, err := f.svc.Login(ctx, "a@u.edu", "pw1")
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, account.ID, "wrong", "newpw")
	require.ErrorIs(t, err, ErrIncorrectPassword)

	err = f.svc.ChangePassword(ctx, "missing", "pw1", "newpw")
	require.ErrorIs(t, err, ErrAccountNotFound)

	require.NoError(t, f.svc.ChangePassword(ctx, account.ID, "pw1", "newpw"))

	_, err = f.svc.Login(ctx, "a@u.edu", "pw1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "a@u.edu", "newpw")
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, session.Token)
	require.NoError(t, err, "existing sessions stay valid")

	require.Len(t, f.events.changed, 1)
	assert.Equal(t, "change", f.events.changed[0].Method)
}

func TestChangePasswordLeavesOTPUntouched(t *testing.T) {
	f := newFixture(t)
	account := f.registerVerified(t, "pw1")
	f.otp.queue("117733")
	require.NoError(t, f.svc.ForgotPassword(context.Background(), "a@u.edu"))

	require.NoError(t, f.svc.ChangePassword(context.Background(), account.ID, "pw1", "newpw"))

	stored := f.stored(t, "a@u.edu")
	require.True(t, stored.HasPendingOTP())
	assert.Equal(t, "117733", *stored.PendingOTP)
}
