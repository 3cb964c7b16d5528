package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	"github.com/joyebene/unimart-backend/internal/transport/http/middleware"
	"github.com/joyebene/unimart-backend/internal/usecase"
)

// IdentityService is the subset of usecase.IdentityService the HTTP layer drives.
type IdentityService interface {
	Register(ctx context.Context, in usecase.RegisterInput) (domain.Account, error)
	VerifyOTP(ctx context.Context, email, code string, purpose domain.OTPPurpose) (domain.Account, error)
	ResendOTP(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (usecase.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error
}

// IdentityHandler exposes the account lifecycle endpoints under /api/v1/auth.
type IdentityHandler struct {
	identity IdentityService
	logger   *zap.Logger
}

// NewIdentityHandler builds the handler.
func NewIdentityHandler(identity IdentityService, logger *zap.Logger) *IdentityHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityHandler{identity: identity, logger: logger}
}

// Middlewares groups per-endpoint middleware chains, typically rate limits.
type Middlewares struct {
	Register       []gin.HandlerFunc
	VerifyOTP      []gin.HandlerFunc
	ResendOTP      []gin.HandlerFunc
	Login          []gin.HandlerFunc
	ForgotPassword []gin.HandlerFunc
	ResetPassword  []gin.HandlerFunc
}

// RegisterRoutes binds the endpoints. requireAuth guards change-password and me.
func (h *IdentityHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc, mw Middlewares) {
	r.POST("/register", chain(mw.Register, h.Register)...)
	r.POST("/verify-otp", chain(mw.VerifyOTP, h.VerifyOTP)...)
	r.POST("/resend-otp", chain(mw.ResendOTP, h.ResendOTP)...)
	r.POST("/login", chain(mw.Login, h.Login)...)
	r.POST("/forgot-password", chain(mw.ForgotPassword, h.ForgotPassword)...)
	r.POST("/reset-password", chain(mw.ResetPassword, h.ResetPassword)...)
	r.POST("/change-password", requireAuth, h.ChangePassword)
	r.GET("/me", requireAuth, h.Me)
}

func chain(mw []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+1)
	out = append(out, mw...)
	return append(out, handler)
}

// Register godoc
// @Summary Register a new account
// @Description Creates an unverified account and emails a verification code.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *IdentityHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	account, err := h.identity.Register(c.Request.Context(), usecase.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		// The account exists even when the code could not be sent; clients recover with resend-otp.
		RespondWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		Message: "account created, check your email for the verification code",
		Account: newAccountSummary(account),
	})
}

// VerifyOTP godoc
// @Summary Verify a one-time password
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body VerifyOTPRequest true "Verification request"
// @Success 200 {object} VerifyOTPResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/auth/verify-otp [post]
func (h *IdentityHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	purpose := domain.OTPPurpose(req.Purpose)
	account, err := h.identity.VerifyOTP(c.Request.Context(), req.Email, req.OTP, purpose)
	if err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	if purpose == domain.OTPPurposeForgotPassword {
		c.JSON(http.StatusOK, VerifyOTPResponse{Message: "code verified, you can now reset your password"})
		return
	}

	summary := newAccountSummary(account)
	c.JSON(http.StatusOK, VerifyOTPResponse{Message: "email verified", Account: &summary})
}

// ResendOTP godoc
// @Summary Send a fresh verification code
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Resend request"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/auth/resend-otp [post]
func (h *IdentityHandler) ResendOTP(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	if err := h.identity.ResendOTP(c.Request.Context(), req.Email); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "a new code has been sent"})
}

// Login godoc
// @Summary Authenticate with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *IdentityHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	result, err := h.identity.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Account:   newAccountSummary(result.Account),
		Token:     result.Token,
		TokenType: "Bearer",
		ExpiresAt: result.ExpiresAt,
	})
}

// ForgotPassword godoc
// @Summary Request a password reset code
// @Description Always acknowledges known addresses; delivery problems are not reported.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Forgot password request"
// @Success 202 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/auth/forgot-password [post]
func (h *IdentityHandler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	if err := h.identity.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: "if the address is registered, a reset code is on its way"})
}

// ResetPassword godoc
// @Summary Reset a password with an emailed code
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Reset request"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/auth/reset-password [post]
func (h *IdentityHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	if err := h.identity.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password has been reset"})
}

// ChangePassword godoc
// @Summary Change the password of the signed-in account
// @Tags Auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body ChangePasswordRequest true "Change request"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/change-password [post]
func (h *IdentityHandler) ChangePassword(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, NewErrorResponse(c, domain.KindUnauthorized, usecase.ErrUnauthorized.Message))
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	if err := h.identity.ChangePassword(c.Request.Context(), accountID, req.CurrentPassword, req.NewPassword); err != nil {
		RespondWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password has been changed"})
}

// Me godoc
// @Summary Return the signed-in account
// @Tags Auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} AccountResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/auth/me [get]
func (h *IdentityHandler) Me(c *gin.Context) {
	account, ok := middleware.GetAuthenticatedAccount(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, NewErrorResponse(c, domain.KindUnauthorized, usecase.ErrUnauthorized.Message))
		return
	}

	c.JSON(http.StatusOK, AccountResponse{Account: newAccountSummary(account)})
}
