package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	appLogger "github.com/joyebene/unimart-backend/internal/infra/logger"
)

// ErrorResponse is the error body shared by middleware and handlers.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, kind domain.ErrorKind, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		Code:    string(kind),
		TraceID: GetTraceID(c),
	}
}

// Authenticator resolves a bearer token to a live account.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Account, error)
}

// RequireAuth validates the Authorization header and stores the resolved account on the context.
// Missing or malformed headers and invalid tokens answer 401; a token for a deleted account answers 404.
func RequireAuth(auth Authenticator, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, domain.KindUnauthorized, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, domain.KindUnauthorized, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		account, err := auth.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			kind := domain.KindOf(err)
			switch kind {
			case domain.KindUnauthorized, domain.KindInvalidToken:
				c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, kind, domain.MessageOf(err)))
			case domain.KindAccountNotFound:
				c.AbortWithStatusJSON(http.StatusNotFound, newErrorResponse(c, kind, domain.MessageOf(err)))
			default:
				appLogger.WithContext(c.Request.Context(), log).Error("authentication failed",
					zap.String("trace_id", GetTraceID(c)),
					zap.Error(err),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, domain.KindInternal, domain.MessageOf(err)))
			}
			return
		}

		c.Set(AccountIDKey, account.ID)
		c.Set(AccountKey, account)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.AccountID = account.ID
		}

		c.Next()
	}
}

// GetAuthenticatedAccountID retrieves the account ID from context (helper for handlers)
func GetAuthenticatedAccountID(c *gin.Context) (string, bool) {
	accountID, exists := c.Get(AccountIDKey)
	if !exists {
		return "", false
	}

	if id, ok := accountID.(string); ok && id != "" {
		return id, true
	}

	return "", false
}

// GetAuthenticatedAccount retrieves the sanitised account resolved by RequireAuth.
func GetAuthenticatedAccount(c *gin.Context) (domain.Account, bool) {
	value, exists := c.Get(AccountKey)
	if !exists {
		return domain.Account{}, false
	}
	account, ok := value.(domain.Account)
	return account, ok
}
