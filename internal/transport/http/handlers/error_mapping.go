package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	appLogger "github.com/joyebene/unimart-backend/internal/infra/logger"
	"github.com/joyebene/unimart-backend/internal/transport/http/middleware"
)

var kindStatus = map[domain.ErrorKind]int{
	domain.KindValidation:          http.StatusBadRequest,
	domain.KindNotFound:            http.StatusNotFound,
	domain.KindInvalidCredentials:  http.StatusUnauthorized,
	domain.KindEmailNotVerified:    http.StatusForbidden,
	domain.KindInvalidOrExpiredOTP: http.StatusBadRequest,
	domain.KindAlreadyVerified:     http.StatusConflict,
	domain.KindIncorrectPassword:   http.StatusUnauthorized,
	domain.KindUnauthorized:        http.StatusUnauthorized,
	domain.KindInvalidToken:        http.StatusUnauthorized,
	domain.KindAccountNotFound:     http.StatusNotFound,
	domain.KindDeliveryFailure:     http.StatusBadGateway,
	domain.KindInternal:            http.StatusInternalServerError,
}

// StatusForKind returns the HTTP status used for kind.
func StatusForKind(kind domain.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondWithError writes err as an ErrorResponse. Unclassified errors are logged in full and
// answered with a generic message; domain failures are already logged by the service.
func RespondWithError(c *gin.Context, log *zap.Logger, err error) {
	kind := domain.KindOf(err)
	status := StatusForKind(kind)

	if kind == domain.KindInternal {
		appLogger.WithContext(c.Request.Context(), log).Error("request failed",
			zap.String("trace_id", middleware.GetTraceID(c)),
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
	}

	c.AbortWithStatusJSON(status, NewErrorResponse(c, kind, domain.MessageOf(err)))
}

func respondInvalidPayload(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse(c, domain.KindValidation, "invalid request payload"))
}
