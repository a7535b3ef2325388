package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/portal-service/internal/errs"
)

func statusFor(code errs.Code) int {
	switch code {
	case errs.CodeUnauthenticated:
		return http.StatusUnauthorized
	case errs.CodePermissionDenied:
		return http.StatusForbidden
	case errs.CodeNotFound:
		return http.StatusNotFound
	case errs.CodeInvalidPairing:
		return http.StatusUnprocessableEntity
	case errs.CodeInvalidArgument:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError переводит доменную ошибку в HTTP-ответ. Внутренние ошибки логируются,
// клиенту уходит обобщённое сообщение.
func writeError(c *gin.Context, err error) {
	var ae *errs.AppError
	if errors.As(err, &ae) {
		c.AbortWithStatusJSON(statusFor(ae.Code), gin.H{"error": ae.Message, "code": ae.Code})
		return
	}
	slog.ErrorContext(c.Request.Context(), "http: unhandled error", "path", c.FullPath(), "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": errs.CodeInternal})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg, "code": errs.CodeInvalidArgument})
}
