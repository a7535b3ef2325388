package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/portal-service/internal/access"
	"github.com/psds-microservice/portal-service/internal/errs"
	"github.com/psds-microservice/portal-service/internal/identity"
	"github.com/psds-microservice/portal-service/internal/service"
)

// TokenVerifier — проверка токена внешнего провайдера (для подмены в тестах).
type TokenVerifier interface {
	Verify(raw string) (*identity.Identity, error)
}

// Authenticate attaches the verified identity to the request context. A
// request without a token continues anonymously; an invalid token is rejected.
func Authenticate(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := identity.BearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			c.Next()
			return
		}
		id, err := v.Verify(raw)
		if err != nil {
			slog.DebugContext(c.Request.Context(), "auth: token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": errs.CodeUnauthenticated})
			return
		}
		c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequestLogger пишет одну запись на запрос.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// session resolves the caller into a settled gate session. A verified
// identity without a user record counts as signed out.
func session(c *gin.Context, users *service.UserService) (access.Session, error) {
	u, err := users.CurrentUser(c.Request.Context())
	switch {
	case err == nil:
		return access.Session{Settled: true, User: u}, nil
	case errors.Is(err, errs.ErrUnauthenticated), errors.Is(err, errs.ErrUserNotFound):
		return access.Session{Settled: true}, nil
	}
	return access.Session{}, err
}

// RequireGate guards a route group with the same gate the portal views use.
// Denied requests get 401 (redirect to /login) or 403 (redirect to /portal).
func RequireGate(users *service.UserService, gate access.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := session(c, users)
		if err != nil {
			writeError(c, err)
			return
		}
		d := gate.Evaluate(s)
		if d.Allowed() {
			c.Next()
			return
		}
		status, code := http.StatusForbidden, errs.CodePermissionDenied
		if d.Redirect == access.RedirectLogin {
			status, code = http.StatusUnauthorized, errs.CodeUnauthenticated
		}
		c.AbortWithStatusJSON(status, gin.H{"error": "access denied", "code": code, "redirect": d.Redirect})
	}
}
