package httphandler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
)

const (
	sessionIDKey = "keyshop.sessionID"
	userKey      = "keyshop.user"
)

// AllowJSON rejects requests with a body that is not JSON.
func AllowJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength == 0 {
			c.Next()
			return
		}

		if c.ContentType() != gin.MIMEJSON {
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType,
				errorResponse{Error: "invalid media type"},
			)
			return
		}

		c.Next()
	}
}

// Logger writes one structured record per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}

		slog.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", status,
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

type SessionCookie struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// Sessions assigns every client a session id cookie and refreshes its
// expiry on each request.
func Sessions(cfg SessionCookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(cfg.Name)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.Name, id, int(cfg.TTL.Seconds()), "/", "", cfg.Secure, true)
		c.Set(sessionIDKey, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// RequireAdmin lets through sessions logged in as an admin user.
func RequireAdmin(
	sessions port.SessionService, users port.UserService,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "RequireAdmin"

		sess, err := sessions.Session(c.Request.Context(), sessionID(c))
		if err != nil {
			writeError(c, op, err)
			return
		}
		if !sess.Authenticated() {
			writeError(c, op, domain.ErrUnauthorized)
			return
		}

		u, err := users.User(c.Request.Context(), sess.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				err = domain.ErrUnauthorized
			}
			writeError(c, op, err)
			return
		}
		if !u.Admin {
			writeError(c, op, domain.ErrForbidden)
			return
		}

		c.Set(userKey, u)
		c.Next()
	}
}

// RequireAdminToken lets through requests bearing an admin access token.
func RequireAdminToken(users port.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "RequireAdminToken"

		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			writeError(c, op, domain.ErrUnauthorized)
			return
		}

		claims, err := users.ParseToken(token)
		if err != nil {
			writeError(c, op, err)
			return
		}
		if !claims.Admin {
			writeError(c, op, domain.ErrForbidden)
			return
		}
		c.Next()
	}
}
