package handlers

import (
	"strings"
	"time"

	dom "userauth/internal/domain"
	"userauth/internal/logging"
	"userauth/internal/metrics"
	"userauth/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID   = "X-Request-ID"
	contextKeyReqID   = "request_id"
	contextKeyProfile = "profile_user"
	maxRequestIDLen   = 64
)

// RequestID assigns every request an id, reusing a sane incoming
// X-Request-ID. The id is echoed in the response header, stored in the gin
// context and attached to the request context for logging.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(contextKeyReqID, id)
		c.Header(headerRequestID, id)
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// RequestIDFromContext returns the id set by RequestID, or "".
func RequestIDFromContext(c *gin.Context) string {
	return c.GetString(contextKeyReqID)
}

// RequestLogger logs one line per request. Bodies are never logged.
func RequestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Any other shape yields "".
func BearerToken(c *gin.Context) string {
	fields := strings.Fields(c.GetHeader("Authorization"))
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return fields[1]
}

// RequireUser authenticates the bearer token, loads the user it was issued
// for and stores it in context. Failures abort with 401, 403 or 404.
func RequireUser(svc *service.UserService, log logging.Logger, m *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := svc.AuthenticateAndFetchProfile(c.Request.Context(), BearerToken(c))
		if err != nil {
			m.ObserveAuth(metrics.OpProfile, respondError(c, log, profileRules, err))
			return
		}
		c.Set(contextKeyProfile, u)
		c.Next()
	}
}

// UserFromContext returns the user set by RequireUser.
func UserFromContext(c *gin.Context) (dom.User, bool) {
	v, ok := c.Get(contextKeyProfile)
	if !ok {
		return dom.User{}, false
	}
	u, ok := v.(dom.User)
	return u, ok
}
