package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/TPAIN22/nubian-storefront/internal/errors"
	"github.com/TPAIN22/nubian-storefront/internal/httpclient"
)

const (
	SessionIDHeader = "X-Session-ID"
	SessionIDKey    = "session_id"
)

// RequireSession rejects requests without a UUID X-Session-ID header. The
// session becomes the cache and credential scope of every upstream call made
// while serving the request.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		header := strings.TrimSpace(c.GetHeader(SessionIDHeader))
		if header == "" {
			log.Warn("Missing session header", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			errors.RespondWithError(c, http.StatusBadRequest, errors.SessionRequired, "The X-Session-ID header is required")
			c.Abort()
			return
		}

		id, err := uuid.Parse(header)
		if err != nil {
			log.Warn("Invalid session header", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			errors.RespondWithError(c, http.StatusBadRequest, errors.SessionInvalid, "X-Session-ID must be a UUID")
			c.Abort()
			return
		}

		// canonical lower-case form; one session, one cart
		sessionID := id.String()
		c.Set(SessionIDKey, sessionID)
		c.Request = c.Request.WithContext(httpclient.WithScope(c.Request.Context(), sessionID))

		c.Next()
	}
}

// GetSessionID extracts the session ID set by RequireSession
func GetSessionID(c *gin.Context) (string, bool) {
	sessionID, exists := c.Get(SessionIDKey)
	if !exists {
		return "", false
	}
	id, ok := sessionID.(string)
	return id, ok
}
