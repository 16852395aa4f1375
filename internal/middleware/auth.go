package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BhargavRaval15/url-shortner/internal/model"
	"github.com/BhargavRaval15/url-shortner/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ownerKey = "owner_id"

// Authenticator resolves a bearer token to an existing user id
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

// RequireAuth rejects requests without a valid bearer token with 401, or
// with 500 when the user store cannot be reached. The caller's id is
// available to later handlers through OwnerID.
func RequireAuth(auth Authenticator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c)
			return
		}

		id, err := auth.Authenticate(c.Request.Context(), token)
		if errors.Is(err, service.ErrStoreUnavailable) {
			// the token may be fine; the user lookup is not
			logger.ErrorContext(c.Request.Context(), "authentication lookup failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{
				Error:   http.StatusText(http.StatusInternalServerError),
				Message: "Server error",
			})
			return
		}
		if err != nil {
			logger.DebugContext(c.Request.Context(), "authentication failed", "error", err)
			unauthorized(c)
			return
		}

		c.Set(ownerKey, id)
		c.Next()
	}
}

// OwnerID returns the authenticated user of the request
func OwnerID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ownerKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{
		Error:   http.StatusText(http.StatusUnauthorized),
		Message: "Please authenticate.",
	})
}
