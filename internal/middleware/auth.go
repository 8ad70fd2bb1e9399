package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/credentials"
)

// CredentialSource is satisfied by *credentials.Provider.
type CredentialSource interface {
	Credentials(ctx context.Context) (credentials.Credentials, error)
}

// AuthMiddleware lets a request through only while a credential is stored,
// and exposes the signed-in user's id as "userID".
func AuthMiddleware(source CredentialSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		creds, err := source.Credentials(c.Request.Context())
		if errors.Is(err, credentials.ErrUnauthorized) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "credential store unavailable"})
			return
		}

		c.Set("userID", creds.UserID)
		c.Next()
	}
}
