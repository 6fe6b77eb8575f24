package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/storepay/internal/domain/errors"
)

// WebhookAuthenticator validates the Authorization header of a webhook delivery.
type WebhookAuthenticator interface {
	Authenticate(header string) error
}

// WebhookAuthRequired rejects unauthenticated deliveries before the body is read.
func WebhookAuthRequired(auth WebhookAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.Authenticate(c.GetHeader("Authorization")); err != nil {
			if errors.Is(err, domainErrors.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
				return
			}
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Next()
	}
}
