package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"fitpledge/auth"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	callerKey           = "callerID"
	webhookSecretHeader = "X-Webhook-Secret"
	bearerSchema        = "Bearer "
)

// JWTAuth requires a valid bearer token and stores its user id as the caller identity
func JWTAuth(manager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrMissingToken.Error()})
			return
		}
		if !strings.HasPrefix(header, bearerSchema) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header must start with Bearer"})
			return
		}

		claims, err := manager.Validate(strings.TrimSpace(header[len(bearerSchema):]))
		if err != nil {
			log.WithError(err).Debug("Rejected bearer token")
			status := http.StatusUnauthorized
			msg := auth.ErrInvalidToken.Error()
			if errors.Is(err, auth.ErrMissingToken) {
				msg = auth.ErrMissingToken.Error()
			}
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}

		c.Set(callerKey, claims.UserID)
		c.Next()
	}
}

// WebhookSecret requires the shared secret the payment provider and workout feed send
func WebhookSecret(secret string) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(webhookSecretHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
		c.Next()
	}
}

// RequestLogger logs every request through logrus
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		})
		if caller, ok := c.Get(callerKey); ok {
			entry = entry.WithField("callerID", caller)
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("HTTP request")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("HTTP request")
		default:
			entry.Debug("HTTP request")
		}
	}
}

// callerID returns the authenticated user id set by JWTAuth
func callerID(c *gin.Context) string {
	return c.GetString(callerKey)
}
