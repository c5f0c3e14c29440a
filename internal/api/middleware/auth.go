package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const (
	// APIKeyHeader carries the UI/admin API key
	APIKeyHeader = "X-Quizgate-Key"
	// AuthenticatedKey is set in the context once a request is authenticated
	AuthenticatedKey = "authenticated"
)

// APIKey verifies the shared API key
func APIKey(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(APIKeyHeader)
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
				"code":  "UNAUTHORIZED",
			})
			return
		}
		c.Set(AuthenticatedKey, true)
		c.Next()
	}
}

// AgentAuth validates the on-device agent's bearer token against a bcrypt
// hash
func AgentAuth(tokenHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
				"code":  "AUTH_REQUIRED",
			})
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization scheme. Use Bearer token.",
				"code":  "INVALID_AUTH_SCHEME",
			})
			return
		}

		token := strings.TrimPrefix(authHeader, bearerPrefix)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Token required",
				"code":  "TOKEN_REQUIRED",
			})
			return
		}

		if tokenHash == "" || bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
				"code":  "INVALID_TOKEN",
			})
			return
		}

		c.Set(AuthenticatedKey, true)
		c.Next()
	}
}
