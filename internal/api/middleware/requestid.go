package middleware

import (
	"quizgate/internal/idgen"

	"github.com/gin-gonic/gin"
)

const RequestIDKey = "X-Request-ID"

// maxRequestIDLength bounds client-supplied IDs before they reach the logs
const maxRequestIDLength = 64

// RequestID injects a unique request ID into each request context. A
// client-supplied ID is reused when it is short enough.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDKey)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = idgen.New()
		}
		c.Header(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)
		c.Next()
	}
}
