package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContentType enforces a JSON content-type on POST and PATCH requests that
// carry a body. Bodyless actions (bypass, abandon) pass through.
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if (method == http.MethodPost || method == http.MethodPatch) && c.Request.ContentLength != 0 {
			if !strings.Contains(c.GetHeader("Content-Type"), "application/json") {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
					"error": "Content-Type must be application/json",
					"code":  "INVALID_CONTENT_TYPE",
				})
				return
			}
		}
		c.Next()
	}
}
