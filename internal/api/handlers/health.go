package handlers

import (
	"context"
	"net/http"

	"quizgate/internal/core"

	"github.com/gin-gonic/gin"
)

// QuestionCounter reports the size of the local question bank
type QuestionCounter interface {
	CountQuestions(ctx context.Context, source core.QuestionSource) (int, error)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	counter QuestionCounter
}

// NewHealthHandler creates a new health handler. counter may be nil.
func NewHealthHandler(counter QuestionCounter) *HealthHandler {
	return &HealthHandler{counter: counter}
}

// GetHealth returns the health status of the service
// GET /health
func (h *HealthHandler) GetHealth(c *gin.Context) {
	resp := gin.H{
		"status":  "UP",
		"service": "quizgate",
	}

	if h.counter != nil {
		n, err := h.counter.CountQuestions(c.Request.Context(), core.SourceLocal)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "DOWN",
				"service": "quizgate",
				"error":   "storage unavailable",
			})
			return
		}
		resp["local_questions"] = n
	}

	c.JSON(http.StatusOK, resp)
}
