package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"quizgate/internal/core"

	"github.com/gin-gonic/gin"
)

// StreakReader reads the learning streak
type StreakReader interface {
	GetStreak(ctx context.Context) (*core.StreakState, error)
}

// StreakHandler handles the learning streak endpoint
type StreakHandler struct {
	ledger StreakReader
	logger *slog.Logger
}

// NewStreakHandler creates a new streak handler
func NewStreakHandler(ledger StreakReader, logger *slog.Logger) *StreakHandler {
	return &StreakHandler{ledger: ledger, logger: logger}
}

// GetStreak returns the current streak, experience and level
// GET /v1/streak
func (h *StreakHandler) GetStreak(c *gin.Context) {
	streak, err := h.ledger.GetStreak(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get streak",
			"component", "api",
			"error", err,
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Quota ledger unavailable",
			"code":  "QUOTA_UNAVAILABLE",
		})
		return
	}
	c.JSON(http.StatusOK, formatStreak(streak))
}

func formatStreak(s *core.StreakState) gin.H {
	return gin.H{
		"current_streak":     s.CurrentStreak,
		"longest_streak":     s.LongestStreak,
		"last_activity_date": s.LastActivityDate,
		"experience_points":  s.ExperiencePoints,
		"level":              s.Level,
	}
}
