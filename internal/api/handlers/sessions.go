package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"quizgate/internal/core"
	"quizgate/internal/gatekeeper"

	"github.com/gin-gonic/gin"
)

// Gatekeeper is the session surface the quiz UI drives
type Gatekeeper interface {
	Snapshot(appID string) gatekeeper.Snapshot
	Snapshots() []gatekeeper.Snapshot
	SubmitAnswer(ctx context.Context, appID, questionID, answer string) (gatekeeper.AnswerResult, error)
	Bypass(ctx context.Context, appID string) (gatekeeper.BypassOutcome, error)
	Abandon(appID string)
	Release(ctx context.Context, appID string)
}

// SessionsHandler exposes gate sessions to the quiz UI
type SessionsHandler struct {
	engine Gatekeeper
	logger *slog.Logger
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler(engine Gatekeeper, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{
		engine: engine,
		logger: logger,
	}
}

// AnswerRequest is the body of an answer submission. Answer is an option
// letter (A-D) or the option text.
type AnswerRequest struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer" binding:"required"`
}

// ListSessions returns every known session
// GET /v1/sessions
func (h *SessionsHandler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Snapshots())
}

// GetSession returns the session of one app. Apps never seen are Idle.
// GET /v1/sessions/:app_id
func (h *SessionsHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Snapshot(c.Param("app_id")))
}

// SubmitAnswer evaluates an answer for the app's current question
// POST /v1/sessions/:app_id/answer
func (h *SessionsHandler) SubmitAnswer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"code":    "INVALID_REQUEST",
			"details": err.Error(),
		})
		return
	}

	appID := c.Param("app_id")
	result, err := h.engine.SubmitAnswer(c.Request.Context(), appID, req.QuestionID, req.Answer)
	if err != nil {
		h.respondEngineError(c, appID, err, result.Snapshot)
		return
	}

	resp := gin.H{
		"outcome":    result.Outcome,
		"session":    result.Snapshot,
		"leveled_up": result.LeveledUp,
	}
	if result.Streak != nil {
		resp["streak"] = formatStreak(result.Streak)
	}
	c.JSON(http.StatusOK, resp)
}

// Bypass spends one emergency use on a Locked app
// POST /v1/sessions/:app_id/bypass
func (h *SessionsHandler) Bypass(c *gin.Context) {
	appID := c.Param("app_id")

	outcome, err := h.engine.Bypass(c.Request.Context(), appID)
	if err != nil {
		h.respondEngineError(c, appID, err, outcome.Snapshot)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":  outcome.Result,
		"session": outcome.Snapshot,
	})
}

// Abandon returns the app's session to Idle without penalty
// POST /v1/sessions/:app_id/abandon
func (h *SessionsHandler) Abandon(c *gin.Context) {
	appID := c.Param("app_id")
	h.engine.Abandon(appID)
	c.JSON(http.StatusOK, h.engine.Snapshot(appID))
}

func (h *SessionsHandler) respondEngineError(c *gin.Context, appID string, err error, snap gatekeeper.Snapshot) {
	switch {
	case errors.Is(err, gatekeeper.ErrNotGated):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "App is not gated",
			"code":  "NOT_GATED",
		})
	case errors.Is(err, gatekeeper.ErrNotLocked):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Emergency bypass is only possible while locked",
			"code":    "NOT_LOCKED",
			"session": snap,
		})
	case errors.Is(err, core.ErrQuotaUnavailable):
		h.logger.Warn("Quota ledger unavailable, app stays locked",
			"component", "api",
			"app_id", appID,
			"error", err,
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Quota ledger unavailable",
			"code":    "QUOTA_UNAVAILABLE",
			"session": snap,
		})
	default:
		h.logger.Error("Session operation failed",
			"component", "api",
			"app_id", appID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Session operation failed",
			"code":    "INTERNAL_ERROR",
			"session": snap,
		})
	}
}
