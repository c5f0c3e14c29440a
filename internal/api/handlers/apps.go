package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"quizgate/internal/core"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// ParentPINHeader carries the parent PIN for destructive operations
const ParentPINHeader = "X-Parent-PIN"

const (
	defaultAttemptsLimit = 50
	maxAttemptsLimit     = 500
)

// AppStorage is the subset of storage the apps endpoints need
type AppStorage interface {
	CreateTargetApp(ctx context.Context, app *core.TargetApp) error
	GetTargetApp(ctx context.Context, id string) (*core.TargetApp, error)
	ListTargetApps(ctx context.Context) ([]*core.TargetApp, error)
	UpdateTargetApp(ctx context.Context, app *core.TargetApp) error
	DeleteTargetApp(ctx context.Context, id string) error
	ListAttempts(ctx context.Context, appID string, limit int) ([]*core.Attempt, error)
}

// QuotaReader reports the remaining daily quota of an app
type QuotaReader interface {
	CheckDailyLimit(ctx context.Context, appID string) (*core.DailyLimitStatus, error)
}

// AppReleaser stops gating an app that was disabled or deleted
type AppReleaser interface {
	Release(ctx context.Context, appID string)
}

// AppsHandler handles target app configuration
type AppsHandler struct {
	storage  AppStorage
	ledger   QuotaReader
	releaser AppReleaser
	pinHash  string
	logger   *slog.Logger
}

// NewAppsHandler creates a new apps handler. releaser may be nil.
func NewAppsHandler(storage AppStorage, ledger QuotaReader, releaser AppReleaser, parentPINHash string, logger *slog.Logger) *AppsHandler {
	return &AppsHandler{
		storage:  storage,
		ledger:   ledger,
		releaser: releaser,
		pinHash:  parentPINHash,
		logger:   logger,
	}
}

// appRequest carries create and update fields. Nil fields are left untouched
// on update and defaulted on create.
type appRequest struct {
	ID                       string   `json:"id"`
	Name                     *string  `json:"name"`
	Enabled                  *bool    `json:"enabled"`
	DailyLimitMinutes        *int     `json:"daily_limit_minutes"`
	MaxUsesPerDay            *int     `json:"max_uses_per_day"`
	PerUnlockDurationMinutes *int     `json:"per_unlock_duration_minutes"`
	QuestionsPerUnlock       *int     `json:"questions_per_unlock"`
	DifficultyLevel          *string  `json:"difficulty_level"`
	SelectedTopics           []string `json:"selected_topics"`
	EmergencyBypassEnabled   *bool    `json:"emergency_bypass_enabled"`
	EmergencyUsesPerDay      *int     `json:"emergency_uses_per_day"`
}

func (r *appRequest) apply(app *core.TargetApp) error {
	if r.Name != nil {
		app.Name = *r.Name
	}
	if r.Enabled != nil {
		app.Enabled = *r.Enabled
	}
	if r.DailyLimitMinutes != nil {
		app.DailyLimitMinutes = *r.DailyLimitMinutes
	}
	if r.MaxUsesPerDay != nil {
		app.MaxUsesPerDay = *r.MaxUsesPerDay
	}
	if r.PerUnlockDurationMinutes != nil {
		app.PerUnlockDurationMinutes = *r.PerUnlockDurationMinutes
	}
	if r.QuestionsPerUnlock != nil {
		app.QuestionsPerUnlock = *r.QuestionsPerUnlock
	}
	if r.DifficultyLevel != nil {
		d, err := core.ParseDifficulty(*r.DifficultyLevel)
		if err != nil {
			return err
		}
		app.DifficultyLevel = d
	}
	if r.SelectedTopics != nil {
		app.SelectedTopics = r.SelectedTopics
	}
	if r.EmergencyBypassEnabled != nil {
		app.EmergencyBypassEnabled = *r.EmergencyBypassEnabled
	}
	if r.EmergencyUsesPerDay != nil {
		app.EmergencyUsesPerDay = *r.EmergencyUsesPerDay
	}
	return app.Validate()
}

// ListApps returns all target apps
// GET /v1/apps
func (h *AppsHandler) ListApps(c *gin.Context) {
	apps, err := h.storage.ListTargetApps(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list apps",
			"component", "api",
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve apps",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	response := make([]gin.H, 0, len(apps))
	for _, app := range apps {
		response = append(response, formatApp(app))
	}
	c.JSON(http.StatusOK, response)
}

// CreateApp registers a new target app
// POST /v1/apps
func (h *AppsHandler) CreateApp(c *gin.Context) {
	var req appRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"code":    "INVALID_REQUEST",
			"details": err.Error(),
		})
		return
	}

	app := &core.TargetApp{
		ID:                       req.ID,
		Enabled:                  true,
		MaxUsesPerDay:            3,
		PerUnlockDurationMinutes: 15,
		QuestionsPerUnlock:       1,
		DifficultyLevel:          core.DifficultyMedium,
	}
	if err := req.apply(app); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"code":  "INVALID_APP",
		})
		return
	}

	if err := h.storage.CreateTargetApp(c.Request.Context(), app); err != nil {
		if errors.Is(err, core.ErrAppAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "App already exists",
				"code":  "APP_EXISTS",
			})
			return
		}
		h.logger.Error("Failed to create app",
			"component", "api",
			"app_id", app.ID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create app",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	h.logger.Info("Target app created",
		"component", "api",
		"app_id", app.ID,
		"max_uses_per_day", app.MaxUsesPerDay,
	)
	c.JSON(http.StatusCreated, formatApp(app))
}

// GetApp returns a single target app
// GET /v1/apps/:id
func (h *AppsHandler) GetApp(c *gin.Context) {
	app, ok := h.loadApp(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, formatApp(app))
}

// UpdateApp applies a partial update
// PATCH /v1/apps/:id
func (h *AppsHandler) UpdateApp(c *gin.Context) {
	var req appRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"code":    "INVALID_REQUEST",
			"details": err.Error(),
		})
		return
	}

	app, ok := h.loadApp(c)
	if !ok {
		return
	}

	if err := req.apply(app); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"code":  "INVALID_APP",
		})
		return
	}

	if err := h.storage.UpdateTargetApp(c.Request.Context(), app); err != nil {
		h.logger.Error("Failed to update app",
			"component", "api",
			"app_id", app.ID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update app",
			"code":  "INTERNAL_ERROR",
		})
		return
	}
	if !app.Enabled {
		h.release(c.Request.Context(), app.ID)
	}

	c.JSON(http.StatusOK, formatApp(app))
}

// DeleteApp removes a target app. Requires the parent PIN.
// DELETE /v1/apps/:id
func (h *AppsHandler) DeleteApp(c *gin.Context) {
	if h.pinHash == "" {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Parent PIN is not configured",
			"code":  "PIN_NOT_CONFIGURED",
		})
		return
	}
	pin := c.GetHeader(ParentPINHeader)
	if pin == "" || bcrypt.CompareHashAndPassword([]byte(h.pinHash), []byte(pin)) != nil {
		h.logger.Warn("Rejected app deletion with invalid PIN",
			"component", "api",
			"app_id", c.Param("id"),
		)
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Invalid parent PIN",
			"code":  "INVALID_PIN",
		})
		return
	}

	appID := c.Param("id")
	if err := h.storage.DeleteTargetApp(c.Request.Context(), appID); err != nil {
		if errors.Is(err, core.ErrAppNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "App not found",
				"code":  "APP_NOT_FOUND",
			})
			return
		}
		h.logger.Error("Failed to delete app",
			"component", "api",
			"app_id", appID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete app",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	h.release(c.Request.Context(), appID)

	h.logger.Info("Target app deleted", "component", "api", "app_id", appID)
	c.Status(http.StatusNoContent)
}

// GetQuota returns today's remaining quota for an app
// GET /v1/apps/:id/quota
func (h *AppsHandler) GetQuota(c *gin.Context) {
	appID := c.Param("id")

	status, err := h.ledger.CheckDailyLimit(c.Request.Context(), appID)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrAppNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "App not found",
				"code":  "APP_NOT_FOUND",
			})
		case errors.Is(err, core.ErrQuotaUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Quota ledger unavailable",
				"code":  "QUOTA_UNAVAILABLE",
			})
		default:
			h.logger.Error("Failed to check quota",
				"component", "api",
				"app_id", appID,
				"error", err,
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check quota",
				"code":  "INTERNAL_ERROR",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"app_id":              appID,
		"within_limit":        status.WithinLimit,
		"uses_remaining":      status.UsesRemaining,
		"minutes_remaining":   status.MinutesRemaining,
		"emergency_remaining": status.EmergencyRemaining,
	})
}

// ListAttempts returns the most recent answer attempts for an app
// GET /v1/apps/:id/attempts?limit=N
func (h *AppsHandler) ListAttempts(c *gin.Context) {
	limit := defaultAttemptsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit must be a positive integer",
				"code":  "INVALID_LIMIT",
			})
			return
		}
		limit = min(n, maxAttemptsLimit)
	}

	appID := c.Param("id")
	attempts, err := h.storage.ListAttempts(c.Request.Context(), appID, limit)
	if err != nil {
		h.logger.Error("Failed to list attempts",
			"component", "api",
			"app_id", appID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve attempts",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	response := make([]gin.H, 0, len(attempts))
	for _, a := range attempts {
		response = append(response, gin.H{
			"id":            a.ID,
			"question_id":   a.QuestionID,
			"correct":       a.Correct,
			"unlocks":       a.Unlocks,
			"time_taken_ms": a.TimeTakenMs,
			"answered_at":   a.AnsweredAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, response)
}

func (h *AppsHandler) release(ctx context.Context, appID string) {
	if h.releaser != nil {
		h.releaser.Release(ctx, appID)
	}
}

func (h *AppsHandler) loadApp(c *gin.Context) (*core.TargetApp, bool) {
	appID := c.Param("id")

	app, err := h.storage.GetTargetApp(c.Request.Context(), appID)
	if err != nil {
		if errors.Is(err, core.ErrAppNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "App not found",
				"code":  "APP_NOT_FOUND",
			})
			return nil, false
		}
		h.logger.Error("Failed to get app",
			"component", "api",
			"app_id", appID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve app",
			"code":  "INTERNAL_ERROR",
		})
		return nil, false
	}
	return app, true
}

func formatApp(app *core.TargetApp) gin.H {
	topics := app.SelectedTopics
	if topics == nil {
		topics = []string{}
	}
	return gin.H{
		"id":                          app.ID,
		"name":                        app.Name,
		"enabled":                     app.Enabled,
		"daily_limit_minutes":         app.DailyLimitMinutes,
		"max_uses_per_day":            app.MaxUsesPerDay,
		"per_unlock_duration_minutes": app.PerUnlockDurationMinutes,
		"questions_per_unlock":        app.QuestionsPerUnlock,
		"difficulty_level":            app.DifficultyLevel,
		"selected_topics":             topics,
		"emergency_bypass_enabled":    app.EmergencyBypassEnabled,
		"emergency_uses_per_day":      app.EmergencyUsesPerDay,
		"current_uses_today":          app.CurrentUsesToday,
		"emergency_uses_used":         app.EmergencyUsesUsed,
		"created_at":                  app.CreatedAt.Format(time.RFC3339),
		"updated_at":                  app.UpdatedAt.Format(time.RFC3339),
	}
}
