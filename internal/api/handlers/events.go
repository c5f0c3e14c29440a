package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"quizgate/internal/dispatch"
	"quizgate/internal/events"

	"github.com/gin-gonic/gin"
)

// ForegroundSink accepts foreground events for routing
type ForegroundSink interface {
	Submit(ctx context.Context, ev dispatch.ForegroundEvent) error
}

// Subscriber hands out event subscriptions
type Subscriber interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

// EventsHandler receives foreground reports and streams state changes
type EventsHandler struct {
	sink   ForegroundSink
	bus    Subscriber
	logger *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(sink ForegroundSink, bus Subscriber, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		sink:   sink,
		bus:    bus,
		logger: logger,
	}
}

// ForegroundRequest reports which app came to the foreground
type ForegroundRequest struct {
	AppID string    `json:"app_id" binding:"required"`
	At    time.Time `json:"at"`
}

// PostForeground queues a foreground event for the dispatcher
// POST /v1/events/foreground
func (h *EventsHandler) PostForeground(c *gin.Context) {
	var req ForegroundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"code":    "INVALID_REQUEST",
			"details": err.Error(),
		})
		return
	}

	err := h.sink.Submit(c.Request.Context(), dispatch.ForegroundEvent{AppID: req.AppID, At: req.At})
	if err != nil {
		if errors.Is(err, dispatch.ErrStopped) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Dispatcher is stopped",
				"code":  "DISPATCHER_STOPPED",
			})
			return
		}
		// client went away while the queue was full
		h.logger.Warn("Foreground event not queued",
			"component", "api",
			"app_id", req.AppID,
			"error", err,
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Event not queued",
			"code":  "EVENT_NOT_QUEUED",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"app_id": req.AppID, "queued": true})
}

// Stream sends session state changes as server-sent events. An optional
// app_id query parameter filters the stream to one app.
// GET /v1/events/stream
func (h *EventsHandler) Stream(c *gin.Context) {
	filter := c.Query("app_id")

	ch, unsubscribe := h.bus.Subscribe(events.DefaultBuffer)
	defer unsubscribe()

	ctx := c.Request.Context()
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case e, ok := <-ch:
			if !ok {
				return false
			}
			if filter != "" && e.AppID != filter {
				return true
			}
			c.SSEvent(string(e.Type), e)
			return true
		}
	})
}
