package handlers

import (
	"net/http"

	"quizgate/internal/drivers/agent"

	"github.com/gin-gonic/gin"
)

// AgentStatusReader reports allow/block decisions for the on-device agent
type AgentStatusReader interface {
	Status(appID string) agent.AppStatus
	Statuses() []agent.AppStatus
}

// AgentHandler serves enforcement decisions to the on-device agent, which
// polls and applies them to the OS
type AgentHandler struct {
	driver AgentStatusReader
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(driver AgentStatusReader) *AgentHandler {
	return &AgentHandler{driver: driver}
}

// GetAppStatus returns whether one app may run
// GET /v1/agent/apps/:id
func (h *AgentHandler) GetAppStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.driver.Status(c.Param("id")))
}

// ListAppStatuses returns every app the driver has a decision for
// GET /v1/agent/apps
func (h *AgentHandler) ListAppStatuses(c *gin.Context) {
	c.JSON(http.StatusOK, h.driver.Statuses())
}
