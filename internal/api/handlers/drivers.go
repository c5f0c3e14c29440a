package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DriverLister lists registered enforcement drivers
type DriverLister interface {
	List() []string
}

// DriversHandler reports the available and active enforcement drivers
type DriversHandler struct {
	registry DriverLister
	active   string
}

// NewDriversHandler creates a new drivers handler
func NewDriversHandler(registry DriverLister, active string) *DriversHandler {
	return &DriversHandler{registry: registry, active: active}
}

// ListDrivers returns registered driver names and the active one
// GET /v1/drivers
func (h *DriversHandler) ListDrivers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"drivers": h.registry.List(),
		"active":  h.active,
	})
}
