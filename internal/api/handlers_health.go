// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/plc-analyzer/backend/internal/snapshotdb"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version   string
	started   time.Time
	snapshots *snapshotdb.Store
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, snapshots *snapshotdb.Store) HealthHandler {
	return &HealthHandlerImpl{
		version:   version,
		started:   time.Now(),
		snapshots: snapshots,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	}
	if h.snapshots != nil {
		resp["snapshots"] = h.snapshots.Stats()
	}
	return c.JSON(http.StatusOK, resp)
}
