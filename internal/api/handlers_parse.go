// handlers_parse.go - Parse session operation handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/plc-analyzer/backend/internal/models"
)

// ParseHandlerImpl implements the ParseHandler interface
type ParseHandlerImpl struct {
	sessionMgr SessionManager
}

// NewParseHandler creates a new parse handler instance
func NewParseHandler(sessionMgr SessionManager) ParseHandler {
	return &ParseHandlerImpl{
		sessionMgr: sessionMgr,
	}
}

// HandleStartParse starts parsing a stored file. The default is
// asynchronous (202 with the session); sync=true parses inline and maps
// document errors to 4xx.
func (h *ParseHandlerImpl) HandleStartParse(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if sync, _ := strconv.ParseBool(c.QueryParam("sync")); sync {
		sess, snap, err := h.sessionMgr.ParseNow(c.Request().Context(), id)
		if err != nil {
			return FromError(err, "parse", id)
		}
		return c.JSON(http.StatusOK, parseResultResponse{Session: sess, Counts: snap.Counts()})
	}

	sess, err := h.sessionMgr.StartParse(id)
	if err != nil {
		return FromError(err, "parse", id)
	}
	return c.JSON(http.StatusAccepted, sess)
}

// HandleParseStatus returns the current status of a parsing session
func (h *ParseHandlerImpl) HandleParseStatus(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleParseProgressStream streams parsing progress via SSE
func (h *ParseHandlerImpl) HandleParseProgressStream(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(5 * time.Minute)
	defer timeout.Stop()

	for {
		sess, ok := h.sessionMgr.GetSession(id)
		if !ok {
			h.sendSSEError(c, "session not found")
			return nil
		}
		h.sendSSEData(c, sess)

		// Stop streaming if complete or error
		if sess.Status == models.SessionStatusComplete ||
			sess.Status == models.SessionStatusError {
			return nil
		}

		select {
		case <-ticker.C:
		case <-c.Request().Context().Done():
			return nil
		case <-timeout.C:
			h.sendSSEError(c, "stream timeout")
			return nil
		}
	}
}

func (h *ParseHandlerImpl) sendSSEData(c echo.Context, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Response(), "data: %s\n\n", payload)
	c.Response().Flush()
}

func (h *ParseHandlerImpl) sendSSEError(c echo.Context, message string) {
	fmt.Fprintf(c.Response(), "event: error\ndata: {\"error\":%q}\n\n", message)
	c.Response().Flush()
}

type parseResultResponse struct {
	Session *models.ParseSession `json:"session"`
	Counts  models.Counts        `json:"counts"`
}
