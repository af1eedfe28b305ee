// handlers_snapshot.go - Snapshot read handlers
package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/plc-analyzer/backend/internal/export"
	"github.com/plc-analyzer/backend/internal/metrics"
	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/snapshotdb"
)

// SnapshotHandlerImpl implements the SnapshotHandler interface
type SnapshotHandlerImpl struct {
	sessionMgr SessionManager
	searcher   ReferenceSearcher
	opts       AnalysisOptions
}

// NewSnapshotHandler creates a new snapshot handler instance
func NewSnapshotHandler(sessionMgr SessionManager, searcher ReferenceSearcher, opts AnalysisOptions) SnapshotHandler {
	return &SnapshotHandlerImpl{
		sessionMgr: sessionMgr,
		searcher:   searcher,
		opts:       opts,
	}
}

func (h *SnapshotHandlerImpl) load(c echo.Context) (*models.Snapshot, error) {
	id := c.Param("versionId")
	if id == "" {
		return nil, NewValidationError("versionId")
	}
	snap, err := h.sessionMgr.Load(c.Request().Context(), id)
	if err != nil {
		return nil, FromError(err, "snapshot", id)
	}
	return snap, nil
}

// HandleGetSnapshot returns the full snapshot as JSON
func (h *SnapshotHandlerImpl) HandleGetSnapshot(c echo.Context) error {
	snap, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

// HandleGetSnapshotMsgpack returns the full snapshot in MessagePack format
func (h *SnapshotHandlerImpl) HandleGetSnapshotMsgpack(c echo.Context) error {
	snap, err := h.load(c)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(snap)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleSearchReferences answers "where is this tag used" from the stored
// version. Query: tag (required), usage, program, members, limit.
func (h *SnapshotHandlerImpl) HandleSearchReferences(c echo.Context) error {
	if h.searcher == nil {
		return NewServiceUnavailableError("reference search not configured")
	}
	id := c.Param("versionId")
	q := snapshotdb.ReferenceQuery{
		Tag:     strings.TrimSpace(c.QueryParam("tag")),
		Program: c.QueryParam("program"),
	}
	if q.Tag == "" {
		return NewValidationError("tag")
	}
	switch usage := models.UsageType(c.QueryParam("usage")); usage {
	case "", models.UsageRead, models.UsageWrite, models.UsageReadWrite:
		q.Usage = usage
	default:
		return NewBadRequestError(fmt.Sprintf("unknown usage %q", usage), nil)
	}
	if v := c.QueryParam("members"); v != "" {
		members, err := strconv.ParseBool(v)
		if err != nil {
			return NewValidationError("members")
		}
		q.Members = members
	}
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return NewValidationError("limit")
		}
		q.Limit = limit
	}

	refs, err := h.searcher.SearchReferences(c.Request().Context(), id, q)
	if err != nil {
		return FromError(err, "snapshot", id)
	}
	return c.JSON(http.StatusOK, refs)
}

// HandleExport renders the snapshot as CSV (entity=tags|references|unused)
// or as a Markdown summary.
func (h *SnapshotHandlerImpl) HandleExport(c echo.Context) error {
	snap, err := h.load(c)
	if err != nil {
		return err
	}

	format := strings.ToLower(c.QueryParam("format"))
	switch format {
	case "", "csv":
		var buf bytes.Buffer
		entity := strings.ToLower(c.QueryParam("entity"))
		switch entity {
		case "", "tags":
			entity = "tags"
			err = export.WriteTagsCSV(&buf, snap.Tags)
		case "references":
			err = export.WriteReferencesCSV(&buf, snap.References)
		case "unused":
			err = export.WriteUnusedCSV(&buf, metrics.ProjectUnusedTags([]*models.Snapshot{snap}, h.opts.unused()))
		default:
			return NewBadRequestError(fmt.Sprintf("unknown entity %q", entity), nil)
		}
		if err != nil {
			return NewInternalError("failed to render csv", err)
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", snap.ID+"_"+entity+".csv"))
		return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())

	case "markdown", "md":
		health := metrics.ComputeHealth([]*models.Snapshot{snap}, metrics.HealthOptions{Unused: h.opts.unused()})
		return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(export.SnapshotMarkdown(snap, &health)))
	}
	return NewBadRequestError(fmt.Sprintf("unknown format %q", format), nil)
}

// HandleContext returns the bounded plain-text summary
func (h *SnapshotHandlerImpl) HandleContext(c echo.Context) error {
	snap, err := h.load(c)
	if err != nil {
		return err
	}
	max := h.opts.ContextMaxBytes
	if v := c.QueryParam("maxBytes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return NewValidationError("maxBytes")
		}
		if max <= 0 || n < max {
			max = n
		}
	}
	health := metrics.ComputeHealth([]*models.Snapshot{snap}, metrics.HealthOptions{Unused: h.opts.unused()})
	return c.String(http.StatusOK, export.Context(snap, &health, max))
}
