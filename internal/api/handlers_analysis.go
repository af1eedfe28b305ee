// handlers_analysis.go - Comparison and project metric handlers
package api

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/plc-analyzer/backend/internal/diff"
	"github.com/plc-analyzer/backend/internal/export"
	"github.com/plc-analyzer/backend/internal/metrics"
	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/naming"
)

// AnalysisOptions carries the configured analysis switches.
type AnalysisOptions struct {
	CountMemberReferences bool
	IncludeNamingInHealth bool
	ContextMaxBytes       int
	CompareConcurrency    int
}

func (o AnalysisOptions) unused() metrics.UnusedOptions {
	return metrics.UnusedOptions{CountMemberReferences: o.CountMemberReferences}
}

// AnalysisHandlerImpl implements the AnalysisHandler interface
type AnalysisHandlerImpl struct {
	sessionMgr SessionManager
	rules      *naming.RuleStore
	opts       AnalysisOptions
}

// NewAnalysisHandler creates a new analysis handler instance
func NewAnalysisHandler(sessionMgr SessionManager, rules *naming.RuleStore, opts AnalysisOptions) AnalysisHandler {
	return &AnalysisHandlerImpl{
		sessionMgr: sessionMgr,
		rules:      rules,
		opts:       opts,
	}
}

// HandleDiff compares two versions. format=markdown returns a rendered report.
func (h *AnalysisHandlerImpl) HandleDiff(c echo.Context) error {
	var req diffRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	ctx := c.Request().Context()
	from, err := h.sessionMgr.Load(ctx, req.FromVersionID)
	if err != nil {
		return FromError(err, "snapshot", req.FromVersionID)
	}
	to, err := h.sessionMgr.Load(ctx, req.ToVersionID)
	if err != nil {
		return FromError(err, "snapshot", req.ToVersionID)
	}

	report := diff.DiffSnapshots(from, to)
	if strings.EqualFold(c.QueryParam("format"), "markdown") {
		return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(export.DiffMarkdown(report)))
	}
	return c.JSON(http.StatusOK, report)
}

// HandleCompareFolders compares the current versions of two folders
func (h *AnalysisHandlerImpl) HandleCompareFolders(c echo.Context) error {
	var req compareFoldersRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	left, err := h.sessionMgr.FolderFiles(req.ProjectID, req.LeftFolder)
	if err != nil {
		return NewInternalError("failed to list folder", err)
	}
	right, err := h.sessionMgr.FolderFiles(req.ProjectID, req.RightFolder)
	if err != nil {
		return NewInternalError("failed to list folder", err)
	}

	report, err := diff.CompareFolders(c.Request().Context(), h.sessionMgr, left, right, h.opts.CompareConcurrency)
	if err != nil {
		return FromError(err, "compare", req.ProjectID)
	}
	return c.JSON(http.StatusOK, report)
}

// namingReport validates the project against its resolved rule set. It
// returns nil when no rule set applies.
func (h *AnalysisHandlerImpl) namingReport(projectID, orgID string, snaps []*models.Snapshot) *naming.Report {
	if h.rules == nil {
		return nil
	}
	rs := h.rules.Resolve(projectID, orgID)
	if rs == nil {
		return nil
	}
	return naming.Validate(rs, snaps)
}

// HandleProjectHealth scores the current versions of every parsed file in
// the project. naming=true (or the project setting) adds the naming
// component.
func (h *AnalysisHandlerImpl) HandleProjectHealth(c echo.Context) error {
	projectID := c.Param("projectId")
	snaps, err := h.sessionMgr.CurrentSnapshots(c.Request().Context(), projectID)
	if err != nil {
		return FromError(err, "project", projectID)
	}

	opts := metrics.HealthOptions{Unused: h.opts.unused(), IncludeNaming: h.opts.IncludeNamingInHealth}
	if h.rules != nil && h.rules.ProjectSettings(projectID).NamingInHealth {
		opts.IncludeNaming = true
	}
	if v := c.QueryParam("naming"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			return NewValidationError("naming")
		}
		opts.IncludeNaming = include
	}
	if opts.IncludeNaming {
		if rep := h.namingReport(projectID, c.QueryParam("orgId"), snaps); rep != nil {
			counts := rep.HealthCounts()
			opts.Naming = &counts
		}
	}

	return c.JSON(http.StatusOK, metrics.ComputeHealth(snaps, opts))
}

// HandleProjectUnusedTags lists unused tags per file. format=csv is supported.
func (h *AnalysisHandlerImpl) HandleProjectUnusedTags(c echo.Context) error {
	projectID := c.Param("projectId")
	snaps, err := h.sessionMgr.CurrentSnapshots(c.Request().Context(), projectID)
	if err != nil {
		return FromError(err, "project", projectID)
	}
	unused := metrics.ProjectUnusedTags(snaps, h.opts.unused())

	if strings.EqualFold(c.QueryParam("format"), "csv") {
		var buf bytes.Buffer
		if err := export.WriteUnusedCSV(&buf, unused); err != nil {
			return NewInternalError("failed to render csv", err)
		}
		return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	}
	return c.JSON(http.StatusOK, unusedResponse{ProjectID: projectID, Files: len(snaps), Tags: unused})
}

// HandleProjectNaming validates project names. Without an applicable rule
// set the result is empty, not an error.
func (h *AnalysisHandlerImpl) HandleProjectNaming(c echo.Context) error {
	projectID := c.Param("projectId")
	snaps, err := h.sessionMgr.CurrentSnapshots(c.Request().Context(), projectID)
	if err != nil {
		return FromError(err, "project", projectID)
	}
	rep := h.namingReport(projectID, c.QueryParam("orgId"), snaps)
	if rep == nil {
		return c.JSON(http.StatusOK, namingResponse{ProjectID: projectID, Status: "no_rule_set"})
	}
	return c.JSON(http.StatusOK, namingResponse{ProjectID: projectID, Status: "checked", Report: rep})
}

// HandleGetProjectSettings returns the stored project settings
func (h *AnalysisHandlerImpl) HandleGetProjectSettings(c echo.Context) error {
	if h.rules == nil {
		return NewServiceUnavailableError("rule store not configured")
	}
	return c.JSON(http.StatusOK, h.rules.ProjectSettings(c.Param("projectId")))
}

// HandlePutProjectSettings stores the project settings
func (h *AnalysisHandlerImpl) HandlePutProjectSettings(c echo.Context) error {
	if h.rules == nil {
		return NewServiceUnavailableError("rule store not configured")
	}
	var ps models.ProjectSettings
	if err := c.Bind(&ps); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	ps.ProjectID = c.Param("projectId")
	if err := h.rules.SetProjectSettings(ps); err != nil {
		return FromError(err, "rule set", ps.RuleSetID)
	}
	return c.JSON(http.StatusOK, ps)
}

// Request/Response types

type diffRequest struct {
	FromVersionID string `json:"fromVersionId"`
	ToVersionID   string `json:"toVersionId"`
}

func (r *diffRequest) validate() error {
	if r.FromVersionID == "" {
		return NewValidationError("fromVersionId")
	}
	if r.ToVersionID == "" {
		return NewValidationError("toVersionId")
	}
	return nil
}

type compareFoldersRequest struct {
	ProjectID   string `json:"projectId"`
	LeftFolder  string `json:"leftFolder"`
	RightFolder string `json:"rightFolder"`
}

func (r *compareFoldersRequest) validate() error {
	if r.ProjectID == "" {
		return NewValidationError("projectId")
	}
	if r.LeftFolder == "" {
		return NewValidationError("leftFolder")
	}
	if r.RightFolder == "" {
		return NewValidationError("rightFolder")
	}
	return nil
}

type unusedResponse struct {
	ProjectID string              `json:"projectId"`
	Files     int                 `json:"files"`
	Tags      []metrics.UnusedTag `json:"tags"`
}

type namingResponse struct {
	ProjectID string         `json:"projectId"`
	Status    string         `json:"status"`
	Report    *naming.Report `json:"report"`
}
