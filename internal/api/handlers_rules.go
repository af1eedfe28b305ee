// handlers_rules.go - Naming rule set handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/naming"
)

// RuleSetHandlerImpl implements the RuleSetHandler interface
type RuleSetHandlerImpl struct {
	rules *naming.RuleStore
}

// NewRuleSetHandler creates a new rule set handler instance
func NewRuleSetHandler(rules *naming.RuleStore) RuleSetHandler {
	return &RuleSetHandlerImpl{rules: rules}
}

// HandleListRuleSets lists the rule sets of an organization
func (h *RuleSetHandlerImpl) HandleListRuleSets(c echo.Context) error {
	return c.JSON(http.StatusOK, h.rules.List(c.Param("orgId")))
}

// HandleCreateRuleSet creates a rule set from JSON
func (h *RuleSetHandlerImpl) HandleCreateRuleSet(c echo.Context) error {
	var rs models.RuleSet
	if err := c.Bind(&rs); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	rs.OrganizationID = c.Param("orgId")

	created, err := h.rules.Create(rs)
	if err != nil {
		return FromError(err, "rule set", rs.Name)
	}
	return c.JSON(http.StatusCreated, created)
}

// HandleImportRuleSet creates a rule set from a YAML body or a multipart
// file field.
func (h *RuleSetHandlerImpl) HandleImportRuleSet(c echo.Context) error {
	orgID := c.Param("orgId")
	body := c.Request().Body
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return NewBadRequestError("failed to read upload", err)
		}
		defer f.Close()
		body = f
	}

	created, err := h.rules.Import(orgID, body)
	if err != nil {
		return FromError(err, "rule set", orgID)
	}
	return c.JSON(http.StatusCreated, created)
}

// HandleGetRuleSet returns one rule set
func (h *RuleSetHandlerImpl) HandleGetRuleSet(c echo.Context) error {
	id := c.Param("id")
	rs, err := h.rules.Get(id)
	if err != nil {
		return FromError(err, "rule set", id)
	}
	return c.JSON(http.StatusOK, rs)
}

// HandleUpdateRuleSet replaces a rule set
func (h *RuleSetHandlerImpl) HandleUpdateRuleSet(c echo.Context) error {
	id := c.Param("id")
	var rs models.RuleSet
	if err := c.Bind(&rs); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	updated, err := h.rules.Update(id, rs)
	if err != nil {
		return FromError(err, "rule set", id)
	}
	return c.JSON(http.StatusOK, updated)
}

// HandleDeleteRuleSet deletes a rule set
func (h *RuleSetHandlerImpl) HandleDeleteRuleSet(c echo.Context) error {
	id := c.Param("id")
	if err := h.rules.Delete(id); err != nil {
		return FromError(err, "rule set", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleGetRuleSetYAML exports a rule set as YAML
func (h *RuleSetHandlerImpl) HandleGetRuleSetYAML(c echo.Context) error {
	id := c.Param("id")
	data, err := h.rules.ExportYAML(id)
	if err != nil {
		return FromError(err, "rule set", id)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=\"ruleset_"+id+".yaml\"")
	return c.Blob(http.StatusOK, "application/yaml", data)
}
