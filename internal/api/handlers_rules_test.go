package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/testutil"
)

const importYAML = `
name: Imported standard
rules:
  - id: di
    name: Digital inputs
    pattern: "^DI_"
    applies_to: [tag]
    severity: error
    is_active: true
`

func TestRuleSetCRUD(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/orgs/acme/rulesets/import", strings.NewReader(importYAML), "application/yaml")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	imported := decode[models.RuleSet](t, rec)
	assert.Equal(t, "acme", imported.OrganizationID)
	require.Len(t, imported.Rules, 1)

	rec = s.do(t, http.MethodGet, "/api/rulesets/"+imported.ID+"/yaml", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Imported standard")

	imported.Name = "Renamed"
	rec = s.doJSON(t, http.MethodPut, "/api/rulesets/"+imported.ID, imported)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Renamed", decode[models.RuleSet](t, rec).Name)

	rec = s.do(t, http.MethodGet, "/api/orgs/acme/rulesets", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.RuleSet](t, rec), 1)
	rec = s.do(t, http.MethodGet, "/api/orgs/other/rulesets", nil, "")
	assert.Empty(t, decode[[]models.RuleSet](t, rec))

	rec = s.do(t, http.MethodDelete, "/api/rulesets/"+imported.ID, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/rulesets/"+imported.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRuleSetRejectsBadPattern(t *testing.T) {
	s := newTestServer(t)
	rec := s.doJSON(t, http.MethodPost, "/api/orgs/acme/rulesets", models.RuleSet{
		Name: "Broken",
		Rules: []models.NamingRule{{
			Name: "bad", Pattern: "([", AppliesTo: []models.EntityKind{models.EntityTag},
			Severity: models.SeverityError, IsActive: true,
		}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid rule set")
}

func TestProjectEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.parse(t, s.upload(t, "tags.L5X", testutil.TagsOnlyL5X, "p1", "new").ID)

	rec := s.do(t, http.MethodGet, "/api/projects/p1/unused-tags", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[unusedResponse](t, rec).Files)

	rec = s.do(t, http.MethodGet, "/api/projects/p1/unused-tags?format=csv", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "File,Name,Scope"))

	// No rule set yet: empty result, not an error
	rec = s.do(t, http.MethodGet, "/api/projects/p1/naming?orgId=acme", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	none := decode[namingResponse](t, rec)
	assert.Equal(t, "no_rule_set", none.Status)
	assert.Nil(t, none.Report)

	rec = s.doJSON(t, http.MethodPost, "/api/orgs/acme/rulesets", models.RuleSet{
		Name:      "Plant",
		IsDefault: true,
		Rules: []models.NamingRule{{
			Name: "Digital inputs", Pattern: "^DI_", AppliesTo: []models.EntityKind{models.EntityTag},
			Severity: models.SeverityError, IsActive: true,
		}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/projects/p1/naming?orgId=acme", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	checked := decode[namingResponse](t, rec)
	assert.Equal(t, "checked", checked.Status)
	require.NotNil(t, checked.Report)
	assert.Equal(t, 1, checked.Report.Counts.Error)

	rec = s.do(t, http.MethodGet, "/api/projects/p1/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"naming"`)

	rec = s.doJSON(t, http.MethodPut, "/api/projects/p1/settings", models.ProjectSettings{OrganizationID: "acme", NamingInHealth: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/projects/p1/settings", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.ProjectSettings](t, rec).NamingInHealth)

	rec = s.do(t, http.MethodGet, "/api/projects/p1/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"naming":{"status":"computed","value":`)

	rec = s.doJSON(t, http.MethodPut, "/api/projects/p1/settings", models.ProjectSettings{OrganizationID: "acme", RuleSetID: "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
