package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/plc-analyzer/backend/internal/models"
)

const sampleRuleSet = `
id: rs-plant
organization_id: acme
name: Plant standard
is_default: true
rules:
  - id: di
    name: Digital inputs
    pattern: "^DI_"
    applies_to: [tag]
    severity: error
    scope: "Line*"
  - id: routine-case
    name: Routine names
    pattern: "^[A-Z][A-Za-z0-9]*$"
    applies_to: [routine, program]
    severity: info
    is_active: false
  - id: loose
    name: Anything
    pattern: ".*"
    applies_to: [udt]
`

func TestParseRuleSet(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "rules.yaml")
	if err := os.WriteFile(path, []byte(sampleRuleSet), 0644); err != nil {
		t.Fatal(err)
	}

	rs, err := ParseRuleSet(path)
	if err != nil {
		t.Fatalf("ParseRuleSet failed: %v", err)
	}

	if rs.Name != "Plant standard" || rs.OrganizationID != "acme" || !rs.IsDefault {
		t.Errorf("unexpected header: %+v", rs)
	}
	if len(rs.Rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rs.Rules))
	}

	di := rs.Rules[0]
	if di.Pattern != "^DI_" || di.Severity != models.SeverityError || !di.IsActive {
		t.Errorf("unexpected first rule: %+v", di)
	}
	if len(di.AppliesTo) != 1 || di.AppliesTo[0] != models.EntityTag {
		t.Errorf("unexpected applies_to: %v", di.AppliesTo)
	}
	if di.Scope != "Line*" {
		t.Errorf("expected scope Line*, got %q", di.Scope)
	}
	if rs.Rules[1].IsActive {
		t.Error("explicit is_active: false must be kept")
	}
	if rs.Rules[2].Severity != models.SeverityWarning {
		t.Errorf("missing severity should default to warning, got %q", rs.Rules[2].Severity)
	}
}

func TestParseRuleSetFromReader(t *testing.T) {
	t.Run("invalid yaml", func(t *testing.T) {
		if _, err := ParseRuleSetFromReader(strings.NewReader("rules: [")); err == nil {
			t.Error("expected error for invalid yaml")
		}
	})

	t.Run("round trip", func(t *testing.T) {
		rs, err := ParseRuleSetFromReader(strings.NewReader(sampleRuleSet))
		if err != nil {
			t.Fatal(err)
		}
		data, err := EncodeRuleSet(rs)
		if err != nil {
			t.Fatal(err)
		}
		again, err := ParseRuleSetFromReader(strings.NewReader(string(data)))
		if err != nil {
			t.Fatal(err)
		}
		if len(again.Rules) != len(rs.Rules) {
			t.Fatalf("rule count changed: %d -> %d", len(rs.Rules), len(again.Rules))
		}
		for i := range rs.Rules {
			if again.Rules[i].Pattern != rs.Rules[i].Pattern || again.Rules[i].IsActive != rs.Rules[i].IsActive {
				t.Errorf("rule %d changed: %+v -> %+v", i, rs.Rules[i], again.Rules[i])
			}
		}
	})
}
