package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/plc-analyzer/backend/internal/models"
)

// ruleSetFile mirrors the on-disk YAML layout. is_active defaults to true
// when omitted so hand-written files stay short.
type ruleSetFile struct {
	ID             string     `yaml:"id"`
	OrganizationID string     `yaml:"organization_id"`
	Name           string     `yaml:"name"`
	IsDefault      bool       `yaml:"is_default"`
	Rules          []ruleFile `yaml:"rules"`
}

type ruleFile struct {
	ID          string              `yaml:"id"`
	Name        string              `yaml:"name"`
	Pattern     string              `yaml:"pattern"`
	AppliesTo   []models.EntityKind `yaml:"applies_to"`
	Severity    models.Severity     `yaml:"severity"`
	IsActive    *bool               `yaml:"is_active"`
	Description string              `yaml:"description"`
	Scope       string              `yaml:"scope"`
}

// ParseRuleSet parses a YAML naming rule set file.
func ParseRuleSet(filePath string) (*models.RuleSet, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseRuleSetFromReader(file)
}

// ParseRuleSetFromReader parses a rule set from an io.Reader.
// Patterns are not compiled here; see naming.Compile.
func ParseRuleSetFromReader(r io.Reader) (*models.RuleSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var raw ruleSetFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid rule set yaml: %w", err)
	}

	rs := &models.RuleSet{
		ID:             raw.ID,
		OrganizationID: raw.OrganizationID,
		Name:           raw.Name,
		IsDefault:      raw.IsDefault,
		Rules:          make([]models.NamingRule, 0, len(raw.Rules)),
	}
	for _, r := range raw.Rules {
		active := true
		if r.IsActive != nil {
			active = *r.IsActive
		}
		severity := r.Severity
		if severity == "" {
			severity = models.SeverityWarning
		}
		rs.Rules = append(rs.Rules, models.NamingRule{
			ID:          r.ID,
			Name:        r.Name,
			Pattern:     r.Pattern,
			AppliesTo:   r.AppliesTo,
			Severity:    severity,
			IsActive:    active,
			Description: r.Description,
			Scope:       r.Scope,
		})
	}
	return rs, nil
}

// EncodeRuleSet renders a rule set in the same YAML layout ParseRuleSet reads.
func EncodeRuleSet(rs *models.RuleSet) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(rs); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
