package models

// EntityKind names an entity whose name a naming rule can check.
type EntityKind string

const (
	EntityTag          EntityKind = "tag"
	EntityUDT          EntityKind = "udt"
	EntityUDTMember    EntityKind = "udt_member"
	EntityAOI          EntityKind = "aoi"
	EntityAOIParameter EntityKind = "aoi_parameter"
	EntityRoutine      EntityKind = "routine"
	EntityProgram      EntityKind = "program"
	EntityTask         EntityKind = "task"
	EntityModule       EntityKind = "module"
)

// AllEntityKinds lists every checkable kind in report order.
var AllEntityKinds = []EntityKind{
	EntityTag, EntityUDT, EntityUDTMember, EntityAOI, EntityAOIParameter,
	EntityRoutine, EntityProgram, EntityTask, EntityModule,
}

// Severity of a naming rule.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// NamingRule describes a valid name shape: names matching Pattern comply.
type NamingRule struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Pattern     string       `json:"pattern" yaml:"pattern"`
	AppliesTo   []EntityKind `json:"appliesTo" yaml:"applies_to"`
	Severity    Severity     `json:"severity" yaml:"severity"`
	IsActive    bool         `json:"isActive" yaml:"is_active"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Scope       string       `json:"scope,omitempty" yaml:"scope,omitempty"` // program name glob
}

// RuleSet is a named, organization-owned ordered list of rules.
type RuleSet struct {
	ID             string       `json:"id" yaml:"id"`
	OrganizationID string       `json:"organizationId" yaml:"organization_id"`
	Name           string       `json:"name" yaml:"name"`
	IsDefault      bool         `json:"isDefault" yaml:"is_default"`
	Rules          []NamingRule `json:"rules" yaml:"rules"`
}

// ProjectSettings holds the per-project analysis switches.
type ProjectSettings struct {
	ProjectID      string `json:"projectId"`
	OrganizationID string `json:"organizationId"`
	RuleSetID      string `json:"ruleSetId,omitempty"`
	NamingInHealth bool   `json:"namingInHealth"`
}
