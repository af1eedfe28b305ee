// Package naming validates entity names against organization rule sets.
// Rules describe valid name shapes: a name that matches is compliant.
package naming

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/gobwas/glob"

	"github.com/plc-analyzer/backend/internal/models"
)

var (
	ErrInvalidPattern = errors.New("invalid rule pattern")
	ErrInvalidScope   = errors.New("invalid rule scope")
	ErrInvalidRule    = errors.New("invalid rule")
)

var knownKinds = func() map[models.EntityKind]bool {
	m := make(map[models.EntityKind]bool, len(models.AllEntityKinds))
	for _, k := range models.AllEntityKinds {
		m[k] = true
	}
	return m
}()

// CompiledRule is a rule whose pattern and scope have been compiled.
type CompiledRule struct {
	models.NamingRule
	re    *regexp.Regexp
	scope glob.Glob
	kinds map[models.EntityKind]bool
}

// appliesTo reports whether the rule checks an entity of kind in program.
// Scoped rules never apply to controller-level entities.
func (r *CompiledRule) appliesTo(kind models.EntityKind, program string) bool {
	if !r.IsActive || !r.kinds[kind] {
		return false
	}
	if r.scope == nil {
		return true
	}
	return program != "" && r.scope.Match(program)
}

// CompiledRuleSet is the only input the validator accepts. Holding one
// guarantees every rule compiled.
type CompiledRuleSet struct {
	ID    string
	Name  string
	rules []*CompiledRule
}

// Rules returns the compiled rules in declaration order.
func (c *CompiledRuleSet) Rules() []*CompiledRule {
	return c.rules
}

// CompileRule checks and compiles one rule.
func CompileRule(r models.NamingRule) (*CompiledRule, error) {
	label := r.Name
	if label == "" {
		label = r.ID
	}
	if r.Pattern == "" {
		return nil, fmt.Errorf("rule %q: %w: empty pattern", label, ErrInvalidPattern)
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w: %v", label, ErrInvalidPattern, err)
	}
	switch r.Severity {
	case models.SeverityError, models.SeverityWarning, models.SeverityInfo:
	default:
		return nil, fmt.Errorf("rule %q: %w: unknown severity %q", label, ErrInvalidRule, r.Severity)
	}
	if len(r.AppliesTo) == 0 {
		return nil, fmt.Errorf("rule %q: %w: applies_to is empty", label, ErrInvalidRule)
	}
	kinds := make(map[models.EntityKind]bool, len(r.AppliesTo))
	for _, k := range r.AppliesTo {
		if !knownKinds[k] {
			return nil, fmt.Errorf("rule %q: %w: unknown entity kind %q", label, ErrInvalidRule, k)
		}
		kinds[k] = true
	}

	cr := &CompiledRule{NamingRule: r, re: re, kinds: kinds}
	if r.Scope != "" {
		g, err := glob.Compile(r.Scope)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w: %v", label, ErrInvalidScope, err)
		}
		cr.scope = g
	}
	return cr, nil
}

// Compile compiles every rule of the set, failing on the first bad rule.
func Compile(rs models.RuleSet) (*CompiledRuleSet, error) {
	out := &CompiledRuleSet{ID: rs.ID, Name: rs.Name, rules: make([]*CompiledRule, 0, len(rs.Rules))}
	for _, r := range rs.Rules {
		cr, err := CompileRule(r)
		if err != nil {
			return nil, err
		}
		out.rules = append(out.rules, cr)
	}
	return out, nil
}
