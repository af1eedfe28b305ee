package parser

import (
	"context"
	"strconv"
	"strings"

	"github.com/plc-analyzer/backend/internal/models"
)

// Parser converts one export document into an Entity Model snapshot.
type Parser interface {
	// Name returns the unique name of the parser.
	Name() string
	// Kind returns the file kind this parser handles.
	Kind() models.FileKind
	// CanParse sniffs the file name and the first bytes of the document.
	CanParse(fileName string, head []byte) bool
	// Parse parses the whole document. The returned snapshot has no identity
	// fields set; the caller assigns file and version ids.
	Parse(ctx context.Context, data []byte) (*models.Snapshot, error)
}

// Common utilities for parsing

// optionalString returns nil for blank input, otherwise the trimmed value.
func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// optionalInt parses an integer attribute. Absence is nil, never 0.
func optionalInt(raw string, line int, field string) (*int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, malformed(line, "%s: %q is not an integer", field, s)
	}
	return &v, nil
}

// optionalRate parses a task rate in milliseconds. Fractional rates are
// rounded to the nearest millisecond.
func optionalRate(raw string, line int) (*int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		return &v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, malformed(line, "Rate: %q is not a number", s)
	}
	v := int(f + 0.5)
	return &v, nil
}

// parseBool accepts the spellings used by both export formats.
func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1":
		return true
	}
	return false
}

// schemaMajor returns the major component of a dotted revision string.
func schemaMajor(rev string) string {
	rev = strings.TrimSpace(rev)
	if i := strings.IndexByte(rev, '.'); i >= 0 {
		return rev[:i]
	}
	return rev
}

// checkInvariants enforces the model invariants every parser must uphold.
func checkInvariants(snap *models.Snapshot) error {
	seen := make(map[string]bool, len(snap.Tags))
	for _, t := range snap.Tags {
		key := t.Scope + "\x00" + t.Name
		if seen[key] {
			return malformed(0, "duplicate tag %q in scope %s", t.Name, t.Scope)
		}
		seen[key] = true
	}

	continuous := 0
	for _, t := range snap.Tasks {
		if t.Type == models.TaskContinuous {
			continuous++
		}
	}
	if continuous > 1 {
		return malformed(0, "%d continuous tasks declared, at most one allowed", continuous)
	}

	rungs := make(map[string]bool, len(snap.Rungs))
	for _, r := range snap.Rungs {
		key := r.ProgramName + "\x00" + r.RoutineName + "\x00" + strconv.Itoa(r.Number)
		if rungs[key] {
			return malformed(0, "duplicate rung %d in %s/%s", r.Number, r.ProgramName, r.RoutineName)
		}
		rungs[key] = true
	}
	return nil
}
