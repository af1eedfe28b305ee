package export

import (
	"fmt"
	"strings"

	"github.com/plc-analyzer/backend/internal/metrics"
	"github.com/plc-analyzer/backend/internal/models"
)

// DefaultContextBytes bounds Context output when no limit is configured.
const DefaultContextBytes = 16 << 10

// Context renders a plain-text summary of a snapshot for use as model
// context. Output never exceeds maxBytes and is cut at a line boundary.
// health may be nil.
func Context(snap *models.Snapshot, health *metrics.Health, maxBytes int) string {
	if maxBytes <= 0 {
		maxBytes = DefaultContextBytes
	}
	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	add("Controller: %s (target %s)", nonEmpty(opt(snap.ControllerName), "unknown"), nonEmpty(opt(snap.TargetType), "unknown"))
	add("Source: %s, %s schema %s", snap.FileName, strings.ToUpper(string(snap.Kind)), nonEmpty(snap.SchemaRevision, "unknown"))
	c := snap.Counts()
	add("Counts: %d tags, %d UDTs, %d AOIs, %d programs, %d routines, %d rungs, %d modules, %d tasks",
		c.Tags, c.UDTs, c.AOIs, c.Programs, c.Routines, c.Rungs, c.Modules, c.Tasks)
	if health != nil {
		add("Health: %s (tag efficiency %s, documentation %s, tag usage %s)",
			health.Score, health.TagEfficiency, health.Documentation, health.TagUsage)
	}

	if len(snap.Tasks) > 0 {
		add("")
		add("Tasks:")
		for _, t := range snap.Tasks {
			add("- %s %s priority %d: %s", t.Name, t.Type, t.Priority, strings.Join(t.ScheduledPrograms, ", "))
		}
	}
	if len(snap.Programs) > 0 {
		add("")
		add("Programs:")
		routines := make(map[string][]string)
		for _, r := range snap.Routines {
			routines[r.ProgramName] = append(routines[r.ProgramName], fmt.Sprintf("%s(%s,%d)", r.Name, r.Type, r.RungCount))
		}
		for _, p := range snap.Programs {
			add("- %s: %s", p.Name, strings.Join(routines[p.Name], " "))
		}
	}
	if len(snap.UDTs) > 0 {
		add("")
		add("Data types:")
		for _, u := range snap.UDTs {
			members := make([]string, 0, len(u.Members))
			for _, m := range u.Members {
				if !m.Hidden {
					members = append(members, m.Name+":"+m.DataType)
				}
			}
			add("- %s {%s}", u.Name, strings.Join(members, ", "))
		}
	}
	if len(snap.Tags) > 0 {
		add("")
		add("Tags:")
		for _, t := range snap.Tags {
			line := fmt.Sprintf("- %s %s %s", t.Scope, t.Name, t.DataType)
			if d := opt(t.Description); d != "" {
				line += " // " + strings.ReplaceAll(d, "\n", " ")
			}
			lines = append(lines, line)
		}
	}
	if len(snap.Rungs) > 0 {
		add("")
		add("Logic:")
		for _, r := range snap.Rungs {
			add("%s/%s#%d: %s", r.ProgramName, r.RoutineName, r.Number, r.LogicText)
		}
	}

	return truncateLines(lines, maxBytes)
}

// truncateLines joins whole lines until the next one would exceed max.
func truncateLines(lines []string, max int) string {
	var b strings.Builder
	for _, l := range lines {
		if b.Len()+len(l)+1 > max {
			break
		}
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}
