// Package diff computes structural change reports between snapshots.
package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/observability"
)

// ErrSnapshotNotFound is returned when one side of a comparison is missing.
var ErrSnapshotNotFound = models.ErrSnapshotNotFound

// Modification is an entity present on both sides with field deltas.
type Modification struct {
	Key     string   `json:"key"`
	Changes []string `json:"changes"`
}

// EntityDiff lists the keyed changes for one entity kind. All lists are
// sorted by key.
type EntityDiff struct {
	Added    []string       `json:"added"`
	Removed  []string       `json:"removed"`
	Modified []Modification `json:"modified"`
}

// Count returns added + removed + modified.
func (d EntityDiff) Count() int {
	return len(d.Added) + len(d.Removed) + len(d.Modified)
}

// KindCounts summarizes one entity kind.
type KindCounts struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
}

func countsOf(d EntityDiff) KindCounts {
	return KindCounts{Added: len(d.Added), Removed: len(d.Removed), Modified: len(d.Modified)}
}

// Summary holds aggregate counts. TotalChanges covers tags, routines and
// modules only; definition sections are counted in DefinitionChanges.
type Summary struct {
	Tags              KindCounts `json:"tags"`
	Routines          KindCounts `json:"routines"`
	Modules           KindCounts `json:"modules"`
	TotalChanges      int        `json:"totalChanges"`
	DefinitionChanges int        `json:"definitionChanges"`
}

// Report is the full change report between two snapshots.
type Report struct {
	FromVersionID string     `json:"fromVersionId"`
	ToVersionID   string     `json:"toVersionId"`
	Tags          EntityDiff `json:"tags"`
	Routines      EntityDiff `json:"routines"`
	Modules       EntityDiff `json:"modules"`
	UDTs          EntityDiff `json:"udts"`
	AOIs          EntityDiff `json:"aois"`
	Tasks         EntityDiff `json:"tasks"`
	Summary       Summary    `json:"summary"`
}

// DiffSnapshots compares a (before) with b (after).
func DiffSnapshots(a, b *models.Snapshot) *Report {
	start := time.Now()
	defer func() {
		observability.DiffDuration.WithLabelValues("snapshot").Observe(time.Since(start).Seconds())
	}()

	r := &Report{
		FromVersionID: a.ID,
		ToVersionID:   b.ID,
	}

	multi := multiScopeNames(a.Tags, b.Tags)
	r.Tags = diffKeyed(keyTags(a.Tags, multi), keyTags(b.Tags, multi), compareTags)
	r.Routines = diffKeyed(keyRoutines(a), keyRoutines(b), compareRoutines)
	r.Modules = diffKeyed(keyBy(a.Modules, func(m models.IOModule) string { return m.Name }),
		keyBy(b.Modules, func(m models.IOModule) string { return m.Name }), compareModules)
	r.UDTs = diffKeyed(keyBy(a.UDTs, func(u models.UDT) string { return u.Name }),
		keyBy(b.UDTs, func(u models.UDT) string { return u.Name }), compareUDTs)
	r.AOIs = diffKeyed(keyBy(a.AOIs, func(x models.AOI) string { return x.Name }),
		keyBy(b.AOIs, func(x models.AOI) string { return x.Name }), compareAOIs)
	r.Tasks = diffKeyed(keyBy(a.Tasks, func(t models.Task) string { return t.Name }),
		keyBy(b.Tasks, func(t models.Task) string { return t.Name }), compareTasks)

	r.Summary = Summary{
		Tags:              countsOf(r.Tags),
		Routines:          countsOf(r.Routines),
		Modules:           countsOf(r.Modules),
		TotalChanges:      r.Tags.Count() + r.Routines.Count() + r.Modules.Count(),
		DefinitionChanges: r.UDTs.Count() + r.AOIs.Count() + r.Tasks.Count(),
	}
	return r
}

// diffKeyed matches entities by key and compares matched pairs.
func diffKeyed[T any](a, b map[string]T, compare func(x, y T) []string) EntityDiff {
	d := EntityDiff{
		Added:    []string{},
		Removed:  []string{},
		Modified: []Modification{},
	}
	for k, x := range a {
		y, ok := b[k]
		if !ok {
			d.Removed = append(d.Removed, k)
			continue
		}
		if changes := compare(x, y); len(changes) > 0 {
			d.Modified = append(d.Modified, Modification{Key: k, Changes: changes})
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			d.Added = append(d.Added, k)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Slice(d.Modified, func(i, j int) bool { return d.Modified[i].Key < d.Modified[j].Key })
	return d
}

func keyBy[T any](items []T, key func(T) string) map[string]T {
	out := make(map[string]T, len(items))
	for _, it := range items {
		out[key(it)] = it
	}
	return out
}

// multiScopeNames returns tag names declared in more than one scope on
// either side. Those tags are keyed "scope/name" on both sides.
func multiScopeNames(sides ...[]models.Tag) map[string]bool {
	multi := make(map[string]bool)
	for _, tags := range sides {
		scopes := make(map[string]string, len(tags))
		for _, t := range tags {
			if s, ok := scopes[t.Name]; ok && s != t.Scope {
				multi[t.Name] = true
			}
			scopes[t.Name] = t.Scope
		}
	}
	return multi
}

func keyTags(tags []models.Tag, multi map[string]bool) map[string]models.Tag {
	out := make(map[string]models.Tag, len(tags))
	for _, t := range tags {
		key := t.Name
		if multi[t.Name] {
			key = t.Scope + "/" + t.Name
		}
		out[key] = t
	}
	return out
}

// routineEntry carries a routine with its rungs for comparison.
type routineEntry struct {
	routine models.Routine
	rungs   map[int]models.Rung
}

func keyRoutines(s *models.Snapshot) map[string]routineEntry {
	out := make(map[string]routineEntry, len(s.Routines))
	for _, r := range s.Routines {
		out[routineKey(r.ProgramName, r.Name)] = routineEntry{routine: r, rungs: map[int]models.Rung{}}
	}
	for _, rg := range s.Rungs {
		if e, ok := out[routineKey(rg.ProgramName, rg.RoutineName)]; ok {
			e.rungs[rg.Number] = rg
		}
	}
	return out
}

func routineKey(program, name string) string {
	return program + "/" + name
}

// Field delta helpers. Every delta reads "<Field>: <before> → <after>".

func delta(field, before, after string) string {
	return fmt.Sprintf("%s: %s → %s", field, before, after)
}

func optStr(p *string) string {
	if p == nil {
		return "(none)"
	}
	return *p
}

func optInt(p *int) string {
	if p == nil {
		return "(none)"
	}
	return strconv.Itoa(*p)
}

type changes []string

func (c *changes) str(field, a, b string) {
	if a != b {
		*c = append(*c, delta(field, a, b))
	}
}

func (c *changes) optStr(field string, a, b *string) {
	c.str(field, optStr(a), optStr(b))
}

func (c *changes) optInt(field string, a, b *int) {
	c.str(field, optInt(a), optInt(b))
}

func (c *changes) boolean(field string, a, b bool) {
	c.str(field, strconv.FormatBool(a), strconv.FormatBool(b))
}

func compareTags(a, b models.Tag) []string {
	var c changes
	c.str("Data type", a.DataType, b.DataType)
	c.str("Scope", a.Scope, b.Scope)
	c.str("Tag type", a.TagType, b.TagType)
	c.optStr("Description", a.Description, b.Description)
	c.optStr("Usage", a.Usage, b.Usage)
	c.optStr("Alias for", a.AliasFor, b.AliasFor)
	c.optStr("Dimensions", a.Dimensions, b.Dimensions)
	c.optStr("External access", a.ExternalAccess, b.ExternalAccess)
	c.boolean("Constant", a.Constant, b.Constant)
	return c
}

func compareRoutines(a, b routineEntry) []string {
	var c changes
	c.str("Type", string(a.routine.Type), string(b.routine.Type))
	c.optStr("Description", a.routine.Description, b.routine.Description)
	c.str("Rung count", strconv.Itoa(a.routine.RungCount), strconv.Itoa(b.routine.RungCount))

	numbers := make(map[int]bool, len(a.rungs)+len(b.rungs))
	for n := range a.rungs {
		numbers[n] = true
	}
	for n := range b.rungs {
		numbers[n] = true
	}
	ordered := make([]int, 0, len(numbers))
	for n := range numbers {
		ordered = append(ordered, n)
	}
	sort.Ints(ordered)

	for _, n := range ordered {
		ra, inA := a.rungs[n]
		rb, inB := b.rungs[n]
		label := "Rung " + strconv.Itoa(n)
		switch {
		case !inA:
			c = append(c, label+": added")
		case !inB:
			c = append(c, label+": removed")
		default:
			if ra.LogicText != rb.LogicText {
				c = append(c, label+" logic: "+ra.LogicText+" → "+rb.LogicText)
			}
			c.optStr(label+" comment", ra.Comment, rb.Comment)
		}
	}
	return c
}

func compareModules(a, b models.IOModule) []string {
	var c changes
	c.optStr("Catalog number", a.CatalogNumber, b.CatalogNumber)
	c.optStr("Parent module", a.ParentModule, b.ParentModule)
	c.optInt("Slot", a.Slot, b.Slot)
	if !sameJSON(a.ConnectionInfo, b.ConnectionInfo) {
		c = append(c, "Connection info: changed")
	}
	return c
}

func sameJSON(a, b json.RawMessage) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

func compareUDTs(a, b models.UDT) []string {
	var c changes
	c.optStr("Family", a.Family, b.Family)
	c.optStr("Description", a.Description, b.Description)

	namesA := memberNames(a.Members)
	namesB := memberNames(b.Members)
	if namesA != namesB {
		c = append(c, delta("Members", "["+namesA+"]", "["+namesB+"]"))
		return c
	}
	for i := range a.Members {
		ma, mb := a.Members[i], b.Members[i]
		label := "Member " + ma.Name
		c.str(label+" data type", ma.DataType, mb.DataType)
		c.optInt(label+" dimension", ma.Dimension, mb.Dimension)
		c.optStr(label+" description", ma.Description, mb.Description)
		c.boolean(label+" hidden", ma.Hidden, mb.Hidden)
	}
	return c
}

func memberNames(ms []models.UDTMember) string {
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.Name
	}
	return strings.Join(names, ", ")
}

func compareAOIs(a, b models.AOI) []string {
	var c changes
	c.str("Revision", a.Revision, b.Revision)
	c.optStr("Vendor", a.Vendor, b.Vendor)
	c.optStr("Description", a.Description, b.Description)

	namesA := paramNames(a.Parameters)
	namesB := paramNames(b.Parameters)
	if namesA != namesB {
		c = append(c, delta("Parameters", "["+namesA+"]", "["+namesB+"]"))
		return c
	}
	for i := range a.Parameters {
		pa, pb := a.Parameters[i], b.Parameters[i]
		label := "Parameter " + pa.Name
		c.str(label+" data type", pa.DataType, pb.DataType)
		c.str(label+" usage", string(pa.Usage), string(pb.Usage))
		c.boolean(label+" required", pa.Required, pb.Required)
		c.boolean(label+" visible", pa.Visible, pb.Visible)
		c.optStr(label+" description", pa.Description, pb.Description)
	}
	return c
}

func paramNames(ps []models.AOIParameter) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}

func compareTasks(a, b models.Task) []string {
	var c changes
	c.str("Type", string(a.Type), string(b.Type))
	c.optInt("Rate", a.Rate, b.Rate)
	c.str("Priority", strconv.Itoa(a.Priority), strconv.Itoa(b.Priority))
	c.optInt("Watchdog", a.Watchdog, b.Watchdog)
	c.boolean("Inhibit task", a.InhibitTask, b.InhibitTask)
	c.boolean("Disable update outputs", a.DisableUpdateOutputs, b.DisableUpdateOutputs)
	c.str("Scheduled programs", strings.Join(a.ScheduledPrograms, ", "), strings.Join(b.ScheduledPrograms, ", "))
	return c
}
