package naming

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/parser"
)

// ErrRuleSetNotFound is returned for unknown rule set ids.
var ErrRuleSetNotFound = errors.New("rule set not found")

const settingsFile = "project_settings.yaml"

// RuleStore keeps organization rule sets as one YAML file each, plus the
// per-project settings. Every stored set has compiled successfully.
type RuleStore struct {
	mu       sync.RWMutex
	dir      string
	sets     map[string]*models.RuleSet
	compiled map[string]*CompiledRuleSet
	settings map[string]models.ProjectSettings
}

// NewRuleStore opens (or creates) the rule directory and loads every
// rule set in it. A file that no longer compiles fails the load.
func NewRuleStore(dir string) (*RuleStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating rules directory: %w", err)
	}
	s := &RuleStore{
		dir:      dir,
		sets:     make(map[string]*models.RuleSet),
		compiled: make(map[string]*CompiledRuleSet),
		settings: make(map[string]models.ProjectSettings),
	}

	paths, err := filepath.Glob(filepath.Join(dir, "ruleset_*.yaml"))
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		rs, err := parser.ParseRuleSet(p)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", filepath.Base(p), err)
		}
		c, err := Compile(*rs)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", filepath.Base(p), err)
		}
		s.sets[rs.ID] = rs
		s.compiled[rs.ID] = c
	}

	if err := s.loadSettings(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RuleStore) setPath(id string) string {
	return filepath.Join(s.dir, "ruleset_"+id+".yaml")
}

// List returns the rule sets of an organization sorted by name.
func (s *RuleStore) List(orgID string) []*models.RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.RuleSet, 0)
	for _, rs := range s.sets {
		if rs.OrganizationID == orgID {
			out = append(out, rs)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get returns a rule set by id.
func (s *RuleStore) Get(id string) (*models.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, ok := s.sets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleSetNotFound, id)
	}
	return rs, nil
}

// Create validates and stores a new rule set. Missing ids are assigned.
// Marking it default clears the flag on the organization's other sets.
func (s *RuleStore) Create(rs models.RuleSet) (*models.RuleSet, error) {
	if rs.OrganizationID == "" {
		return nil, fmt.Errorf("%w: organization id is required", ErrInvalidRule)
	}
	rs.ID = uuid.New().String()
	return s.put(rs)
}

// Update replaces an existing rule set. The organization cannot change.
func (s *RuleStore) Update(id string, rs models.RuleSet) (*models.RuleSet, error) {
	current, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	rs.ID = id
	rs.OrganizationID = current.OrganizationID
	return s.put(rs)
}

// Import reads a YAML rule set into an organization as a new set.
func (s *RuleStore) Import(orgID string, r io.Reader) (*models.RuleSet, error) {
	rs, err := parser.ParseRuleSetFromReader(r)
	if err != nil {
		return nil, err
	}
	rs.OrganizationID = orgID
	return s.Create(*rs)
}

// ExportYAML renders a stored rule set in the import format.
func (s *RuleStore) ExportYAML(id string) ([]byte, error) {
	rs, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return parser.EncodeRuleSet(rs)
}

func (s *RuleStore) put(rs models.RuleSet) (*models.RuleSet, error) {
	rs.Rules = append([]models.NamingRule(nil), rs.Rules...)
	for i := range rs.Rules {
		if rs.Rules[i].ID == "" {
			rs.Rules[i].ID = uuid.New().String()
		}
	}
	if strings.TrimSpace(rs.Name) == "" {
		return nil, fmt.Errorf("%w: rule set name is required", ErrInvalidRule)
	}
	c, err := Compile(rs)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rs.IsDefault {
		for id, other := range s.sets {
			if id == rs.ID || other.OrganizationID != rs.OrganizationID || !other.IsDefault {
				continue
			}
			cleared := *other
			cleared.IsDefault = false
			if err := s.write(&cleared); err != nil {
				return nil, err
			}
			s.sets[id] = &cleared
		}
	}
	if err := s.write(&rs); err != nil {
		return nil, err
	}
	s.sets[rs.ID] = &rs
	s.compiled[rs.ID] = c
	return &rs, nil
}

func (s *RuleStore) write(rs *models.RuleSet) error {
	data, err := parser.EncodeRuleSet(rs)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.setPath(rs.ID), data)
}

// Delete removes a rule set. Projects pinned to it fall back to the
// organization default.
func (s *RuleStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sets[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRuleSetNotFound, id)
	}
	if err := os.Remove(s.setPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting rule set: %w", err)
	}
	delete(s.sets, id)
	delete(s.compiled, id)
	return nil
}

// Resolve picks the compiled rule set for a project: its pinned set, then
// the organization default, then none (nil). orgID is used when the
// project has no stored settings.
func (s *RuleStore) Resolve(projectID, orgID string) *CompiledRuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ps, ok := s.settings[projectID]; ok {
		if ps.RuleSetID != "" {
			if c, ok := s.compiled[ps.RuleSetID]; ok {
				return c
			}
		}
		if ps.OrganizationID != "" {
			orgID = ps.OrganizationID
		}
	}
	if orgID == "" {
		return nil
	}
	// Files edited outside the store can leave two defaults for one
	// organization; the lowest id wins.
	best := ""
	for id, rs := range s.sets {
		if rs.OrganizationID == orgID && rs.IsDefault && (best == "" || id < best) {
			best = id
		}
	}
	if best == "" {
		return nil
	}
	return s.compiled[best]
}

// ProjectSettings returns a project's settings; unknown projects get the
// zero settings.
func (s *RuleStore) ProjectSettings(projectID string) models.ProjectSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ps, ok := s.settings[projectID]
	if !ok {
		return models.ProjectSettings{ProjectID: projectID}
	}
	return ps
}

// SetProjectSettings stores a project's settings. A pinned rule set must
// exist and belong to the project's organization.
func (s *RuleStore) SetProjectSettings(ps models.ProjectSettings) error {
	if ps.ProjectID == "" {
		return fmt.Errorf("%w: project id is required", ErrInvalidRule)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ps.RuleSetID != "" {
		rs, ok := s.sets[ps.RuleSetID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrRuleSetNotFound, ps.RuleSetID)
		}
		if rs.OrganizationID != ps.OrganizationID {
			return fmt.Errorf("%w: rule set belongs to another organization", ErrInvalidRule)
		}
	}
	s.settings[ps.ProjectID] = ps
	return s.saveSettings()
}

type settingsDoc struct {
	Projects []projectSettingsYAML `yaml:"projects"`
}

type projectSettingsYAML struct {
	ProjectID      string `yaml:"project_id"`
	OrganizationID string `yaml:"organization_id"`
	RuleSetID      string `yaml:"rule_set_id,omitempty"`
	NamingInHealth bool   `yaml:"naming_in_health"`
}

func (s *RuleStore) loadSettings() error {
	data, err := os.ReadFile(filepath.Join(s.dir, settingsFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading project settings: %w", err)
	}
	var doc settingsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid project settings yaml: %w", err)
	}
	for _, p := range doc.Projects {
		s.settings[p.ProjectID] = models.ProjectSettings{
			ProjectID:      p.ProjectID,
			OrganizationID: p.OrganizationID,
			RuleSetID:      p.RuleSetID,
			NamingInHealth: p.NamingInHealth,
		}
	}
	return nil
}

// saveSettings must be called with the write lock held.
func (s *RuleStore) saveSettings() error {
	doc := settingsDoc{Projects: make([]projectSettingsYAML, 0, len(s.settings))}
	for _, ps := range s.settings {
		doc.Projects = append(doc.Projects, projectSettingsYAML{
			ProjectID:      ps.ProjectID,
			OrganizationID: ps.OrganizationID,
			RuleSetID:      ps.RuleSetID,
			NamingInHealth: ps.NamingInHealth,
		})
	}
	sort.Slice(doc.Projects, func(i, j int) bool { return doc.Projects[i].ProjectID < doc.Projects[j].ProjectID })

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, settingsFile), buf.Bytes())
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
