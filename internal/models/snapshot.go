package models

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// FileKind is the declared export format.
type FileKind string

const (
	KindL5X FileKind = "l5x"
	KindL5K FileKind = "l5k"
)

// KindFromName infers the declared kind from a file extension.
func KindFromName(fileName string) (FileKind, bool) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".l5x":
		return KindL5X, true
	case ".l5k":
		return KindL5K, true
	}
	return "", false
}

// Sections records which sections were present in the source document.
// A missing section yields an empty collection, which is not the same as a
// present-but-empty section for derived metrics.
type Sections struct {
	DataTypes bool `json:"dataTypes" msgpack:"dataTypes"`
	AOIs      bool `json:"aois" msgpack:"aois"`
	Modules   bool `json:"modules" msgpack:"modules"`
	Tags      bool `json:"tags" msgpack:"tags"`
	Programs  bool `json:"programs" msgpack:"programs"`
	Tasks     bool `json:"tasks" msgpack:"tasks"`
}

// Complete reports whether every section was exported.
func (s Sections) Complete() bool {
	return s.DataTypes && s.AOIs && s.Modules && s.Tags && s.Programs && s.Tasks
}

// Snapshot is the immutable result of one parse run of one file version.
type Snapshot struct {
	ID               string    `json:"id" msgpack:"id"` // version id
	FileID           string    `json:"fileId" msgpack:"fileId"`
	FileName         string    `json:"fileName" msgpack:"fileName"`
	Kind             FileKind  `json:"kind" msgpack:"kind"`
	SchemaRevision   string    `json:"schemaRevision" msgpack:"schemaRevision"`
	SoftwareRevision *string   `json:"softwareRevision" msgpack:"softwareRevision"`
	ControllerName   *string   `json:"controllerName" msgpack:"controllerName"`
	TargetType       *string   `json:"targetType" msgpack:"targetType"`
	ParsedAt         time.Time `json:"parsedAt" msgpack:"parsedAt"`
	Sections         Sections  `json:"sections" msgpack:"sections"`

	Tags       []Tag          `json:"tags" msgpack:"tags"`
	UDTs       []UDT          `json:"udts" msgpack:"udts"`
	AOIs       []AOI          `json:"aois" msgpack:"aois"`
	Programs   []Program      `json:"programs" msgpack:"programs"`
	Routines   []Routine      `json:"routines" msgpack:"routines"`
	Rungs      []Rung         `json:"rungs" msgpack:"rungs"`
	Modules    []IOModule     `json:"modules" msgpack:"modules"`
	Tasks      []Task         `json:"tasks" msgpack:"tasks"`
	References []TagReference `json:"references" msgpack:"references"`
}

// NewSnapshot creates an empty snapshot with non-nil collections.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Tags:       make([]Tag, 0),
		UDTs:       make([]UDT, 0),
		AOIs:       make([]AOI, 0),
		Programs:   make([]Program, 0),
		Routines:   make([]Routine, 0),
		Rungs:      make([]Rung, 0),
		Modules:    make([]IOModule, 0),
		Tasks:      make([]Task, 0),
		References: make([]TagReference, 0),
	}
}

// Counts summarizes entity counts.
type Counts struct {
	Tags       int `json:"tags"`
	UDTs       int `json:"udts"`
	AOIs       int `json:"aois"`
	Programs   int `json:"programs"`
	Routines   int `json:"routines"`
	Rungs      int `json:"rungs"`
	Modules    int `json:"modules"`
	Tasks      int `json:"tasks"`
	References int `json:"references"`
}

// Counts returns the entity counts of the snapshot.
func (s *Snapshot) Counts() Counts {
	return Counts{
		Tags:       len(s.Tags),
		UDTs:       len(s.UDTs),
		AOIs:       len(s.AOIs),
		Programs:   len(s.Programs),
		Routines:   len(s.Routines),
		Rungs:      len(s.Rungs),
		Modules:    len(s.Modules),
		Tasks:      len(s.Tasks),
		References: len(s.References),
	}
}

// AOIByName returns the AOI definitions keyed by upper-case name, since
// Logix resolves instruction names without regard to case.
func (s *Snapshot) AOIByName() map[string]AOI {
	out := make(map[string]AOI, len(s.AOIs))
	for _, a := range s.AOIs {
		out[strings.ToUpper(a.Name)] = a
	}
	return out
}

// ErrSnapshotNotFound is returned when a snapshot version does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")
