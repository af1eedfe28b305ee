package parser

import (
	"fmt"
	"strings"

	"github.com/plc-analyzer/backend/internal/models"
)

// Registry holds all available parsers and provides auto-detection.
type Registry struct {
	parsers []Parser
}

// NewRegistry returns a registry with the L5X and L5K parsers.
func NewRegistry() *Registry {
	return &Registry{
		parsers: []Parser{
			NewL5XParser(),
			NewL5KParser(),
		},
	}
}

// Register adds a new parser to the registry.
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

// Lookup returns the parser for a declared file kind.
func (r *Registry) Lookup(kind models.FileKind) (Parser, error) {
	for _, p := range r.parsers {
		if p.Kind() == kind {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no parser for file kind: %s", kind)
}

// Detect finds the parser for a file by name and leading content.
func (r *Registry) Detect(fileName string, head []byte) (Parser, error) {
	for _, p := range r.parsers {
		if p.CanParse(fileName, head) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no suitable parser found for file: %s", fileName)
}

// KindFromName infers the declared kind from a file extension.
func KindFromName(fileName string) (models.FileKind, bool) {
	return models.KindFromName(fileName)
}

// GetParserByName returns a parser by its name.
func (r *Registry) GetParserByName(name string) (Parser, error) {
	name = strings.ToLower(name)
	for _, p := range r.parsers {
		if strings.ToLower(p.Name()) == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("parser not found: %s", name)
}
