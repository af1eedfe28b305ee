// Package models contains the normalized entity model for Studio 5000 projects.
package models

import "strings"

// ScopeController is the scope of controller-level tags.
const ScopeController = "controller"

// ProgramScope returns the scope string for a tag declared inside a program.
func ProgramScope(program string) string {
	return "program:" + program
}

// ScopeProgram returns the program name of a program scope, or "" for controller scope.
func ScopeProgram(scope string) string {
	return strings.TrimPrefix(scope, "program:")
}

// Tag is a named, typed memory location.
type Tag struct {
	Name           string  `json:"name" msgpack:"name"`
	DataType       string  `json:"dataType" msgpack:"dataType"`
	Scope          string  `json:"scope" msgpack:"scope"`
	TagType        string  `json:"tagType" msgpack:"tagType"` // Base, Alias, Produced, Consumed
	Description    *string `json:"description" msgpack:"description"`
	Usage          *string `json:"usage" msgpack:"usage"` // declared intent (program parameters)
	AliasFor       *string `json:"aliasFor,omitempty" msgpack:"aliasFor"`
	Dimensions     *string `json:"dimensions,omitempty" msgpack:"dimensions"`
	Radix          *string `json:"radix,omitempty" msgpack:"radix"`
	ExternalAccess *string `json:"externalAccess,omitempty" msgpack:"externalAccess"`
	Constant       bool    `json:"constant" msgpack:"constant"`
}

// IsController reports whether the tag is controller scoped.
func (t Tag) IsController() bool {
	return t.Scope == ScopeController
}
