package models

import "encoding/json"

// IOModule is a hardware module in the I/O tree. ParentModule is a weak
// reference by name; the tree is rebuilt by lookup, never by pointer.
type IOModule struct {
	Name           string          `json:"name" msgpack:"name"`
	CatalogNumber  *string         `json:"catalogNumber" msgpack:"catalogNumber"`
	ParentModule   *string         `json:"parentModule" msgpack:"parentModule"`
	Slot           *int            `json:"slot" msgpack:"slot"`
	ConnectionInfo json.RawMessage `json:"connectionInfo,omitempty" msgpack:"connectionInfo"`
}

// ModuleIndex maps module names to modules of one snapshot.
type ModuleIndex map[string]IOModule

// IndexModules builds a name lookup for resolving parent references.
func IndexModules(mods []IOModule) ModuleIndex {
	idx := make(ModuleIndex, len(mods))
	for _, m := range mods {
		idx[m.Name] = m
	}
	return idx
}

// Parent resolves the parent module, if present in the same snapshot.
func (idx ModuleIndex) Parent(m IOModule) (IOModule, bool) {
	if m.ParentModule == nil {
		return IOModule{}, false
	}
	p, ok := idx[*m.ParentModule]
	return p, ok
}

// Path returns the chain of module names from the root down to m.
// Cycles and dangling parents terminate the walk.
func (idx ModuleIndex) Path(m IOModule) []string {
	path := []string{m.Name}
	seen := map[string]bool{m.Name: true}
	cur := m
	for {
		p, ok := idx.Parent(cur)
		if !ok || seen[p.Name] {
			break
		}
		seen[p.Name] = true
		path = append([]string{p.Name}, path...)
		cur = p
	}
	return path
}
