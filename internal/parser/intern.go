package parser

// maxTypeNames bounds a run's name table; names past the bound are returned
// as is.
const maxTypeNames = 100000

// typeNames deduplicates data type and tag type names within one parse run.
// BOOL, DINT or a UDT name repeat across thousands of tags and members and
// would otherwise each hold their own backing array. Not safe for
// concurrent use; every parse goroutine owns its table.
type typeNames map[string]string

func newTypeNames() typeNames {
	return make(typeNames, 256)
}

func (t typeNames) get(s string) string {
	if s == "" {
		return s
	}
	if v, ok := t[s]; ok {
		return v
	}
	if len(t) < maxTypeNames {
		t[s] = s
	}
	return s
}
