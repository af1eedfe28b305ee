package metrics

import (
	"strings"

	"github.com/plc-analyzer/backend/internal/models"
)

// UnusedOptions tunes the hierarchical match rule.
type UnusedOptions struct {
	// CountMemberReferences also treats a tag as used when a reference
	// names one of its members or elements (Motor1.Run marks Motor1).
	CountMemberReferences bool
}

// UnusedTag is an unused tag located in a project's snapshots.
type UnusedTag struct {
	models.Tag
	FileID    string `json:"fileId"`
	FileName  string `json:"fileName"`
	VersionID string `json:"versionId"`
}

// pathPrefixes returns every proper prefix of a tag path cut at a member
// separator or an index bracket, shortest first. "A.B[2].C" yields
// "A", "A.B", "A.B[2]".
func pathPrefixes(name string) []string {
	var out []string
	depth := 0
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '[':
			if depth == 0 && i > 0 {
				out = append(out, name[:i])
			}
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case '.':
			if depth == 0 && i > 0 {
				out = append(out, name[:i])
			}
		}
	}
	return out
}

// arrayBase strips one trailing [...] index.
func arrayBase(name string) (string, bool) {
	if !strings.HasSuffix(name, "]") {
		return "", false
	}
	i := strings.LastIndexByte(name, '[')
	if i <= 0 {
		return "", false
	}
	return name[:i], true
}

// referenceSet is the set of referenced names a tag is matched against.
func referenceSet(refs []models.TagReference, opts UnusedOptions) map[string]struct{} {
	set := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		set[r.TagName] = struct{}{}
		if opts.CountMemberReferences {
			for _, p := range pathPrefixes(r.TagName) {
				set[p] = struct{}{}
			}
		}
	}
	return set
}

func isUsed(name string, set map[string]struct{}) bool {
	if _, ok := set[name]; ok {
		return true
	}
	for _, p := range pathPrefixes(name) {
		if _, ok := set[p]; ok {
			return true
		}
	}
	if base, ok := arrayBase(name); ok {
		if _, hit := set[base]; hit {
			return true
		}
	}
	return false
}

// FindUnusedTags returns the tags with no matching reference, in declaration
// order. A tag counts as used when the reference set holds its exact name,
// any dotted or indexed prefix of it, or its array base name.
func FindUnusedTags(tags []models.Tag, refs []models.TagReference, opts UnusedOptions) []models.Tag {
	set := referenceSet(refs, opts)
	out := make([]models.Tag, 0)
	for _, t := range tags {
		if !isUsed(t.Name, set) {
			out = append(out, t)
		}
	}
	return out
}

// ProjectUnusedTags runs FindUnusedTags per snapshot. References of one file
// never mark tags of another file as used.
func ProjectUnusedTags(snaps []*models.Snapshot, opts UnusedOptions) []UnusedTag {
	out := make([]UnusedTag, 0)
	for _, s := range snaps {
		for _, t := range FindUnusedTags(s.Tags, s.References, opts) {
			out = append(out, UnusedTag{Tag: t, FileID: s.FileID, FileName: s.FileName, VersionID: s.ID})
		}
	}
	return out
}
