package diff

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/observability"
)

// SnapshotLoader reads a persisted snapshot by version id. Implementations
// return an error wrapping ErrSnapshotNotFound for unknown versions.
type SnapshotLoader interface {
	Load(ctx context.Context, versionID string) (*models.Snapshot, error)
}

// FolderFile is one parsed file in a folder, identified for matching by name.
type FolderFile struct {
	FileName  string `json:"fileName"`
	FileID    string `json:"fileId,omitempty"`
	VersionID string `json:"versionId"`
}

// Side tags an unmatched file with the folder it came from.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// UnmatchedFile is a file whose name has no counterpart in the other folder.
type UnmatchedFile struct {
	FileName  string `json:"fileName"`
	VersionID string `json:"versionId"`
	Side      Side   `json:"side"`
}

// PairResult is the diff of two same-named files.
type PairResult struct {
	FileName       string  `json:"fileName"`
	LeftVersionID  string  `json:"leftVersionId"`
	RightVersionID string  `json:"rightVersionId"`
	Summary        Summary `json:"summary"`
	Report         *Report `json:"report"`
}

// FolderReport is the N:N comparison of two folders.
type FolderReport struct {
	MatchedPairs     []PairResult    `json:"matchedPairs"`
	UnmatchedFiles   []UnmatchedFile `json:"unmatchedFiles"`
	FilesWithChanges int             `json:"filesWithChanges"`
	TotalChanges     int             `json:"totalChanges"`
}

// CompareFolders matches files by file name across the two folders and diffs
// each matched pair, at most concurrency pairs at a time. When a folder holds
// the same name twice, the first occurrence is matched and the rest are
// reported unmatched.
func CompareFolders(ctx context.Context, loader SnapshotLoader, left, right []FolderFile, concurrency int) (*FolderReport, error) {
	start := time.Now()
	defer func() {
		observability.DiffDuration.WithLabelValues("folder").Observe(time.Since(start).Seconds())
	}()

	if concurrency <= 0 {
		concurrency = 1
	}

	report := &FolderReport{
		MatchedPairs:   []PairResult{},
		UnmatchedFiles: []UnmatchedFile{},
	}

	rightByName := make(map[string]FolderFile, len(right))
	for _, f := range right {
		if _, dup := rightByName[f.FileName]; dup {
			report.UnmatchedFiles = append(report.UnmatchedFiles, UnmatchedFile{f.FileName, f.VersionID, SideRight})
			continue
		}
		rightByName[f.FileName] = f
	}

	type pair struct{ left, right FolderFile }
	var pairs []pair
	matched := make(map[string]bool, len(left))
	for _, f := range left {
		r, ok := rightByName[f.FileName]
		if !ok || matched[f.FileName] {
			report.UnmatchedFiles = append(report.UnmatchedFiles, UnmatchedFile{f.FileName, f.VersionID, SideLeft})
			continue
		}
		matched[f.FileName] = true
		pairs = append(pairs, pair{f, r})
	}
	for name, f := range rightByName {
		if !matched[name] {
			report.UnmatchedFiles = append(report.UnmatchedFiles, UnmatchedFile{f.FileName, f.VersionID, SideRight})
		}
	}

	results := make([]PairResult, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, p := range pairs {
		g.Go(func() error {
			a, err := loader.Load(gctx, p.left.VersionID)
			if err != nil {
				return fmt.Errorf("load %s (left): %w", p.left.FileName, err)
			}
			b, err := loader.Load(gctx, p.right.VersionID)
			if err != nil {
				return fmt.Errorf("load %s (right): %w", p.right.FileName, err)
			}
			r := DiffSnapshots(a, b)
			results[i] = PairResult{
				FileName:       p.left.FileName,
				LeftVersionID:  p.left.VersionID,
				RightVersionID: p.right.VersionID,
				Summary:        r.Summary,
				Report:         r,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.Summary.TotalChanges > 0 {
			report.FilesWithChanges++
		}
		report.TotalChanges += r.Summary.TotalChanges
	}
	report.MatchedPairs = append(report.MatchedPairs, results...)

	sort.Slice(report.MatchedPairs, func(i, j int) bool {
		return report.MatchedPairs[i].FileName < report.MatchedPairs[j].FileName
	})
	sort.SliceStable(report.UnmatchedFiles, func(i, j int) bool {
		a, b := report.UnmatchedFiles[i], report.UnmatchedFiles[j]
		if a.FileName != b.FileName {
			return a.FileName < b.FileName
		}
		if a.Side != b.Side {
			return a.Side < b.Side
		}
		return a.VersionID < b.VersionID
	})
	return report, nil
}
