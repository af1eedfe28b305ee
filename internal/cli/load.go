package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/parser"
	"github.com/plc-analyzer/backend/internal/refs"
)

// loadOptions bound a single document parse.
type loadOptions struct {
	maxSize int64
	timeout time.Duration
	workers int
}

func defaultLoadOptions() loadOptions {
	return loadOptions{maxSize: 256 << 20, timeout: 2 * time.Minute}
}

// expandPaths replaces each directory argument by the export files it holds,
// sorted by name. Files are passed through whatever their extension.
func expandPaths(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		files, err := exportFiles(arg)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("%w: no .L5X or .L5K files in %s", ErrUsage, arg)
		}
		out = append(out, files...)
	}
	return out, nil
}

func exportFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := parser.KindFromName(e.Name()); ok {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// loadSnapshot parses one export and extracts its references. The snapshot
// gets a fresh version id; FileID is the path it was read from.
func loadSnapshot(ctx context.Context, reg *parser.Registry, path string, opts loadOptions) (*models.Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if opts.maxSize > 0 && info.Size() > opts.maxSize {
		return nil, fmt.Errorf("%s: %w", path, &parser.ParseError{
			Kind: parser.ErrDocumentTooLarge,
			Msg:  fmt.Sprintf("%s exceeds the %s limit", humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(opts.maxSize))),
		})
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	p, err := pickParser(reg, path, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	start := time.Now()
	snap, err := p.Parse(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	snap.ID = uuid.New().String()
	snap.FileID = path
	snap.FileName = filepath.Base(path)
	snap.ParsedAt = time.Now().UTC()

	snap.References, err = refs.NewExtractor(nil, opts.workers).Extract(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("%s: extracting references: %w", path, err)
	}

	slog.Debug("parsed export",
		"file", snap.FileName,
		"parser", p.Name(),
		"size", humanize.Bytes(uint64(len(data))),
		"references", len(snap.References),
		"elapsed", time.Since(start))
	return snap, nil
}

func pickParser(reg *parser.Registry, path string, data []byte) (parser.Parser, error) {
	if kind, ok := parser.KindFromName(path); ok {
		return reg.Lookup(kind)
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return reg.Detect(filepath.Base(path), head)
}

// loadAll parses the paths concurrently and returns snapshots in argument
// order. The first failure cancels the rest.
func loadAll(ctx context.Context, paths []string, opts loadOptions) ([]*models.Snapshot, error) {
	reg := parser.NewRegistry()
	snaps := make([]*models.Snapshot, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			snap, err := loadSnapshot(gctx, reg, path, opts)
			if err != nil {
				return err
			}
			snaps[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snaps, nil
}

// memLoader serves already parsed snapshots by version id.
type memLoader map[string]*models.Snapshot

func (m memLoader) Load(_ context.Context, versionID string) (*models.Snapshot, error) {
	snap, ok := m[versionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSnapshotNotFound, versionID)
	}
	return snap, nil
}
