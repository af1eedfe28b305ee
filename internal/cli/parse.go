package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/parser"
	"github.com/plc-analyzer/backend/internal/session"
	"github.com/plc-analyzer/backend/internal/snapshotdb"
	"github.com/plc-analyzer/backend/internal/storage"
)

var parseCmd = &cobra.Command{
	Use:   "parse <path>...",
	Short: "Parse exports and report what they contain",
	Long: `Parse one or more exports and print entity counts per file.

With --data-dir the exports are also stored the way the server stores
uploads: raw files under <data-dir>/uploads and snapshots under
<data-dir>/snapshots, so a server started on the same data directory
serves them.`,
	Example: `  l5xctl parse Line1.L5X
  l5xctl parse ./exports --data-dir ./data --project plant-a --folder baseline`,
	Args: RequirePaths,
	RunE: runParse,
}

type parseFlagValues struct {
	dataDir string
	project string
	folder  string
	format  string
}

var parseFlags parseFlagValues

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVar(&parseFlags.dataDir, "data-dir", "", "Store uploads and snapshots under this directory")
	parseCmd.Flags().StringVar(&parseFlags.project, "project", "default", "Project id for stored files")
	parseCmd.Flags().StringVar(&parseFlags.folder, "folder", "", "Folder for stored files")
	parseCmd.Flags().StringVarP(&parseFlags.format, "format", "f", formatText, "Output format: text or json")
}

// parseResult is one file's row in the parse output.
type parseResult struct {
	File       string        `json:"file"`
	Kind       string        `json:"kind"`
	Controller string        `json:"controller,omitempty"`
	FileID     string        `json:"fileId,omitempty"`
	VersionID  string        `json:"versionId"`
	Partial    bool          `json:"partial"`
	Counts     models.Counts `json:"counts"`
}

func runParse(cmd *cobra.Command, args []string) error {
	if err := checkFormat(parseFlags.format, formatText, formatJSON); err != nil {
		return err
	}
	opts, err := loadOptionsFrom(cmd)
	if err != nil {
		return err
	}
	paths, err := expandPaths(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var results []parseResult
	if parseFlags.dataDir != "" {
		results, err = parseIntoStore(ctx, paths, opts)
	} else {
		results, err = parseInMemory(ctx, paths, opts)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if parseFlags.format == formatJSON {
		return writeJSON(out, results)
	}
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{
			r.File, r.Kind, r.Controller,
			strconv.Itoa(r.Counts.Tags), strconv.Itoa(r.Counts.Programs),
			strconv.Itoa(r.Counts.Routines), strconv.Itoa(r.Counts.Rungs),
			strconv.Itoa(r.Counts.References), shortVersion(r.VersionID),
		}
	}
	return writeTable(out,
		[]string{"File", "Kind", "Controller", "Tags", "Programs", "Routines", "Rungs", "References", "Version"},
		rows, "no exports parsed")
}

func parseInMemory(ctx context.Context, paths []string, opts loadOptions) ([]parseResult, error) {
	snaps, err := loadAll(ctx, paths, opts)
	if err != nil {
		return nil, err
	}
	results := make([]parseResult, len(snaps))
	for i, s := range snaps {
		results[i] = parseResult{
			File:       s.FileName,
			Kind:       string(s.Kind),
			Controller: deref(s.ControllerName),
			VersionID:  s.ID,
			Partial:    !s.Sections.Complete(),
			Counts:     s.Counts(),
		}
	}
	return results, nil
}

// parseIntoStore runs each file through the same upload and parse path the
// server uses.
func parseIntoStore(ctx context.Context, paths []string, opts loadOptions) ([]parseResult, error) {
	files, err := storage.NewLocalStore(filepath.Join(parseFlags.dataDir, "uploads"))
	if err != nil {
		return nil, err
	}
	snapshots, err := snapshotdb.Open(filepath.Join(parseFlags.dataDir, "snapshots"))
	if err != nil {
		return nil, err
	}
	cfg := session.DefaultConfig()
	cfg.MaxDocumentSize = opts.maxSize
	cfg.ParseTimeout = opts.timeout
	cfg.ExtractorWorkers = opts.workers
	mgr := session.NewManager(parser.NewRegistry(), files, snapshots, cfg)

	results := make([]parseResult, 0, len(paths))
	for _, path := range paths {
		info, err := saveUpload(files, path)
		if err != nil {
			return nil, err
		}
		sess, snap, err := mgr.ParseNow(ctx, info.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, parseResult{
			File:       snap.FileName,
			Kind:       string(snap.Kind),
			Controller: deref(snap.ControllerName),
			FileID:     info.ID,
			VersionID:  sess.VersionID,
			Partial:    !snap.Sections.Complete(),
			Counts:     snap.Counts(),
		})
	}
	return results, nil
}

func saveUpload(files storage.Store, path string) (*models.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := files.Save(storage.Upload{
		Name:      filepath.Base(path),
		ProjectID: parseFlags.project,
		Folder:    parseFlags.folder,
	}, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func shortVersion(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
