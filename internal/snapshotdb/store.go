// Package snapshotdb persists parsed snapshots, one DuckDB file per version.
package snapshotdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marcboeker/go-duckdb"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/observability"
)

const (
	filePrefix    = "snapshot_"
	fileExt       = ".duckdb"
	partialSuffix = ".partial"
)

// Store manages the snapshot files in one directory. A version is visible
// only after its file has been completely written and renamed into place.
type Store struct {
	dir    string
	mu     sync.RWMutex
	paths  map[string]string // versionID -> db path
	logger *slog.Logger
}

// Open opens (or creates) the snapshot directory, indexes published
// snapshots and removes partial files left by an interrupted run.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	s := &Store{
		dir:    dir,
		paths:  make(map[string]string),
		logger: slog.Default().With("component", "snapshotdb"),
	}
	if err := s.scanExisting(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) scanExisting() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("scanning snapshot directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) {
			continue
		}
		if strings.Contains(name, partialSuffix) {
			os.Remove(filepath.Join(s.dir, name))
			s.logger.Warn("removed partial snapshot file", "file", name)
			continue
		}
		if filepath.Ext(name) != fileExt {
			continue
		}
		version := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileExt)
		s.paths[version] = filepath.Join(s.dir, name)
	}
	s.logger.Info("scanned snapshot directory", "snapshots", len(s.paths))
	return nil
}

// Path returns where the snapshot of a version is published.
func (s *Store) Path(versionID string) string {
	return filepath.Join(s.dir, filePrefix+versionID+fileExt)
}

// Exists reports whether a version has been published.
func (s *Store) Exists(versionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.paths[versionID]
	return ok
}

func connector(dsn string) (*duckdb.Connector, error) {
	return duckdb.NewConnector(dsn, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='512MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func removePartial(path string) {
	os.Remove(path)
	os.Remove(path + ".wal")
}

// Save writes the snapshot to a partial file and publishes it with a rename.
// On any failure nothing is published and the partial file is removed.
func (s *Store) Save(ctx context.Context, snap *models.Snapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("snapshot has no version id")
	}
	start := time.Now()
	final := s.Path(snap.ID)
	partial := final + partialSuffix
	removePartial(partial)

	if err := s.write(ctx, partial, snap); err != nil {
		removePartial(partial)
		return fmt.Errorf("saving snapshot %s: %w", snap.ID, err)
	}
	if err := os.Rename(partial, final); err != nil {
		removePartial(partial)
		return fmt.Errorf("publishing snapshot %s: %w", snap.ID, err)
	}

	s.mu.Lock()
	s.paths[snap.ID] = final
	s.mu.Unlock()

	observability.SnapshotsStored.Inc()
	s.logger.Info("snapshot saved",
		"version", snap.ID,
		"tags", len(snap.Tags),
		"rungs", len(snap.Rungs),
		"references", len(snap.References),
		"elapsed", time.Since(start))
	return nil
}

func (s *Store) write(ctx context.Context, path string, snap *models.Snapshot) error {
	c, err := connector(path)
	if err != nil {
		return fmt.Errorf("failed to create DuckDB connector: %w", err)
	}
	db := sql.OpenDB(c)
	defer db.Close()

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}
		return appendSnapshot(ctx, dConn, snap)
	})
	conn.Close()
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("index creation failed: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return db.Close()
}

// Delete removes a published snapshot.
func (s *Store) Delete(versionID string) error {
	s.mu.Lock()
	path, ok := s.paths[versionID]
	delete(s.paths, versionID)
	s.mu.Unlock()

	if !ok {
		path = s.Path(versionID)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	os.Remove(path + ".wal")
	s.logger.Info("snapshot deleted", "version", versionID)
	return nil
}

// List returns the published version ids, sorted.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.paths))
	for id := range s.paths {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CleanupOrphaned removes snapshots whose version is not in validVersions.
func (s *Store) CleanupOrphaned(validVersions []string) int {
	valid := make(map[string]bool, len(validVersions))
	for _, id := range validVersions {
		valid[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, path := range s.paths {
		if valid[id] {
			continue
		}
		os.Remove(path)
		os.Remove(path + ".wal")
		delete(s.paths, id)
		removed++
		s.logger.Info("cleaned up orphaned snapshot", "version", id)
	}
	return removed
}

// Stats describes the store for the health endpoint.
type Stats struct {
	Snapshots int    `json:"snapshots"`
	TotalSize int64  `json:"totalSize"`
	Human     string `json:"totalSizeHuman"`
	Dir       string `json:"dir"`
}

// Stats returns snapshot count and disk usage.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, path := range s.paths {
		if info, err := os.Stat(path); err == nil {
			total += info.Size()
		}
	}
	return Stats{
		Snapshots: len(s.paths),
		TotalSize: total,
		Human:     humanize.Bytes(uint64(total)),
		Dir:       s.dir,
	}
}
