package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/plc-analyzer/backend/internal/diff"
	"github.com/plc-analyzer/backend/internal/models"
)

// Load returns the snapshot of a published version.
func (m *Manager) Load(ctx context.Context, versionID string) (*models.Snapshot, error) {
	return m.catalog.load(ctx, versionID)
}

// CurrentSnapshot loads the current version of a stored file.
func (m *Manager) CurrentSnapshot(ctx context.Context, fileID string) (*models.Snapshot, error) {
	info, err := m.files.Get(fileID)
	if err != nil {
		return nil, err
	}
	if info.CurrentVersionID == "" {
		return nil, fmt.Errorf("%w: file %s has no parsed version", models.ErrSnapshotNotFound, fileID)
	}
	return m.Load(ctx, info.CurrentVersionID)
}

// CurrentSnapshots loads the current version of every parsed file in a
// project, newest upload first. Files never parsed are skipped.
func (m *Manager) CurrentSnapshots(ctx context.Context, projectID string) ([]*models.Snapshot, error) {
	files, err := m.files.List(projectID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Snapshot, 0, len(files))
	for _, f := range files {
		if f.CurrentVersionID == "" {
			continue
		}
		snap, err := m.Load(ctx, f.CurrentVersionID)
		if errors.Is(err, models.ErrSnapshotNotFound) {
			m.logger.Warn("current version missing from snapshot store", "file", f.ID, "version", f.CurrentVersionID)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// FolderFiles lists the parsed files of a project folder for comparison.
func (m *Manager) FolderFiles(projectID, folder string) ([]diff.FolderFile, error) {
	files, err := m.files.ListFolder(projectID, folder)
	if err != nil {
		return nil, err
	}
	out := make([]diff.FolderFile, 0, len(files))
	for _, f := range files {
		if f.CurrentVersionID == "" {
			continue
		}
		out = append(out, diff.FolderFile{FileName: f.Name, FileID: f.ID, VersionID: f.CurrentVersionID})
	}
	return out, nil
}

// DeleteFile removes an upload together with every stored version.
func (m *Manager) DeleteFile(fileID string) error {
	m.mu.Lock()
	if _, busy := m.parsing[fileID]; busy {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyParsing, fileID)
	}
	m.parsing[fileID] = deletingFile
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.parsing, fileID)
		m.mu.Unlock()
	}()

	info, err := m.files.Get(fileID)
	if err != nil {
		return err
	}
	for _, v := range info.Versions {
		m.catalog.drop(v)
		if err := m.snapshots.Delete(v); err != nil && !errors.Is(err, models.ErrSnapshotNotFound) {
			return fmt.Errorf("deleting version %s: %w", v, err)
		}
	}
	return m.files.Delete(fileID)
}
