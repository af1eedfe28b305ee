// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/storage"
)

// MockStorage implements storage.Store for testing. File bytes are written
// to a temp directory so GetFilePath returns a readable path.
type MockStorage struct {
	dir   string
	files map[string]*models.FileInfo
	seq   int
	mu    sync.RWMutex

	// SaveErr, when set, is returned by Save.
	SaveErr error
}

var _ storage.Store = (*MockStorage)(nil)

// NewMockStorage creates a mock store rooted at dir.
func NewMockStorage(dir string) *MockStorage {
	return &MockStorage{dir: dir, files: make(map[string]*models.FileInfo)}
}

func (m *MockStorage) Save(u storage.Upload, r io.Reader) (*models.FileInfo, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	kind := u.Kind
	if kind == "" {
		k, ok := models.KindFromName(u.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", storage.ErrUnknownKind, u.Name)
		}
		kind = k
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("file-%03d", m.seq)
	if err := os.WriteFile(filepath.Join(m.dir, id), data, 0644); err != nil {
		return nil, err
	}
	info := &models.FileInfo{
		ID:            id,
		Name:          u.Name,
		ProjectID:     u.ProjectID,
		Folder:        u.Folder,
		Kind:          kind,
		Size:          int64(len(data)),
		UploadedAt:    time.Unix(int64(m.seq), 0).UTC(),
		ParsingStatus: models.ParsingPending,
		Versions:      []string{},
	}
	m.files[id] = info
	return copyInfo(info), nil
}

// SaveBytes is a convenience wrapper for tests.
func (m *MockStorage) SaveBytes(u storage.Upload, data []byte) *models.FileInfo {
	info, err := m.Save(u, bytes.NewReader(data))
	if err != nil {
		panic(err)
	}
	return info
}

func (m *MockStorage) Get(id string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.files[id]
	if !ok {
		return nil, storage.ErrFileNotFound
	}
	return copyInfo(info), nil
}

func (m *MockStorage) List(projectID string) ([]*models.FileInfo, error) {
	return m.filter(func(f *models.FileInfo) bool { return projectID == "" || f.ProjectID == projectID }), nil
}

func (m *MockStorage) ListFolder(projectID, folder string) ([]*models.FileInfo, error) {
	return m.filter(func(f *models.FileInfo) bool { return f.ProjectID == projectID && f.Folder == folder }), nil
}

func (m *MockStorage) filter(keep func(*models.FileInfo) bool) []*models.FileInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.FileInfo, 0, len(m.files))
	for _, f := range m.files {
		if keep(f) {
			out = append(out, copyInfo(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return storage.ErrFileNotFound
	}
	delete(m.files, id)
	os.Remove(filepath.Join(m.dir, id))
	return nil
}

func (m *MockStorage) Rename(id, newName string) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.files[id]
	if !ok {
		return nil, storage.ErrFileNotFound
	}
	info.Name = newName
	return copyInfo(info), nil
}

func (m *MockStorage) GetFilePath(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.files[id]; !ok {
		return "", storage.ErrFileNotFound
	}
	return filepath.Join(m.dir, id), nil
}

func (m *MockStorage) SetStatus(id string, status models.ParsingStatus, parseErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.files[id]
	if !ok {
		return storage.ErrFileNotFound
	}
	info.ParsingStatus = status
	info.ParseError = ""
	if status == models.ParsingFailed {
		info.ParseError = parseErr
	}
	return nil
}

func (m *MockStorage) AddVersion(id, versionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.files[id]
	if !ok {
		return storage.ErrFileNotFound
	}
	info.Versions = append(info.Versions, versionID)
	info.CurrentVersionID = versionID
	return nil
}

func copyInfo(f *models.FileInfo) *models.FileInfo {
	c := *f
	c.Versions = append([]string{}, f.Versions...)
	return &c
}
