package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/plc-analyzer/backend/internal/models"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrUnknownKind  = errors.New("unknown export kind")
)

const indexFile = "index.msgpack"

// Upload describes an incoming export file. An empty Kind is inferred from
// the file extension.
type Upload struct {
	Name      string
	ProjectID string
	Folder    string
	Kind      models.FileKind
}

// Store defines the interface for raw export storage.
type Store interface {
	Save(u Upload, r io.Reader) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(projectID string) ([]*models.FileInfo, error)
	ListFolder(projectID, folder string) ([]*models.FileInfo, error)
	Delete(id string) error
	Rename(id string, newName string) (*models.FileInfo, error)
	GetFilePath(id string) (string, error)
	SetStatus(id string, status models.ParsingStatus, parseErr string) error
	AddVersion(id, versionID string) error
}

// LocalStore implements Store using the local filesystem. File metadata is
// kept in memory and mirrored to a msgpack index next to the uploads.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.FileInfo
	logger    *slog.Logger
}

// NewLocalStore creates a new LocalStore and loads its metadata index.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	s := &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.FileInfo),
		logger:    slog.Default().With("component", "storage"),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalStore) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.uploadDir, indexFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading file index: %w", err)
	}

	var files []*models.FileInfo
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&files); err != nil {
		return fmt.Errorf("decoding file index: %w", err)
	}
	for _, f := range files {
		// A parse interrupted by a restart never finished.
		if f.ParsingStatus == models.ParsingRunning {
			f.ParsingStatus = models.ParsingFailed
			f.ParseError = "interrupted by restart"
		}
		s.files[f.ID] = f
	}
	s.logger.Info("loaded file index", "files", len(s.files))
	return nil
}

// saveIndex must be called with the write lock held.
func (s *LocalStore) saveIndex() error {
	files := make([]*models.FileInfo, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(files); err != nil {
		return fmt.Errorf("encoding file index: %w", err)
	}

	path := filepath.Join(s.uploadDir, indexFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing file index: %w", err)
	}
	return os.Rename(tmp, path)
}

func clone(f *models.FileInfo) *models.FileInfo {
	c := *f
	c.Versions = append([]string(nil), f.Versions...)
	if c.Versions == nil {
		c.Versions = []string{}
	}
	return &c
}

// Save stores an export file with status pending.
func (s *LocalStore) Save(u Upload, r io.Reader) (*models.FileInfo, error) {
	kind := u.Kind
	if kind == "" {
		k, ok := models.KindFromName(u.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKind, u.Name)
		}
		kind = k
	}
	if kind != models.KindL5X && kind != models.KindL5K {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.FileInfo{
		ID:            id,
		Name:          u.Name,
		ProjectID:     u.ProjectID,
		Folder:        u.Folder,
		Kind:          kind,
		Size:          size,
		UploadedAt:    time.Now(),
		ParsingStatus: models.ParsingPending,
		Versions:      []string{},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info
	if err := s.saveIndex(); err != nil {
		delete(s.files, id)
		os.Remove(path)
		return nil, err
	}
	return clone(info), nil
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	return clone(info), nil
}

// List returns the files of a project, most recent first. An empty project
// id lists every file.
func (s *LocalStore) List(projectID string) ([]*models.FileInfo, error) {
	return s.filter(func(f *models.FileInfo) bool {
		return projectID == "" || f.ProjectID == projectID
	}), nil
}

// ListFolder returns the files of one folder of a project.
func (s *LocalStore) ListFolder(projectID, folder string) ([]*models.FileInfo, error) {
	return s.filter(func(f *models.FileInfo) bool {
		return f.ProjectID == projectID && f.Folder == folder
	}), nil
}

func (s *LocalStore) filter(keep func(*models.FileInfo) bool) []*models.FileInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0)
	for _, info := range s.files {
		if keep(info) {
			list = append(list, clone(info))
		}
	}

	// Sort by UploadedAt desc
	sort.Slice(list, func(i, j int) bool {
		if !list[i].UploadedAt.Equal(list[j].UploadedAt) {
			return list[i].UploadedAt.After(list[j].UploadedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// Delete removes a file from storage. Snapshots of its versions are the
// caller's to remove.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	path := filepath.Join(s.uploadDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return s.saveIndex()
}

// Rename updates the display name of a file.
func (s *LocalStore) Rename(id string, newName string) (*models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	info.Name = newName
	if err := s.saveIndex(); err != nil {
		return nil, err
	}
	return clone(info), nil
}

// GetFilePath returns the absolute path to a file.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	return filepath.Join(s.uploadDir, id), nil
}

// SetStatus records the parsing status. parseErr is kept only for failures.
func (s *LocalStore) SetStatus(id string, status models.ParsingStatus, parseErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	info.ParsingStatus = status
	info.ParseError = ""
	if status == models.ParsingFailed {
		info.ParseError = parseErr
	}
	return s.saveIndex()
}

// AddVersion appends a published snapshot version and makes it current.
func (s *LocalStore) AddVersion(id, versionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	// The catalog keeps the old entry unless the index is written.
	updated := clone(info)
	updated.Versions = append(updated.Versions, versionID)
	updated.CurrentVersionID = versionID
	s.files[id] = updated
	if err := s.saveIndex(); err != nil {
		s.files[id] = info
		return err
	}
	return nil
}
