package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/observability"
	"github.com/plc-analyzer/backend/internal/parser"
	"github.com/plc-analyzer/backend/internal/refs"
	"github.com/plc-analyzer/backend/internal/snapshotdb"
	"github.com/plc-analyzer/backend/internal/storage"
)

// MaxSessions limits how many finished sessions are retained in memory.
const MaxSessions = 200

// SessionMaxAge is how long to keep completed sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// ErrAlreadyParsing is returned when a parse of the same file is in flight.
var ErrAlreadyParsing = errors.New("file is already being parsed")

// deletingFile marks a file whose delete is in progress in the parsing table.
const deletingFile = "-"

// Config bounds every parse run.
type Config struct {
	MaxConcurrentParses int
	ParseTimeout        time.Duration
	MaxDocumentSize     int64
	ExtractorWorkers    int
	SnapshotCacheSize   int
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentParses: 4,
		ParseTimeout:        2 * time.Minute,
		MaxDocumentSize:     256 << 20,
		ExtractorWorkers:    0,
		SnapshotCacheSize:   16,
	}
}

// Manager runs parse jobs and serves published snapshots.
type Manager struct {
	sessions map[string]*SessionState
	parsing  map[string]string // fileID -> sessionID of the run in flight, or deletingFile
	mu       sync.RWMutex

	registry  *parser.Registry
	files     storage.Store
	snapshots *snapshotdb.Store
	extractor *refs.Extractor
	catalog   *catalog

	cfg    Config
	sem    chan struct{}
	logger *slog.Logger
}

// SessionState holds the session metadata.
type SessionState struct {
	Session      *models.ParseSession
	StartedAt    time.Time
	LastAccessed time.Time
}

// NewManager creates a session manager.
func NewManager(registry *parser.Registry, files storage.Store, snapshots *snapshotdb.Store, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.MaxConcurrentParses <= 0 {
		cfg.MaxConcurrentParses = def.MaxConcurrentParses
	}
	if cfg.ParseTimeout <= 0 {
		cfg.ParseTimeout = def.ParseTimeout
	}
	if cfg.MaxDocumentSize <= 0 {
		cfg.MaxDocumentSize = def.MaxDocumentSize
	}
	if cfg.SnapshotCacheSize <= 0 {
		cfg.SnapshotCacheSize = def.SnapshotCacheSize
	}
	return &Manager{
		sessions:  make(map[string]*SessionState),
		parsing:   make(map[string]string),
		registry:  registry,
		files:     files,
		snapshots: snapshots,
		extractor: refs.NewExtractor(nil, cfg.ExtractorWorkers),
		catalog:   newCatalog(snapshots, cfg.SnapshotCacheSize),
		cfg:       cfg,
		sem:       make(chan struct{}, cfg.MaxConcurrentParses),
		logger:    slog.Default().With("component", "session"),
	}
}

func (m *Manager) register(fileID string) (*SessionState, error) {
	if _, err := m.files.Get(fileID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if owner, busy := m.parsing[fileID]; busy {
		if owner == deletingFile {
			return nil, fmt.Errorf("%w: %s", storage.ErrFileNotFound, fileID)
		}
		return nil, fmt.Errorf("%w: %s", ErrAlreadyParsing, fileID)
	}
	m.cleanupOldSessionsIfNeeded()

	session := models.NewParseSession(uuid.New().String(), fileID)
	state := &SessionState{Session: session, StartedAt: time.Now(), LastAccessed: time.Now()}
	m.sessions[session.ID] = state
	m.parsing[fileID] = session.ID
	return state, nil
}

// StartParse queues a parse of the stored file and returns immediately with
// a pending session. At most MaxConcurrentParses runs execute at once.
func (m *Manager) StartParse(fileID string) (*models.ParseSession, error) {
	state, err := m.register(fileID)
	if err != nil {
		return nil, err
	}
	snapshot := *state.Session

	go func() {
		m.sem <- struct{}{}
		defer func() { <-m.sem }()
		m.runParse(context.Background(), state.Session.ID, fileID)
	}()

	return &snapshot, nil
}

// ParseNow parses the stored file synchronously and returns the finished
// session with the published snapshot. A failed run returns the error and
// the failed session.
func (m *Manager) ParseNow(ctx context.Context, fileID string) (*models.ParseSession, *models.Snapshot, error) {
	state, err := m.register(fileID)
	if err != nil {
		return nil, nil, err
	}
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		m.fail(state.Session.ID, fileID, "", ctx.Err())
		s, _ := m.GetSession(state.Session.ID)
		return s, nil, ctx.Err()
	}
	defer func() { <-m.sem }()

	snap, err := m.runParse(ctx, state.Session.ID, fileID)
	s, _ := m.GetSession(state.Session.ID)
	return s, snap, err
}

func (m *Manager) setProgress(sessionID string, status models.SessionStatus, progress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.sessions[sessionID]; ok {
		state.Session.Status = status
		state.Session.Progress = progress
	}
}

// runParse executes one run: read, parse, extract, persist, publish.
// Nothing is published unless every step succeeds.
func (m *Manager) runParse(parent context.Context, sessionID, fileID string) (snap *models.Snapshot, err error) {
	start := time.Now()
	kind := "unknown"

	observability.ActiveParses.Inc()
	defer observability.ActiveParses.Dec()

	// Recover from panics to prevent backend crash
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("parse panicked", "session", shortID(sessionID), "panic", r)
			snap, err = nil, fmt.Errorf("parse panicked: %v", r)
		}
		if err != nil {
			m.fail(sessionID, fileID, kind, err)
		}
		observability.ParseDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	info, err := m.files.Get(fileID)
	if err != nil {
		return nil, err
	}
	kind = string(info.Kind)
	if err := m.files.SetStatus(fileID, models.ParsingRunning, ""); err != nil {
		return nil, err
	}
	m.setProgress(sessionID, models.SessionStatusParsing, 10)
	m.logger.Info("parse started", "session", shortID(sessionID), "file", info.Name, "kind", kind)

	ctx, cancel := context.WithTimeout(parent, m.cfg.ParseTimeout)
	defer cancel()

	data, err := m.readDocument(fileID)
	if err != nil {
		return nil, err
	}

	p, err := m.registry.Lookup(info.Kind)
	if err != nil {
		return nil, err
	}
	snap, err = p.Parse(ctx, data)
	if err != nil {
		return nil, err
	}
	snap.ID = uuid.New().String()
	snap.FileID = fileID
	snap.FileName = info.Name
	snap.ParsedAt = time.Now().UTC()
	m.setProgress(sessionID, models.SessionStatusParsing, 60)

	snap.References, err = m.extractor.Extract(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("extracting references: %w", err)
	}
	m.setProgress(sessionID, models.SessionStatusParsing, 80)

	if err := m.snapshots.Save(ctx, snap); err != nil {
		return nil, err
	}
	if err := m.files.AddVersion(fileID, snap.ID); err != nil {
		m.snapshots.Delete(snap.ID)
		return nil, err
	}
	if err := m.files.SetStatus(fileID, models.ParsingParsed, ""); err != nil {
		return nil, err
	}
	m.catalog.put(snap)

	elapsed := time.Since(start)
	counts := snap.Counts()

	m.mu.Lock()
	if state, ok := m.sessions[sessionID]; ok {
		state.Session.Status = models.SessionStatusComplete
		state.Session.Progress = 100
		state.Session.VersionID = snap.ID
		state.Session.ParserName = p.Name()
		state.Session.Counts = &counts
		state.Session.ProcessingTimeMs = elapsed.Milliseconds()
	}
	delete(m.parsing, fileID)
	m.mu.Unlock()

	observability.ParsesTotal.WithLabelValues(kind, "ok").Inc()
	m.logger.Info("parse complete",
		"session", shortID(sessionID),
		"version", snap.ID,
		"tags", counts.Tags,
		"rungs", counts.Rungs,
		"references", counts.References,
		"elapsed", elapsed)
	return snap, nil
}

// readDocument loads the raw bytes, enforcing the size envelope before and
// while reading.
func (m *Manager) readDocument(fileID string) ([]byte, error) {
	path, err := m.files.GetFilePath(fileID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	if st, err := f.Stat(); err == nil && st.Size() > m.cfg.MaxDocumentSize {
		return nil, &parser.ParseError{Kind: parser.ErrDocumentTooLarge, Msg: fmt.Sprintf("%d bytes exceeds limit of %d", st.Size(), m.cfg.MaxDocumentSize)}
	}
	data, err := io.ReadAll(io.LimitReader(f, m.cfg.MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > m.cfg.MaxDocumentSize {
		return nil, &parser.ParseError{Kind: parser.ErrDocumentTooLarge, Msg: fmt.Sprintf("exceeds limit of %d bytes", m.cfg.MaxDocumentSize)}
	}
	return data, nil
}

// ErrorKind names a failure for session status and metrics.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	default:
		return parser.KindName(err)
	}
}

func (m *Manager) fail(sessionID, fileID, kind string, err error) {
	errKind := ErrorKind(err)
	if kind == "" {
		kind = "unknown"
	}
	observability.ParsesTotal.WithLabelValues(kind, errKind).Inc()
	m.logger.Warn("parse failed", "session", shortID(sessionID), "file", fileID, "kind", errKind, "error", err)

	if serr := m.files.SetStatus(fileID, models.ParsingFailed, err.Error()); serr != nil && !errors.Is(serr, storage.ErrFileNotFound) {
		m.logger.Error("failed to record parse failure", "file", fileID, "error", serr)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.parsing, fileID)
	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	state.Session.Status = models.SessionStatusError
	state.Session.ErrorKind = errKind
	state.Session.Error = err.Error()
}

// cleanupOldSessionsIfNeeded drops the oldest finished sessions when at
// capacity. Must be called with the write lock held.
func (m *Manager) cleanupOldSessionsIfNeeded() {
	if len(m.sessions) < MaxSessions {
		return
	}
	var oldestID string
	var oldest time.Time
	for id, state := range m.sessions {
		if !finished(state.Session.Status) {
			continue
		}
		if oldestID == "" || state.StartedAt.Before(oldest) {
			oldestID, oldest = id, state.StartedAt
		}
	}
	if oldestID != "" {
		delete(m.sessions, oldestID)
	}
}

func finished(s models.SessionStatus) bool {
	return s == models.SessionStatusComplete || s == models.SessionStatusError
}

// CleanupOldSessions removes finished sessions not accessed within maxAge.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, state := range m.sessions {
		if !finished(state.Session.Status) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("cleaned up aged sessions", "removed", removed)
	}
	return removed
}

// GetSession returns a copy of a session by ID.
func (m *Manager) GetSession(id string) (*models.ParseSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	state.LastAccessed = time.Now()
	s := *state.Session
	return &s, true
}

// shortID safely truncates an ID for logging (handles short IDs gracefully)
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
