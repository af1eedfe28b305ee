package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/parser"
	"github.com/plc-analyzer/backend/internal/snapshotdb"
	"github.com/plc-analyzer/backend/internal/storage"
	"github.com/plc-analyzer/backend/internal/testutil"
)

func newTestManager(t *testing.T, cfg Config) (*Manager, *testutil.MockStorage) {
	t.Helper()
	files := testutil.NewMockStorage(t.TempDir())
	snaps, err := snapshotdb.Open(t.TempDir())
	require.NoError(t, err)
	return NewManager(parser.NewRegistry(), files, snaps, cfg), files
}

func TestParseNow(t *testing.T) {
	m, files := newTestManager(t, Config{})
	info := files.SaveBytes(storage.Upload{Name: "line1.L5X", ProjectID: "p1", Folder: "new"}, []byte(testutil.SampleL5X))

	sess, snap, err := m.ParseNow(context.Background(), info.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, models.SessionStatusComplete, sess.Status)
	assert.Equal(t, float64(100), sess.Progress)
	assert.Equal(t, snap.ID, sess.VersionID)
	require.NotNil(t, sess.Counts)
	assert.Equal(t, len(snap.References), sess.Counts.References)
	assert.NotEmpty(t, snap.References)
	assert.Equal(t, info.ID, snap.FileID)
	assert.Equal(t, "line1.L5X", snap.FileName)

	stored, err := files.Get(info.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParsingParsed, stored.ParsingStatus)
	assert.Equal(t, snap.ID, stored.CurrentVersionID)

	loaded, err := m.Load(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Tags, len(snap.Tags))
}

func TestParseNow_Failures(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		cfg      Config
		wantKind string
		wantErr  error
	}{
		{"malformed", "hello world", Config{}, "MalformedDocument", parser.ErrMalformedDocument},
		{"too large", testutil.SampleL5X, Config{MaxDocumentSize: 64}, "DocumentTooLarge", parser.ErrDocumentTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, files := newTestManager(t, tt.cfg)
			info := files.SaveBytes(storage.Upload{Name: "bad.L5X", ProjectID: "p1"}, []byte(tt.content))

			sess, snap, err := m.ParseNow(context.Background(), info.ID)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Nil(t, snap)
			assert.Equal(t, models.SessionStatusError, sess.Status)
			assert.Equal(t, tt.wantKind, sess.ErrorKind)

			stored, _ := files.Get(info.ID)
			assert.Equal(t, models.ParsingFailed, stored.ParsingStatus)
			assert.NotEmpty(t, stored.ParseError)
			assert.Empty(t, stored.Versions)
			assert.Empty(t, m.snapshots.List())
		})
	}
}

func TestParseNow_UnknownFile(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	_, _, err := m.ParseNow(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrFileNotFound)
}

func TestStartParse(t *testing.T) {
	m, files := newTestManager(t, Config{})
	info := files.SaveBytes(storage.Upload{Name: "line1.L5K", ProjectID: "p1"}, []byte(testutil.SampleL5K))

	sess, err := m.StartParse(info.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusPending, sess.Status)

	// Poll for completion
	var s *models.ParseSession
	for i := 0; i < 100; i++ {
		var ok bool
		s, ok = m.GetSession(sess.ID)
		require.True(t, ok, "session not found")
		if s.Status == models.SessionStatusComplete || s.Status == models.SessionStatusError {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.Equal(t, models.SessionStatusComplete, s.Status, "session error: %s", s.Error)
	assert.Equal(t, "l5k", s.ParserName)

	// A second parse of the same file is allowed once the first finished.
	_, err = m.StartParse(info.ID)
	assert.NoError(t, err)
}

func TestLoad_SharedReadIgnoresCallerCancel(t *testing.T) {
	m, files := newTestManager(t, Config{})
	info := files.SaveBytes(storage.Upload{Name: "line1.L5X", ProjectID: "p1", Folder: "new"}, []byte(testutil.SampleL5X))
	_, snap, err := m.ParseNow(context.Background(), info.ID)
	require.NoError(t, err)
	m.catalog.drop(snap.ID)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	loaded, err := m.catalog.load(cancelled, snap.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Tags, len(snap.Tags))

	cached, ok := m.catalog.get(snap.ID)
	require.True(t, ok, "completed read is cached for later callers")
	assert.Same(t, loaded, cached)
}

func TestProjectQueries(t *testing.T) {
	m, files := newTestManager(t, Config{})
	ctx := context.Background()
	a := files.SaveBytes(storage.Upload{Name: "a.L5X", ProjectID: "p1", Folder: "old"}, []byte(testutil.SampleL5X))
	b := files.SaveBytes(storage.Upload{Name: "a.L5X", ProjectID: "p1", Folder: "new"}, []byte(testutil.TagsOnlyL5X))
	files.SaveBytes(storage.Upload{Name: "unparsed.L5X", ProjectID: "p1", Folder: "new"}, []byte(testutil.SampleL5X))

	_, _, err := m.ParseNow(ctx, a.ID)
	require.NoError(t, err)
	_, _, err = m.ParseNow(ctx, b.ID)
	require.NoError(t, err)

	snaps, err := m.CurrentSnapshots(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, snaps, 2)

	folder, err := m.FolderFiles("p1", "new")
	require.NoError(t, err)
	require.Len(t, folder, 1)
	assert.Equal(t, b.ID, folder[0].FileID)

	current, err := m.CurrentSnapshot(ctx, a.ID)
	require.NoError(t, err)
	versionID := current.ID

	require.NoError(t, m.DeleteFile(a.ID))
	_, err = m.Load(ctx, versionID)
	assert.ErrorIs(t, err, models.ErrSnapshotNotFound)
	_, err = files.Get(a.ID)
	assert.ErrorIs(t, err, storage.ErrFileNotFound)
}

func TestDeleteFile_ExcludesParse(t *testing.T) {
	m, files := newTestManager(t, Config{})
	info := files.SaveBytes(storage.Upload{Name: "line1.L5X", ProjectID: "p1", Folder: "new"}, []byte(testutil.SampleL5X))

	state, err := m.register(info.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, m.DeleteFile(info.ID), ErrAlreadyParsing)
	m.mu.Lock()
	delete(m.parsing, info.ID)
	m.mu.Unlock()
	assert.NotEmpty(t, state.Session.ID)

	m.mu.Lock()
	m.parsing[info.ID] = deletingFile
	m.mu.Unlock()
	_, err = m.StartParse(info.ID)
	assert.ErrorIs(t, err, storage.ErrFileNotFound, "no parse starts while a delete holds the file")
	m.mu.Lock()
	delete(m.parsing, info.ID)
	m.mu.Unlock()

	require.NoError(t, m.DeleteFile(info.ID))
	assert.ErrorIs(t, m.DeleteFile(info.ID), storage.ErrFileNotFound)
	m.mu.RLock()
	assert.Empty(t, m.parsing, "delete releases its reservation")
	m.mu.RUnlock()
}

func TestCleanupOldSessions(t *testing.T) {
	m, files := newTestManager(t, Config{})
	info := files.SaveBytes(storage.Upload{Name: "a.L5X"}, []byte(testutil.SampleL5X))
	sess, _, err := m.ParseNow(context.Background(), info.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, m.CleanupOldSessions(time.Hour))
	assert.Equal(t, 1, m.CleanupOldSessions(-time.Second))
	_, ok := m.GetSession(sess.ID)
	assert.False(t, ok)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "Timeout", ErrorKind(context.DeadlineExceeded))
	assert.Equal(t, "InternalError", ErrorKind(errors.New("boom")))
}
