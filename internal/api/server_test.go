package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/naming"
	"github.com/plc-analyzer/backend/internal/parser"
	"github.com/plc-analyzer/backend/internal/session"
	"github.com/plc-analyzer/backend/internal/snapshotdb"
	"github.com/plc-analyzer/backend/internal/storage"
)

type testServer struct {
	e     *echo.Echo
	store *storage.LocalStore
	mgr   *session.Manager
	rules *naming.RuleStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	snaps, err := snapshotdb.Open(t.TempDir())
	require.NoError(t, err)
	rules, err := naming.NewRuleStore(t.TempDir())
	require.NoError(t, err)
	mgr := session.NewManager(parser.NewRegistry(), store, snaps, session.Config{})

	e := echo.New()
	SetupMiddleware(e, MiddlewareConfig{})
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Store:       store,
		SessionMgr:  mgr,
		Snapshots:   snaps,
		Rules:       rules,
		Analysis:    AnalysisOptions{CompareConcurrency: 2, ContextMaxBytes: 4096},
		AllowDelete: true,
		Version:     "test",
	}))
	return &testServer{e: e, store: store, mgr: mgr, rules: rules}
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return s.do(t, method, path, body, echo.MIMEApplicationJSON)
}

func (s *testServer) upload(t *testing.T, name, content, projectID, folder string) *models.FileInfo {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	part.Write([]byte(content))
	writer.WriteField("projectId", projectID)
	writer.WriteField("folder", folder)
	writer.Close()

	rec := s.do(t, http.MethodPost, "/api/files", body, writer.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var info models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	return &info
}

// parse runs a synchronous parse and returns the new version id.
func (s *testServer) parse(t *testing.T, fileID string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/files/"+fileID+"/parse?sync=true", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp parseResultResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Session.VersionID)
	return resp.Session.VersionID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
