// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/plc-analyzer/backend/internal/diff"
	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/snapshotdb"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// FileHandler handles raw export file operations
type FileHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleListFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
	HandleListVersions(c echo.Context) error
	HandleCurrentSnapshot(c echo.Context) error
}

// ParseHandler handles parsing session operations
type ParseHandler interface {
	HandleStartParse(c echo.Context) error
	HandleParseStatus(c echo.Context) error
	HandleParseProgressStream(c echo.Context) error
}

// SnapshotHandler serves published snapshots
type SnapshotHandler interface {
	HandleGetSnapshot(c echo.Context) error
	HandleGetSnapshotMsgpack(c echo.Context) error
	HandleSearchReferences(c echo.Context) error
	HandleExport(c echo.Context) error
	HandleContext(c echo.Context) error
}

// AnalysisHandler handles comparisons and project-wide metrics
type AnalysisHandler interface {
	HandleDiff(c echo.Context) error
	HandleCompareFolders(c echo.Context) error
	HandleProjectHealth(c echo.Context) error
	HandleProjectUnusedTags(c echo.Context) error
	HandleProjectNaming(c echo.Context) error
	HandleGetProjectSettings(c echo.Context) error
	HandlePutProjectSettings(c echo.Context) error
}

// RuleSetHandler handles naming rule set operations
type RuleSetHandler interface {
	HandleListRuleSets(c echo.Context) error
	HandleCreateRuleSet(c echo.Context) error
	HandleImportRuleSet(c echo.Context) error
	HandleGetRuleSet(c echo.Context) error
	HandleUpdateRuleSet(c echo.Context) error
	HandleDeleteRuleSet(c echo.Context) error
	HandleGetRuleSetYAML(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	StartParse(fileID string) (*models.ParseSession, error)
	ParseNow(ctx context.Context, fileID string) (*models.ParseSession, *models.Snapshot, error)
	GetSession(id string) (*models.ParseSession, bool)
	DeleteFile(fileID string) error
	Load(ctx context.Context, versionID string) (*models.Snapshot, error)
	CurrentSnapshot(ctx context.Context, fileID string) (*models.Snapshot, error)
	CurrentSnapshots(ctx context.Context, projectID string) ([]*models.Snapshot, error)
	FolderFiles(projectID, folder string) ([]diff.FolderFile, error)
}

// ReferenceSearcher runs reference queries against stored snapshots
type ReferenceSearcher interface {
	SearchReferences(ctx context.Context, versionID string, q snapshotdb.ReferenceQuery) ([]models.TagReference, error)
}
