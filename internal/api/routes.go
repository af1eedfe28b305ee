// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plc-analyzer/backend/internal/naming"
	"github.com/plc-analyzer/backend/internal/snapshotdb"
	"github.com/plc-analyzer/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store         storage.Store
	SessionMgr    SessionManager
	Snapshots     *snapshotdb.Store
	Rules         *naming.RuleStore
	Analysis      AnalysisOptions
	MaxUploadSize int64
	AllowDelete   bool
	Version       string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Files    FileHandler
	Parse    ParseHandler
	Snapshot SnapshotHandler
	Analysis AnalysisHandler
	RuleSets RuleSetHandler
	Watch    *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	var searcher ReferenceSearcher
	if deps.Snapshots != nil {
		searcher = deps.Snapshots
	}
	return &Handlers{
		Health:   NewHealthHandler(deps.Version, deps.Snapshots),
		Files:    NewFileHandler(deps.Store, deps.SessionMgr, deps.MaxUploadSize, deps.AllowDelete),
		Parse:    NewParseHandler(deps.SessionMgr),
		Snapshot: NewSnapshotHandler(deps.SessionMgr, searcher, deps.Analysis),
		Analysis: NewAnalysisHandler(deps.SessionMgr, deps.Rules, deps.Analysis),
		RuleSets: NewRuleSetHandler(deps.Rules),
		Watch:    NewWebSocketHandler(deps.SessionMgr),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Prometheus scrape endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// File routes
	fileGroup := apiGroup.Group("/files")
	fileGroup.POST("", handlers.Files.HandleUploadFile)
	fileGroup.GET("", handlers.Files.HandleListFiles)
	fileGroup.GET("/:id", handlers.Files.HandleGetFile)
	fileGroup.PUT("/:id", handlers.Files.HandleRenameFile)
	fileGroup.DELETE("/:id", handlers.Files.HandleDeleteFile)
	fileGroup.GET("/:id/versions", handlers.Files.HandleListVersions)
	fileGroup.GET("/:id/snapshot", handlers.Files.HandleCurrentSnapshot)
	fileGroup.POST("/:id/parse", handlers.Parse.HandleStartParse)

	// Live parse progress over WebSocket
	apiGroup.GET("/ws/parse", handlers.Watch.HandleWebSocket)

	// Parse session routes
	parseGroup := apiGroup.Group("/parse")
	parseGroup.GET("/:sessionId/status", handlers.Parse.HandleParseStatus)
	parseGroup.GET("/:sessionId/progress", handlers.Parse.HandleParseProgressStream)

	// Snapshot routes
	snapGroup := apiGroup.Group("/snapshots")
	snapGroup.GET("/:versionId", handlers.Snapshot.HandleGetSnapshot)
	snapGroup.GET("/:versionId/msgpack", handlers.Snapshot.HandleGetSnapshotMsgpack)
	snapGroup.GET("/:versionId/references", handlers.Snapshot.HandleSearchReferences)
	snapGroup.GET("/:versionId/export", handlers.Snapshot.HandleExport)
	snapGroup.GET("/:versionId/context", handlers.Snapshot.HandleContext)

	// Comparison routes
	apiGroup.POST("/diff", handlers.Analysis.HandleDiff)
	apiGroup.POST("/compare/folders", handlers.Analysis.HandleCompareFolders)

	// Project routes
	projectGroup := apiGroup.Group("/projects/:projectId")
	projectGroup.GET("/health", handlers.Analysis.HandleProjectHealth)
	projectGroup.GET("/unused-tags", handlers.Analysis.HandleProjectUnusedTags)
	projectGroup.GET("/naming", handlers.Analysis.HandleProjectNaming)
	projectGroup.GET("/settings", handlers.Analysis.HandleGetProjectSettings)
	projectGroup.PUT("/settings", handlers.Analysis.HandlePutProjectSettings)

	// Rule set routes
	apiGroup.GET("/orgs/:orgId/rulesets", handlers.RuleSets.HandleListRuleSets)
	apiGroup.POST("/orgs/:orgId/rulesets", handlers.RuleSets.HandleCreateRuleSet)
	apiGroup.POST("/orgs/:orgId/rulesets/import", handlers.RuleSets.HandleImportRuleSet)
	ruleGroup := apiGroup.Group("/rulesets")
	ruleGroup.GET("/:id", handlers.RuleSets.HandleGetRuleSet)
	ruleGroup.PUT("/:id", handlers.RuleSets.HandleUpdateRuleSet)
	ruleGroup.DELETE("/:id", handlers.RuleSets.HandleDeleteRuleSet)
	ruleGroup.GET("/:id/yaml", handlers.RuleSets.HandleGetRuleSetYAML)
}

// MiddlewareConfig selects the optional middleware
type MiddlewareConfig struct {
	RequestLogging bool
	BodyLimit      string
	EnableCORS     bool
	AllowOrigins   string
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	logger := slog.Default().With("component", "http")
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") ||
				strings.HasSuffix(path, "/progress") ||
				path == "/api/health" ||
				path == "/metrics"
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				logger.Warn("request", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		origins := strings.Split(cfg.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
}
