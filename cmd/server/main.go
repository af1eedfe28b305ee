package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/plc-analyzer/backend/internal/api"
	"github.com/plc-analyzer/backend/internal/config"
	"github.com/plc-analyzer/backend/internal/naming"
	"github.com/plc-analyzer/backend/internal/parser"
	"github.com/plc-analyzer/backend/internal/session"
	"github.com/plc-analyzer/backend/internal/snapshotdb"
	"github.com/plc-analyzer/backend/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	defaultConfig := filepath.Join(filepath.Dir(exePath), "L5XAnalyzer.config")

	configPath := flag.String("config", defaultConfig, "path to the XML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.NewLogger())

	if err := run(cfg, *configPath); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, configPath string) error {
	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("creating directories: %w", err)
	}

	fileStore, err := storage.NewLocalStore(cfg.Storage.UploadsDirectory)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	snapshots, err := snapshotdb.Open(cfg.Storage.SnapshotsDirectory)
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}

	rules, err := naming.NewRuleStore(cfg.Storage.RulesDirectory)
	if err != nil {
		return fmt.Errorf("loading rule sets: %w", err)
	}

	// Snapshot files no longer referenced by any upload are left over from
	// deletes interrupted by a restart
	if versions, err := knownVersions(fileStore); err != nil {
		slog.Warn("skipping snapshot cleanup", "error", err)
	} else if removed := snapshots.CleanupOrphaned(versions); removed > 0 {
		slog.Info("removed orphaned snapshots", "count", removed)
	}

	sessionMgr := session.NewManager(parser.NewRegistry(), fileStore, snapshots, session.Config{
		MaxConcurrentParses: cfg.Processing.MaxConcurrentParses,
		ParseTimeout:        cfg.ParseTimeout(),
		MaxDocumentSize:     cfg.MaxDocumentBytes(),
		ExtractorWorkers:    cfg.Processing.ExtractorWorkers,
		SnapshotCacheSize:   cfg.Processing.SnapshotCacheSize,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background session cleanup
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessionMgr.CleanupOldSessions(cfg.SessionMaxAge()); n > 0 {
					slog.Debug("expired parse sessions", "count", n)
				}
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareConfig{
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		BodyLimit:      cfg.Server.BodyLimit,
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   cfg.Server.AllowOrigins,
	})

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Store:      fileStore,
		SessionMgr: sessionMgr,
		Snapshots:  snapshots,
		Rules:      rules,
		Analysis: api.AnalysisOptions{
			CountMemberReferences: cfg.Analysis.CountMemberReferences,
			IncludeNamingInHealth: cfg.Analysis.IncludeNamingInHealth,
			ContextMaxBytes:       cfg.ContextMaxBytes(),
			CompareConcurrency:    cfg.Processing.CompareConcurrency,
		},
		MaxUploadSize: cfg.MaxUploadBytes(),
		AllowDelete:   cfg.Security.AllowFileDeletion,
		Version:       Version,
	}))

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath)

	errCh := make(chan error, 1)
	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func knownVersions(store storage.Store) ([]string, error) {
	files, err := store.List("")
	if err != nil {
		return nil, err
	}
	var versions []string
	for _, f := range files {
		versions = append(versions, f.Versions...)
	}
	return versions, nil
}

func printBanner(cfg *config.AppConfig, configPath string) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           L5X Project Analyzer Server                     ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.Storage.DataDirectory)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
