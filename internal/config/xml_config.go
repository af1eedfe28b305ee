// Package config provides XML-based configuration management for air-gapped deployment.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"L5XAnalyzer"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Processing configuration
	Processing ProcessingConfig `xml:"Processing"`

	// Analysis configuration
	Analysis AnalysisConfig `xml:"Analysis"`

	// Security configuration
	Security SecurityConfig `xml:"Security"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory      string `xml:"DataDirectory"`
	UploadsDirectory   string `xml:"UploadsDirectory"`
	SnapshotsDirectory string `xml:"SnapshotsDirectory"`
	RulesDirectory     string `xml:"RulesDirectory"`
	MaxUploadSize      string `xml:"MaxUploadSize"`
}

// ProcessingConfig contains parsing and processing settings
type ProcessingConfig struct {
	MaxConcurrentParses    int    `xml:"MaxConcurrentParses"`
	ParseTimeoutSeconds    int    `xml:"ParseTimeoutSeconds"`
	MaxDocumentSize        string `xml:"MaxDocumentSize"`
	ExtractorWorkers       int    `xml:"ExtractorWorkers"`
	CompareConcurrency     int    `xml:"CompareConcurrency"`
	SnapshotCacheSize      int    `xml:"SnapshotCacheSize"`
	SessionTimeoutMinutes  int    `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes"`
}

// AnalysisConfig contains metric and export settings
type AnalysisConfig struct {
	CountMemberReferences bool   `xml:"CountMemberReferences"`
	IncludeNamingInHealth bool   `xml:"IncludeNamingInHealth"`
	ContextMaxBytes       string `xml:"ContextMaxBytes"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	AllowFileDeletion bool `xml:"AllowFileDeletion"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	LogFormat            string `xml:"LogFormat"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 120,
			IdleTimeout:  120,
			BodyLimit:    "512M",
		},
		Storage: StorageConfig{
			DataDirectory:      "./data",
			UploadsDirectory:   "./data/uploads",
			SnapshotsDirectory: "./data/snapshots",
			RulesDirectory:     "./data/rules",
			MaxUploadSize:      "512MB",
		},
		Processing: ProcessingConfig{
			MaxConcurrentParses:    4,
			ParseTimeoutSeconds:    120,
			MaxDocumentSize:        "256MB",
			ExtractorWorkers:       0,
			CompareConcurrency:     4,
			SnapshotCacheSize:      16,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
		},
		Analysis: AnalysisConfig{
			CountMemberReferences: false,
			IncludeNamingInHealth: false,
			ContextMaxBytes:       "16KB",
		},
		Security: SecurityConfig{
			AllowFileDeletion: true,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			LogFormat:            "text",
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	var config *AppConfig

	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config = DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Start from defaults so elements missing from an older file keep sane values
		config = DefaultConfig()
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- L5X Analyzer Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR moves every storage directory under the new root
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
		c.Storage.SnapshotsDirectory = filepath.Join(dataDir, "snapshots")
		c.Storage.RulesDirectory = filepath.Join(dataDir, "rules")
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// Validate checks size strings and numeric limits.
func (c *AppConfig) Validate() error {
	var errs []error
	for name, v := range map[string]string{
		"Server.BodyLimit":           c.Server.BodyLimit,
		"Storage.MaxUploadSize":      c.Storage.MaxUploadSize,
		"Processing.MaxDocumentSize": c.Processing.MaxDocumentSize,
		"Analysis.ContextMaxBytes":   c.Analysis.ContextMaxBytes,
	} {
		if _, err := humanize.ParseBytes(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid size %q", name, v))
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("Server.Port: out of range: %d", c.Server.Port))
	}
	if c.Processing.MaxConcurrentParses <= 0 {
		errs = append(errs, fmt.Errorf("Processing.MaxConcurrentParses: must be positive"))
	}
	if c.Processing.ParseTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("Processing.ParseTimeoutSeconds: must be positive"))
	}
	if _, ok := parseLevel(c.Advanced.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("Advanced.LogLevel: unknown level %q", c.Advanced.LogLevel))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.SnapshotsDirectory,
		&c.Storage.RulesDirectory,
	} {
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// size parses a validated size string.
func size(s string) int64 {
	n, _ := humanize.ParseBytes(s)
	return int64(n)
}

// MaxUploadBytes returns Storage.MaxUploadSize in bytes.
func (c *AppConfig) MaxUploadBytes() int64 { return size(c.Storage.MaxUploadSize) }

// MaxDocumentBytes returns Processing.MaxDocumentSize in bytes.
func (c *AppConfig) MaxDocumentBytes() int64 { return size(c.Processing.MaxDocumentSize) }

// ContextMaxBytes returns Analysis.ContextMaxBytes in bytes.
func (c *AppConfig) ContextMaxBytes() int { return int(size(c.Analysis.ContextMaxBytes)) }

// ParseTimeout returns the per-run parse deadline.
func (c *AppConfig) ParseTimeout() time.Duration {
	return time.Duration(c.Processing.ParseTimeoutSeconds) * time.Second
}

// SessionMaxAge returns how long finished parse sessions are kept.
func (c *AppConfig) SessionMaxAge() time.Duration {
	return time.Duration(c.Processing.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns the session cleanup period.
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// NewLogger builds the process logger from Advanced.LogLevel and LogFormat.
func (c *AppConfig) NewLogger() *slog.Logger {
	level, _ := parseLevel(c.Advanced.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Advanced.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.SnapshotsDirectory,
		c.Storage.RulesDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
