package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_WritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.xml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<L5XAnalyzer>")
	assert.Contains(t, string(data), "<MaxDocumentSize>256MB</MaxDocumentSize>")

	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "data", "snapshots"), cfg.Storage.SnapshotsDirectory)
	assert.Equal(t, int64(256_000_000), cfg.MaxDocumentBytes())
	assert.Equal(t, 16_000, cfg.ContextMaxBytes())
	assert.Equal(t, 2*time.Minute, cfg.ParseTimeout())
}

func TestLoadConfig_ReadsFileAndKeepsMissingDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.xml")
	content := `<?xml version="1.0"?>
<L5XAnalyzer>
  <Server><Port>9000</Port><BindAddress>127.0.0.1</BindAddress><BodyLimit>1GB</BodyLimit></Server>
  <Processing><MaxConcurrentParses>2</MaxConcurrentParses><ParseTimeoutSeconds>5</ParseTimeoutSeconds></Processing>
  <Analysis><CountMemberReferences>true</CountMemberReferences></Analysis>
</L5XAnalyzer>`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.GetServerAddr())
	assert.Equal(t, 2, cfg.Processing.MaxConcurrentParses)
	assert.Equal(t, 5*time.Second, cfg.ParseTimeout())
	assert.True(t, cfg.Analysis.CountMemberReferences)
	assert.Equal(t, "256MB", cfg.Processing.MaxDocumentSize)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.xml")
	dataDir := t.TempDir()
	t.Setenv("PORT", "7777")
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dataDir, "uploads"), cfg.Storage.UploadsDirectory)
	assert.True(t, cfg.NewLogger().Enabled(context.Background(), slog.LevelDebug))
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad xml", "<L5XAnalyzer>", "failed to parse"},
		{"bad size", "<L5XAnalyzer><Processing><MaxDocumentSize>lots</MaxDocumentSize></Processing></L5XAnalyzer>", "Processing.MaxDocumentSize"},
		{"bad level", "<L5XAnalyzer><Advanced><LogLevel>loud</LogLevel></Advanced></L5XAnalyzer>", "Advanced.LogLevel"},
		{"bad port", "<L5XAnalyzer><Server><Port>70000</Port></Server></L5XAnalyzer>", "Server.Port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.xml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.resolvePaths(t.TempDir())
	require.NoError(t, cfg.EnsureDirectories())
	for _, d := range []string{cfg.Storage.UploadsDirectory, cfg.Storage.SnapshotsDirectory, cfg.Storage.RulesDirectory} {
		st, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, st.IsDir())
	}
}
