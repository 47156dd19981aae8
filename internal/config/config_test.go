package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg := LoadFrom("")

	require.Equal(t, 10, cfg.Search.Limit)
	require.Equal(t, 4, cfg.Processing.Concurrency)
	require.Equal(t, 2, cfg.Processing.PerHostCap)
	require.Equal(t, 3, cfg.Synthesis.FollowUpCount)
	require.Equal(t, 5*time.Second, cfg.Stream.IdleTimeout)
	require.Equal(t, cfg.Synthesis.Model, cfg.Synthesis.SummaryModel)
	require.True(t, cfg.Processing.SummariesEnabled())
}

func TestLoadFromFileClampsLimits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := []byte(`
search:
  provider: " Exa "
  limit: 75
  timeout: 3s
processing:
  concurrency: 40
  perHostCap: 3
synthesis:
  followUpCount: 9
  model: local-model
stream:
  idleTimeout: 2s
`)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	cfg := LoadFrom(path)

	require.Equal(t, "exa", cfg.Search.Provider)
	require.Equal(t, MaxSearchLimit, cfg.Search.Limit)
	require.Equal(t, 3*time.Second, cfg.Search.Timeout)
	require.Equal(t, MaxConcurrency, cfg.Processing.Concurrency)
	require.Equal(t, 3, cfg.Processing.PerHostCap)
	require.Equal(t, MaxFollowUpCount, cfg.Synthesis.FollowUpCount)
	require.Equal(t, "local-model", cfg.Synthesis.SummaryModel)
	require.Equal(t, 2*time.Second, cfg.Stream.IdleTimeout)
	require.Equal(t, []string{"exa", "brave", "duckduckgo"}, cfg.Search.Fallbacks)
}

func TestLoadFromFileDisablesSummaries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte("processing:\n  summaries: false\n")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	cfg := LoadFrom(path)

	require.NotNil(t, cfg.Processing.Summaries)
	require.False(t, cfg.Processing.SummariesEnabled())
	require.Equal(t, 4, cfg.Processing.Concurrency)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv(tavilyAPIKeyEnv, "tvly-key")
	t.Setenv(openAIModelEnv, "gpt-test")
	t.Setenv(screenshotsFlagEnv, "yes")

	cfg := LoadFrom("")

	require.Equal(t, "tvly-key", cfg.Search.Tavily.APIKey)
	require.Equal(t, "gpt-test", cfg.Synthesis.Model)
	require.True(t, cfg.Processing.Screenshots)
}

func TestLoadFromUnreadableFileFallsBack(t *testing.T) {
	cfg := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Equal(t, "tavily", cfg.Search.Provider)
}
