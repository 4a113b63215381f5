package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3, cfg.RateLimit.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.RetryDelay.Std())
	assert.Equal(t, 49, cfg.Crawl.PageBudget)
	assert.Equal(t, 3, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 30*time.Second, cfg.Download.DownloadTimeout.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Download.PictureInterval.Std())
	assert.Equal(t, "./weibo_pictures", cfg.Output.PictureDirectory)
	assert.Equal(t, "weibo_records.csv", cfg.Output.RecordsFile)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
crawl:
  page_budget: 20
  fetch_interval: 2s
output:
  picture_directory: "/tmp/pics"
download:
  concurrent_downloads: 5
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 20, cfg.Crawl.PageBudget)
	assert.Equal(t, 2*time.Second, cfg.Crawl.FetchInterval.Std())
	assert.Equal(t, "/tmp/pics", cfg.Output.PictureDirectory)
	assert.Equal(t, 5, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.RateLimit.MaxRetries)
}

func TestLoadFromFileMissingPathIsError(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WBSCRAPER_COOKIE", "env-cookie")
	t.Setenv("WBSCRAPER_PAGE_BUDGET", "7")
	t.Setenv("WBSCRAPER_CONCURRENT_DOWNLOADS", "2")
	t.Setenv("WBSCRAPER_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "env-cookie", cfg.Weibo.Cookie)
	assert.Equal(t, 7, cfg.Crawl.PageBudget)
	assert.Equal(t, 2, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestMergeFlagsWinOverEnv(t *testing.T) {
	t.Setenv("WBSCRAPER_PAGE_BUDGET", "7")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	cfg.MergeFlags(map[string]interface{}{
		"page-budget": 15,
		"cookie":      "flag-cookie",
	})

	assert.Equal(t, 15, cfg.Crawl.PageBudget)
	assert.Equal(t, "flag-cookie", cfg.Weibo.Cookie)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero page budget", func(c *Config) { c.Crawl.PageBudget = 0 }},
		{"negative retries", func(c *Config) { c.RateLimit.MaxRetries = -1 }},
		{"too many downloads", func(c *Config) { c.Download.ConcurrentDownloads = 11 }},
		{"zero timeout", func(c *Config) { c.Download.DownloadTimeout = 0 }},
		{"empty picture dir", func(c *Config) { c.Output.PictureDirectory = "" }},
		{"empty records file", func(c *Config) { c.Output.RecordsFile = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")

	cfg := DefaultConfig()
	cfg.Crawl.PageBudget = 33
	require.NoError(t, cfg.Save(path))

	reloaded := DefaultConfig()
	require.NoError(t, reloaded.LoadFromFile(path))
	assert.Equal(t, 33, reloaded.Crawl.PageBudget)
}

func TestLoadAppliesPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawl:\n  page_budget: 10\n"), 0o644))

	t.Setenv("WBSCRAPER_PAGE_BUDGET", "20")

	cfg, err := Load(path, map[string]interface{}{"page-budget": 30})
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Crawl.PageBudget)
}
