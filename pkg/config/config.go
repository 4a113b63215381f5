package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"wbscraper/pkg/logger"
)

// Config holds every knob of a crawl run.
type Config struct {
	// Weibo session material and request identity
	Weibo WeiboConfig `yaml:"weibo"`

	// Retry and request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Crawl engine settings
	Crawl CrawlConfig `yaml:"crawl"`

	// Output locations
	Output OutputConfig `yaml:"output"`

	// Picture download settings
	Download DownloadConfig `yaml:"download"`

	// Logging configuration
	Logging logger.Config `yaml:"logging"`
}

// WeiboConfig holds the request identity sent with every fetch. The
// cookie is session material; it normally comes from the credential
// store rather than this file.
type WeiboConfig struct {
	Cookie    string `yaml:"cookie"`
	UserAgent string `yaml:"user_agent"`
	Referer   string `yaml:"referer"`
}

// RateLimitConfig holds the fetch retry policy and search pacing.
type RateLimitConfig struct {
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	MaxRetries        int      `yaml:"max_retries"`
	RetryDelay        Duration `yaml:"retry_delay"`
}

// CrawlConfig holds driver settings.
type CrawlConfig struct {
	PageBudget    int      `yaml:"page_budget"`
	FetchInterval Duration `yaml:"fetch_interval"`
}

// OutputConfig holds where records, pictures and debug artifacts land.
type OutputConfig struct {
	PictureDirectory string `yaml:"picture_directory"`
	RecordsFile      string `yaml:"records_file"`
	DebugFile        string `yaml:"debug_file"`
}

// DownloadConfig holds picture download settings.
type DownloadConfig struct {
	ConcurrentDownloads int      `yaml:"concurrent_downloads"`
	DownloadTimeout     Duration `yaml:"download_timeout"`
	PictureInterval     Duration `yaml:"picture_interval"`
}

// DefaultConfig returns a Config with the defaults of the original
// crawler: 3 extra attempts, 10s between them, 30s timeout, 500ms
// between picture downloads, a 49-page budget.
func DefaultConfig() *Config {
	return &Config{
		Weibo: WeiboConfig{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			Referer:   "https://s.weibo.com/",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			MaxRetries:        3,
			RetryDelay:        Duration(10 * time.Second),
		},
		Crawl: CrawlConfig{
			PageBudget:    49,
			FetchInterval: Duration(time.Second),
		},
		Output: OutputConfig{
			PictureDirectory: "./weibo_pictures",
			RecordsFile:      "weibo_records.csv",
			DebugFile:        "response.html",
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 3,
			DownloadTimeout:     Duration(30 * time.Second),
			PictureInterval:     Duration(500 * time.Millisecond),
		},
		Logging: logger.Config{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromFile merges a YAML config file into c. An empty path checks
// the standard locations and silently skips when none exists.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func findConfigFile() string {
	locations := []string{
		".wbscraper.yaml",
		".wbscraper.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "wbscraper", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".wbscraper.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// LoadFromEnv overrides settings from WBSCRAPER_* environment
// variables.
func (c *Config) LoadFromEnv() error {
	if cookie := os.Getenv("WBSCRAPER_COOKIE"); cookie != "" {
		c.Weibo.Cookie = cookie
	}
	if ua := os.Getenv("WBSCRAPER_USER_AGENT"); ua != "" {
		c.Weibo.UserAgent = ua
	}
	if dir := os.Getenv("WBSCRAPER_PICTURE_DIR"); dir != "" {
		c.Output.PictureDirectory = dir
	}
	if file := os.Getenv("WBSCRAPER_RECORDS_FILE"); file != "" {
		c.Output.RecordsFile = file
	}
	if v := os.Getenv("WBSCRAPER_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.RateLimit.MaxRetries = n
		}
	}
	if v := os.Getenv("WBSCRAPER_PAGE_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Crawl.PageBudget = n
		}
	}
	if v := os.Getenv("WBSCRAPER_CONCURRENT_DOWNLOADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Download.ConcurrentDownloads = n
		}
	}
	if level := os.Getenv("WBSCRAPER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if file := os.Getenv("WBSCRAPER_LOG_FILE"); file != "" {
		c.Logging.File = file
	}
	return nil
}

// MergeFlags applies command line overrides. Flags win over every
// other source.
func (c *Config) MergeFlags(flags map[string]interface{}) {
	if v, ok := flags["picture-dir"].(string); ok && v != "" {
		c.Output.PictureDirectory = v
	}
	if v, ok := flags["records-file"].(string); ok && v != "" {
		c.Output.RecordsFile = v
	}
	if v, ok := flags["page-budget"].(int); ok && v > 0 {
		c.Crawl.PageBudget = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["max-retries"].(int); ok && v >= 0 {
		c.RateLimit.MaxRetries = v
	}
	if v, ok := flags["timeout"].(time.Duration); ok && v > 0 {
		c.Download.DownloadTimeout = Duration(v)
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["cookie"].(string); ok && v != "" {
		c.Weibo.Cookie = v
	}
}

// Validate checks the configuration for values the crawl cannot run
// with. The cookie is deliberately not required here; the credential
// store may supply it later.
func (c *Config) Validate() error {
	var errs []error

	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.RateLimit.RetryDelay < 0 {
		errs = append(errs, errors.New("retry delay cannot be negative"))
	}
	if c.Crawl.PageBudget <= 0 {
		errs = append(errs, errors.New("page budget must be positive"))
	}
	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Output.PictureDirectory == "" {
		errs = append(errs, errors.New("picture directory is required"))
	}
	if c.Output.RecordsFile == "" {
		errs = append(errs, errors.New("records file is required"))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load builds the effective configuration. Precedence: flags > env
// vars > .env file > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".wbscraper.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.MergeFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
