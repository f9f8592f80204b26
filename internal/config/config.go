// Package config provides configuration management for the press release crawler.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrNoSources                = errors.New("at least one source is required")
	ErrSourceMissingName        = errors.New("name is required")
	ErrSourceMissingURL         = errors.New("url is required")
	ErrSourceInvalidKind        = errors.New("kind must be one of: html, json, rss")
	ErrSourceMissingSelector    = errors.New("html.item and html.link selectors are required")
	ErrSourceMissingResults     = errors.New("json.results and json.link paths are required")
	ErrInvalidPaginationMode    = errors.New("html.pagination.mode must be one of: single, query, offset, path")
	ErrDuplicateSource          = errors.New("source names must be unique")
	ErrNoEnabledSources         = errors.New("at least one source must be enabled")
	ErrInvalidCutoff            = errors.New("cutoff must be a YYYY-MM-DD date")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("retry.timeout_sec must be at least 1")
	ErrInvalidMaxPages          = errors.New("max_pages must be at least 1")
	ErrInvalidConcurrency       = errors.New("concurrency must be at least 1")
	ErrMissingStorePath         = errors.New("store.path is required")
	ErrInvalidStoreBackend      = errors.New("store.backend must be 'csv' or 'badger'")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat         = errors.New("logging.format must be one of: auto, text, json, tint")
	ErrInvalidWindow            = errors.New("digest.window_days must be at least 1")
)

// Source kinds.
const (
	KindHTML = "html"
	KindJSON = "json"
	KindRSS  = "rss"
)

// HTML pagination modes.
const (
	PaginationSingle = "single"
	PaginationQuery  = "query"
	PaginationOffset = "offset"
	PaginationPath   = "path"
)

// Store backends.
const (
	BackendCSV    = "csv"
	BackendBadger = "badger"
)

// Default values applied when a setting is left empty.
const (
	DefaultMaxPages      = 50
	DefaultConcurrency   = 1
	DefaultRatePerSecond = 1.0
	DefaultWindowDays    = 7
	DefaultSummaryField  = "summary_ai"
	DefaultImpactField   = "impact"
	DefaultMaxChars      = 30000
)

// Config represents the complete application configuration.
type Config struct {
	Crawler  CrawlerConfig  `yaml:"crawler"`
	Digest   DigestConfig   `yaml:"digest"`
	Enrich   EnrichConfig   `yaml:"enrich"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// CrawlerConfig contains crawler-specific settings.
type CrawlerConfig struct {
	Cutoff        string         `yaml:"cutoff"`
	Store         StoreConfig    `yaml:"store"`
	Sources       []SourceConfig `yaml:"sources"`
	Logging       LoggingConfig  `yaml:"logging"`
	Retry         RetryPolicy    `yaml:"retry"`
	MaxPages      int            `yaml:"max_pages"`
	Concurrency   int            `yaml:"concurrency"`
	RatePerSecond float64        `yaml:"rate_per_second"`
	UserAgent     string         `yaml:"user_agent"`
	MetricsFile   string         `yaml:"metrics_file"`
}

// SourceConfig represents one press release source.
type SourceConfig struct {
	Headers      map[string]string `yaml:"headers"`
	Name         string            `yaml:"name"`
	Company      string            `yaml:"company"`
	Kind         string            `yaml:"kind"`
	URL          string            `yaml:"url"`
	Cutoff       string            `yaml:"cutoff"`
	HTML         HTMLSourceConfig  `yaml:"html"`
	JSON         JSONSourceConfig  `yaml:"json"`
	MaxPages     int               `yaml:"max_pages"`
	StopWindow   int               `yaml:"stop_window"`
	Enabled      bool              `yaml:"enabled"`
	SortedDesc   bool              `yaml:"sorted_desc"`
	DropUnparsed bool              `yaml:"drop_unparsed"`
}

// HTMLSourceConfig describes how to read a listing page with CSS selectors.
type HTMLSourceConfig struct {
	Pagination PaginationConfig `yaml:"pagination"`
	BaseURL    string           `yaml:"base_url"`
	Item       string           `yaml:"item"`
	Title      string           `yaml:"title"`
	Link       string           `yaml:"link"`
	Date       string           `yaml:"date"`
	DateAttr   string           `yaml:"date_attr"`
	DetailDate bool             `yaml:"detail_date"`
}

// PaginationConfig describes how successive listing pages are addressed.
type PaginationConfig struct {
	Mode  string `yaml:"mode"`
	Param string `yaml:"param"`
	// PathTemplate is appended to the listing URL, with %d replaced by the page number.
	PathTemplate string `yaml:"path_template"`
	Start        int    `yaml:"start"`
	Step         int    `yaml:"step"`
}

// JSONSourceConfig describes a paginated JSON listing endpoint.
type JSONSourceConfig struct {
	Body       map[string]any `yaml:"body"`
	Method     string         `yaml:"method"`
	PageParam  string         `yaml:"page_param"`
	SizeParam  string         `yaml:"size_param"`
	Results    string         `yaml:"results"`
	Title      string         `yaml:"title"`
	Link       string         `yaml:"link"`
	Date       string         `yaml:"date"`
	LinkPrefix string         `yaml:"link_prefix"`
	PageStart  int            `yaml:"page_start"`
	PageSize   int            `yaml:"page_size"`
}

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// StoreConfig defines where the master store lives.
type StoreConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	WriteBOM bool   `yaml:"write_bom"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DigestConfig defines the weekly e-mail digest.
type DigestConfig struct {
	SMTP            SMTPConfig `yaml:"smtp"`
	From            string     `yaml:"from"`
	Subject         string     `yaml:"subject"`
	SubscribersFile string     `yaml:"subscribers_file"`
	DashboardURL    string     `yaml:"dashboard_url"`
	UnsubscribeURL  string     `yaml:"unsubscribe_url"`
	Recipients      []string   `yaml:"recipients"`
	WindowDays      int        `yaml:"window_days"`
	DryRun          bool       `yaml:"dry_run"`
}

// SMTPConfig holds mail server settings. The password is read from the environment.
type SMTPConfig struct {
	Host        string `yaml:"host"`
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
	Port        int    `yaml:"port"`
}

// Password returns the SMTP password from the configured environment variable.
func (s SMTPConfig) Password() string {
	if s.PasswordEnv == "" {
		return ""
	}

	return os.Getenv(s.PasswordEnv)
}

// Addr returns host:port.
func (s SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// EnrichConfig defines the AI summary collaborator.
type EnrichConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKeyEnv    string `yaml:"api_key_env"`
	SummaryField string `yaml:"summary_field"`
	ImpactField  string `yaml:"impact_field"`
	Perspective  string `yaml:"perspective"`
	MaxChars     int    `yaml:"max_chars"`
	TimeoutSec   int    `yaml:"timeout_sec"`
}

// APIKey returns the API key from the configured environment variable.
func (e EnrichConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}

	return os.Getenv(e.APIKeyEnv)
}

// ScheduleConfig holds cron specifications for the schedule command.
type ScheduleConfig struct {
	Crawl  string `yaml:"crawl"`
	Digest string `yaml:"digest"`
	Enrich string `yaml:"enrich"`
}

// LoadConfig loads configuration from a YAML file.
//
// A sibling "<name>.local.<ext>" file, when present, overrides non-empty
// values of the base file; a sources list replaces the base list, and the
// top-level switches dry_run and write_bom override even when false. A ".env"
// file in the working directory is loaded into the environment first.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	localPath := LocalPath(path)

	localData, err := os.ReadFile(localPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read local config file: %w", err)
	}

	if len(localData) > 0 {
		var override Config
		if err := yaml.Unmarshal(localData, &override); err != nil {
			return nil, fmt.Errorf("failed to parse local YAML: %w", err)
		}

		if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge local config: %w", err)
		}

		if err := applySwitches(&cfg, localData); err != nil {
			return nil, fmt.Errorf("failed to parse local YAML: %w", err)
		}

		slog.Info("merging config with local overrides", "local", localPath)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// switches holds the booleans a local file may turn off. mergo skips false
// values, so these are decoded separately and applied when present.
type switches struct {
	Crawler struct {
		Store struct {
			WriteBOM *bool `yaml:"write_bom"`
		} `yaml:"store"`
	} `yaml:"crawler"`
	Digest struct {
		DryRun *bool `yaml:"dry_run"`
	} `yaml:"digest"`
}

func applySwitches(cfg *Config, localData []byte) error {
	var sw switches
	if err := yaml.Unmarshal(localData, &sw); err != nil {
		return err
	}

	if sw.Crawler.Store.WriteBOM != nil {
		cfg.Crawler.Store.WriteBOM = *sw.Crawler.Store.WriteBOM
	}

	if sw.Digest.DryRun != nil {
		cfg.Digest.DryRun = *sw.Digest.DryRun
	}

	return nil
}

// LocalPath returns the override file path for a config path, e.g. a.yaml -> a.local.yaml.
func LocalPath(path string) string {
	ext := filepath.Ext(path)

	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// SaveConfig saves configuration to a YAML file.
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	cr := &c.Crawler

	if cr.MaxPages == 0 {
		cr.MaxPages = DefaultMaxPages
	}

	if cr.Concurrency == 0 {
		cr.Concurrency = DefaultConcurrency
	}

	if cr.RatePerSecond == 0 {
		cr.RatePerSecond = DefaultRatePerSecond
	}

	if cr.Store.Backend == "" {
		cr.Store.Backend = BackendCSV
	}

	if cr.Logging.Level == "" {
		cr.Logging.Level = "info"
	}

	if cr.Logging.Format == "" {
		cr.Logging.Format = "auto"
	}

	if cr.Retry == (RetryPolicy{}) {
		cr.Retry = DefaultRetryPolicy()
	}

	for i := range cr.Sources {
		src := &cr.Sources[i]
		if src.Company == "" {
			src.Company = src.Name
		}

		if src.Kind == KindHTML && src.HTML.Pagination.Mode == "" {
			src.HTML.Pagination.Mode = PaginationSingle
		}
	}

	if c.Digest.WindowDays == 0 {
		c.Digest.WindowDays = DefaultWindowDays
	}

	if c.Enrich.SummaryField == "" {
		c.Enrich.SummaryField = DefaultSummaryField
	}

	if c.Enrich.ImpactField == "" {
		c.Enrich.ImpactField = DefaultImpactField
	}

	if c.Enrich.MaxChars == 0 {
		c.Enrich.MaxChars = DefaultMaxChars
	}
}

// DefaultRetryPolicy returns the retry policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialDelayMs:    500,
		MaxDelayMs:        30000,
		BackoffMultiplier: 2.0,
		TimeoutSec:        30,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Crawler.Sources) == 0 {
		return ErrNoSources
	}

	if _, err := ParseCutoff(c.Crawler.Cutoff); err != nil {
		return fmt.Errorf("crawler.cutoff: %w", err)
	}

	enabledCount := 0
	seen := make(map[string]bool)

	for i, src := range c.Crawler.Sources {
		if err := src.Validate(); err != nil {
			return fmt.Errorf("%w: source[%d]", err, i)
		}

		if seen[src.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateSource, src.Name)
		}

		seen[src.Name] = true

		if src.Enabled {
			enabledCount++
		}
	}

	if enabledCount == 0 {
		return ErrNoEnabledSources
	}

	if err := c.Crawler.Retry.Validate(); err != nil {
		return err
	}

	if c.Crawler.MaxPages < 1 {
		return ErrInvalidMaxPages
	}

	if c.Crawler.Concurrency < 1 {
		return ErrInvalidConcurrency
	}

	if c.Crawler.Store.Path == "" {
		return ErrMissingStorePath
	}

	if c.Crawler.Store.Backend != BackendCSV && c.Crawler.Store.Backend != BackendBadger {
		return ErrInvalidStoreBackend
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Crawler.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validFormats := map[string]bool{"auto": true, "text": true, "json": true, "tint": true}
	if !validFormats[c.Crawler.Logging.Format] {
		return ErrInvalidLogFormat
	}

	if c.Digest.WindowDays < 1 {
		return ErrInvalidWindow
	}

	return nil
}

// Validate checks a single source definition.
func (s *SourceConfig) Validate() error {
	if s.Name == "" {
		return ErrSourceMissingName
	}

	if s.URL == "" {
		return ErrSourceMissingURL
	}

	if _, err := ParseCutoff(s.Cutoff); err != nil {
		return err
	}

	if s.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	switch s.Kind {
	case KindHTML:
		if s.HTML.Item == "" || s.HTML.Link == "" {
			return ErrSourceMissingSelector
		}

		switch s.HTML.Pagination.Mode {
		case "", PaginationSingle, PaginationQuery, PaginationOffset, PaginationPath:
		default:
			return ErrInvalidPaginationMode
		}
	case KindJSON:
		if s.JSON.Results == "" || s.JSON.Link == "" {
			return ErrSourceMissingResults
		}
	case KindRSS:
	default:
		return ErrSourceInvalidKind
	}

	return nil
}

// Validate checks the retry policy bounds.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if rp.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if rp.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if rp.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	return nil
}

// ParseCutoff parses a YYYY-MM-DD cutoff. An empty string means no cutoff.
func ParseCutoff(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidCutoff, s)
	}

	return t, nil
}

// GetEnabledSources returns only enabled sources.
func (c *Config) GetEnabledSources() []SourceConfig {
	var enabled []SourceConfig

	for _, src := range c.Crawler.Sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}

	return enabled
}

// GetSource returns the named source.
func (c *Config) GetSource(name string) (SourceConfig, bool) {
	for _, src := range c.Crawler.Sources {
		if src.Name == name {
			return src, true
		}
	}

	return SourceConfig{}, false
}

// EffectiveCutoff returns the source cutoff, falling back to the crawler-wide one.
func (c *Config) EffectiveCutoff(src SourceConfig) time.Time {
	if t, err := ParseCutoff(src.Cutoff); err == nil && !t.IsZero() {
		return t
	}

	t, _ := ParseCutoff(c.Crawler.Cutoff)

	return t
}

// EffectiveMaxPages returns the source page limit, falling back to the crawler-wide one.
func (c *Config) EffectiveMaxPages(src SourceConfig) int {
	if src.MaxPages > 0 {
		return src.MaxPages
	}

	return c.Crawler.MaxPages
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if rp.MaxDelayMs > 0 && int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Sources: %d, MaxAttempts: %d, Store: %s(%s)}",
		len(c.Crawler.Sources),
		c.Crawler.Retry.MaxAttempts,
		c.Crawler.Store.Backend,
		c.Crawler.Store.Path,
	)
}
