// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Process  ProcessConfig  `mapstructure:"process"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowedOrigin  string        `mapstructure:"allowed_origin"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// FetchConfig governs the single-page fetch and its retry policy.
type FetchConfig struct {
	UserAgent     string        `mapstructure:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
	MaxBodyBytes  int           `mapstructure:"max_body_bytes"`
}

// CrawlConfig governs frontier traversal.
type CrawlConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	DefaultMaxPages int           `mapstructure:"default_max_pages"`
	MaxPagesLimit   int           `mapstructure:"max_pages_limit"`
	Deadline        time.Duration `mapstructure:"deadline"`
	MinContentChars int           `mapstructure:"min_content_chars"`
	SeenCapFactor   int           `mapstructure:"seen_cap_factor"`
	QueueCapFactor  int           `mapstructure:"queue_cap_factor"`
	// FetchTimeout replaces fetch.timeout for crawl fetches when > 0.
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
}

// ExtractConfig governs batch extraction and the text-extraction service.
type ExtractConfig struct {
	Mode               string        `mapstructure:"mode"`
	ServiceURLTemplate string        `mapstructure:"service_url_template"`
	APIKey             string        `mapstructure:"api_key"`
	Timeout            time.Duration `mapstructure:"timeout"`
	ServiceRPS         float64       `mapstructure:"service_rps"`
	ServiceBurst       int           `mapstructure:"service_burst"`
	Concurrency        int           `mapstructure:"concurrency"`
	DefaultBatchSize   int           `mapstructure:"default_batch_size"`
	MaxBatchSize       int           `mapstructure:"max_batch_size"`
}

// AnalysisConfig governs the language-model analysis service.
type AnalysisConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ContentBudget int           `mapstructure:"content_budget"`
	Temperature   float64       `mapstructure:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"`
}

// ProcessConfig bounds the single-invocation process-all mode.
type ProcessConfig struct {
	DefaultMaxPages int `mapstructure:"default_max_pages"`
	MaxPagesLimit   int `mapstructure:"max_pages_limit"`
}

// ArchiveConfig controls where finished analysis records are filed.
type ArchiveConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Backend     string `mapstructure:"backend"`
	Prefix      string `mapstructure:"prefix"`
	LocalDir    string `mapstructure:"local_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	DBDSN       string `mapstructure:"db_dsn"`
	DBTable     string `mapstructure:"db_table"`
	ProjectID   string `mapstructure:"project_id"`
	PubSubTopic string `mapstructure:"pubsub_topic"`

	// NoticeCapacity bounds the in-memory notifications kept when no topic is set.
	NoticeCapacity int `mapstructure:"notice_capacity"`
}

// Extraction modes.
const (
	ExtractModeRemote = "remote"
	ExtractModeLocal  = "local"
)

// Archive backends.
const (
	ArchiveBackendMemory = "memory"
	ArchiveBackendLocal  = "local"
	ArchiveBackendGCS    = "gcs"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	applyEnvFallbacks(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Defaults returns the configuration produced without any file or environment overrides.
func Defaults() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("unmarshal defaults: %v", err))
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.allowed_origin", "*")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", false)

	v.SetDefault("fetch.user_agent", "site-harvester/0.1 (+https://github.com/JakeFAU/site-harvester)")
	v.SetDefault("fetch.timeout", "5s")
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.initial_delay", "1s")
	v.SetDefault("fetch.backoff_factor", 1.5)
	v.SetDefault("fetch.max_body_bytes", 5*1024*1024)

	v.SetDefault("crawl.concurrency", 3)
	v.SetDefault("crawl.default_max_pages", 20)
	v.SetDefault("crawl.max_pages_limit", 50)
	v.SetDefault("crawl.deadline", "8s")
	v.SetDefault("crawl.min_content_chars", 50)
	v.SetDefault("crawl.seen_cap_factor", 5)
	v.SetDefault("crawl.queue_cap_factor", 3)
	v.SetDefault("crawl.fetch_timeout", "0s")

	v.SetDefault("extract.mode", ExtractModeRemote)
	v.SetDefault("extract.service_url_template", "https://r.jina.ai/{url}")
	v.SetDefault("extract.api_key", "")
	v.SetDefault("extract.timeout", "20s")
	v.SetDefault("extract.service_rps", 0.0)
	v.SetDefault("extract.service_burst", 1)
	v.SetDefault("extract.concurrency", 3)
	v.SetDefault("extract.default_batch_size", 5)
	v.SetDefault("extract.max_batch_size", 10)

	v.SetDefault("analysis.api_key", "")
	v.SetDefault("analysis.base_url", "")
	v.SetDefault("analysis.model", "gpt-4o-mini")
	v.SetDefault("analysis.timeout", "45s")
	v.SetDefault("analysis.content_budget", 18000)
	v.SetDefault("analysis.temperature", 0.2)
	v.SetDefault("analysis.max_tokens", 0)

	v.SetDefault("process.default_max_pages", 10)
	v.SetDefault("process.max_pages_limit", 25)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.backend", ArchiveBackendMemory)
	v.SetDefault("archive.prefix", "analyses")
	v.SetDefault("archive.local_dir", "data/archive")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.db_dsn", "")
	v.SetDefault("archive.db_table", "harvest_runs")
	v.SetDefault("archive.project_id", "")
	v.SetDefault("archive.pubsub_topic", "")
	v.SetDefault("archive.notice_capacity", 100)
}

// applyEnvFallbacks picks up conventional credential variables when the
// HARVESTER_-prefixed ones are absent.
func applyEnvFallbacks(cfg *Config) {
	if cfg.Analysis.APIKey == "" {
		cfg.Analysis.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if port := os.Getenv("PORT"); port != "" && os.Getenv("HARVESTER_SERVER_PORT") == "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil && p > 0 {
			cfg.Server.Port = p
		}
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0")
	}
	if c.Fetch.BackoffFactor <= 1 {
		return fmt.Errorf("fetch.backoff_factor must be > 1")
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if c.Crawl.MaxPagesLimit <= 0 {
		return fmt.Errorf("crawl.max_pages_limit must be > 0")
	}
	if c.Crawl.Deadline <= 0 {
		return fmt.Errorf("crawl.deadline must be > 0")
	}
	if c.Crawl.SeenCapFactor <= 0 || c.Crawl.QueueCapFactor <= 0 {
		return fmt.Errorf("crawl cap factors must be > 0")
	}
	if c.Crawl.FetchTimeout < 0 {
		return fmt.Errorf("crawl.fetch_timeout must be >= 0")
	}
	if c.Process.MaxPagesLimit <= 0 {
		return fmt.Errorf("process.max_pages_limit must be > 0")
	}
	if c.Extract.Concurrency <= 0 {
		return fmt.Errorf("extract.concurrency must be > 0")
	}
	if c.Extract.ServiceRPS < 0 {
		return fmt.Errorf("extract.service_rps must be >= 0")
	}
	if c.Extract.MaxBatchSize <= 0 {
		return fmt.Errorf("extract.max_batch_size must be > 0")
	}
	switch c.Extract.Mode {
	case ExtractModeRemote:
		if !strings.Contains(c.Extract.ServiceURLTemplate, "{url}") {
			return fmt.Errorf("extract.service_url_template must contain {url}")
		}
	case ExtractModeLocal:
	default:
		return fmt.Errorf("extract.mode must be %q or %q", ExtractModeRemote, ExtractModeLocal)
	}
	if c.Analysis.ContentBudget <= 0 {
		return fmt.Errorf("analysis.content_budget must be > 0")
	}
	if c.Analysis.MaxTokens < 0 {
		return fmt.Errorf("analysis.max_tokens must be >= 0")
	}
	if c.Archive.Enabled {
		switch c.Archive.Backend {
		case ArchiveBackendMemory, ArchiveBackendLocal:
		case ArchiveBackendGCS:
			if c.Archive.GCSBucket == "" {
				return fmt.Errorf("archive.gcs_bucket must be set for the gcs backend")
			}
		default:
			return fmt.Errorf("archive.backend %q is not supported", c.Archive.Backend)
		}
		if c.Archive.PubSubTopic != "" && c.Archive.ProjectID == "" {
			return fmt.Errorf("archive.project_id must be set when archive.pubsub_topic is set")
		}
	}
	return nil
}

// CrawlMaxPages resolves a requested page count against the crawl defaults.
func (c Config) CrawlMaxPages(requested *int) int {
	return clampPages(requested, c.Crawl.DefaultMaxPages, c.Crawl.MaxPagesLimit)
}

// ProcessMaxPages resolves a requested page count for process-all.
func (c Config) ProcessMaxPages(requested *int) int {
	return clampPages(requested, c.Process.DefaultMaxPages, c.Process.MaxPagesLimit)
}

func clampPages(requested *int, def, limit int) int {
	n := def
	if requested != nil && *requested > 0 {
		n = *requested
	}
	if n <= 0 || n > limit {
		n = limit
	}
	return n
}
