package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultUserAgent is a desktop Chrome user agent. Many broker sites serve
// an empty page or a 403 to unfamiliar clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Queue      QueueConfig      `yaml:"queue" mapstructure:"queue"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the lead database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig configures where lookup caches are persisted.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SearchConfig selects and configures the web search provider.
type SearchConfig struct {
	Provider        string `yaml:"provider" mapstructure:"provider"`
	DDGBaseURL      string `yaml:"ddg_base_url" mapstructure:"ddg_base_url"`
	JinaBaseURL     string `yaml:"jina_base_url" mapstructure:"jina_base_url"`
	JinaKey         string `yaml:"jina_key" mapstructure:"jina_key"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	URLMaxResults   int    `yaml:"url_max_results" mapstructure:"url_max_results"`
	EmailMaxResults int    `yaml:"email_max_results" mapstructure:"email_max_results"`
	RetryAttempts   int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs  int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// Timeout returns the search timeout as a duration.
func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// FetchConfig configures page fetching.
type FetchConfig struct {
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	InsecureTLS  bool   `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// Timeout returns the fetch timeout as a duration.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// EnrichConfig configures the enrichment pipeline pacing and checkpoints.
type EnrichConfig struct {
	URLDelayMs      int `yaml:"url_delay_ms" mapstructure:"url_delay_ms"`
	SocialDelayMs   int `yaml:"social_delay_ms" mapstructure:"social_delay_ms"`
	EmailDelayMs    int `yaml:"email_delay_ms" mapstructure:"email_delay_ms"`
	ProbePauseMs    int `yaml:"probe_pause_ms" mapstructure:"probe_pause_ms"`
	CheckpointEvery int `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
}

// QueueConfig configures the background job runner.
type QueueConfig struct {
	Workers  int `yaml:"workers" mapstructure:"workers"`
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port      int    `yaml:"port" mapstructure:"port"`
	UploadDir string `yaml:"upload_dir" mapstructure:"upload_dir"`
}

// MonitoringConfig configures the background health checker.
type MonitoringConfig struct {
	Enabled            bool    `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs  int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	WebhookURL         string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	ErrorListThreshold int     `yaml:"error_list_threshold" mapstructure:"error_list_threshold"`
	MinWebsiteCoverage float64 `yaml:"min_website_coverage" mapstructure:"min_website_coverage"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/leads.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("cache.driver", "file")
	v.SetDefault("cache.dir", "data/cache")
	v.SetDefault("cache.database_url", "data/cache.db")
	v.SetDefault("search.provider", "ddg")
	v.SetDefault("search.ddg_base_url", "https://html.duckduckgo.com")
	v.SetDefault("search.jina_base_url", "https://s.jina.ai")
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.url_max_results", 8)
	v.SetDefault("search.email_max_results", 5)
	v.SetDefault("search.retry_attempts", 3)
	v.SetDefault("search.retry_backoff_ms", 1000)
	v.SetDefault("fetch.timeout_secs", 10)
	v.SetDefault("fetch.user_agent", DefaultUserAgent)
	v.SetDefault("fetch.insecure_tls", true)
	v.SetDefault("fetch.max_body_bytes", 2<<20)
	v.SetDefault("enrich.url_delay_ms", 1500)
	v.SetDefault("enrich.social_delay_ms", 1000)
	v.SetDefault("enrich.email_delay_ms", 1000)
	v.SetDefault("enrich.probe_pause_ms", 500)
	v.SetDefault("enrich.checkpoint_every", 10)
	v.SetDefault("queue.workers", 1)
	v.SetDefault("queue.capacity", 16)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.upload_dir", "data/uploads")
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.error_list_threshold", 1)
	v.SetDefault("monitoring.min_website_coverage", 0.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Mode is one of
// "enrich", "import" or "serve"; every problem found is reported at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "import":
	case "enrich", "serve":
		switch c.Cache.Driver {
		case "file", "sqlite":
		default:
			errs = append(errs, fmt.Sprintf("cache.driver %q is not file or sqlite", c.Cache.Driver))
		}
		switch c.Search.Provider {
		case "ddg":
		case "jina":
			if c.Search.JinaKey == "" {
				errs = append(errs, "search.jina_key is required for the jina provider")
			}
		default:
			errs = append(errs, fmt.Sprintf("search.provider %q is not ddg or jina", c.Search.Provider))
		}
		if c.Enrich.CheckpointEvery < 1 {
			errs = append(errs, "enrich.checkpoint_every must be >= 1")
		}
		if mode == "serve" {
			if c.Server.Port <= 0 {
				errs = append(errs, "server.port must be > 0")
			}
			// Runs share the cache files and stage delays, so lists are
			// enriched one at a time.
			if c.Queue.Workers != 1 {
				errs = append(errs, fmt.Sprintf("queue.workers must be 1, got %d", c.Queue.Workers))
			}
			if c.Queue.Capacity < 1 {
				errs = append(errs, "queue.capacity must be >= 1")
			}
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
