// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Run log driver names accepted in runlog.driver.
const (
	RunLogDriverSQLite   = "sqlite"
	RunLogDriverPostgres = "postgres"
)

// Config captures all service configuration knobs loaded via Viper. It is
// passed explicitly into the scheduler at construction; nothing reads
// ambient state.
type Config struct {
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	RunLog     RunLogConfig     `mapstructure:"runlog"`
	Output     OutputConfig     `mapstructure:"output"`
	Tefas      TefasConfig      `mapstructure:"tefas"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// CrawlerConfig governs scheduler and retry behavior.
type CrawlerConfig struct {
	Concurrency      int           `mapstructure:"concurrency"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	RetryBackoffBase time.Duration `mapstructure:"retry_backoff_base"`
	RetryBackoffMax  time.Duration `mapstructure:"retry_backoff_max"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
}

// CheckpointConfig locates the durable progress marker.
type CheckpointConfig struct {
	Path string `mapstructure:"path"`
}

// RunLogConfig selects and configures the run log backend.
type RunLogConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// OutputConfig sets where raw day results land.
type OutputConfig struct {
	Dir          string `mapstructure:"dir"`
	MaxPageBytes int64  `mapstructure:"max_page_bytes"`
}

// TefasConfig configures the fetcher capability.
type TefasConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	HistoryURL        string        `mapstructure:"history_url"`
	FundType          string        `mapstructure:"fund_type"`
	PageSize          int           `mapstructure:"page_size"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Headless          bool          `mapstructure:"headless"`
	NavTimeout        time.Duration `mapstructure:"nav_timeout"`
}

// ServerConfig controls the optional operator status server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FONAPI")
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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.concurrency", 1)
	v.SetDefault("crawler.max_attempts", 5)
	v.SetDefault("crawler.retry_backoff_base", "30s")
	v.SetDefault("crawler.retry_backoff_max", "30m")
	v.SetDefault("crawler.fetch_timeout", "2m")
	v.SetDefault("checkpoint.path", "data/checkpoint.json")
	v.SetDefault("runlog.driver", RunLogDriverSQLite)
	v.SetDefault("runlog.path", "data/runlog.db")
	v.SetDefault("output.dir", "out")
	v.SetDefault("output.max_page_bytes", 5*1024*1024)
	v.SetDefault("tefas.base_url", "https://www.tefas.gov.tr")
	v.SetDefault("tefas.history_url", "https://www.tefas.gov.tr/TarihselVeriler.aspx")
	v.SetDefault("tefas.fund_type", "YAT")
	v.SetDefault("tefas.page_size", 100)
	v.SetDefault("tefas.user_agent", "fonapi/1.0 (+https://github.com/burakyilmaz321/fonapi)")
	v.SetDefault("tefas.requests_per_second", 4)
	v.SetDefault("tefas.headless", false)
	v.SetDefault("tefas.nav_timeout", "60s")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.MaxAttempts <= 0 {
		return fmt.Errorf("crawler.max_attempts must be > 0")
	}
	switch c.RunLog.Driver {
	case RunLogDriverSQLite:
		if c.RunLog.Path == "" {
			return fmt.Errorf("runlog.path must be set for the sqlite driver")
		}
	case RunLogDriverPostgres:
		if c.RunLog.DSN == "" {
			return fmt.Errorf("runlog.dsn must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("runlog.driver must be %q or %q", RunLogDriverSQLite, RunLogDriverPostgres)
	}
	if c.Checkpoint.Path == "" {
		return fmt.Errorf("checkpoint.path must be set")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must be set")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	return nil
}
