// Package config loads application settings with viper and bootstraps the
// global zap logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Columns   ColumnsConfig   `yaml:"columns" mapstructure:"columns"`
	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
	Matching  MatchingConfig  `yaml:"matching" mapstructure:"matching"`
	Rules     RulesConfig     `yaml:"rules" mapstructure:"rules"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ColumnsConfig names the vote table's non-category columns.
type ColumnsConfig struct {
	Address   string `yaml:"address" mapstructure:"address"`
	Timestamp string `yaml:"timestamp" mapstructure:"timestamp"`
}

// ReferenceConfig locates the anchor rules and master directory.
type ReferenceConfig struct {
	// Source is "file" or "store".
	Source      string `yaml:"source" mapstructure:"source"`
	AnchorsPath string `yaml:"anchors_path" mapstructure:"anchors_path"`
	MasterPath  string `yaml:"master_path" mapstructure:"master_path"`
}

// MatchingConfig tunes name resolution. Thresholds are on a 0-100 scale.
type MatchingConfig struct {
	AnchorThreshold float64 `yaml:"anchor_threshold" mapstructure:"anchor_threshold"`
	MasterThreshold float64 `yaml:"master_threshold" mapstructure:"master_threshold"`
	DedupeThreshold float64 `yaml:"dedupe_threshold" mapstructure:"dedupe_threshold"`
	PrefixLength    int     `yaml:"prefix_length" mapstructure:"prefix_length"`
	Workers         int     `yaml:"workers" mapstructure:"workers"`
}

// RulesConfig tunes the fraud rules.
type RulesConfig struct {
	MinParticipation   int  `yaml:"min_participation" mapstructure:"min_participation"`
	BurstWindowMinutes int  `yaml:"burst_window_minutes" mapstructure:"burst_window_minutes"`
	BurstThreshold     int  `yaml:"burst_threshold" mapstructure:"burst_threshold"`
	StrictAddress      bool `yaml:"strict_address" mapstructure:"strict_address"`
}

// ReportConfig configures result output.
type ReportConfig struct {
	TopN int `yaml:"top_n" mapstructure:"top_n"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// RecordRuns saves a summary of every analysis run.
	RecordRuns bool `yaml:"record_runs" mapstructure:"record_runs"`
}

// ServerConfig configures the upload server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// DirectoryConfig configures the business directory collection job.
type DirectoryConfig struct {
	GoogleAPIKey     string   `yaml:"google_api_key" mapstructure:"google_api_key"`
	RateLimit        float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Concurrency      int      `yaml:"concurrency" mapstructure:"concurrency"`
	MaxPages         int      `yaml:"max_pages" mapstructure:"max_pages"`
	MaxAttempts      int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int      `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int      `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Categories       []string `yaml:"categories" mapstructure:"categories"`
	Cities           []string `yaml:"cities" mapstructure:"cities"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultCategories are the search terms used to build the master directory.
var DefaultCategories = []string{
	"restaurant", "bakery", "coffee shop", "steakhouse", "pizza", "sushi",
	"bar", "brewery", "winery", "ice cream shop", "auto repair", "insurance",
	"law office", "tattoo shop", "spa", "chiropractor", "dentist", "hospital",
	"pharmacy", "gift shop", "book store", "clothing store", "thrift shop",
	"hardware store", "art gallery", "yoga studio", "daycare", "photographer",
}

// DefaultCities are the locations searched for each category.
var DefaultCities = []string{
	"Des Moines, IA", "West Des Moines, IA", "Ankeny, IA", "Urbandale, IA",
	"Clive, IA", "Altoona, IA", "Johnston, IA", "Waukee, IA",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BESTOF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("columns.address", "ip address")
	v.SetDefault("columns.timestamp", "start date")
	v.SetDefault("reference.source", "file")
	v.SetDefault("reference.anchors_path", "anchors.csv")
	v.SetDefault("reference.master_path", "business_master.csv")
	v.SetDefault("matching.anchor_threshold", 80)
	v.SetDefault("matching.master_threshold", 85)
	v.SetDefault("matching.dedupe_threshold", 90)
	v.SetDefault("matching.prefix_length", 4)
	v.SetDefault("matching.workers", 4)
	v.SetDefault("rules.min_participation", 2)
	v.SetDefault("rules.burst_window_minutes", 10)
	v.SetDefault("rules.burst_threshold", 8)
	v.SetDefault("rules.strict_address", true)
	v.SetDefault("report.top_n", 3)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "best-of.db")
	v.SetDefault("store.record_runs", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("directory.rate_limit", 1.0)
	v.SetDefault("directory.concurrency", 2)
	v.SetDefault("directory.max_pages", 1)
	v.SetDefault("directory.max_attempts", 3)
	v.SetDefault("directory.initial_backoff_ms", 500)
	v.SetDefault("directory.max_backoff_ms", 30000)
	v.SetDefault("directory.categories", DefaultCategories)
	v.SetDefault("directory.cities", DefaultCities)
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

// Validate checks the settings a command mode depends on. Modes: "analyze",
// "serve", "directory", "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "analyze", "serve":
		errs = append(errs, c.validateAnalysis()...)
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Reference.Source == "store" {
			errs = append(errs, c.validateStore()...)
		}
	case "directory":
		if c.Directory.GoogleAPIKey == "" {
			errs = append(errs, "directory.google_api_key is required")
		}
		if c.Directory.RateLimit <= 0 {
			errs = append(errs, "directory.rate_limit must be > 0")
		}
		if c.Directory.Concurrency < 1 {
			errs = append(errs, "directory.concurrency must be >= 1")
		}
		if len(c.Directory.Categories) == 0 || len(c.Directory.Cities) == 0 {
			errs = append(errs, "directory.categories and directory.cities must not be empty")
		}
	case "store":
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateAnalysis() []string {
	var errs []string
	thresholds := []struct {
		name  string
		value float64
	}{
		{"matching.anchor_threshold", c.Matching.AnchorThreshold},
		{"matching.master_threshold", c.Matching.MasterThreshold},
		{"matching.dedupe_threshold", c.Matching.DedupeThreshold},
	}
	for _, th := range thresholds {
		if th.value < 0 || th.value > 100 {
			errs = append(errs, th.name+" must be between 0 and 100")
		}
	}
	if c.Matching.PrefixLength < 1 {
		errs = append(errs, "matching.prefix_length must be >= 1")
	}
	if c.Rules.BurstWindowMinutes <= 0 {
		errs = append(errs, "rules.burst_window_minutes must be > 0")
	}
	if c.Rules.BurstThreshold < 1 {
		errs = append(errs, "rules.burst_threshold must be >= 1")
	}
	switch c.Reference.Source {
	case "file", "store":
	default:
		errs = append(errs, "reference.source must be file or store")
	}
	return errs
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
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
