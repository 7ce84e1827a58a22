package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/niruguard/niruguard/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Sources  SourcesConfig  `yaml:"sources" mapstructure:"sources"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Model    ModelConfig    `yaml:"model" mapstructure:"model"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
}

// SourcesConfig locates the raw procurement tables.
type SourcesConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	Tenders   string `yaml:"tenders" mapstructure:"tenders"`
	Awards    string `yaml:"awards" mapstructure:"awards"`
	Contracts string `yaml:"contracts" mapstructure:"contracts"`
	Suppliers string `yaml:"suppliers" mapstructure:"suppliers"`
	Parties   string `yaml:"parties" mapstructure:"parties"`
	// Charset names the encoding of CSV exports (e.g. "windows-1252").
	// Empty means UTF-8.
	Charset string `yaml:"charset" mapstructure:"charset"`
}

// Path joins a source file name onto the source directory. Absolute names
// are returned unchanged.
func (s SourcesConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.Dir, name)
}

// OutputConfig configures where feature tables are written.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// PipelineConfig configures the feature pipeline.
type PipelineConfig struct {
	Version string `yaml:"version" mapstructure:"version"`
	// WarnSample caps how many parse-failure warnings are logged per field.
	WarnSample int `yaml:"warn_sample" mapstructure:"warn_sample"`
}

// StoreConfig configures the optional database mirror of feature tables.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	TablePrefix string `yaml:"table_prefix" mapstructure:"table_prefix"`
}

// ModelConfig locates trained classifier artifacts.
type ModelConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP read API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MetricsConfig configures run metrics export.
type MetricsConfig struct {
	// Textfile, when set, receives a Prometheus text exposition after each
	// build (node_exporter textfile collector format).
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// Load reads configuration from .env, config file, and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NIRUGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("sources.dir", filepath.Join("data", "raw"))
	v.SetDefault("sources.tenders", "main.csv")
	v.SetDefault("sources.awards", "awards.csv")
	v.SetDefault("sources.contracts", "contracts.csv")
	v.SetDefault("sources.suppliers", "awards_suppliers.csv")
	v.SetDefault("sources.parties", "parties.csv")
	v.SetDefault("sources.charset", "")
	v.SetDefault("output.dir", filepath.Join("data", "processed"))
	v.SetDefault("pipeline.version", "v3")
	v.SetDefault("pipeline.warn_sample", 5)
	v.SetDefault("store.driver", "csv")
	v.SetDefault("store.table_prefix", "training_data")
	v.SetDefault("model.dir", "models")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("metrics.textfile", "")

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

// Validate checks that the configuration required by mode is present.
// Modes: "build", "serve", "read" (dossier and analyze).
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Output.Dir == "" {
		errs = append(errs, "output.dir is required")
	}

	switch mode {
	case "build":
		if _, err := model.ParseVersion(c.Pipeline.Version); err != nil && !strings.EqualFold(c.Pipeline.Version, "all") {
			errs = append(errs, "pipeline.version must be v1, v2, v3 or all")
		}
		if c.Sources.Tenders == "" || c.Sources.Awards == "" {
			errs = append(errs, "sources.tenders and sources.awards are required")
		}
		if c.Pipeline.WarnSample < 0 {
			errs = append(errs, "pipeline.warn_sample must be >= 0")
		}
		switch c.Store.Driver {
		case "csv", "sqlite":
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for the postgres driver")
			}
		default:
			errs = append(errs, "store.driver must be csv, sqlite or postgres")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "read":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
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
