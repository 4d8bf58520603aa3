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
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeoBounds is the bounding box for the geofence check.
type GeoBounds struct {
	LatMin float64 `yaml:"lat_min" mapstructure:"lat_min"`
	LatMax float64 `yaml:"lat_max" mapstructure:"lat_max"`
	LngMin float64 `yaml:"lng_min" mapstructure:"lng_min"`
	LngMax float64 `yaml:"lng_max" mapstructure:"lng_max"`
}

// Contains reports whether the coordinates fall inside the box.
func (b GeoBounds) Contains(lat, lng float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lng >= b.LngMin && lng <= b.LngMax
}

// IngestConfig configures the import pipeline.
type IngestConfig struct {
	// CSVDelimiter is the field separator for CSV exports. The upstream
	// export tool emits semicolon-delimited files.
	CSVDelimiter     string    `yaml:"csv_delimiter" mapstructure:"csv_delimiter"`
	MaxDropsPerPole  int       `yaml:"max_drops_per_pole" mapstructure:"max_drops_per_pole"`
	SpotCheckSamples int       `yaml:"spot_check_samples" mapstructure:"spot_check_samples"`
	ReportsDir       string    `yaml:"reports_dir" mapstructure:"reports_dir"`
	Bounds           GeoBounds `yaml:"bounds" mapstructure:"bounds"`
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
	v.SetEnvPrefix("FIELDSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. The geofence box defaults to the Lawley project area.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "fieldsync.db")
	v.SetDefault("ingest.csv_delimiter", ";")
	v.SetDefault("ingest.max_drops_per_pole", 12)
	v.SetDefault("ingest.spot_check_samples", 5)
	v.SetDefault("ingest.reports_dir", "reports")
	v.SetDefault("ingest.bounds.lat_min", -26.35)
	v.SetDefault("ingest.bounds.lat_max", -26.15)
	v.SetDefault("ingest.bounds.lng_min", 28.20)
	v.SetDefault("ingest.bounds.lng_max", 28.40)
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

// Validate checks invariants the pipeline depends on.
func (c *Config) Validate() error {
	var problems []string
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if len([]rune(c.Ingest.CSVDelimiter)) != 1 {
		problems = append(problems, "ingest.csv_delimiter must be a single character")
	}
	if c.Ingest.MaxDropsPerPole < 1 {
		problems = append(problems, "ingest.max_drops_per_pole must be >= 1")
	}
	if c.Ingest.SpotCheckSamples < 0 {
		problems = append(problems, "ingest.spot_check_samples must be >= 0")
	}
	if c.Ingest.Bounds.LatMin > c.Ingest.Bounds.LatMax || c.Ingest.Bounds.LngMin > c.Ingest.Bounds.LngMax {
		problems = append(problems, "ingest.bounds min must not exceed max")
	}
	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
