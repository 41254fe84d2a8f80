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
	Census   CensusConfig   `yaml:"census" mapstructure:"census"`
	Market   MarketConfig   `yaml:"market" mapstructure:"market"`
	Boundary BoundaryConfig `yaml:"boundary" mapstructure:"boundary"`
	Score    ScoreConfig    `yaml:"score" mapstructure:"score"`
	Analyze  AnalyzeConfig  `yaml:"analyze" mapstructure:"analyze"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// CensusConfig configures the ACS demographic data source.
type CensusConfig struct {
	BaseURL            string `yaml:"base_url" mapstructure:"base_url"`
	Year               string `yaml:"year" mapstructure:"year"`
	APIKey             string `yaml:"api_key" mapstructure:"api_key"`
	CacheTTLHours      int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	MaxAttempts        int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	AttemptTimeoutSecs int    `yaml:"attempt_timeout_secs" mapstructure:"attempt_timeout_secs"`
	BackoffBaseSecs    int    `yaml:"backoff_base_secs" mapstructure:"backoff_base_secs"`
}

// MarketConfig configures the realty listings data source.
type MarketConfig struct {
	APIKey           string `yaml:"api_key" mapstructure:"api_key"`
	APIHost          string `yaml:"api_host" mapstructure:"api_host"`
	ListURL          string `yaml:"list_url" mapstructure:"list_url"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	SnapshotTTLHours int    `yaml:"snapshot_ttl_hours" mapstructure:"snapshot_ttl_hours"`
	LookupDelayMs    int    `yaml:"lookup_delay_ms" mapstructure:"lookup_delay_ms"`
	PageSize         int    `yaml:"page_size" mapstructure:"page_size"`
}

// BoundaryConfig configures tract boundary retrieval.
type BoundaryConfig struct {
	TigerwebURL  string `yaml:"tigerweb_url" mapstructure:"tigerweb_url"`
	CacheTTLDays int    `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
}

// ScoreConfig holds composite score weights and bonus toggles.
type ScoreConfig struct {
	Weights       ScoreWeights `yaml:"weights" mapstructure:"weights"`
	SchoolBonuses bool         `yaml:"school_bonuses" mapstructure:"school_bonuses"`
	RetailBonus   bool         `yaml:"retail_bonus" mapstructure:"retail_bonus"`
}

// ScoreWeights are the four sub-score weights. They should sum to 1.0;
// a zero total falls back to the gap score alone.
type ScoreWeights struct {
	Gap      float64 `yaml:"gap" mapstructure:"gap"`
	Vacancy  float64 `yaml:"vacancy" mapstructure:"vacancy"`
	Income   float64 `yaml:"income" mapstructure:"income"`
	Velocity float64 `yaml:"velocity" mapstructure:"velocity"`
}

// AnalyzeConfig holds defaults for one analysis run.
type AnalyzeConfig struct {
	PriceMin               int `yaml:"price_min" mapstructure:"price_min"`
	PriceMax               int `yaml:"price_max" mapstructure:"price_max"`
	MaxMarketLookups       int `yaml:"max_market_lookups" mapstructure:"max_market_lookups"`
	MaxMarketLookupsCap    int `yaml:"max_market_lookups_cap" mapstructure:"max_market_lookups_cap"`
	MarketDisableThreshold int `yaml:"market_disable_threshold" mapstructure:"market_disable_threshold"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("FLIPFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("census.base_url", "https://api.census.gov/data")
	v.SetDefault("census.year", "2023")
	// Empty defaults register the keys so env-only values unmarshal.
	v.SetDefault("census.api_key", "")
	v.SetDefault("census.cache_ttl_hours", 24)
	v.SetDefault("census.max_attempts", 3)
	v.SetDefault("census.attempt_timeout_secs", 30)
	v.SetDefault("census.backoff_base_secs", 2)
	v.SetDefault("market.api_key", "")
	v.SetDefault("market.api_host", "realty-in-us.p.rapidapi.com")
	v.SetDefault("market.list_url", "https://realty-in-us.p.rapidapi.com/properties/v3/list")
	v.SetDefault("market.timeout_secs", 30)
	v.SetDefault("market.snapshot_ttl_hours", 6)
	v.SetDefault("market.lookup_delay_ms", 150)
	v.SetDefault("market.page_size", 25)
	v.SetDefault("boundary.tigerweb_url", "https://tigerweb.geo.census.gov/arcgis/rest/services/TIGERweb/Tracts_Blocks/MapServer/0/query")
	v.SetDefault("boundary.cache_ttl_days", 30)
	v.SetDefault("score.weights.gap", 0.40)
	v.SetDefault("score.weights.vacancy", 0.25)
	v.SetDefault("score.weights.income", 0.25)
	v.SetDefault("score.weights.velocity", 0.10)
	v.SetDefault("score.school_bonuses", true)
	v.SetDefault("score.retail_bonus", true)
	v.SetDefault("analyze.price_min", 200000)
	v.SetDefault("analyze.price_max", 225000)
	v.SetDefault("analyze.max_market_lookups", 10)
	v.SetDefault("analyze.max_market_lookups_cap", 50)
	v.SetDefault("analyze.market_disable_threshold", 200)

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
