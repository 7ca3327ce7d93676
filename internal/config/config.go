package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/faultstack/faultline/internal/utils"
)

var validate = validator.New()

// Config captures the settings required to boot the analysis service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Engine   EngineConfig   `yaml:"engine"`
	History  HistoryConfig  `yaml:"history"`
	Trends   TrendsConfig   `yaml:"trends"`
	Patterns PatternsConfig `yaml:"patterns"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address" validate:"required"`
	MetricsAddress  string        `yaml:"metricsAddress" validate:"required"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout" validate:"gt=0"`
	RatePerSecond   float64       `yaml:"ratePerSecond" validate:"gt=0"`
	RateBurst       int           `yaml:"rateBurst" validate:"gte=1"`
}

// EngineConfig bounds the analysis pipeline.
type EngineConfig struct {
	CorrelationWindow   time.Duration `yaml:"correlationWindow" validate:"gt=0"`
	ClusterWindow       time.Duration `yaml:"clusterWindow" validate:"gt=0"`
	ClusterThreshold    int           `yaml:"clusterThreshold" validate:"gte=2"`
	MaxCauses           int           `yaml:"maxCauses" validate:"gte=1"`
	MaxRelatedIDs       int           `yaml:"maxRelatedIds" validate:"gte=1"`
	MaxPatternsPerEntry int           `yaml:"maxPatternsPerEntry" validate:"gte=1"`
	BatchParallelism    int           `yaml:"batchParallelism" validate:"gte=0"`
	FutureSkew          time.Duration `yaml:"futureSkew" validate:"gt=0"`
	MaxTextBytes        int           `yaml:"maxTextBytes" validate:"gte=1024"`
}

// HistoryConfig bounds the correlation history store.
type HistoryConfig struct {
	Size      int           `yaml:"size" validate:"gte=1"`
	Retention time.Duration `yaml:"retention" validate:"gt=0"`
}

// TrendsConfig bounds batch trend detection.
type TrendsConfig struct {
	Bucket     time.Duration `yaml:"bucket" validate:"gt=0"`
	MinBuckets int           `yaml:"minBuckets" validate:"gte=2"`
	MinCount   int           `yaml:"minCount" validate:"gte=2"`
	StableBand float64       `yaml:"stableBand" validate:"gt=0,lt=1"`
}

// PatternsConfig controls pattern-pack loading.
type PatternsConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment
// overrides, then validates it. Invalid settings fail here, not at first use.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("FAULTLINE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, utils.NewAppError("config.Load", fmt.Sprintf("read config %s", path), err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, utils.NewAppError("config.Load", fmt.Sprintf("parse config %s", path), err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fails fast on settings the engine cannot run with.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return utils.NewAppError("config.Validate", "invalid config", err)
	}
	if c.Engine.ClusterWindow > c.Engine.CorrelationWindow {
		return utils.NewAppError("config.Validate",
			fmt.Sprintf("cluster window %s exceeds correlation window %s",
				c.Engine.ClusterWindow, c.Engine.CorrelationWindow), nil)
	}
	if c.Server.Address == c.Server.MetricsAddress {
		return utils.NewAppError("config.Validate",
			fmt.Sprintf("server and metrics listeners collide on %s", c.Server.Address), nil)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			RatePerSecond:   50,
			RateBurst:       100,
		},
		Engine: EngineConfig{
			CorrelationWindow:   5 * time.Minute,
			ClusterWindow:       time.Minute,
			ClusterThreshold:    3,
			MaxCauses:           5,
			MaxRelatedIDs:       10,
			MaxPatternsPerEntry: 8,
			BatchParallelism:    0,
			FutureSkew:          5 * time.Minute,
			MaxTextBytes:        16 << 10,
		},
		History: HistoryConfig{
			Size:      1000,
			Retention: 30 * time.Minute,
		},
		Trends: TrendsConfig{
			Bucket:     time.Hour,
			MinBuckets: 4,
			MinCount:   5,
			StableBand: 0.1,
		},
		Patterns: PatternsConfig{},
		Logging:  LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FAULTLINE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("FAULTLINE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("FAULTLINE_GRACEFUL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.GracefulTimeout = d
		}
	}
	if v := os.Getenv("FAULTLINE_RATE_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.RatePerSecond = f
		}
	}
	if v := os.Getenv("FAULTLINE_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateBurst = n
		}
	}
	if v := os.Getenv("FAULTLINE_CORRELATION_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.CorrelationWindow = d
		}
	}
	if v := os.Getenv("FAULTLINE_CLUSTER_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.ClusterWindow = d
		}
	}
	if v := os.Getenv("FAULTLINE_CLUSTER_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.ClusterThreshold = n
		}
	}
	if v := os.Getenv("FAULTLINE_MAX_CAUSES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxCauses = n
		}
	}
	if v := os.Getenv("FAULTLINE_MAX_RELATED_IDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxRelatedIDs = n
		}
	}
	if v := os.Getenv("FAULTLINE_MAX_PATTERNS_PER_ENTRY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxPatternsPerEntry = n
		}
	}
	if v := os.Getenv("FAULTLINE_BATCH_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.BatchParallelism = n
		}
	}
	if v := os.Getenv("FAULTLINE_FUTURE_SKEW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.FutureSkew = d
		}
	}
	if v := os.Getenv("FAULTLINE_MAX_TEXT_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxTextBytes = n
		}
	}
	if v := os.Getenv("FAULTLINE_HISTORY_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.History.Size = n
		}
	}
	if v := os.Getenv("FAULTLINE_HISTORY_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.History.Retention = d
		}
	}
	if v := os.Getenv("FAULTLINE_TREND_BUCKET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Trends.Bucket = d
		}
	}
	if v := os.Getenv("FAULTLINE_TREND_MIN_BUCKETS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Trends.MinBuckets = n
		}
	}
	if v := os.Getenv("FAULTLINE_TREND_MIN_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Trends.MinCount = n
		}
	}
	if v := os.Getenv("FAULTLINE_TREND_STABLE_BAND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trends.StableBand = f
		}
	}
	if v := os.Getenv("FAULTLINE_PATTERNS_PATH"); v != "" {
		cfg.Patterns.Path = v
	}
	if v := os.Getenv("FAULTLINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FAULTLINE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}
