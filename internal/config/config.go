package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the variable consulted when Load is called without a path.
const EnvConfigPath = "ECONOMETRICS_CONFIG"

// Config captures every setting needed to run analyses and serve them over gRPC.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cache    CacheConfig    `yaml:"cache"`
	Input    InputConfig    `yaml:"input"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Rules    RulesConfig    `yaml:"rules"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address" default:":50051" validate:"required"`
	MetricsAddress  string        `yaml:"metricsAddress" default:":2112"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout" default:"10s" validate:"gte=0"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls caching of finished reports. Backend selects Redis or a bounded
// in-process map holding at most MaxEntries reports.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Backend      string        `yaml:"backend" default:"redis" validate:"oneof=redis memory"`
	MaxEntries   int           `yaml:"maxEntries" default:"256" validate:"gte=0"`
	Addr         string        `yaml:"addr" default:"localhost:6379" validate:"required_if=Enabled true Backend redis"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db" validate:"gte=0"`
	DialTimeout  time.Duration `yaml:"dialTimeout" default:"2s"`
	ReadTimeout  time.Duration `yaml:"readTimeout" default:"500ms"`
	WriteTimeout time.Duration `yaml:"writeTimeout" default:"500ms"`
	MaxRetries   int           `yaml:"maxRetries" default:"2" validate:"gte=0"`
	TLS          bool          `yaml:"tls"`
	KeyPrefix    string        `yaml:"keyPrefix" default:"econometrics:report:"`
	ReportTTL    time.Duration `yaml:"reportTTL" default:"1h" validate:"gte=0"`
}

// InputConfig names the series and bounds the analysed window. Paths are optional
// defaults for the analyze command.
type InputConfig struct {
	ExplanatoryName string `yaml:"explanatoryName" default:"CO2 (ppm)"`
	DependentName   string `yaml:"dependentName" default:"Dow Jones Industrial Average"`
	ExplanatoryPath string `yaml:"explanatoryPath"`
	DependentPath   string `yaml:"dependentPath"`
	// CSV header names; JSON CO2 documents ignore them.
	DateColumn        string `yaml:"dateColumn" default:"date" validate:"required"`
	ExplanatoryColumn string `yaml:"explanatoryColumn" default:"value" validate:"required"`
	DependentColumn   string `yaml:"dependentColumn" default:"value" validate:"required"`
	// StartDate drops observations before this calendar day (YYYY-MM-DD). Empty keeps everything.
	StartDate string `yaml:"startDate" default:"2015-01-01" validate:"omitempty,datetime=2006-01-02"`
}

// AnalysisConfig configures the diagnostic pipeline.
type AnalysisConfig struct {
	SignificanceLevel  float64            `yaml:"significanceLevel" default:"0.05" validate:"gt=0,lt=1"`
	BreuschGodfreyLags int                `yaml:"breuschGodfreyLags" default:"1" validate:"gte=1"`
	Normality          NormalityConfig    `yaml:"normality"`
	Stationarity       StationarityConfig `yaml:"stationarity"`
	DurbinWatson       DurbinWatsonConfig `yaml:"durbinWatson"`
	Correction         CorrectionConfig   `yaml:"correction"`
	// Strict aborts the run when an assumption or residual test cannot be computed
	// instead of recording it as not applicable.
	Strict bool `yaml:"strict"`
}

type NormalityConfig struct {
	SampleSize int   `yaml:"sampleSize" default:"5000" validate:"gte=3,lte=5000"`
	Seed       int64 `yaml:"seed" default:"42"`
}

type StationarityConfig struct {
	Autolag         string `yaml:"autolag" default:"aic" validate:"oneof=aic bic fixed"`
	MaxLag          int    `yaml:"maxLag" validate:"gte=0"`
	MinObservations int    `yaml:"minObservations" default:"12" validate:"gte=4"`
}

type DurbinWatsonConfig struct {
	Lower float64 `yaml:"lower" default:"1.5" validate:"gte=0,lte=4"`
	Upper float64 `yaml:"upper" default:"2.5" validate:"gte=0,lte=4,gtefield=Lower"`
}

type CorrectionConfig struct {
	// VarianceFloor is the fraction of the mean squared residual below which fitted
	// variances are clamped before inversion.
	VarianceFloor float64 `yaml:"varianceFloor" default:"0.01" validate:"gt=0,lte=1"`
}

// RulesConfig points at an optional interpretation rule pack.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// Load initialises Config from defaults, an optional YAML file and environment overrides,
// then validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config populated only from struct-tag defaults.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate reports every invalid field in one error.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ECONOMETRICS_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("ECONOMETRICS_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("ECONOMETRICS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ECONOMETRICS_LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}
	if v := os.Getenv("ECONOMETRICS_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("ECONOMETRICS_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = truthy(v)
	}
	if v := os.Getenv("ECONOMETRICS_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("ECONOMETRICS_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("ECONOMETRICS_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("ECONOMETRICS_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("ECONOMETRICS_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("ECONOMETRICS_CACHE_TLS"); v != "" {
		cfg.Cache.TLS = truthy(v)
	}
	if v := os.Getenv("ECONOMETRICS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ReportTTL = d
		}
	}
	if v := os.Getenv("ECONOMETRICS_START_DATE"); v != "" {
		cfg.Input.StartDate = v
	}
	if v := os.Getenv("ECONOMETRICS_SIGNIFICANCE_LEVEL"); v != "" {
		if alpha, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.SignificanceLevel = alpha
		}
	}
	if v := os.Getenv("ECONOMETRICS_BG_LAGS"); v != "" {
		if lags, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.BreuschGodfreyLags = lags
		}
	}
	if v := os.Getenv("ECONOMETRICS_AUTOLAG"); v != "" {
		cfg.Analysis.Stationarity.Autolag = strings.ToLower(v)
	}
	if v := os.Getenv("ECONOMETRICS_STRICT"); v != "" {
		cfg.Analysis.Strict = truthy(v)
	}
}

func truthy(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
