// Package config loads the application configuration from flags,
// environment variables (HEATGUARD_ prefix), and an optional JSON/YAML
// file, with spf13/viper + spf13/pflag precedence
// (flags > env > file > defaults).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every tunable the service recognizes.
type Config struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log-level"`
	MetricsPath string `mapstructure:"metrics-path"`
	TLSCertFile string `mapstructure:"tls-cert-file"`
	TLSKeyFile  string `mapstructure:"tls-key-file"`

	SecretKey    string `mapstructure:"secret-key"`
	APIKeyHeader string `mapstructure:"api-key-header"`
	CORSOrigins  string `mapstructure:"cors-origins"`

	RateLimitPerMinute      int           `mapstructure:"rate-limit-per-minute"`
	GlobalRateLimitPerSec   int           `mapstructure:"global-rate-limit-per-second"`
	BatchSizeLimit          int           `mapstructure:"batch-size-limit"`
	MaxConcurrentPrediction int           `mapstructure:"max-concurrent-predictions"`
	PredictionTimeout       time.Duration `mapstructure:"prediction-timeout"`

	ModelDir         string  `mapstructure:"model-dir"`
	ModelCacheSize   int     `mapstructure:"model-cache-size"`
	ConservativeBias float64 `mapstructure:"conservative-bias"`
	EnableScaling    bool    `mapstructure:"enable-scaling"`

	HeatIndexThresholdWarning float64 `mapstructure:"heat-index-threshold-warning"`
	HeatIndexThresholdDanger  float64 `mapstructure:"heat-index-threshold-danger"`

	EnableOSHALogging bool   `mapstructure:"enable-osha-logging"`
	OSHALogFile       string `mapstructure:"osha-log-file"`

	SharedStoreURL string `mapstructure:"shared-store-url"`

	BatchMaxConcurrentJobs  int           `mapstructure:"batch-max-concurrent-jobs"`
	BatchQueueHighWaterMark int           `mapstructure:"batch-queue-high-water-mark"`
	BatchRetentionTTL       time.Duration `mapstructure:"batch-retention-ttl"`
	BatchSweepInterval      time.Duration `mapstructure:"batch-sweep-interval"`
	BatchMaxCompletedJobs   int           `mapstructure:"batch-max-completed-jobs"`
}

// New loads configuration: pflag defines the flags, viper binds them
// plus HEATGUARD_-prefixed env vars plus an optional config file, and
// the result is unmarshalled and validated.
func New() (*Config, error) {
	v := viper.New()

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("environment", "development")
	v.SetDefault("log-level", "info")
	v.SetDefault("metrics-path", "/metrics")
	v.SetDefault("tls-cert-file", "")
	v.SetDefault("tls-key-file", "")
	v.SetDefault("secret-key", "")
	v.SetDefault("api-key-header", "X-API-Key")
	v.SetDefault("cors-origins", "*")
	v.SetDefault("rate-limit-per-minute", 60)
	v.SetDefault("global-rate-limit-per-second", 500)
	v.SetDefault("batch-size-limit", 1000)
	v.SetDefault("max-concurrent-predictions", 100)
	v.SetDefault("prediction-timeout", 30*time.Second)
	v.SetDefault("model-dir", "./models")
	v.SetDefault("model-cache-size", 5)
	v.SetDefault("conservative-bias", 0.15)
	v.SetDefault("enable-scaling", true)
	v.SetDefault("heat-index-threshold-warning", 80.0)
	v.SetDefault("heat-index-threshold-danger", 90.0)
	v.SetDefault("enable-osha-logging", true)
	v.SetDefault("osha-log-file", "./data/compliance.ndjson")
	v.SetDefault("shared-store-url", "")
	v.SetDefault("batch-max-concurrent-jobs", 4)
	v.SetDefault("batch-queue-high-water-mark", 100)
	v.SetDefault("batch-retention-ttl", 24*time.Hour)
	v.SetDefault("batch-sweep-interval", time.Hour)
	v.SetDefault("batch-max-completed-jobs", 100)

	pflag.String("host", "0.0.0.0", "Listening host")
	pflag.Int("port", 8080, "Listening port")
	pflag.String("environment", "development", "Deployment environment (development, staging, production)")
	pflag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	pflag.String("metrics-path", "/metrics", "Metrics endpoint path")
	pflag.String("tls-cert-file", "", "Path to TLS certificate file")
	pflag.String("tls-key-file", "", "Path to TLS key file")
	pflag.String("secret-key", "", "Shared secret for JWT credential verification")
	pflag.String("api-key-header", "X-API-Key", "Header name carrying the static API key")
	pflag.String("cors-origins", "*", "Comma-separated list of allowed CORS origins")
	pflag.Int("rate-limit-per-minute", 60, "Per-credential requests allowed per rolling minute")
	pflag.Int("global-rate-limit-per-second", 500, "Process-wide inbound request ceiling per second")
	pflag.Int("batch-size-limit", 1000, "Maximum records accepted in one synchronous batch request")
	pflag.Int("max-concurrent-predictions", 100, "Worker pool size for parallel batch scoring")
	pflag.Duration("prediction-timeout", 30*time.Second, "Per-item model inference timeout")
	pflag.String("model-dir", "./models", "Directory containing model artifacts")
	pflag.Int("model-cache-size", 5, "Maximum model artifacts held in the in-memory host cache")
	pflag.Float64("conservative-bias", 0.15, "Upward bias applied to the risk score when conservative mode is on")
	pflag.Bool("enable-scaling", true, "Min-max normalize feature vectors to the schema ranges before inference")
	pflag.Float64("heat-index-threshold-warning", 80.0, "Heat index (F) warning threshold; must be below heat-index-threshold-danger")
	pflag.Float64("heat-index-threshold-danger", 90.0, "Heat index (F) at or above which a prediction requires immediate attention and the journal records a high-risk alert")
	pflag.Bool("enable-osha-logging", true, "Whether the compliance journal writes assessment events")
	pflag.String("osha-log-file", "./data/compliance.ndjson", "Compliance journal file path")
	pflag.String("shared-store-url", "", "redis:// URL for the shared rate-limit store; empty uses in-memory limiting")
	pflag.Int("batch-max-concurrent-jobs", 4, "Batch scheduler concurrency cap")
	pflag.Int("batch-queue-high-water-mark", 100, "Batch scheduler pending+running cap before Submit returns Busy")
	pflag.Duration("batch-retention-ttl", 24*time.Hour, "How long a completed batch job's results are retained")
	pflag.Duration("batch-sweep-interval", time.Hour, "How often the batch retention sweeper runs")
	pflag.Int("batch-max-completed-jobs", 100, "LRU cap on retained completed batch jobs")
	pflag.String("config-file", "", "Path to a JSON/YAML config file. Can also be set with HEATGUARD_CONFIG_FILE.")
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	v.SetEnvPrefix("HEATGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile := v.GetString("config-file"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a Config populated the same way New would with
// no flags, env vars, or config file present; used by tests and by
// components constructed outside the HTTP bootstrap path.
func DefaultConfig() *Config {
	return &Config{
		Host:                      "0.0.0.0",
		Port:                      8080,
		Environment:               "development",
		LogLevel:                  "info",
		MetricsPath:               "/metrics",
		APIKeyHeader:              "X-API-Key",
		CORSOrigins:               "*",
		RateLimitPerMinute:        60,
		GlobalRateLimitPerSec:     500,
		BatchSizeLimit:            1000,
		MaxConcurrentPrediction:   100,
		PredictionTimeout:         30 * time.Second,
		ModelDir:                  "./models",
		ModelCacheSize:            5,
		ConservativeBias:          0.15,
		EnableScaling:             true,
		HeatIndexThresholdWarning: 80.0,
		HeatIndexThresholdDanger:  90.0,
		EnableOSHALogging:         true,
		OSHALogFile:               "./data/compliance.ndjson",
		BatchMaxConcurrentJobs:    4,
		BatchQueueHighWaterMark:   100,
		BatchRetentionTTL:         24 * time.Hour,
		BatchSweepInterval:        time.Hour,
		BatchMaxCompletedJobs:     100,
	}
}

// Validate checks the configuration for internally-consistent values.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	isValidLogLevel := false
	for _, level := range validLogLevels {
		if c.LogLevel == level {
			isValidLogLevel = true
			break
		}
	}
	if !isValidLogLevel {
		return fmt.Errorf("invalid log-level: %s, must be one of %v", c.LogLevel, validLogLevels)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d, must be between 1 and 65535", c.Port)
	}

	if c.ConservativeBias < 0 || c.ConservativeBias > 1 {
		return fmt.Errorf("invalid conservative-bias: %f, must be between 0 and 1", c.ConservativeBias)
	}

	if c.HeatIndexThresholdDanger <= c.HeatIndexThresholdWarning {
		return fmt.Errorf("heat-index-threshold-danger (%f) must exceed heat-index-threshold-warning (%f)", c.HeatIndexThresholdDanger, c.HeatIndexThresholdWarning)
	}

	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("invalid rate-limit-per-minute: %d, must be positive", c.RateLimitPerMinute)
	}

	if c.BatchSizeLimit <= 0 {
		return fmt.Errorf("invalid batch-size-limit: %d, must be positive", c.BatchSizeLimit)
	}

	return nil
}

// CORSOriginList splits CORSOrigins on commas, trimming whitespace.
func (c *Config) CORSOriginList() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
