// Package config reads SkyPulse settings from SKYPULSE_* environment
// variables (and an optional config file) into a typed Config.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StorePostgres = "postgres"
)

// Launchers decide where orchestrations run.
const (
	LauncherInProcess = "inprocess"
	LauncherAsynq     = "asynq"
)

// Trace exporters.
const (
	TraceExporterNone   = "none"
	TraceExporterStdout = "stdout"
	TraceExporterOTLP   = "otlp"
)

// Config represents runtime configuration for the API, worker, and CLI.
type Config struct {
	Address string
	LogMode string

	StoreDriver  string
	StoreLatency time.Duration
	BadgerPath   string
	DatabaseURL  string

	Workers      int
	PollInterval time.Duration
	PollGrace    time.Duration

	Launcher         string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	QueueConcurrency int

	GeminiAPIKey   string
	GeminiModel    string
	GeminiEndpoint string
	SummaryRPS     float64

	EnrichMinDelay time.Duration
	EnrichMaxDelay time.Duration

	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3Region     string
	S3UseSSL     bool
	ExportBucket string

	SigningSecret []byte
	SignedURLTTL  time.Duration

	TraceExporter    string
	OTLPEndpoint     string
	OTLPInsecure     bool
	TraceSampleRatio float64
}

const (
	defaultAddress       = ":8080"
	defaultLogMode       = "development"
	defaultStoreLatency  = 50 * time.Millisecond
	defaultBadgerPath    = "data/skypulse"
	defaultWorkers       = 1
	defaultPollInterval  = time.Second
	defaultPollGrace     = time.Second
	defaultRedisAddr     = "localhost:6379"
	defaultQueueWorkers  = 4
	defaultSummaryRPS    = 1.0
	defaultEnrichMin     = 500 * time.Millisecond
	defaultEnrichMax     = 2 * time.Second
	defaultS3Region      = "us-east-1"
	defaultExportBucket  = "skypulse-exports"
	defaultSignedTTL     = 15 * time.Minute
	defaultSampleRatio   = 1.0
	configFileEnvVarName = "SKYPULSE_CONFIG_FILE"
)

// Load reads configuration from the environment, falling back to defaults. A
// file named by SKYPULSE_CONFIG_FILE is read first when set; environment
// variables win over it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SKYPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.BindEnv("config_file", configFileEnvVarName); err != nil {
		return nil, fmt.Errorf("bind config file env: %w", err)
	}
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	// API_KEY is the name the browser client reads.
	if err := v.BindEnv("gemini_api_key", "SKYPULSE_GEMINI_API_KEY", "GEMINI_API_KEY", "API_KEY"); err != nil {
		return nil, fmt.Errorf("bind api key env: %w", err)
	}

	cfg := &Config{
		Address:          v.GetString("address"),
		LogMode:          v.GetString("log_mode"),
		StoreDriver:      strings.ToLower(v.GetString("store_driver")),
		StoreLatency:     v.GetDuration("store_latency"),
		BadgerPath:       v.GetString("badger_path"),
		DatabaseURL:      v.GetString("database_url"),
		Workers:          v.GetInt("workers"),
		PollInterval:     v.GetDuration("poll_interval"),
		PollGrace:        v.GetDuration("poll_grace"),
		Launcher:         strings.ToLower(v.GetString("launcher")),
		RedisAddr:        v.GetString("redis_addr"),
		RedisPassword:    v.GetString("redis_password"),
		RedisDB:          v.GetInt("redis_db"),
		QueueConcurrency: v.GetInt("queue_concurrency"),
		GeminiAPIKey:     v.GetString("gemini_api_key"),
		GeminiModel:      v.GetString("gemini_model"),
		GeminiEndpoint:   v.GetString("gemini_endpoint"),
		SummaryRPS:       v.GetFloat64("summary_rps"),
		EnrichMinDelay:   v.GetDuration("enrich_min_delay"),
		EnrichMaxDelay:   v.GetDuration("enrich_max_delay"),
		S3Endpoint:       v.GetString("s3_endpoint"),
		S3AccessKey:      v.GetString("s3_access_key"),
		S3SecretKey:      v.GetString("s3_secret_key"),
		S3Region:         v.GetString("s3_region"),
		S3UseSSL:         v.GetBool("s3_use_ssl"),
		ExportBucket:     v.GetString("export_bucket"),
		SignedURLTTL:     v.GetDuration("signed_url_ttl"),
		TraceExporter:    strings.ToLower(v.GetString("trace_exporter")),
		OTLPEndpoint:     v.GetString("otlp_endpoint"),
		OTLPInsecure:     v.GetBool("otlp_insecure"),
		TraceSampleRatio: v.GetFloat64("trace_sample_ratio"),
	}
	if secret := v.GetString("signing_secret"); secret != "" {
		cfg.SigningSecret = []byte(secret)
	} else {
		cfg.SigningSecret = randomSecret()
	}
	normalize(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("address", defaultAddress)
	v.SetDefault("log_mode", defaultLogMode)
	v.SetDefault("store_driver", StoreMemory)
	v.SetDefault("store_latency", defaultStoreLatency)
	v.SetDefault("badger_path", defaultBadgerPath)
	v.SetDefault("database_url", "")
	v.SetDefault("workers", defaultWorkers)
	v.SetDefault("poll_interval", defaultPollInterval)
	v.SetDefault("poll_grace", defaultPollGrace)
	v.SetDefault("launcher", LauncherInProcess)
	v.SetDefault("redis_addr", defaultRedisAddr)
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("queue_concurrency", defaultQueueWorkers)
	v.SetDefault("gemini_model", "")
	v.SetDefault("gemini_endpoint", "")
	v.SetDefault("summary_rps", defaultSummaryRPS)
	v.SetDefault("enrich_min_delay", defaultEnrichMin)
	v.SetDefault("enrich_max_delay", defaultEnrichMax)
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("s3_region", defaultS3Region)
	v.SetDefault("s3_use_ssl", false)
	v.SetDefault("export_bucket", defaultExportBucket)
	v.SetDefault("signing_secret", "")
	v.SetDefault("signed_url_ttl", defaultSignedTTL)
	v.SetDefault("trace_exporter", TraceExporterNone)
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("otlp_insecure", false)
	v.SetDefault("trace_sample_ratio", defaultSampleRatio)
}

// normalize replaces out-of-range values with defaults.
func normalize(cfg *Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueConcurrency <= 0 {
		cfg.QueueConcurrency = defaultQueueWorkers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollGrace < 0 {
		cfg.PollGrace = 0
	}
	if cfg.StoreLatency < 0 {
		cfg.StoreLatency = 0
	}
	if cfg.SummaryRPS <= 0 {
		cfg.SummaryRPS = defaultSummaryRPS
	}
	if cfg.EnrichMinDelay < 0 {
		cfg.EnrichMinDelay = 0
	}
	if cfg.EnrichMaxDelay < cfg.EnrichMinDelay {
		cfg.EnrichMaxDelay = cfg.EnrichMinDelay
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedTTL
	}
	if cfg.TraceExporter == "" {
		cfg.TraceExporter = TraceExporterNone
	}
	if cfg.TraceSampleRatio < 0 || cfg.TraceSampleRatio > 1 {
		cfg.TraceSampleRatio = defaultSampleRatio
	}
}

// Validate rejects combinations the binaries cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case StoreMemory, StoreBadger:
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("SKYPULSE_DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.StoreDriver))
	}
	switch c.Launcher {
	case LauncherInProcess:
	case LauncherAsynq:
		// Memory and badger stores are private to one process, so the worker
		// would never see the sessions the API wrote.
		if c.StoreDriver != StorePostgres {
			errs = append(errs, errors.New("the asynq launcher requires the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown launcher %q", c.Launcher))
	}
	switch c.TraceExporter {
	case "", TraceExporterNone, TraceExporterStdout, TraceExporterOTLP:
	default:
		errs = append(errs, fmt.Errorf("unknown trace exporter %q", c.TraceExporter))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ExportsEnabled reports whether an object store is configured for exports.
func (c *Config) ExportsEnabled() bool {
	return c.S3Endpoint != ""
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("read random secret: %v", err))
	}
	return buf
}
