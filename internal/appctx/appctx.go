// Package appctx constructs every long-lived singleton once at process
// bootstrap (model host, admission layer, scoring pipeline, batch
// scheduler, compliance journal, health aggregator, fixture generator)
// and hands them to the HTTP layer as one small value. Nothing in here
// is global state; two instances can coexist in tests.
package appctx

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/heatguard/risk-scoring-api/config"
	"github.com/heatguard/risk-scoring-api/internal/admission"
	"github.com/heatguard/risk-scoring-api/internal/batch"
	"github.com/heatguard/risk-scoring-api/internal/compliance"
	"github.com/heatguard/risk-scoring-api/internal/fixtures"
	"github.com/heatguard/risk-scoring-api/internal/health"
	"github.com/heatguard/risk-scoring-api/internal/model"
	"github.com/heatguard/risk-scoring-api/internal/scoringsvc"
)

// App bundles every component an HTTP handler needs.
type App struct {
	Config     *config.Config
	Host       *model.Host
	Admission  *admission.Layer
	Pipeline   *scoringsvc.Pipeline
	Scheduler  *batch.Scheduler
	Journal    *compliance.Journal
	Health     *health.Aggregator
	Fixtures   fixtures.Generator
	ModelName  string
}

// New builds an App from cfg, wiring in a shared Redis client when
// SharedStoreURL is configured and logging fallback events through log.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	const defaultModel = "default"

	host := model.NewHost(24*time.Hour, cfg.ModelCacheSize, nil)
	if _, err := host.Load(defaultModel); err != nil {
		return nil, fmt.Errorf("failed to load default model artifact: %w", err)
	}

	journal, err := compliance.Open(compliance.Config{
		Enabled:          cfg.EnableOSHALogging,
		Path:             cfg.OSHALogFile,
		DangerHeatIndexF: cfg.HeatIndexThresholdDanger,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open compliance journal: %w", err)
	}

	pipeline := scoringsvc.New(host, journal, scoringsvc.Config{
		ModelName:         defaultModel,
		MaxConcurrency:    cfg.MaxConcurrentPrediction,
		BatchSizeLimit:    cfg.BatchSizeLimit,
		PredictionTimeout: cfg.PredictionTimeout,
		ConservativeBias:  cfg.ConservativeBias,
		DangerHeatIndexF:  cfg.HeatIndexThresholdDanger,
		EnableScaling:     cfg.EnableScaling,
	})

	scheduler := batch.New(pipeline, batch.Config{
		MaxBatchSize:       cfg.BatchSizeLimit * 10,
		MaxConcurrentJobs:  cfg.BatchMaxConcurrentJobs,
		QueueHighWaterMark: cfg.BatchQueueHighWaterMark,
		RetentionTTL:       cfg.BatchRetentionTTL,
		SweepInterval:      cfg.BatchSweepInterval,
		MaxCompletedJobs:   cfg.BatchMaxCompletedJobs,
	})

	var redisClient *redis.Client
	if cfg.SharedStoreURL != "" {
		opts, err := redis.ParseURL(cfg.SharedStoreURL)
		if err != nil {
			return nil, fmt.Errorf("invalid shared-store-url: %w", err)
		}
		redisClient = redis.NewClient(opts)
	}

	admissionLayer := admission.New(defaultCredentialTable(), admission.Config{
		CacheTTL:               5 * time.Minute,
		CacheCapacity:          1000,
		DefaultRateLimitPerMin: cfg.RateLimitPerMinute,
		RedisClient:            redisClient,
		SecretKey:              cfg.SecretKey,
	})
	admissionLayer.OnFallback(func(err error) {
		log.Warn().Err(err).Msg("shared rate-limit store unavailable, falling back to in-memory limiter")
	})

	healthAggregator := health.New(host, pipeline, scheduler, journal, defaultModel, "v1")

	return &App{
		Config:    cfg,
		Host:      host,
		Admission: admissionLayer,
		Pipeline:  pipeline,
		Scheduler: scheduler,
		Journal:   journal,
		Health:    healthAggregator,
		Fixtures:  fixtures.New(0),
		ModelName: defaultModel,
	}, nil
}

// defaultCredentialTable seeds the static credential set, keyed by the
// API-key header value presented
// by operators. New always uses this table; none of the scoring core
// depends on where the table came from.
func defaultCredentialTable() *admission.Table {
	return admission.NewTable([]*admission.Credential{
		{
			Key:         "dev-local-key",
			DisplayName: "local development",
			Permissions: map[admission.Permission]bool{
				admission.PermissionRead:  true,
				admission.PermissionWrite: true,
				admission.PermissionAdmin: true,
			},
			Active: true,
		},
	})
}

// Close releases every component holding a background goroutine or open
// file handle, in reverse dependency order.
func (a *App) Close() {
	a.Scheduler.Stop()
	a.Journal.Close()
}
