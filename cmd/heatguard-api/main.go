// Command heatguard-api is the process bootstrap: parse configuration,
// initialize the logger and metrics registry, construct the application
// context (model host, admission layer, scoring pipeline, batch
// scheduler, compliance journal, health aggregator), and serve the HTTP
// API until an interrupt or SIGTERM triggers graceful shutdown.
//
// Background tasks (batch scheduler worker pool, retention sweeper,
// compliance journal writer) are started by appctx.New and stopped by
// app.Close, which server.Start invokes in reverse dependency order
// after the HTTP listener has drained.
package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/heatguard/risk-scoring-api/config"
	"github.com/heatguard/risk-scoring-api/internal/appctx"
	"github.com/heatguard/risk-scoring-api/logger"
	"github.com/heatguard/risk-scoring-api/metrics"
	"github.com/heatguard/risk-scoring-api/server"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.InitLogger(cfg.LogLevel, os.Stdout)
	zlog := log.Logger

	zlog.Info().
		Str("environment", cfg.Environment).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Msg("starting heatguard-api")

	app, err := appctx.New(cfg, zlog)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to construct application context")
	}

	reg := metrics.InitMetrics()

	srv := server.New(cfg, app, os.Stdout, reg)
	if err := srv.Start(); err != nil {
		zlog.Fatal().Err(err).Msg("server exited with error")
	}
}
