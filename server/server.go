package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/heatguard/risk-scoring-api/config"
	"github.com/heatguard/risk-scoring-api/internal/appctx"
	"github.com/heatguard/risk-scoring-api/metrics"
)

// Server holds the HTTP server and its configuration.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	config     *config.Config
	app        *appctx.App
}

// New creates a new HTTP server wired to app.
func New(cfg *config.Config, app *appctx.App, logWriter io.Writer, reg *prometheus.Registry) *Server {
	r := chi.NewRouter()

	if logWriter == nil {
		logWriter = os.Stdout
	}
	logger := zerolog.New(logWriter).With().Timestamp().Caller().Logger()

	globalLimiter := rate.NewLimiter(rate.Limit(cfg.GlobalRateLimitPerSec), cfg.GlobalRateLimitPerSec*2)

	r.Use(
		hlog.NewHandler(logger),
		metrics.HTTPMetricsMiddleware,
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
		hlog.RemoteAddrHandler("ip"),
		hlog.UserAgentHandler("user_agent"),
		middleware.RequestID,
		CorrelationIDMiddleware,
		GlobalRateLimitMiddleware(globalLimiter),
		middleware.Recoverer,
	)

	setupRoutes(r, cfg, app, reg)

	s := &Server{
		router: r,
		config: cfg,
		app:    app,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      r,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  15 * time.Second,
		},
	}

	return s
}

// Start starts the HTTP server and handles graceful shutdown.
func (s *Server) Start() error {
	log.Info().Msgf("Starting server on %s:%d", s.config.Host, s.config.Port)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		var err error
		if s.config.TLSCertFile != "" && s.config.TLSKeyFile != "" {
			log.Info().Msg("TLS enabled")
			err = s.httpServer.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			log.Info().Msg("TLS disabled")
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-stop

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	s.app.Close()

	log.Info().Msg("Server gracefully stopped.")
	return nil
}
