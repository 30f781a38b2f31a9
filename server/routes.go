package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/heatguard/risk-scoring-api/config"
	"github.com/heatguard/risk-scoring-api/internal/appctx"
	"github.com/heatguard/risk-scoring-api/metrics"
)

// setupRoutes configures the full API surface.
func setupRoutes(router *chi.Mux, cfg *config.Config, app *appctx.App, reg *prometheus.Registry) {
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOriginList(),
		AllowedMethods:   []string{"GET", "POST", "DELETE"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := &handlers{app: app, validate: validator.New()}

	router.Get("/liveness", h.liveness)
	router.Get("/readiness", h.readiness)
	router.Get("/health/simple", h.healthSimple)
	router.Get("/health", h.healthDetailed)
	router.Handle(cfg.MetricsPath, metrics.MetricsHandler(reg))

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(AdmissionMiddleware(app.Admission, cfg.APIKeyHeader))

		r.Post("/predict", h.predict)
		r.Post("/predict_batch", h.predictBatch)
		r.Post("/predict_batch_async", h.predictBatchAsync)
		r.Get("/batch_status/{job_id}", h.batchStatus)
		r.Get("/batch_results/{job_id}", h.batchResults)
		r.Delete("/batch_job/{job_id}", h.cancelBatchJob)
		r.Get("/batch_jobs", h.listBatchJobs)
		r.Get("/generate_random", h.generateRandom)
		r.Get("/generate_ramp_up", h.generateRampUp)
		r.Get("/generate_ramp_down", h.generateRampDown)
	})
}
