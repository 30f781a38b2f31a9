// Package server implements the HTTP surface of the risk scoring API on
// top of go-chi/chi: zerolog request logging via hlog, Prometheus
// metrics middleware, admission, and graceful shutdown.
package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/heatguard/risk-scoring-api/internal/admission"
	"github.com/heatguard/risk-scoring-api/internal/appctx"
	"github.com/heatguard/risk-scoring-api/internal/apperrors"
	"github.com/heatguard/risk-scoring-api/internal/batch"
	"github.com/heatguard/risk-scoring-api/internal/reqctx"
	"github.com/heatguard/risk-scoring-api/internal/scoringsvc"
	"github.com/heatguard/risk-scoring-api/internal/validation"
	"github.com/heatguard/risk-scoring-api/metrics"
)

type handlers struct {
	app      *appctx.App
	validate *validator.Validate
}

// checkEnvelope runs struct-tag validation over a decoded request
// envelope; failures surface as ValidationError before any pipeline work.
func (h *handlers) checkEnvelope(req interface{}) error {
	if err := h.validate.Struct(req); err != nil {
		return apperrors.Wrap(apperrors.ValidationError, "invalid request envelope", err)
	}
	return nil
}

// requestOptions is the shared options envelope; both flags default to
// true when the caller omits them.
type requestOptions struct {
	UseConservative *bool `json:"use_conservative"`
	LogCompliance   *bool `json:"log_compliance"`
}

func boolOrTrue(p *bool) bool {
	if p == nil {
		return true
	}
	return *p
}

type predictRequest struct {
	Data    validation.Record `json:"data" validate:"required"`
	Options requestOptions    `json:"options"`
}

func (h *handlers) predict(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, admission.PermissionWrite) {
		return
	}

	var req predictRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.checkEnvelope(&req); err != nil || len(req.Data) == 0 {
		if err == nil {
			err = apperrors.New(apperrors.ValidationError, "request body must contain a data object")
		}
		writeError(w, r, err)
		return
	}

	rc := reqctx.FromContext(r.Context())
	result, err := h.app.Pipeline.ScoreOne(r.Context(), rc.RequestID, req.Data, scoringsvc.ItemOptions{
		UseConservative: boolOrTrue(req.Options.UseConservative),
		LogCompliance:   boolOrTrue(req.Options.LogCompliance),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	metrics.RecordPrediction(string(result.RiskLevel))
	writeJSON(w, http.StatusOK, result)
}

type batchRequest struct {
	Records  []validation.Record `json:"records" validate:"required,min=1"`
	Options  requestOptions      `json:"options"`
	Parallel *bool               `json:"parallel"`
}

func (h *handlers) predictBatch(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, admission.PermissionWrite) {
		return
	}

	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.checkEnvelope(&req); err != nil {
		writeError(w, r, err)
		return
	}

	rc := reqctx.FromContext(r.Context())
	results, summary, err := h.app.Pipeline.ScoreBatch(r.Context(), rc.RequestID, req.Records, scoringsvc.BatchOptions{
		UseConservative: boolOrTrue(req.Options.UseConservative),
		LogCompliance:   boolOrTrue(req.Options.LogCompliance),
		Parallel:        boolOrTrue(req.Parallel),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	for _, res := range results {
		if res.Result != nil {
			metrics.RecordPrediction(string(res.Result.RiskLevel))
		}
	}

	writeJSON(w, http.StatusOK, struct {
		Results []scoringsvc.ItemResult `json:"results"`
		Summary scoringsvc.Summary      `json:"summary"`
	}{Results: results, Summary: summary})
}

type asyncBatchRequest struct {
	Records   []validation.Record `json:"records" validate:"required,min=1"`
	Options   requestOptions      `json:"options"`
	Parallel  *bool               `json:"parallel"`
	Priority  string              `json:"priority" validate:"omitempty,oneof=low normal high"`
	ChunkSize int                 `json:"chunk_size" validate:"omitempty,min=10,max=1000"`
}

func (h *handlers) predictBatchAsync(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, admission.PermissionWrite) {
		return
	}

	var req asyncBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.checkEnvelope(&req); err != nil {
		writeError(w, r, err)
		return
	}

	jobID, err := h.app.Scheduler.Submit(req.Records, batch.ParsePriority(req.Priority), req.ChunkSize, scoringsvc.BatchOptions{
		UseConservative: boolOrTrue(req.Options.UseConservative),
		LogCompliance:   boolOrTrue(req.Options.LogCompliance),
		Parallel:        boolOrTrue(req.Parallel),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, struct {
		JobID     string `json:"job_id"`
		Status    string `json:"status"`
		BatchSize int    `json:"batch_size"`
	}{JobID: jobID, Status: "submitted", BatchSize: len(req.Records)})
}

func (h *handlers) batchStatus(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, admission.PermissionRead) {
		return
	}
	jobID := chi.URLParam(r, "job_id")
	snap, err := h.app.Scheduler.Status(jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) batchResults(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, admission.PermissionRead) {
		return
	}
	jobID := chi.URLParam(r, "job_id")
	results, snap, err := h.app.Scheduler.Results(jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status  batch.Snapshot          `json:"status"`
		Results []scoringsvc.ItemResult `json:"results"`
	}{Status: snap, Results: results})
}

func (h *handlers) cancelBatchJob(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, admission.PermissionWrite) {
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if err := h.app.Scheduler.Cancel(jobID); err != nil {
		writeError(w, r, err)
		return
	}
	metrics.RecordBatchJob("Cancelled")
	writeJSON(w, http.StatusOK, struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}{JobID: jobID, Status: "cancelled"})
}

func (h *handlers) listBatchJobs(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, admission.PermissionRead) {
		return
	}
	jobs := h.app.Scheduler.List()
	if filter := r.URL.Query().Get("status"); filter != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if string(j.State) == filter {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	writeJSON(w, http.StatusOK, struct {
		Jobs []batch.Snapshot `json:"jobs"`
	}{Jobs: jobs})
}

func fixtureCount(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("n"))
	if err != nil || n <= 0 {
		return 10
	}
	if n > 10000 {
		return 10000
	}
	return n
}

func (h *handlers) generateRandom(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, admission.PermissionRead) {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Records []validation.Record `json:"records"`
	}{Records: h.app.Fixtures.Random(fixtureCount(r))})
}

func (h *handlers) generateRampUp(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, admission.PermissionRead) {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Records []validation.Record `json:"records"`
	}{Records: h.app.Fixtures.RampUp(fixtureCount(r))})
}

func (h *handlers) generateRampDown(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, admission.PermissionRead) {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Records []validation.Record `json:"records"`
	}{Records: h.app.Fixtures.RampDown(fixtureCount(r))})
}

func (h *handlers) liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: string(h.app.Health.Liveness())})
}

func (h *handlers) readiness(w http.ResponseWriter, r *http.Request) {
	ready, reason := h.app.Health.Ready()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, struct {
		Ready  bool   `json:"ready"`
		Reason string `json:"reason,omitempty"`
	}{Ready: ready, Reason: reason})
}

func (h *handlers) healthSimple(w http.ResponseWriter, r *http.Request) {
	report := h.app.Health.Detailed()
	status := http.StatusOK
	if report.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, struct {
		Status string `json:"status"`
	}{Status: string(report.Status)})
}

func (h *handlers) healthDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Health.Detailed())
}
