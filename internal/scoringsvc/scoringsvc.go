// Package scoringsvc orchestrates the full scoring pipeline (validate,
// preprocess, predict, score, compliance-emit) for a single WorkerSample
// or a batch.
package scoringsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/heatguard/risk-scoring-api/internal/apperrors"
	"github.com/heatguard/risk-scoring-api/internal/compliance"
	"github.com/heatguard/risk-scoring-api/internal/model"
	"github.com/heatguard/risk-scoring-api/internal/preprocess"
	"github.com/heatguard/risk-scoring-api/internal/scoring"
	"github.com/heatguard/risk-scoring-api/internal/validation"
)

// Config controls one Pipeline instance.
type Config struct {
	ModelName         string
	MaxConcurrency    int
	BatchSizeLimit    int
	PredictionTimeout time.Duration
	ConservativeBias  float64 // 0 means scoring.DefaultConservativeBias
	DangerHeatIndexF  float64 // 0 means scoring.DangerHeatIndexF
	EnableScaling     bool    // min-max normalize feature vectors before inference
}

func (c Config) withDefaults() Config {
	if c.ModelName == "" {
		c.ModelName = "default"
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 100
	}
	if c.BatchSizeLimit <= 0 {
		c.BatchSizeLimit = 1000
	}
	if c.PredictionTimeout <= 0 {
		c.PredictionTimeout = 30 * time.Second
	}
	return c
}

// Pipeline runs the scoring stages end to end and owns their bounds.
type Pipeline struct {
	host    *model.Host
	journal *compliance.Journal
	cfg     Config

	served             int64
	validationFailures int64
}

// New builds a Pipeline. journal may be a disabled Journal (Open with
// Config.Enabled=false); its Emit* calls are then no-ops.
func New(host *model.Host, journal *compliance.Journal, cfg Config) *Pipeline {
	return &Pipeline{host: host, journal: journal, cfg: cfg.withDefaults()}
}

// deadlineCheck reports the request deadline expiring between pipeline
// stages as a timeout the edge maps to Internal.
func deadlineCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.Internal, "prediction deadline exceeded", err)
	}
	return nil
}

// Served reports how many samples this pipeline has scored successfully
// since construction.
func (p *Pipeline) Served() int64 {
	return atomic.LoadInt64(&p.served)
}

// ValidationFailures reports how many submitted samples were rejected by
// the validator since construction.
func (p *Pipeline) ValidationFailures() int64 {
	return atomic.LoadInt64(&p.validationFailures)
}

// ItemOptions controls a single scoring call.
type ItemOptions struct {
	UseConservative bool
	LogCompliance   bool
}

// ScoreOne runs one WorkerSample through the full pipeline: validate,
// preprocess, model inference, score, then (if requested) an
// asynchronous compliance emission that never blocks the response.
func (p *Pipeline) ScoreOne(ctx context.Context, requestID string, rec validation.Record, opts ItemOptions) (*scoring.Result, error) {
	clean, err := validation.Validate(rec)
	if err != nil {
		atomic.AddInt64(&p.validationFailures, 1)
		return nil, err
	}
	if err := deadlineCheck(ctx); err != nil {
		return nil, err
	}

	vec := preprocess.Process(clean, preprocess.Options{Normalize: p.cfg.EnableScaling})

	predictCtx, cancel := context.WithTimeout(ctx, p.cfg.PredictionTimeout)
	defer cancel()

	classIdx, probs, err := p.host.Predict(predictCtx, p.cfg.ModelName, vec.Values)
	if err != nil {
		return nil, err
	}
	if err := deadlineCheck(ctx); err != nil {
		return nil, err
	}

	result, err := scoring.Score(requestID, clean, vec, classIdx, probs, scoring.Options{
		UseConservative:  opts.UseConservative,
		ConservativeBias: p.cfg.ConservativeBias,
		DangerHeatIndexF: p.cfg.DangerHeatIndexF,
	})
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&p.served, 1)

	if opts.LogCompliance {
		go p.journal.EmitAssessment(requestID, result)
	}

	return result, nil
}

// ItemResult pairs a batch index with either a successful Result or an
// error, preserving the index so per-item failures never disturb input
// ordering.
type ItemResult struct {
	Index  int            `json:"index"`
	Result *scoring.Result `json:"result,omitempty"`
	Err    error          `json:"-"`
}

// ErrorMessage exposes Err's text for JSON responses without marshalling
// the error interface itself.
func (r ItemResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// MarshalJSON renders the item as index/result on success or
// index/error on failure.
func (r ItemResult) MarshalJSON() ([]byte, error) {
	type wire struct {
		Index  int             `json:"index"`
		Result *scoring.Result `json:"result,omitempty"`
		Error  string          `json:"error,omitempty"`
	}
	return json.Marshal(wire{Index: r.Index, Result: r.Result, Error: r.ErrorMessage()})
}

// BatchOptions controls a ScoreBatch call.
type BatchOptions struct {
	UseConservative bool
	LogCompliance   bool
	Parallel        bool
}

// Summary is the batch-level aggregate attached to every batch response.
type Summary struct {
	Total            int            `json:"total"`
	Succeeded        int            `json:"succeeded"`
	Failed           int            `json:"failed"`
	CountsByLevel    map[string]int `json:"counts_by_level"`
	MinScore         float64        `json:"min_score"`
	MeanScore        float64        `json:"mean_score"`
	MedianScore      float64        `json:"median_score"`
	MaxScore         float64        `json:"max_score"`
	HighRiskCount    int            `json:"high_risk_count"`
	ProcessingTimeMs float64        `json:"processing_time_ms"`
}

// ScoreBatch validates the whole batch once, then scores every item
// either sequentially or on a bounded worker pool, preserving input
// order in the returned slice. A per-item failure never fails the
// batch; it becomes an ItemResult.Err at that index.
func (p *Pipeline) ScoreBatch(ctx context.Context, requestID string, records []validation.Record, opts BatchOptions) ([]ItemResult, Summary, error) {
	start := time.Now()

	batchResult, err := validation.ValidateBatch(records, p.cfg.BatchSizeLimit)
	if err != nil {
		return nil, Summary{}, err
	}

	results := make([]ItemResult, len(records))
	validByIndex := make(map[int]*validation.Clean)
	{
		// ValidateBatch preserves relative order of survivors but
		// drops failed indices; recover the mapping from the original
		// list so ItemResult.Index lines up with the caller's input.
		vi := 0
		for i := range records {
			if _, failed := batchResult.Errors[i]; failed {
				continue
			}
			validByIndex[i] = batchResult.Valid[vi]
			vi++
		}
	}
	for i, msg := range batchResult.Errors {
		results[i] = ItemResult{Index: i, Err: apperrors.New(apperrors.ValidationError, msg)}
	}
	atomic.AddInt64(&p.validationFailures, int64(len(batchResult.Errors)))

	scoreItem := func(i int, clean *validation.Clean) ItemResult {
		vec := preprocess.Process(clean, preprocess.Options{Normalize: p.cfg.EnableScaling})
		predictCtx, cancel := context.WithTimeout(ctx, p.cfg.PredictionTimeout)
		defer cancel()

		classIdx, probs, err := p.host.Predict(predictCtx, p.cfg.ModelName, vec.Values)
		if err != nil {
			return ItemResult{Index: i, Err: err}
		}
		itemRequestID := fmt.Sprintf("%s-%d", requestID, i)
		res, err := scoring.Score(itemRequestID, clean, vec, classIdx, probs, scoring.Options{
			UseConservative:  opts.UseConservative,
			ConservativeBias: p.cfg.ConservativeBias,
			DangerHeatIndexF: p.cfg.DangerHeatIndexF,
		})
		if err != nil {
			return ItemResult{Index: i, Err: err}
		}
		atomic.AddInt64(&p.served, 1)
		return ItemResult{Index: i, Result: res}
	}

	if opts.Parallel && len(validByIndex) > 1 {
		p.scoreParallel(ctx, validByIndex, results, scoreItem)
	} else {
		for i, clean := range validByIndex {
			results[i] = scoreItem(i, clean)
		}
	}

	successes := make([]*scoring.Result, 0, len(validByIndex))
	failedCount := 0
	for _, r := range results {
		if r.Result != nil {
			successes = append(successes, r.Result)
		} else {
			failedCount++
		}
	}

	summary := summarize(successes, failedCount, time.Since(start))

	if opts.LogCompliance {
		for _, res := range successes {
			go p.journal.EmitAssessment(requestID, res)
		}
		go p.journal.EmitBatchSummary(compliance.BatchSummaryInput{
			RequestID:        requestID,
			Results:          successes,
			Failed:           failedCount,
			ProcessingTimeMs: summary.ProcessingTimeMs,
		})
	}

	return results, summary, nil
}

// scoreParallel dispatches items onto a bounded worker pool whose size
// is min(configured concurrency, batch size).
func (p *Pipeline) scoreParallel(ctx context.Context, items map[int]*validation.Clean, results []ItemResult, scoreItem func(int, *validation.Clean) ItemResult) {
	concurrency := p.cfg.MaxConcurrency
	if concurrency > len(items) {
		concurrency = len(items)
	}
	if concurrency < 1 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	done := make(chan struct{}, len(items))
	for i, clean := range items {
		i, clean := i, clean
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = ItemResult{Index: i, Err: apperrors.Wrap(apperrors.Internal, "batch cancelled before item started", err)}
			done <- struct{}{}
			continue
		}
		go func() {
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					results[i] = ItemResult{Index: i, Err: apperrors.New(apperrors.Internal, fmt.Sprintf("panic scoring item %d: %v", i, r))}
				}
				done <- struct{}{}
			}()
			results[i] = scoreItem(i, clean)
		}()
	}
	for range items {
		<-done
	}
}

func summarize(successes []*scoring.Result, failed int, elapsed time.Duration) Summary {
	summary := Summary{
		Total:         len(successes) + failed,
		Succeeded:     len(successes),
		Failed:        failed,
		CountsByLevel: map[string]int{},
	}
	if len(successes) == 0 {
		summary.ProcessingTimeMs = float64(elapsed.Microseconds()) / 1000.0
		return summary
	}

	scores := make([]float64, 0, len(successes))
	sum := 0.0
	for _, r := range successes {
		summary.CountsByLevel[string(r.RiskLevel)]++
		scores = append(scores, r.RiskScore)
		sum += r.RiskScore
		if r.RiskLevel == scoring.LevelDanger {
			summary.HighRiskCount++
		}
	}
	sort.Float64s(scores)
	summary.MinScore = scores[0]
	summary.MaxScore = scores[len(scores)-1]
	summary.MeanScore = sum / float64(len(scores))
	summary.MedianScore = medianOf(scores)
	summary.ProcessingTimeMs = float64(elapsed.Microseconds()) / 1000.0
	return summary
}

func medianOf(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
