package compliance

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/heatguard/risk-scoring-api/internal/heatindex"
	"github.com/heatguard/risk-scoring-api/internal/scoring"
)

// Config controls one Journal instance.
type Config struct {
	Enabled             bool
	Path                string
	MaxBytes            int64 // rotate when the active file would exceed this
	MaxGenerations      int   // bounded number of rotated files retained
	BufferSize          int   // queue depth before enqueue drops an event
	DangerHeatIndexF    float64
	BatchAlertThreshold float64 // high-risk fraction that triggers a BatchAlert
}

func (c Config) withDefaults() Config {
	if c.MaxBytes <= 0 {
		c.MaxBytes = 50 * 1024 * 1024
	}
	if c.MaxGenerations <= 0 {
		c.MaxGenerations = 5
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.DangerHeatIndexF <= 0 {
		c.DangerHeatIndexF = 90
	}
	if c.BatchAlertThreshold <= 0 {
		c.BatchAlertThreshold = 0.25
	}
	return c
}

// Journal is the single append-only appender. Writes are serialized
// through a buffered channel consumed by one writer goroutine, so
// callers only ever observe enqueue back-pressure, never write latency.
type Journal struct {
	cfg     Config
	log     zerolog.Logger
	queue   chan Record
	done    chan struct{}
	stopped chan struct{}

	mu          sync.Mutex // guards file + size, held only by the writer goroutine
	file        *os.File
	writer      *bufio.Writer
	currentSize int64

	dropped       int64
	writeFailures int64
	writable      int32 // atomic bool
}

// Open starts a Journal. If cfg.Enabled is false, Open still returns a
// usable Journal whose Emit* calls are no-ops, so callers never need a
// nil check.
func Open(cfg Config, log zerolog.Logger) (*Journal, error) {
	cfg = cfg.withDefaults()
	j := &Journal{
		cfg:     cfg,
		log:     log.With().Str("component", "compliance").Logger(),
		queue:   make(chan Record, cfg.BufferSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if !cfg.Enabled {
		close(j.stopped)
		return j, nil
	}

	if err := j.openFile(); err != nil {
		return nil, err
	}
	atomic.StoreInt32(&j.writable, 1)

	go j.run()
	return j, nil
}

func (j *Journal) openFile() error {
	f, err := os.OpenFile(j.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open compliance journal %q: %w", j.cfg.Path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	j.file = f
	j.writer = bufio.NewWriter(f)
	j.currentSize = info.Size()
	return nil
}

// run is the single writer task; it owns j.file/j.writer/j.currentSize
// exclusively, so no lock is needed around individual writes.
func (j *Journal) run() {
	defer close(j.stopped)
	for {
		select {
		case rec, ok := <-j.queue:
			if !ok {
				j.flush()
				return
			}
			j.write(rec)
		case <-j.done:
			j.drain()
			j.flush()
			return
		}
	}
}

func (j *Journal) drain() {
	for {
		select {
		case rec := <-j.queue:
			j.write(rec)
		default:
			return
		}
	}
}

func (j *Journal) flush() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.writer != nil {
		j.writer.Flush()
	}
	if j.file != nil {
		j.file.Close()
	}
}

func (j *Journal) write(rec Record) {
	payload, err := json.Marshal(rec)
	if err != nil {
		atomic.AddInt64(&j.writeFailures, 1)
		j.log.Error().Err(err).Msg("failed to marshal compliance record")
		return
	}
	line := fmt.Sprintf("%s\t%s\n", rec.Timestamp.UTC().Format(time.RFC3339Nano), payload)

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.currentSize+int64(len(line)) > j.cfg.MaxBytes {
		if err := j.rotateLocked(); err != nil {
			atomic.AddInt64(&j.writeFailures, 1)
			atomic.StoreInt32(&j.writable, 0)
			j.log.Error().Err(err).Msg("failed to rotate compliance journal")
			return
		}
	}

	n, err := j.writer.WriteString(line)
	if err != nil {
		atomic.AddInt64(&j.writeFailures, 1)
		atomic.StoreInt32(&j.writable, 0)
		j.log.Error().Err(err).Msg("failed to write compliance record")
		return
	}
	if err := j.writer.Flush(); err != nil {
		atomic.AddInt64(&j.writeFailures, 1)
		atomic.StoreInt32(&j.writable, 0)
		j.log.Error().Err(err).Msg("failed to flush compliance journal")
		return
	}
	atomic.StoreInt32(&j.writable, 1)
	j.currentSize += int64(n)
}

// rotateLocked renames the bounded set of generations up one slot and
// starts a fresh active file. Caller must hold j.mu.
func (j *Journal) rotateLocked() error {
	j.writer.Flush()
	j.file.Close()

	for gen := j.cfg.MaxGenerations - 1; gen >= 1; gen-- {
		src := fmt.Sprintf("%s.%d", j.cfg.Path, gen)
		dst := fmt.Sprintf("%s.%d", j.cfg.Path, gen+1)
		if gen+1 > j.cfg.MaxGenerations {
			os.Remove(src)
			continue
		}
		if _, err := os.Stat(src); err == nil {
			os.Rename(src, dst)
		}
	}
	if _, err := os.Stat(j.cfg.Path); err == nil {
		os.Rename(j.cfg.Path, fmt.Sprintf("%s.1", j.cfg.Path))
	}

	f, err := os.OpenFile(j.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	j.file = f
	j.writer = bufio.NewWriter(f)
	j.currentSize = 0
	return nil
}

// Close stops the writer goroutine, draining any queued records first.
func (j *Journal) Close() {
	select {
	case <-j.done:
	default:
		close(j.done)
	}
	<-j.stopped
}

// enqueue is the non-blocking send the Scoring service relies on:
// compliance failures never fail the originating request, so a full
// buffer drops the event and counts it rather than blocking.
func (j *Journal) enqueue(rec Record) {
	if !j.cfg.Enabled {
		return
	}
	select {
	case j.queue <- rec:
	default:
		atomic.AddInt64(&j.dropped, 1)
		j.log.Warn().Str("kind", string(rec.Kind)).Msg("compliance journal queue full, dropping record")
	}
}

// EmitAssessment records a single prediction outcome, and additionally
// emits a HighRiskAlert when the result crosses the danger thresholds.
func (j *Journal) EmitAssessment(requestID string, res *scoring.Result) {
	rec := Record{
		Kind:       EventAssessment,
		Timestamp:  time.Now().UTC(),
		RequestID:  requestID,
		WorkerID:   res.WorkerID,
		Assessment: assessmentPayload(res),
	}
	j.enqueue(rec)

	reasons := alertReasons(res, j.cfg.DangerHeatIndexF)
	if len(reasons) == 0 {
		return
	}
	j.enqueue(Record{
		Kind:      EventHighRiskAlert,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
		WorkerID:  res.WorkerID,
		Alert: &AlertPayload{
			Reasons:            reasons,
			TopRecommendations: topRecommendations(res.OSHARecommendations, 3),
		},
	})
}

// BatchSummaryInput is the per-batch aggregate the Scoring service
// assembles after processing every item.
type BatchSummaryInput struct {
	RequestID        string
	Results          []*scoring.Result
	Failed           int
	ProcessingTimeMs float64
}

// EmitBatchSummary records a batch's aggregate outcome, and additionally
// emits a BatchAlert when the high-risk fraction exceeds the configured
// threshold.
func (j *Journal) EmitBatchSummary(in BatchSummaryInput) {
	payload := summarize(in)
	j.enqueue(Record{
		Kind:         EventBatchSummary,
		Timestamp:    time.Now().UTC(),
		RequestID:    in.RequestID,
		BatchSummary: payload,
	})

	if payload.Total == 0 {
		return
	}
	fraction := float64(payload.HighRiskCount) / float64(payload.Total)
	if fraction <= j.cfg.BatchAlertThreshold {
		return
	}
	j.enqueue(Record{
		Kind:      EventBatchAlert,
		Timestamp: time.Now().UTC(),
		RequestID: in.RequestID,
		BatchAlert: &BatchAlertPayload{
			HighRiskFraction: fraction,
			RecommendedActions: []string{
				"Review all Danger-level workers for immediate relief.",
				"Increase rest-break frequency site-wide.",
				"Re-evaluate outdoor work schedule against current heat index.",
			},
		},
	})
}

func summarize(in BatchSummaryInput) *BatchSummaryPayload {
	payload := &BatchSummaryPayload{
		Total:            len(in.Results) + in.Failed,
		Succeeded:        len(in.Results),
		Failed:           in.Failed,
		CountsByLevel:    map[string]int{},
		BandDistribution: map[string]int{},
		ProcessingTimeMs: in.ProcessingTimeMs,
	}
	if len(in.Results) == 0 {
		return payload
	}

	scores := make([]float64, 0, len(in.Results))
	sum := 0.0
	attentionCount := 0
	for _, r := range in.Results {
		payload.CountsByLevel[string(r.RiskLevel)]++
		band := string(heatindex.ClassifyBand(r.HeatIndexF))
		payload.BandDistribution[band]++
		scores = append(scores, r.RiskScore)
		sum += r.RiskScore
		if r.RiskLevel == scoring.LevelDanger {
			payload.HighRiskCount++
		}
		if r.RequiresImmediateAttention {
			attentionCount++
		}
	}

	sort.Float64s(scores)
	payload.MinScore = scores[0]
	payload.MaxScore = scores[len(scores)-1]
	payload.MeanScore = sum / float64(len(scores))
	payload.MedianScore = median(scores)
	payload.AttentionFraction = float64(attentionCount) / float64(len(in.Results))

	return payload
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// HealthStatus summarizes the journal for the health aggregator.
type HealthStatus struct {
	Enabled       bool
	Writable      bool
	QueueDepth    int
	QueueCapacity int
	Dropped       int64
	WriteFailures int64
}

// Health reports the journal's current operating status.
func (j *Journal) Health() HealthStatus {
	return HealthStatus{
		Enabled:       j.cfg.Enabled,
		Writable:      atomic.LoadInt32(&j.writable) == 1,
		QueueDepth:    len(j.queue),
		QueueCapacity: cap(j.queue),
		Dropped:       atomic.LoadInt64(&j.dropped),
		WriteFailures: atomic.LoadInt64(&j.writeFailures),
	}
}
