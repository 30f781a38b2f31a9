// Package batch implements the asynchronous batch job scheduler:
// submit a batch for background scoring, poll its status, fetch its
// results once terminal, or cancel it cooperatively.
package batch

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heatguard/risk-scoring-api/internal/apperrors"
	"github.com/heatguard/risk-scoring-api/internal/scoringsvc"
	"github.com/heatguard/risk-scoring-api/internal/validation"
)

// State is a BatchJob's position in the Pending -> Running ->
// {Completed, Failed, Cancelled} state machine.
type State string

const (
	StatePending   State = "Pending"
	StateRunning   State = "Running"
	StateCompleted State = "Completed"
	StateFailed    State = "Failed"
	StateCancelled State = "Cancelled"
)

func (s State) terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Config tunes a Scheduler. Zero values take the documented defaults.
type Config struct {
	MaxBatchSize       int
	ChunkSize          int
	MaxConcurrentJobs  int
	QueueHighWaterMark int
	RetentionTTL       time.Duration
	SweepInterval      time.Duration
	MaxCompletedJobs   int
}

func (c Config) withDefaults() Config {
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 10000
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 100
	}
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = 4
	}
	if c.QueueHighWaterMark <= 0 {
		c.QueueHighWaterMark = 100
	}
	if c.RetentionTTL <= 0 {
		c.RetentionTTL = 24 * time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Hour
	}
	if c.MaxCompletedJobs <= 0 {
		c.MaxCompletedJobs = 100
	}
	return c
}

// Job is a single submitted batch. Its mutable fields are written only
// by the goroutine executing it (execute, below); every other reader or
// writer touches them under Scheduler.mu, so a Job is safe to snapshot
// by value under that lock.
type Job struct {
	ID        string
	Priority  Priority
	Options   scoringsvc.BatchOptions
	ChunkSize int
	Input     []validation.Record
	CreatedAt time.Time

	State       State
	StartedAt   time.Time
	CompletedAt time.Time
	Total       int
	Processed   int
	Succeeded   int
	Failed      int
	Results     []scoringsvc.ItemResult
	Summary     scoringsvc.Summary
	FailureMsg  string

	cancelRequested bool
}

// Snapshot is the read-only view of a Job returned to callers, safe to
// hand outside the scheduler's lock.
type Snapshot struct {
	ID          string             `json:"job_id"`
	Priority    Priority           `json:"-"`
	State       State              `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   time.Time          `json:"started_at,omitempty"`
	CompletedAt time.Time          `json:"completed_at,omitempty"`
	Total       int                `json:"total"`
	Processed   int                `json:"processed"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
	Summary     scoringsvc.Summary `json:"summary"`
	FailureMsg  string             `json:"failure_message,omitempty"`
}

func (j *Job) snapshot() Snapshot {
	return Snapshot{
		ID:          j.ID,
		Priority:    j.Priority,
		State:       j.State,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Total:       j.Total,
		Processed:   j.Processed,
		Succeeded:   j.Succeeded,
		Failed:      j.Failed,
		Summary:     j.Summary,
		FailureMsg:  j.FailureMsg,
	}
}

// Scheduler owns the batch job lifecycle. A single
// mutex guards the job maps, the priority queue, and every Job field;
// execute holds it only for the brief read-modify-write around each
// chunk, never across a ScoreBatch call.
type Scheduler struct {
	mu        sync.Mutex
	active    map[string]*Job
	completed map[string]*Job
	pq        priorityQueue
	running   int
	seq       int64

	pipeline *scoringsvc.Pipeline
	cfg      Config

	stop chan struct{}
	done chan struct{}
}

// New builds a Scheduler and starts its retention sweeper. Call Stop to
// shut the sweeper down during process shutdown.
func New(pipeline *scoringsvc.Pipeline, cfg Config) *Scheduler {
	s := &Scheduler{
		active:    make(map[string]*Job),
		completed: make(map[string]*Job),
		pipeline:  pipeline,
		cfg:       cfg.withDefaults(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	heap.Init(&s.pq)
	go s.sweepLoop()
	return s
}

// Stop halts the retention sweeper. Jobs already running continue to
// completion; it does not cancel them.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// Submit accepts a batch for background execution and returns its job
// ID immediately; scoring happens on a goroutine managed by the
// scheduler's dispatcher. chunkSize 0 takes the scheduler default;
// anything else is clamped to [10, 1000]. Returns a Busy error if the
// scheduler's pending+running queue is already at its high-water mark,
// and a ValidationError if the batch exceeds MaxBatchSize or is empty.
func (s *Scheduler) Submit(records []validation.Record, priority Priority, chunkSize int, opts scoringsvc.BatchOptions) (string, error) {
	if len(records) == 0 {
		return "", apperrors.New(apperrors.ValidationError, "batch must contain at least one record")
	}
	if len(records) > s.cfg.MaxBatchSize {
		return "", apperrors.New(apperrors.ValidationError, fmt.Sprintf("batch of %d records exceeds the %d limit", len(records), s.cfg.MaxBatchSize))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.active) >= s.cfg.QueueHighWaterMark {
		return "", apperrors.New(apperrors.Busy, "batch scheduler queue is full, try again later")
	}

	job := &Job{
		ID:        uuid.NewString(),
		Priority:  priority,
		Options:   opts,
		ChunkSize: clampChunkSize(chunkSize, s.cfg.ChunkSize),
		Input:     records,
		CreatedAt: now(),
		State:     StatePending,
		Total:     len(records),
		Results:   make([]scoringsvc.ItemResult, len(records)),
	}
	s.active[job.ID] = job
	s.seq++
	heap.Push(&s.pq, &queueItem{jobID: job.ID, priority: priority, seq: s.seq})

	s.dispatchLocked()
	return job.ID, nil
}

// dispatchLocked starts jobs from the priority queue while a concurrency
// slot is free. Caller must hold s.mu.
func (s *Scheduler) dispatchLocked() {
	for s.running < s.cfg.MaxConcurrentJobs && s.pq.Len() > 0 {
		item := heap.Pop(&s.pq).(*queueItem)
		job, ok := s.active[item.jobID]
		if !ok || job.State != StatePending {
			continue
		}
		if job.cancelRequested {
			job.State = StateCancelled
			job.CompletedAt = now()
			s.finishLocked(job)
			continue
		}
		job.State = StateRunning
		job.StartedAt = now()
		s.running++
		go s.execute(job)
	}
}

// Status returns a snapshot of one job, active or completed.
func (s *Scheduler) Status(jobID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.active[jobID]; ok {
		return job.snapshot(), nil
	}
	if job, ok := s.completed[jobID]; ok {
		return job.snapshot(), nil
	}
	return Snapshot{}, apperrors.New(apperrors.NotFound, fmt.Sprintf("batch job %q not found", jobID))
}

// Results returns the per-item results accumulated so far, whatever the
// job's state; callers check Snapshot.State to tell a partial result
// set (still Running) from a final one.
func (s *Scheduler) Results(jobID string) ([]scoringsvc.ItemResult, Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.active[jobID]
	if !ok {
		job, ok = s.completed[jobID]
	}
	if !ok {
		return nil, Snapshot{}, apperrors.New(apperrors.NotFound, fmt.Sprintf("batch job %q not found", jobID))
	}
	out := make([]scoringsvc.ItemResult, len(job.Results))
	copy(out, job.Results)
	return out, job.snapshot(), nil
}

// Cancel requests cooperative cancellation of a pending or running job.
// A terminal job returns a Conflict error.
func (s *Scheduler) Cancel(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.active[jobID]
	if !ok {
		if _, ok := s.completed[jobID]; ok {
			return apperrors.New(apperrors.Conflict, fmt.Sprintf("batch job %q has already finished", jobID))
		}
		return apperrors.New(apperrors.NotFound, fmt.Sprintf("batch job %q not found", jobID))
	}
	if job.State.terminal() {
		return apperrors.New(apperrors.Conflict, fmt.Sprintf("batch job %q has already finished", jobID))
	}
	job.cancelRequested = true
	if job.State == StatePending {
		job.State = StateCancelled
		job.CompletedAt = now()
		s.finishLocked(job)
	}
	return nil
}

// List returns a snapshot of every known job, active and completed,
// newest first.
func (s *Scheduler) List() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Snapshot, 0, len(s.active)+len(s.completed))
	for _, job := range s.active {
		out = append(out, job.snapshot())
	}
	for _, job := range s.completed {
		out = append(out, job.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// finishLocked moves a job from active to completed, trimming the
// completed set to MaxCompletedJobs by oldest CompletedAt. Caller must
// hold s.mu.
func (s *Scheduler) finishLocked(job *Job) {
	delete(s.active, job.ID)
	s.completed[job.ID] = job
	if len(s.completed) <= s.cfg.MaxCompletedJobs {
		return
	}
	oldestID, oldestAt := "", time.Time{}
	for id, j := range s.completed {
		if oldestID == "" || j.CompletedAt.Before(oldestAt) {
			oldestID, oldestAt = id, j.CompletedAt
		}
	}
	if oldestID != "" {
		delete(s.completed, oldestID)
	}
}

func clampChunkSize(n, fallback int) int {
	if n == 0 {
		return fallback
	}
	if n < 10 {
		return 10
	}
	if n > 1000 {
		return 1000
	}
	return n
}

// now is a seam so tests can avoid relying on wall-clock ordering if
// ever needed; production always uses time.Now.
var now = time.Now
