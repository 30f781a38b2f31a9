package batch

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatguard/risk-scoring-api/internal/compliance"
	"github.com/heatguard/risk-scoring-api/internal/model"
	"github.com/heatguard/risk-scoring-api/internal/scoringsvc"
	"github.com/heatguard/risk-scoring-api/internal/validation"
)

func testScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	host := model.NewHost(time.Hour, 5, nil)
	j, err := compliance.Open(compliance.Config{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(j.Close)
	pipeline := scoringsvc.New(host, j, scoringsvc.Config{EnableScaling: true})
	s := New(pipeline, cfg)
	t.Cleanup(s.Stop)
	return s
}

func sampleBatch(n int) []validation.Record {
	out := make([]validation.Record, n)
	for i := range out {
		out[i] = validation.Record{
			"gender":        1.0,
			"age":           30.0,
			"temperature_c": 25.0,
			"humidity_pct":  50.0,
			"hrv_mean_hr":   75.0,
			"hrv_mean_nni":  800.0,
		}
	}
	return out
}

func waitTerminal(t *testing.T, s *Scheduler, jobID string) Snapshot {
	t.Helper()
	for i := 0; i < 200; i++ {
		snap, err := s.Status(jobID)
		require.NoError(t, err)
		if snap.State == StateCompleted || snap.State == StateFailed || snap.State == StateCancelled {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state in time")
	return Snapshot{}
}

func TestSubmitAndCompleteSmallBatch(t *testing.T) {
	s := testScheduler(t, Config{ChunkSize: 2})
	id, err := s.Submit(sampleBatch(5), PriorityNormal, 0, scoringsvc.BatchOptions{})
	require.NoError(t, err)

	snap := waitTerminal(t, s, id)
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, 5, snap.Total)
	assert.Equal(t, 5, snap.Succeeded)

	results, finalSnap, err := s.Results(id)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, finalSnap.State)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.NoError(t, r.Err)
	}
}

func TestSubmitEmptyBatchFails(t *testing.T) {
	s := testScheduler(t, Config{})
	_, err := s.Submit(nil, PriorityNormal, 0, scoringsvc.BatchOptions{})
	require.Error(t, err)
}

func TestSubmitOverLimitFails(t *testing.T) {
	s := testScheduler(t, Config{MaxBatchSize: 3})
	_, err := s.Submit(sampleBatch(4), PriorityNormal, 0, scoringsvc.BatchOptions{})
	require.Error(t, err)
}

func TestCancelPendingJobIsImmediate(t *testing.T) {
	s := testScheduler(t, Config{MaxConcurrentJobs: 1, ChunkSize: 1})
	blockerID, err := s.Submit(sampleBatch(50), PriorityNormal, 0, scoringsvc.BatchOptions{})
	require.NoError(t, err)
	pendingID, err := s.Submit(sampleBatch(2), PriorityNormal, 0, scoringsvc.BatchOptions{})
	require.NoError(t, err)

	require.NoError(t, s.Cancel(pendingID))
	snap, err := s.Status(pendingID)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, snap.State)

	waitTerminal(t, s, blockerID)
}

func TestCancelTerminalJobConflicts(t *testing.T) {
	s := testScheduler(t, Config{})
	id, err := s.Submit(sampleBatch(1), PriorityNormal, 0, scoringsvc.BatchOptions{})
	require.NoError(t, err)
	waitTerminal(t, s, id)

	err = s.Cancel(id)
	require.Error(t, err)
}

func TestStatusUnknownJobNotFound(t *testing.T) {
	s := testScheduler(t, Config{})
	_, err := s.Status("nope")
	require.Error(t, err)
}

func TestListReturnsAllJobs(t *testing.T) {
	s := testScheduler(t, Config{})
	id1, err := s.Submit(sampleBatch(1), PriorityNormal, 0, scoringsvc.BatchOptions{})
	require.NoError(t, err)
	id2, err := s.Submit(sampleBatch(1), PriorityHigh, 0, scoringsvc.BatchOptions{})
	require.NoError(t, err)
	waitTerminal(t, s, id1)
	waitTerminal(t, s, id2)

	snaps := s.List()
	ids := map[string]bool{}
	for _, snap := range snaps {
		ids[snap.ID] = true
	}
	assert.True(t, ids[id1])
	assert.True(t, ids[id2])
}

func TestQueueHighWaterMarkRejectsSubmission(t *testing.T) {
	s := testScheduler(t, Config{MaxConcurrentJobs: 1, QueueHighWaterMark: 1, ChunkSize: 1})
	_, err := s.Submit(sampleBatch(50), PriorityNormal, 0, scoringsvc.BatchOptions{})
	require.NoError(t, err)

	_, err = s.Submit(sampleBatch(1), PriorityNormal, 0, scoringsvc.BatchOptions{})
	require.Error(t, err)
}

func TestParsePriorityDefaultsToNormal(t *testing.T) {
	assert.Equal(t, PriorityHigh, ParsePriority("high"))
	assert.Equal(t, PriorityLow, ParsePriority("low"))
	assert.Equal(t, PriorityNormal, ParsePriority("unknown"))
}
