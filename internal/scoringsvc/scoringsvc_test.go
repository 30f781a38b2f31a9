package scoringsvc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatguard/risk-scoring-api/internal/compliance"
	"github.com/heatguard/risk-scoring-api/internal/model"
	"github.com/heatguard/risk-scoring-api/internal/validation"
)

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	host := model.NewHost(time.Hour, 5, nil)
	j, err := compliance.Open(compliance.Config{Enabled: true, Path: filepath.Join(t.TempDir(), "j.ndjson")}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(j.Close)
	return New(host, j, Config{EnableScaling: true})
}

func sampleRecord() validation.Record {
	return validation.Record{
		"gender":        1.0,
		"age":           30.0,
		"temperature_c": 25.0,
		"humidity_pct":  50.0,
		"hrv_mean_hr":   75.0,
		"hrv_mean_nni":  800.0,
	}
}

func TestScoreOneSucceeds(t *testing.T) {
	p := testPipeline(t)
	res, err := p.ScoreOne(context.Background(), "req-1", sampleRecord(), ItemOptions{UseConservative: true, LogCompliance: true})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.RiskScore, 0.0)
	assert.LessOrEqual(t, res.RiskScore, 1.0)
}

func TestScoreOneInvalidRecordFails(t *testing.T) {
	p := testPipeline(t)
	rec := sampleRecord()
	delete(rec, "hrv_mean_hr")
	_, err := p.ScoreOne(context.Background(), "req-1", rec, ItemOptions{})
	require.Error(t, err)
}

func TestScoreBatchPreservesOrderAndCounts(t *testing.T) {
	p := testPipeline(t)
	records := []validation.Record{sampleRecord(), sampleRecord(), sampleRecord()}
	invalid := sampleRecord()
	delete(invalid, "hrv_mean_hr")
	records = append(records, invalid)

	results, summary, err := p.ScoreBatch(context.Background(), "batch-1", records, BatchOptions{Parallel: true, LogCompliance: true})
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i := 0; i < 3; i++ {
		assert.Equal(t, i, results[i].Index)
		assert.NoError(t, results[i].Err)
		require.NotNil(t, results[i].Result)
	}
	assert.Error(t, results[3].Err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
}

func TestScoreBatchSequentialMatchesParallelCounts(t *testing.T) {
	p := testPipeline(t)
	records := []validation.Record{sampleRecord(), sampleRecord()}

	seqResults, seqSummary, err := p.ScoreBatch(context.Background(), "b-seq", records, BatchOptions{Parallel: false})
	require.NoError(t, err)
	parResults, parSummary, err := p.ScoreBatch(context.Background(), "b-par", records, BatchOptions{Parallel: true})
	require.NoError(t, err)

	assert.Equal(t, len(seqResults), len(parResults))
	assert.Equal(t, seqSummary.Succeeded, parSummary.Succeeded)
}

func TestEscalatingSequenceScoresNonDecreasing(t *testing.T) {
	p := testPipeline(t)
	const n = 12
	var prev float64 = -1
	for i := 0; i < n; i++ {
		frac := float64(i) / float64(n-1)
		rec := validation.Record{
			"gender":        1.0,
			"age":           35.0,
			"temperature_c": 25.0 + frac*15.0,
			"humidity_pct":  50.0 + frac*40.0,
			"hrv_mean_hr":   70.0 + frac*40.0,
			"hrv_mean_nni":  60000.0 / (70.0 + frac*40.0),
			"hrv_rmssd":     45.0 - frac*35.0,
		}
		res, err := p.ScoreOne(context.Background(), "ramp", rec, ItemOptions{UseConservative: true})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.RiskScore, prev-0.02, "score dropped at step %d", i)
		prev = res.RiskScore
	}
}

func TestScoreBatchEmptyFails(t *testing.T) {
	p := testPipeline(t)
	_, _, err := p.ScoreBatch(context.Background(), "b", nil, BatchOptions{})
	require.Error(t, err)
}
