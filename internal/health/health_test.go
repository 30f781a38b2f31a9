package health

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatguard/risk-scoring-api/internal/batch"
	"github.com/heatguard/risk-scoring-api/internal/compliance"
	"github.com/heatguard/risk-scoring-api/internal/model"
	"github.com/heatguard/risk-scoring-api/internal/scoringsvc"
)

func testAggregator(t *testing.T, loadDefault bool) *Aggregator {
	t.Helper()
	host := model.NewHost(time.Hour, 5, nil)
	if loadDefault {
		_, err := host.Load("default")
		require.NoError(t, err)
	}
	j, err := compliance.Open(compliance.Config{Enabled: true, Path: filepath.Join(t.TempDir(), "j.ndjson")}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(j.Close)
	pipeline := scoringsvc.New(host, j, scoringsvc.Config{EnableScaling: true})
	scheduler := batch.New(pipeline, batch.Config{})
	t.Cleanup(scheduler.Stop)
	return New(host, pipeline, scheduler, j, "default", "test")
}

func TestLivenessAlwaysHealthy(t *testing.T) {
	a := testAggregator(t, false)
	assert.Equal(t, StatusHealthy, a.Liveness())
}

func TestReadyFalseWithoutDefaultModel(t *testing.T) {
	a := testAggregator(t, false)
	ready, msg := a.Ready()
	assert.False(t, ready)
	assert.NotEmpty(t, msg)
}

func TestReadyTrueWithDefaultModel(t *testing.T) {
	a := testAggregator(t, true)
	ready, _ := a.Ready()
	assert.True(t, ready)
}

func TestDetailedReportsUnhealthyWithoutModel(t *testing.T) {
	a := testAggregator(t, false)
	report := a.Detailed()
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Len(t, report.Components, 5)
}

func TestDetailedHealthyWithModelLoaded(t *testing.T) {
	a := testAggregator(t, true)
	report := a.Detailed()
	assert.Equal(t, StatusHealthy, report.Status)
}

func TestWorseOfPicksLowerRank(t *testing.T) {
	assert.Equal(t, StatusUnhealthy, worseOf(StatusHealthy, StatusUnhealthy))
	assert.Equal(t, StatusDegraded, worseOf(StatusDegraded, StatusHealthy))
}
