package model

import (
	"context"
	"testing"
	"time"

	"github.com/heatguard/risk-scoring-api/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vectorWith builds a schema-ordered vector min-max scaled the way the
// preprocessor hands it to the host; overrides are in physical units.
func vectorWith(overrides map[string]float64) []float64 {
	v := make([]float64, schema.Size())
	scale := func(name string, val float64) float64 {
		min, max, _ := schema.Range(name)
		return (val - min) / (max - min)
	}
	v[schema.Index("age")] = scale("age", 30)
	v[schema.Index("hrv_mean_hr")] = scale("hrv_mean_hr", 75)
	for name, val := range overrides {
		v[schema.Index(name)] = scale(name, val)
	}
	return v
}

func TestLoadIsIdempotentAndCaches(t *testing.T) {
	h := NewHost(time.Hour, 10, nil)
	a1, err := h.Load("default")
	require.NoError(t, err)
	a2, err := h.Load("default")
	require.NoError(t, err)
	assert.Equal(t, a1.LoadedAt, a2.LoadedAt)
}

func TestPredictDeterministic(t *testing.T) {
	h := NewHost(time.Hour, 10, nil)
	vec := vectorWith(map[string]float64{"temperature_c": 35, "humidity_pct": 80})

	idx1, probs1, err := h.Predict(context.Background(), "default", vec)
	require.NoError(t, err)
	idx2, probs2, err := h.Predict(context.Background(), "default", vec)
	require.NoError(t, err)

	assert.Equal(t, idx1, idx2)
	assert.Equal(t, probs1, probs2)

	sum := 0.0
	for _, p := range probs1 {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestHotterInputsShiftMassTowardHotterClasses(t *testing.T) {
	h := NewHost(time.Hour, 10, nil)
	cool := vectorWith(map[string]float64{"temperature_c": 20, "humidity_pct": 30})
	hot := vectorWith(map[string]float64{"temperature_c": 45, "humidity_pct": 95, "hrv_mean_hr": 160})

	_, coolProbs, err := h.Predict(context.Background(), "default", cool)
	require.NoError(t, err)
	_, hotProbs, err := h.Predict(context.Background(), "default", hot)
	require.NoError(t, err)

	assert.Greater(t, hotProbs[3]+hotProbs[2], coolProbs[3]+coolProbs[2])
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	h := NewHost(time.Hour, 2, nil)
	_, _ = h.Load("a")
	_, _ = h.Load("b")
	_, _ = h.Load("c") // evicts "a"

	_, ok := h.Info("a")
	assert.False(t, ok)
	_, ok = h.Info("b")
	assert.True(t, ok)
	_, ok = h.Info("c")
	assert.True(t, ok)
}

func TestHealthReportsDefaultLoaded(t *testing.T) {
	h := NewHost(time.Hour, 10, nil)
	status := h.Health("default")
	assert.False(t, status.DefaultLoaded)

	_, err := h.Load("default")
	require.NoError(t, err)
	status = h.Health("default")
	assert.True(t, status.DefaultLoaded)
}
