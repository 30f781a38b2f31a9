package preprocess

import (
	"testing"

	"github.com/heatguard/risk-scoring-api/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord(overrides map[string]interface{}) *validation.Clean {
	rec := validation.Record{
		"gender":        1.0,
		"age":           30.0,
		"temperature_c": 25.0,
		"humidity_pct":  50.0,
		"hrv_mean_hr":   75.0,
		"hrv_mean_nni":  800.0,
	}
	for k, v := range overrides {
		rec[k] = v
	}
	clean, err := validation.Validate(rec)
	if err != nil {
		panic(err)
	}
	return clean
}

func TestProcessVectorLengthMatchesSchema(t *testing.T) {
	v := Process(validRecord(nil), Options{Normalize: true})
	assert.Len(t, v.Values, 50)
	for _, f := range v.Values {
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}
}

func TestHeatStressFactorBoundedAt2(t *testing.T) {
	v := Process(validRecord(map[string]interface{}{"temperature_c": 49.0, "humidity_pct": 100.0}), Options{})
	assert.LessOrEqual(t, v.HeatStressFactor, 2.0)
	assert.Greater(t, v.HeatStressFactor, 1.0)
}

func TestHeatStressFactorNeutralBelow26(t *testing.T) {
	v := Process(validRecord(map[string]interface{}{"temperature_c": 20.0}), Options{})
	assert.Equal(t, 1.0, v.HeatStressFactor)
}

func TestAgeRiskFactorNeutralBelow40(t *testing.T) {
	v := Process(validRecord(map[string]interface{}{"age": 35.0}), Options{})
	assert.Equal(t, 1.0, v.AgeRiskFactor)
}

func TestAgeRiskFactorAbove40(t *testing.T) {
	v := Process(validRecord(map[string]interface{}{"age": 60.0}), Options{})
	assert.InDelta(t, 1.2, v.AgeRiskFactor, 1e-9)
}

func TestBatchProcessKeepsValidRows(t *testing.T) {
	cleans := []*validation.Clean{validRecord(nil), validRecord(nil)}
	vectors, dropped := BatchProcess(cleans, Options{Normalize: true})
	require.Len(t, vectors, 2)
	assert.Empty(t, dropped)
}
