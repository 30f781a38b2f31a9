package scoring

import (
	"testing"

	"github.com/heatguard/risk-scoring-api/internal/preprocess"
	"github.com/heatguard/risk-scoring-api/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseClean() *validation.Clean {
	rec := validation.Record{
		"gender":        1.0,
		"age":           30.0,
		"temperature_c": 25.0,
		"humidity_pct":  50.0,
		"hrv_mean_hr":   75.0,
		"hrv_mean_nni":  800.0,
	}
	clean, err := validation.Validate(rec)
	if err != nil {
		panic(err)
	}
	return clean
}

func TestScoreSafeBaseline(t *testing.T) {
	clean := baseClean()
	vec := preprocess.Process(clean, preprocess.Options{})
	res, err := Score("req-1", clean, vec, 0, []float64{0.9, 0.08, 0.01, 0.01}, Options{UseConservative: true})
	require.NoError(t, err)
	assert.LessOrEqual(t, res.RiskScore, 1.0)
	assert.GreaterOrEqual(t, res.RiskScore, 0.0)
	assert.NotEmpty(t, res.OSHARecommendations)
}

func TestScoreConservativeBiasNeverLowersScore(t *testing.T) {
	clean := baseClean()
	vec := preprocess.Process(clean, preprocess.Options{})
	probs := []float64{0.1, 0.2, 0.3, 0.4}

	standard, err := Score("req-1", clean, vec, 3, probs, Options{UseConservative: false})
	require.NoError(t, err)
	conservative, err := Score("req-1", clean, vec, 3, probs, Options{UseConservative: true})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, conservative.RiskScore, standard.RiskScoreStandard)
	assert.True(t, conservative.ConservativeBiasApplied)
	assert.False(t, standard.ConservativeBiasApplied)
}

func TestClassifyLevelThresholds(t *testing.T) {
	assert.Equal(t, LevelSafe, ClassifyLevel(0.0))
	assert.Equal(t, LevelSafe, ClassifyLevel(0.249))
	assert.Equal(t, LevelCaution, ClassifyLevel(0.25))
	assert.Equal(t, LevelCaution, ClassifyLevel(0.499))
	assert.Equal(t, LevelWarning, ClassifyLevel(0.50))
	assert.Equal(t, LevelWarning, ClassifyLevel(0.749))
	assert.Equal(t, LevelDanger, ClassifyLevel(0.75))
	assert.Equal(t, LevelDanger, ClassifyLevel(1.0))
}

func TestScoreDangerScenarioRequiresAttention(t *testing.T) {
	rec := validation.Record{
		"gender":        1.0,
		"age":           55.0,
		"temperature_c": 43.0,
		"humidity_pct":  90.0,
		"hrv_mean_hr":   150.0,
		"hrv_mean_nni":  400.0,
		"hrv_rmssd":     8.0,
	}
	clean, err := validation.Validate(rec)
	require.NoError(t, err)
	vec := preprocess.Process(clean, preprocess.Options{})

	res, err := Score("req-danger", clean, vec, 3, []float64{0.01, 0.02, 0.07, 0.9}, Options{UseConservative: true})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.RiskScore, 0.75)
	assert.Equal(t, LevelDanger, res.RiskLevel)
	assert.True(t, res.RequiresImmediateAttention)
	assert.GreaterOrEqual(t, res.HeatIndexF, 130.0)
}

func TestClassPointsInterpolatesBeyondFourClasses(t *testing.T) {
	points := classPoints(5)
	require.Len(t, points, 5)
	assert.Equal(t, 0.0, points[0])
	assert.Equal(t, 1.0, points[4])
}
