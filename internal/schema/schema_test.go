package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeaturesSizeAndHRVCount(t *testing.T) {
	feats := Features()
	require.Len(t, feats, 50)

	hrvCount := 0
	for _, f := range feats {
		if IsHRV(f) {
			hrvCount++
		}
	}
	assert.Equal(t, 46, hrvCount)
	assert.Equal(t, 50, Size())
}

func TestRequiredSubset(t *testing.T) {
	req := Required()
	assert.ElementsMatch(t, []string{"gender", "age", "temperature_c", "humidity_pct", "hrv_mean_hr", "hrv_mean_nni"}, req)
}

func TestRangeKnownAndUnknown(t *testing.T) {
	min, max, ok := Range("age")
	require.True(t, ok)
	assert.Equal(t, 16.0, min)
	assert.Equal(t, 80.0, max)

	_, _, ok = Range("not_a_feature")
	assert.False(t, ok)
}

func TestIndexOrderingStable(t *testing.T) {
	assert.Equal(t, 0, Index("gender"))
	assert.Equal(t, 1, Index("age"))
	assert.Equal(t, -1, Index("unknown_feature"))
}

func TestDefaultImputation(t *testing.T) {
	assert.Equal(t, 30.0, Default("age", Context{}))
	assert.InDelta(t, 65.0, Default("hrv_mean_hr", Context{Age: 50, AgeKnown: true}), 1e-9)

	v := Default("hrv_mean_nni", Context{MeanHR: 75, MeanHRKnown: true})
	assert.InDelta(t, 800.0, v, 1e-9)

	v = Default("hrv_rmssd", Context{Age: 30, AgeKnown: true, Gender: 0, GenderKnown: true})
	assert.InDelta(t, 45.0, v, 1e-9)

	assert.Equal(t, 0.0, Default("hrv_svd_entropy", Context{}))
}
