package model

import (
	"context"
	"math"

	"github.com/heatguard/risk-scoring-api/internal/apperrors"
	"github.com/heatguard/risk-scoring-api/internal/schema"
)

// syntheticPredictor is a deterministic stand-in for a trained
// classifier: it derives a thermal-comfort signal from the schema-ordered
// vector and turns it into four class probabilities via a stable
// softmax. It never mutates between calls and is safe for concurrent use
// by construction (holds no mutable state).
//
// Like the artifact it stands in for, it expects vectors min-max scaled
// to the schema ranges; it recovers physical units through the same
// ranges before applying its thresholds.
type syntheticPredictor struct {
	featureSize int
}

func syntheticLoader(name string) (Predictor, *Artifact, error) {
	size := schema.Size()
	artifact := &Artifact{Name: name, Classes: append([]string(nil), ClassLabels...), FeatureSize: size}
	return &syntheticPredictor{featureSize: size}, artifact, nil
}

var (
	idxTemperature = schema.Index("temperature_c")
	idxHumidity    = schema.Index("humidity_pct")
	idxMeanHR      = schema.Index("hrv_mean_hr")
	idxRMSSD       = schema.Index("hrv_rmssd")
	idxAge         = schema.Index("age")
)

// Predict computes a thermal-load score from temperature, humidity,
// elevated heart rate, and suppressed HRV, then distributes it across
// the four-class comfort scale with a monotone softmax so that higher
// thermal load concentrates probability mass on the "hotter" classes.
func (s *syntheticPredictor) Predict(_ context.Context, vector []float64) (int, []float64, error) {
	if len(vector) != s.featureSize {
		return 0, nil, apperrors.New(apperrors.Internal, "feature vector length mismatch")
	}

	temp := denorm("temperature_c", safeAt(vector, idxTemperature))
	humidity := denorm("humidity_pct", safeAt(vector, idxHumidity))
	meanHR := denorm("hrv_mean_hr", safeAt(vector, idxMeanHR))
	rmssd := denorm("hrv_rmssd", safeAt(vector, idxRMSSD))
	age := denorm("age", safeAt(vector, idxAge))

	thermalLoad := 0.0
	if temp > 26 {
		thermalLoad += (temp - 26) * 0.08
	}
	if humidity > 50 {
		thermalLoad += (humidity - 50) * 0.01
	}
	if meanHR > 80 {
		thermalLoad += (meanHR - 80) * 0.01
	}
	if rmssd > 0 && rmssd < 30 {
		thermalLoad += (30 - rmssd) * 0.01
	}
	if age > 50 {
		thermalLoad += (age - 50) * 0.005
	}

	logits := make([]float64, 4)
	for i := range logits {
		// class i's logit peaks where thermalLoad equals 1.2*i, so higher
		// load shifts mass toward higher class indices monotonically.
		logits[i] = -math.Pow(thermalLoad-float64(i)*1.2, 2) / 2.0
	}

	probs := softmax(logits)
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return best, probs, nil
}

func safeAt(v []float64, idx int) float64 {
	if idx < 0 || idx >= len(v) {
		return 0
	}
	return v[idx]
}

// denorm maps a scaled feature value back to physical units via its
// schema range.
func denorm(name string, v float64) float64 {
	min, max, ok := schema.Range(name)
	if !ok {
		return v
	}
	return min + v*(max-min)
}

func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, l := range logits[1:] {
		if l > max {
			max = l
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, l := range logits {
		e := math.Exp(l - max)
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
