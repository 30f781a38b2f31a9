// Package preprocess implements the imputation, derived-feature
// engineering, and min-max normalization stage of the pipeline.
package preprocess

import (
	"math"

	"github.com/heatguard/risk-scoring-api/internal/schema"
	"github.com/heatguard/risk-scoring-api/internal/validation"
)

// Vector is a schema-ordered, fully preprocessed feature vector ready
// for the model host, plus the engineered scalars the scorer may want
// to surface for diagnostics.
type Vector struct {
	Values           []float64 // schema.Features() order
	HeatStressFactor float64
	AgeRiskFactor    float64
	StressIndicator  float64
}

// Options controls optional stages.
type Options struct {
	Normalize bool
}

// Process converts a validated record into a model-ready vector: derives
// the three engineered scalars, then (if requested) min-max normalizes
// every feature into [0,1] per its schema range.
func Process(clean *validation.Clean, opts Options) Vector {
	values := clean.Values

	heatStress := heatStressFactor(values["temperature_c"], values["humidity_pct"])
	ageRisk := ageRiskFactor(values["age"])
	stress := stressIndicator(values["hrv_rmssd"])

	names := schema.Features()
	out := make([]float64, len(names))
	for i, name := range names {
		v := values[name]
		if opts.Normalize {
			v = normalize(name, v)
		}
		out[i] = v
	}

	return Vector{
		Values:           out,
		HeatStressFactor: heatStress,
		AgeRiskFactor:    ageRisk,
		StressIndicator:  stress,
	}
}

// heatStressFactor: bounded at 2.0, a function of temperature above 26C
// and humidity above 50%.
func heatStressFactor(tempC, humidity float64) float64 {
	if tempC <= 26 {
		return 1.0
	}
	v := 1.0 + (tempC-26)*0.05 + (humidity-50)*0.01
	if v > 2.0 {
		return 2.0
	}
	if v < 1.0 {
		return 1.0
	}
	return v
}

// ageRiskFactor: 1 + max(0, (age-40)*0.01).
func ageRiskFactor(age float64) float64 {
	delta := (age - 40) * 0.01
	if delta < 0 {
		delta = 0
	}
	return 1.0 + delta
}

// stressIndicator: derived from RMSSD; zero when RMSSD is non-positive.
func stressIndicator(rmssd float64) float64 {
	if rmssd <= 0 {
		return 0
	}
	v := (50 - rmssd) / 50
	if v < 0 {
		return 0
	}
	return v
}

// normalize performs min-max scaling to [0,1], clamping values outside
// the schema range to the endpoints.
func normalize(name string, v float64) float64 {
	min, max, ok := schema.Range(name)
	if !ok || max <= min {
		return v
	}
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return (v - min) / (max - min)
}

// BatchProcess applies Process row-wise. Rows that panic during
// engineering are dropped and their index reported
// (imputation/engineering here is pure arithmetic and cannot panic in
// practice, but the contract is preserved for parity
// with rows sourced from less-trusted producers).
func BatchProcess(cleans []*validation.Clean, opts Options) (vectors []Vector, droppedIndices []int) {
	vectors = make([]Vector, 0, len(cleans))
	for i, c := range cleans {
		v, ok := safeProcess(c, opts)
		if !ok {
			droppedIndices = append(droppedIndices, i)
			continue
		}
		vectors = append(vectors, v)
	}
	return vectors, droppedIndices
}

func safeProcess(clean *validation.Clean, opts Options) (v Vector, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	v = Process(clean, opts)
	for _, f := range v.Values {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Vector{}, false
		}
	}
	return v, true
}
