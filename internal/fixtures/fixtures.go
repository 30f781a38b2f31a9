// Package fixtures implements the synthetic-data generator: an
// injectable fixture source producing random and ramp scenarios for
// tests and demos.
package fixtures

import (
	"math"
	"math/rand"

	"github.com/heatguard/risk-scoring-api/internal/validation"
)

// Generator produces synthetic WorkerSample records. It is injectable:
// the HTTP fixture endpoints and tests both depend only on this
// interface, never on a concrete RNG.
type Generator interface {
	Random(n int) []validation.Record
	RampUp(n int) []validation.Record
	RampDown(n int) []validation.Record
}

// Rand is the default Generator, a deterministic-when-seeded RNG-backed
// implementation.
type Rand struct {
	rng *rand.Rand
}

// New builds a Rand generator. seed 0 takes a fixed default seed so the
// fixture endpoints are reproducible out of the box; pass any other
// value to vary the stream.
func New(seed int64) *Rand {
	if seed == 0 {
		seed = 1
	}
	return &Rand{rng: rand.New(rand.NewSource(seed))}
}

// Random generates n independent samples with environmental conditions
// and HRV features spread across the full comfort range, per
// generate_random_sample.
func (g *Rand) Random(n int) []validation.Record {
	out := make([]validation.Record, n)
	for i := range out {
		out[i] = g.sample(g.rng.Float64())
	}
	return out
}

// RampUp generates n samples with heat stress increasing monotonically
// from mild to severe, per generate_ramp_up_scenario.
func (g *Rand) RampUp(n int) []validation.Record {
	out := make([]validation.Record, n)
	for i := range out {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		out[i] = g.sample(t)
	}
	return out
}

// RampDown generates n samples with heat stress decreasing monotonically
// from severe to mild, per generate_ramp_down_scenario.
func (g *Rand) RampDown(n int) []validation.Record {
	out := make([]validation.Record, n)
	for i := range out {
		t := 1.0
		if n > 1 {
			t = 1.0 - float64(i)/float64(n-1)
		}
		out[i] = g.sample(t)
	}
	return out
}

// sample builds one record parametrized by severity in [0,1]: 0 is a
// comfortable baseline, 1 is a severe-heat-exposure scenario.
func (g *Rand) sample(severity float64) validation.Record {
	severity = clamp01(severity)

	age := 20 + g.rng.Float64()*40
	gender := 0.0
	if g.rng.Float64() > 0.5 {
		gender = 1.0
	}

	tempC := 22 + severity*23 + g.jitter(2)
	humidity := 40 + severity*45 + g.jitter(5)
	meanHR := 65 + severity*70 + g.jitter(5)
	rmssd := math.Max(5, 45-severity*35+g.jitter(3))
	sdnn := math.Max(15, 55-severity*30+g.jitter(3))
	meanNNI := 60000.0 / math.Max(meanHR, 30)

	return validation.Record{
		"gender":         gender,
		"age":            age,
		"temperature_c":  tempC,
		"humidity_pct":   clamp(humidity, 0, 100),
		"hrv_mean_hr":    meanHR,
		"hrv_mean_nni":   meanNNI,
		"hrv_rmssd":      rmssd,
		"hrv_sdnn":       sdnn,
		"hrv_median_nni": meanNNI * (0.98 + g.rng.Float64()*0.04),
	}
}

func (g *Rand) jitter(scale float64) float64 {
	return (g.rng.Float64()*2 - 1) * scale
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
