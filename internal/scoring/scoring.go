// Package scoring turns model class probabilities into a bounded risk
// score, a discrete risk level, and OSHA-aligned recommendations.
package scoring

import (
	"fmt"
	"sort"
	"time"

	"github.com/heatguard/risk-scoring-api/internal/apperrors"
	"github.com/heatguard/risk-scoring-api/internal/heatindex"
	"github.com/heatguard/risk-scoring-api/internal/model"
	"github.com/heatguard/risk-scoring-api/internal/preprocess"
	"github.com/heatguard/risk-scoring-api/internal/schema"
	"github.com/heatguard/risk-scoring-api/internal/validation"
)

// Level is a discrete risk classification, a total function of RiskScore
// via the thresholds below.
type Level string

const (
	LevelSafe    Level = "Safe"
	LevelCaution Level = "Caution"
	LevelWarning Level = "Warning"
	LevelDanger  Level = "Danger"
)

// Level thresholds: Safe < 0.25 <= Caution < 0.50 <= Warning < 0.75 <=
// Danger.
const (
	cautionThreshold = 0.25
	warningThreshold = 0.50
	dangerThreshold  = 0.75
)

// ClassifyLevel maps a risk score in [0,1] to its discrete level.
func ClassifyLevel(score float64) Level {
	switch {
	case score >= dangerThreshold:
		return LevelDanger
	case score >= warningThreshold:
		return LevelWarning
	case score >= cautionThreshold:
		return LevelCaution
	default:
		return LevelSafe
	}
}

// DefaultConservativeBias is the additive shift applied when
// conservative scoring is requested.
const DefaultConservativeBias = 0.15

// DangerHeatIndexF is the heat-index threshold (°F) that alone forces
// requires_immediate_attention.
const DangerHeatIndexF = 90.0

// Options controls one scoring invocation.
type Options struct {
	UseConservative  bool
	ConservativeBias float64 // 0 means DefaultConservativeBias
	DangerHeatIndexF float64 // 0 means DangerHeatIndexF
}

// Result is the full prediction returned for one WorkerSample.
type Result struct {
	RequestID                  string             `json:"request_id"`
	WorkerID                   string             `json:"worker_id"`
	Timestamp                  time.Time          `json:"timestamp"`
	RiskScore                  float64            `json:"risk_score"`
	RiskScoreStandard          float64            `json:"risk_score_standard"`
	RiskLevel                  Level              `json:"risk_level"`
	Confidence                 float64            `json:"confidence"`
	TemperatureC               float64            `json:"temperature_c"`
	TemperatureF               float64            `json:"temperature_f"`
	HumidityPct                float64            `json:"humidity_pct"`
	HeatIndexF                 float64            `json:"heat_index_f"`
	OSHARecommendations        []string           `json:"osha_recommendations"`
	RequiresImmediateAttention bool               `json:"requires_immediate_attention"`
	ConservativeBiasApplied    bool               `json:"conservative_bias_applied"`
	ConservativeBiasValue      float64            `json:"conservative_bias_value"`
	PredictedClass             string             `json:"predicted_class"`
	ClassProbabilities         map[string]float64 `json:"class_probabilities"`
	ProcessingTimeMs           float64            `json:"processing_time_ms"`
	DataQualityScore           float64            `json:"data_quality_score"`
	ValidationWarnings         []string           `json:"validation_warnings"`
}

// classPoints maps n ordered classes (most comfortable to most hot)
// onto [0,1]. The canonical four-class scale uses a fixed lookup; any
// other class count is linearly interpolated by index.
func classPoints(n int) []float64 {
	if n == 4 {
		return []float64{0.0, 0.3, 0.6, 0.9}
	}
	points := make([]float64, n)
	if n <= 1 {
		return points
	}
	for i := 0; i < n; i++ {
		points[i] = float64(i) / float64(n-1)
	}
	return points
}

// Score assembles a full Result from a preprocessed vector's model
// output.
func Score(
	requestID string,
	clean *validation.Clean,
	vec preprocess.Vector,
	classIdx int,
	probabilities []float64,
	opts Options,
) (*Result, error) {
	start := time.Now()

	if len(probabilities) == 0 {
		return nil, apperrors.New(apperrors.Internal, "model returned no class probabilities")
	}
	if classIdx < 0 || classIdx >= len(probabilities) {
		return nil, apperrors.New(apperrors.Internal, "model returned an out-of-range predicted class")
	}

	points := classPoints(len(probabilities))
	standardScore := 0.0
	for i, p := range probabilities {
		standardScore += p * points[i]
	}
	standardScore = clamp01(standardScore)

	bias := opts.ConservativeBias
	if bias == 0 {
		bias = DefaultConservativeBias
	}

	riskScore := standardScore
	applied := false
	if opts.UseConservative {
		riskScore = clamp01(standardScore + bias)
		applied = true
	}

	level := ClassifyLevel(riskScore)

	tempC := clean.Values["temperature_c"]
	humidity := clean.Values["humidity_pct"]
	heatIndexF := heatindex.FromCelsius(tempC, humidity)
	band := heatindex.ClassifyBand(heatIndexF)

	recommendations := recommendationsFor(level, band)

	dangerHI := opts.DangerHeatIndexF
	if dangerHI == 0 {
		dangerHI = DangerHeatIndexF
	}
	requiresAttention := riskScore > dangerThreshold || heatIndexF >= dangerHI || level == LevelDanger

	classLabels := labelsFor(len(probabilities))
	classProbs := make(map[string]float64, len(probabilities))
	for i, p := range probabilities {
		classProbs[classLabels[i]] = p
	}

	confidence := probabilities[classIdx]

	res := &Result{
		RequestID:                  requestID,
		WorkerID:                   clean.WorkerID,
		Timestamp:                  time.Now().UTC(),
		RiskScore:                  riskScore,
		RiskScoreStandard:          standardScore,
		RiskLevel:                  level,
		Confidence:                 confidence,
		TemperatureC:               tempC,
		TemperatureF:               heatindex.CelsiusToFahrenheit(tempC),
		HumidityPct:                humidity,
		HeatIndexF:                 heatIndexF,
		OSHARecommendations:        recommendations,
		RequiresImmediateAttention: requiresAttention,
		ConservativeBiasApplied:    applied,
		ConservativeBiasValue:      bias,
		PredictedClass:             classLabels[classIdx],
		ClassProbabilities:         classProbs,
		DataQualityScore:           dataQualityScore(clean),
		ValidationWarnings:         append([]string(nil), clean.Warnings...),
	}
	res.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000.0
	return res, nil
}

func labelsFor(n int) []string {
	if n == len(model.ClassLabels) {
		return model.ClassLabels
	}
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("class_%d", i)
	}
	return labels
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// dataQualityScore is the ratio of available (non-defaulted, non-zero)
// features to schema size, plus a bonus of up to 0.2 for every required
// feature having been supplied.
func dataQualityScore(clean *validation.Clean) float64 {
	total := schema.Size()
	available := 0
	for _, name := range schema.Features() {
		if clean.Defaulted[name] {
			continue
		}
		if clean.Values[name] == 0 {
			continue
		}
		available++
	}
	ratio := 0.0
	if total > 0 {
		ratio = float64(available) / float64(total)
	}

	requiredPresent := true
	for _, name := range schema.Required() {
		if clean.Defaulted[name] {
			requiredPresent = false
			break
		}
	}
	bonus := 0.0
	if requiredPresent {
		bonus = 0.2
	}
	return clamp01(ratio + bonus)
}

// levelBaseline is the per-level baseline advice, one string per clause.
var levelBaseline = map[Level][]string{
	LevelSafe: {
		"Continue work as normal.",
		"Maintain regular hydration.",
		"Monitor conditions for changes.",
	},
	LevelCaution: {
		"Drink 8 oz of water every 15-20 minutes.",
		"Take a shaded rest break at least once per hour.",
		"Watch for early symptoms of heat illness.",
		"Wear lighter clothing where possible.",
	},
	LevelWarning: {
		"Follow 15/15 work/rest cycles.",
		"Drink 8 oz of water every 15 minutes.",
		"Relocate to a cooler area if possible.",
		"Remove unnecessary protective layers.",
		"Use the buddy system to watch for symptoms in coworkers.",
	},
	LevelDanger: {
		"Stop strenuous outdoor work immediately.",
		"Move to an air-conditioned environment.",
		"Begin continuous medical monitoring.",
		"Initiate active cooling measures.",
		"Contact medical personnel.",
	},
}

// bandAdvice is the heat-index-band addendum.
var bandAdvice = map[heatindex.Band]string{
	heatindex.BandNormal:         "",
	heatindex.BandCaution:        "Heat index indicates caution: pace work and increase hydration.",
	heatindex.BandExtremeCaution: "Heat index is elevated: postpone non-essential outdoor work.",
	heatindex.BandDanger:         "Heat index is dangerous: suspend outdoor work where possible.",
	heatindex.BandExtremeDanger:  "Heat index is extreme: cease all outdoor work.",
}

// recommendationsFor combines the level baseline with the heat-index-band
// addendum. The result is never empty.
func recommendationsFor(level Level, band heatindex.Band) []string {
	base := levelBaseline[level]
	out := make([]string, len(base))
	copy(out, base)
	if advice := bandAdvice[band]; advice != "" {
		out = append(out, advice)
	}
	return out
}

// SortedClassNames returns class names in alphabetical order, used by callers
// that need deterministic iteration over ClassProbabilities.
func SortedClassNames(n int) []string {
	labels := append([]string(nil), labelsFor(n)...)
	sort.Strings(labels)
	return labels
}
