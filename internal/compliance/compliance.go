// Package compliance implements the append-only audit journal: every
// scoring event is recorded for regulatory reporting, high-risk events
// get an escalation record, and a query surface supports report
// generation.
package compliance

import (
	"time"

	"github.com/heatguard/risk-scoring-api/internal/heatindex"
	"github.com/heatguard/risk-scoring-api/internal/scoring"
)

// EventKind distinguishes the four record shapes the journal writes.
type EventKind string

const (
	EventAssessment    EventKind = "Assessment"
	EventHighRiskAlert EventKind = "HighRiskAlert"
	EventBatchSummary  EventKind = "BatchSummary"
	EventBatchAlert    EventKind = "BatchAlert"
)

// Record is one line of the append-only journal.
type Record struct {
	Kind         EventKind            `json:"kind"`
	Timestamp    time.Time            `json:"timestamp"`
	RequestID    string               `json:"request_id,omitempty"`
	WorkerID     string               `json:"worker_id,omitempty"`
	Assessment   *AssessmentPayload   `json:"assessment,omitempty"`
	Alert        *AlertPayload        `json:"alert,omitempty"`
	BatchSummary *BatchSummaryPayload `json:"batch_summary,omitempty"`
	BatchAlert   *BatchAlertPayload   `json:"batch_alert,omitempty"`
}

// AssessmentPayload echoes a single prediction plus its compliance flags.
type AssessmentPayload struct {
	RiskScore                   float64        `json:"risk_score"`
	RiskLevel                   scoring.Level  `json:"risk_level"`
	Confidence                  float64        `json:"confidence"`
	TemperatureC                float64        `json:"temperature_c"`
	HumidityPct                 float64        `json:"humidity_pct"`
	HeatIndexF                  float64        `json:"heat_index_f"`
	HeatIndexBand               heatindex.Band `json:"heat_index_band"`
	WorkRestRequired            bool           `json:"work_rest_required"`
	WorkRestRecommendation      string         `json:"work_rest_recommendation"`
	MedicalAttentionRecommended bool           `json:"medical_attention_recommended"`
	Recommendations             []string       `json:"osha_recommendations"`
}

// AlertPayload is the HighRiskAlert escalation record.
type AlertPayload struct {
	Reasons            []string `json:"reasons"`
	TopRecommendations []string `json:"top_recommendations"`
}

// BatchSummaryPayload aggregates one batch's outcome.
type BatchSummaryPayload struct {
	Total             int            `json:"total"`
	Succeeded         int            `json:"succeeded"`
	Failed            int            `json:"failed"`
	CountsByLevel     map[string]int `json:"counts_by_level"`
	MinScore          float64        `json:"min_score"`
	MeanScore         float64        `json:"mean_score"`
	MedianScore       float64        `json:"median_score"`
	MaxScore          float64        `json:"max_score"`
	HighRiskCount     int            `json:"high_risk_count"`
	BandDistribution  map[string]int `json:"band_distribution"`
	AttentionFraction float64        `json:"attention_fraction"`
	ProcessingTimeMs  float64        `json:"processing_time_ms"`
}

// BatchAlertPayload is emitted when a batch's high-risk fraction exceeds
// the configured threshold.
type BatchAlertPayload struct {
	HighRiskFraction   float64  `json:"high_risk_fraction"`
	RecommendedActions []string `json:"recommended_actions"`
}

// workRestTable holds the OSHA work/rest guidance for moderate work
// intensity. WorkerSample carries no activity-level field, so every
// record uses the moderate-intensity assumption.
var workRestTable = map[heatindex.Band]string{
	heatindex.BandNormal:         "continuous work permitted, no mandated rest",
	heatindex.BandCaution:        "30 min work / 30 min rest per hour",
	heatindex.BandExtremeCaution: "15 min work / 45 min rest per hour",
	heatindex.BandDanger:         "cease work, 60 min rest per hour",
	heatindex.BandExtremeDanger:  "cease work, 60 min rest per hour",
}

func assessmentPayload(res *scoring.Result) *AssessmentPayload {
	band := heatindex.ClassifyBand(res.HeatIndexF)
	return &AssessmentPayload{
		RiskScore:                   res.RiskScore,
		RiskLevel:                   res.RiskLevel,
		Confidence:                  res.Confidence,
		TemperatureC:                res.TemperatureC,
		HumidityPct:                 res.HumidityPct,
		HeatIndexF:                  res.HeatIndexF,
		HeatIndexBand:               band,
		WorkRestRequired:            band != heatindex.BandNormal,
		WorkRestRecommendation:      workRestTable[band],
		MedicalAttentionRecommended: res.RequiresImmediateAttention,
		Recommendations:             res.OSHARecommendations,
	}
}

func alertReasons(res *scoring.Result, dangerHeatIndexF float64) []string {
	var reasons []string
	if res.RiskScore > 0.75 {
		reasons = append(reasons, "risk score exceeds 0.75")
	}
	if res.HeatIndexF >= dangerHeatIndexF {
		reasons = append(reasons, "heat index at or above danger threshold")
	}
	if res.RiskLevel == scoring.LevelDanger {
		reasons = append(reasons, "risk level classified as Danger")
	}
	return reasons
}

func topRecommendations(recs []string, n int) []string {
	if len(recs) <= n {
		return append([]string(nil), recs...)
	}
	return append([]string(nil), recs[:n]...)
}
