// Package schema defines the canonical, ordered feature vector every
// WorkerSample is converted to before it reaches the model host.
package schema

// Group names a family of related HRV features.
type Group string

const (
	GroupDemographic     Group = "demographic"
	GroupEnvironment     Group = "environment"
	GroupTimeDomain      Group = "time_domain"
	GroupFrequencyDomain Group = "frequency_domain"
	GroupGeometric       Group = "geometric"
	GroupStatistical     Group = "statistical"
	GroupNonLinear       Group = "non_linear"
)

// Field describes one named feature: its position, its canonical clamp
// range, and the group it belongs to for feature-engineering purposes.
type Field struct {
	Name  string
	Group Group
	Min   float64
	Max   float64
}

// ordered is the single source of truth for feature order. The model
// consumes vectors in exactly this order. Ranges on the demographic and
// environmental fields are validation bounds; the HRV ranges are
// physiologically plausible bounds used for clamping and min-max
// normalization.
var ordered = []Field{
	{"gender", GroupDemographic, 0, 1},
	{"age", GroupDemographic, 16, 80},
	{"temperature_c", GroupEnvironment, -10, 50},
	{"humidity_pct", GroupEnvironment, 0, 100},

	{"hrv_mean_nni", GroupTimeDomain, 200, 2000},
	{"hrv_median_nni", GroupTimeDomain, 200, 2000},
	{"hrv_range_nni", GroupTimeDomain, 0, 2000},
	{"hrv_sdsd", GroupTimeDomain, 0, 300},
	{"hrv_rmssd", GroupTimeDomain, 0, 300},
	{"hrv_nni_50", GroupTimeDomain, 0, 1000},
	{"hrv_pnni_50", GroupTimeDomain, 0, 100},
	{"hrv_nni_20", GroupTimeDomain, 0, 1000},
	{"hrv_pnni_20", GroupTimeDomain, 0, 100},
	{"hrv_cvsd", GroupTimeDomain, 0, 1},
	{"hrv_sdnn", GroupTimeDomain, 0, 300},
	{"hrv_cvnni", GroupTimeDomain, 0, 1},
	{"hrv_mean_hr", GroupTimeDomain, 30, 220},
	{"hrv_min_hr", GroupTimeDomain, 30, 220},
	{"hrv_max_hr", GroupTimeDomain, 30, 220},
	{"hrv_std_hr", GroupTimeDomain, 0, 50},

	{"hrv_total_power", GroupFrequencyDomain, 0, 100000},
	{"hrv_vlf", GroupFrequencyDomain, 0, 50000},
	{"hrv_lf", GroupFrequencyDomain, 0, 50000},
	{"hrv_hf", GroupFrequencyDomain, 0, 50000},
	{"hrv_lf_hf_ratio", GroupFrequencyDomain, 0, 50},
	{"hrv_lfnu", GroupFrequencyDomain, 0, 100},
	{"hrv_hfnu", GroupFrequencyDomain, 0, 100},

	{"hrv_SD1", GroupGeometric, 0, 300},
	{"hrv_SD2", GroupGeometric, 0, 500},
	{"hrv_SD2SD1", GroupGeometric, 0, 20},
	{"hrv_CSI", GroupGeometric, 0, 50},
	{"hrv_CVI", GroupGeometric, 0, 10},
	{"hrv_CSI_Modified", GroupGeometric, 0, 2000},

	{"hrv_mean", GroupStatistical, 200, 2000},
	{"hrv_std", GroupStatistical, 0, 2000},
	{"hrv_min", GroupStatistical, 200, 2000},
	{"hrv_max", GroupStatistical, 200, 2000},
	{"hrv_ptp", GroupStatistical, 0, 2000},
	{"hrv_skewness", GroupStatistical, -5, 5},
	{"hrv_kurtosis", GroupStatistical, -5, 5},
	{"hrv_iqr", GroupStatistical, 0, 2000},
	{"hrv_iqr_5_95", GroupStatistical, 0, 2000},
	{"hrv_pct_5", GroupStatistical, 200, 2000},
	{"hrv_pct_95", GroupStatistical, 200, 2000},

	{"hrv_peaks", GroupNonLinear, 0, 10000},
	{"hrv_rms", GroupNonLinear, 0, 2000},
	{"hrv_n_sign_changes", GroupNonLinear, 0, 10000},
	{"hrv_entropy", GroupNonLinear, 0, 10},
	{"hrv_perm_entropy", GroupNonLinear, 0, 10},
	{"hrv_svd_entropy", GroupNonLinear, 0, 10},
}

// requiredNames is the minimal subset a WorkerSample must supply.
var requiredNames = []string{"gender", "age", "temperature_c", "humidity_pct", "hrv_mean_hr", "hrv_mean_nni"}

var byName map[string]Field
var names []string

func init() {
	byName = make(map[string]Field, len(ordered))
	names = make([]string, len(ordered))
	for i, f := range ordered {
		byName[f.Name] = f
		names[i] = f.Name
	}
}

// Features returns the ordered list of all 50 feature names.
func Features() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Size is the fixed length of a feature vector.
func Size() int { return len(ordered) }

// Required returns the subset of feature names that must be present on
// every WorkerSample.
func Required() []string {
	out := make([]string, len(requiredNames))
	copy(out, requiredNames)
	return out
}

// Range returns the canonical (min, max) clamp range for name.
func Range(name string) (min, max float64, ok bool) {
	f, ok := byName[name]
	if !ok {
		return 0, 0, false
	}
	return f.Min, f.Max, true
}

// GroupOf returns the feature group name belongs to.
func GroupOf(name string) (Group, bool) {
	f, ok := byName[name]
	return f.Group, ok
}

// Index returns the schema position of name, or -1 if unknown.
func Index(name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// IsHRV reports whether name is one of the 46 HRV vector features.
func IsHRV(name string) bool {
	f, ok := byName[name]
	if !ok {
		return false
	}
	switch f.Group {
	case GroupTimeDomain, GroupFrequencyDomain, GroupGeometric, GroupStatistical, GroupNonLinear:
		return true
	default:
		return false
	}
}
