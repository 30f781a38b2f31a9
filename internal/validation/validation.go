// Package validation implements the business-rule validator that turns
// a loosely-typed submission into a cleaned record plus warnings.
package validation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/heatguard/risk-scoring-api/internal/apperrors"
	"github.com/heatguard/risk-scoring-api/internal/schema"
)

// Record is a loosely-typed input: a map from feature name (or
// "worker_id") to an arbitrary value as decoded from JSON.
type Record map[string]interface{}

// Clean is a fully validated, schema-ordered record: every feature name
// is present with a finite value.
type Clean struct {
	WorkerID string
	Values   map[string]float64
	Warnings []string
	// Defaulted marks the feature names that were filled from the schema
	// default (missing or non-numeric input) rather than supplied by the
	// caller, used by the scorer's data-quality score.
	Defaulted map[string]bool
}

var workerIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

var monotonicCounter int64

func nextWorkerID() string {
	n := atomic.AddInt64(&monotonicCounter, 1)
	return fmt.Sprintf("worker_%d_%d", time.Now().UnixMilli(), n)
}

// Validate applies the single-record rules: required fields must be
// present and coercible; optional fields missing or non-numeric fall
// back to the schema default with a warning; every field is clamped to
// its canonical range with a warning when out of range; a handful of
// business rules fail or warn outright.
func Validate(in Record) (*Clean, error) {
	warnings := []string{}
	values := make(map[string]float64, schema.Size())
	defaulted := make(map[string]bool, schema.Size())

	for _, name := range schema.Required() {
		raw, present := in[name]
		if !present {
			return nil, apperrors.New(apperrors.ValidationError, fmt.Sprintf("required field %q missing", name))
		}
		f, ok := toFloat(raw)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, apperrors.New(apperrors.ValidationError, fmt.Sprintf("required field %q is not a finite number", name))
		}
		values[name] = f
	}

	ctx := schema.Context{
		Age: values["age"], AgeKnown: true,
		Gender: values["gender"], GenderKnown: true,
		MeanHR: values["hrv_mean_hr"], MeanHRKnown: true,
	}

	for _, name := range schema.Features() {
		if _, done := values[name]; done {
			continue
		}
		raw, present := in[name]
		if !present {
			values[name] = schema.Default(name, ctx)
			defaulted[name] = true
			continue
		}
		f, ok := toFloat(raw)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			warnings = append(warnings, fmt.Sprintf("field %q is not numeric, using default", name))
			values[name] = schema.Default(name, ctx)
			defaulted[name] = true
			continue
		}
		values[name] = f
	}

	// Business rules inspect the pre-clamp values: the clamp range for
	// age/temperature/heart-rate overlaps the business-rule thresholds,
	// so failures and warnings must be decided before clamping masks them.
	if err := businessRuleFailures(values); err != nil {
		return nil, err
	}
	warnings = append(warnings, businessRuleWarnings(values)...)

	for _, name := range schema.Features() {
		min, max, ok := schema.Range(name)
		if !ok {
			continue
		}
		v := values[name]
		if v < min {
			warnings = append(warnings, fmt.Sprintf("field %q value %.3f below minimum %.3f, clamped", name, v, min))
			values[name] = min
		} else if v > max {
			warnings = append(warnings, fmt.Sprintf("field %q value %.3f above maximum %.3f, clamped", name, v, max))
			values[name] = max
		}
	}

	workerID, _ := in["worker_id"].(string)
	workerID, idWarnings := sanitizeWorkerID(workerID)
	warnings = append(warnings, idWarnings...)

	return &Clean{WorkerID: workerID, Values: values, Warnings: warnings, Defaulted: defaulted}, nil
}

// businessRuleFailures implements the rules that fail validation outright:
// age < 16, humidity outside [0,100]. Must run before range clamping.
func businessRuleFailures(values map[string]float64) error {
	if values["age"] < 16 {
		return apperrors.New(apperrors.ValidationError, "age below minimum of 16 years")
	}
	if values["humidity_pct"] < 0 || values["humidity_pct"] > 100 {
		return apperrors.New(apperrors.ValidationError, "humidity outside [0,100]")
	}
	return nil
}

func businessRuleWarnings(values map[string]float64) []string {
	var warnings []string
	if age := values["age"]; age > 80 {
		warnings = append(warnings, "age above 80 years, result may be unreliable")
	}
	if t := values["temperature_c"]; t < -50 || t > 50 {
		warnings = append(warnings, "extreme temperature outside canonical range")
	}
	if hr := values["hrv_mean_hr"]; hr < 30 || hr > 220 {
		warnings = append(warnings, "mean heart rate outside plausible physiological range")
	}
	return warnings
}

// sanitizeWorkerID restricts ids to [A-Za-z0-9._-]+ and 100 chars;
// empty/missing ids are auto-generated.
func sanitizeWorkerID(id string) (string, []string) {
	var warnings []string
	if id == "" {
		return nextWorkerID(), nil
	}
	if len(id) > 100 {
		warnings = append(warnings, "worker_id truncated to 100 characters")
		id = id[:100]
	}
	if !workerIDPattern.MatchString(id) {
		warnings = append(warnings, "worker_id contained disallowed characters, sanitized")
		id = sanitizeChars(id)
		if id == "" {
			return nextWorkerID(), warnings
		}
	}
	return id, warnings
}

func sanitizeChars(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			out = append(out, r)
		}
	}
	return string(out)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// BatchResult is the outcome of validating a list of records.
type BatchResult struct {
	Valid    []*Clean
	Errors   map[int]string // index -> message, for records that failed
	Warnings map[int][]string
}

// ValidateBatch validates each record independently, returning the
// sublist that passed plus per-index warnings/errors. The whole batch
// fails only if the list is empty, the size exceeds maxSize, or zero
// items validate.
func ValidateBatch(records []Record, maxSize int) (*BatchResult, error) {
	if len(records) == 0 {
		return nil, apperrors.New(apperrors.ValidationError, "batch is empty")
	}
	if maxSize > 0 && len(records) > maxSize {
		return nil, apperrors.New(apperrors.ValidationError, fmt.Sprintf("batch size %d exceeds limit %d", len(records), maxSize))
	}

	result := &BatchResult{Errors: map[int]string{}, Warnings: map[int][]string{}}
	for i, rec := range records {
		clean, err := Validate(rec)
		if err != nil {
			result.Errors[i] = err.Error()
			continue
		}
		if len(clean.Warnings) > 0 {
			result.Warnings[i] = clean.Warnings
		}
		result.Valid = append(result.Valid, clean)
	}

	if len(result.Valid) == 0 {
		return nil, apperrors.New(apperrors.ValidationError, "no items in batch validated successfully")
	}
	return result, nil
}
