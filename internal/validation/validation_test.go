package validation

import (
	"testing"

	"github.com/heatguard/risk-scoring-api/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseRecord() Record {
	return Record{
		"gender":        1.0,
		"age":           30.0,
		"temperature_c": 25.0,
		"humidity_pct":  50.0,
		"hrv_mean_hr":   75.0,
		"hrv_mean_nni":  800.0,
	}
}

func TestValidateMinimalRecordSucceeds(t *testing.T) {
	clean, err := Validate(baseRecord())
	require.NoError(t, err)
	assert.Len(t, clean.Values, 50)
	assert.NotEmpty(t, clean.WorkerID)
}

func TestValidateMissingRequiredFails(t *testing.T) {
	rec := baseRecord()
	delete(rec, "hrv_mean_hr")
	_, err := Validate(rec)
	require.Error(t, err)
	appErr, ok := err.(*apperrors.Error)
	require.True(t, ok)
	assert.Equal(t, apperrors.ValidationError, appErr.Kind)
}

func TestValidateAgeBelow16Fails(t *testing.T) {
	rec := baseRecord()
	rec["age"] = 10.0
	_, err := Validate(rec)
	require.Error(t, err)
}

func TestValidateHumidityOutOfBoundsFails(t *testing.T) {
	rec := baseRecord()
	rec["humidity_pct"] = 150.0
	_, err := Validate(rec)
	require.Error(t, err)
}

func TestValidateAgeAbove80Warns(t *testing.T) {
	rec := baseRecord()
	rec["age"] = 85.0
	clean, err := Validate(rec)
	require.NoError(t, err)
	assert.Equal(t, 80.0, clean.Values["age"])
	found := false
	for _, w := range clean.Warnings {
		if w != "" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateOutOfRangeClampsWithWarning(t *testing.T) {
	rec := baseRecord()
	rec["hrv_rmssd"] = 10000.0
	clean, err := Validate(rec)
	require.NoError(t, err)
	assert.Equal(t, 300.0, clean.Values["hrv_rmssd"])
	assert.NotEmpty(t, clean.Warnings)
}

func TestValidateNonNumericOptionalUsesDefault(t *testing.T) {
	rec := baseRecord()
	rec["hrv_sdnn"] = "not-a-number"
	clean, err := Validate(rec)
	require.NoError(t, err)
	assert.NotZero(t, clean.Values["hrv_sdnn"])
}

func TestWorkerIDSanitizationAndAutoGeneration(t *testing.T) {
	rec := baseRecord()
	rec["worker_id"] = "worker one!!"
	clean, err := Validate(rec)
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Za-z0-9._-]+$`, clean.WorkerID)

	rec2 := baseRecord()
	clean2, err := Validate(rec2)
	require.NoError(t, err)
	assert.Contains(t, clean2.WorkerID, "worker_")
}

func TestValidateBatchPartialFailures(t *testing.T) {
	good := baseRecord()
	bad := baseRecord()
	delete(bad, "age")

	result, err := ValidateBatch([]Record{good, bad}, 1000)
	require.NoError(t, err)
	assert.Len(t, result.Valid, 1)
	assert.Len(t, result.Errors, 1)
}

func TestValidateBatchAllFailFails(t *testing.T) {
	bad := baseRecord()
	delete(bad, "age")
	_, err := ValidateBatch([]Record{bad}, 1000)
	require.Error(t, err)
}

func TestValidateBatchExceedsMaxFails(t *testing.T) {
	records := make([]Record, 5)
	for i := range records {
		records[i] = baseRecord()
	}
	_, err := ValidateBatch(records, 3)
	require.Error(t, err)
}

func TestValidateBatchEmptyFails(t *testing.T) {
	_, err := ValidateBatch(nil, 1000)
	require.Error(t, err)
}

func TestValidationIdempotent(t *testing.T) {
	clean1, err := Validate(baseRecord())
	require.NoError(t, err)

	rec2 := Record{}
	for k, v := range clean1.Values {
		rec2[k] = v
	}
	rec2["worker_id"] = clean1.WorkerID

	clean2, err := Validate(rec2)
	require.NoError(t, err)
	assert.Equal(t, clean1.Values, clean2.Values)
	assert.Equal(t, clean1.WorkerID, clean2.WorkerID)
}
