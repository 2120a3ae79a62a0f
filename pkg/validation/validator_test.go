package validation

import (
	"testing"
	"time"

	"github.com/orchestrix/orchestrix-alerts/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	appErr, ok := apperror.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	return appErr.Details["fields"].(map[string]string)
}

func TestValidate_FirstRuleWins(t *testing.T) {
	err := Validate(func(v *Validator) {
		v.Required("description", "").
			LengthBetween("description", "", 5, 1000)
		v.Required("severity", "severe").
			Enum("severity", "severe", []string{"HIGH", "LOW"})
	})

	fields := fieldsOf(t, err)
	assert.Equal(t, "description is required", fields["description"])
	assert.Equal(t, "severity must be one of: HIGH, LOW", fields["severity"])
	assert.Equal(t, "description is required", err.(*apperror.AppError).Message)
}

func TestValidate_Rules(t *testing.T) {
	early := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	tests := []struct {
		name  string
		rule  func(v *Validator)
		field string
	}{
		{"too short", func(v *Validator) { v.LengthBetween("description", " abc ", 5, 10) }, "description"},
		{"multibyte counts characters", func(v *Validator) { v.LengthBetween("description", "ééééééé", 1, 6) }, "description"},
		{"missing time", func(v *Validator) { v.RequiredTime("timestamp", time.Time{}) }, "timestamp"},
		{"inverted range", func(v *Validator) { v.Ordered("from", &late, &early) }, "from"},
		{"custom", func(v *Validator) { v.Custom("status", false, "unknown status") }, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, fieldsOf(t, Validate(tt.rule)), tt.field)
		})
	}
}

func TestValidate_Passes(t *testing.T) {
	early := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	err := Validate(func(v *Validator) {
		v.Required("description", "disk full").
			LengthBetween("description", "disk full", 5, 1000)
		v.Enum("severity", "high", []string{"HIGH", "LOW"})
		v.Enum("status", "", []string{"ACTIVE"})
		v.Ordered("from", &early, &early)
		v.Ordered("from", nil, &early)
		v.RequiredTime("timestamp", early)
	})

	assert.NoError(t, err)
}
