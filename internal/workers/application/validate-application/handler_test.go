package validateapplication

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	h, err := NewHandler(DefaultConfig(), logger.NewNoOpLogger())
	require.NoError(t, err)
	return h
}

func TestExecute_ValidApplication(t *testing.T) {
	output, err := newTestHandler(t).Execute(context.Background(), &Input{
		ApplicationID: "app-1",
		ApplicationData: map[string]interface{}{
			"requestedAmount": float64(30000),
			"monthlyRevenue":  float64(8000),
			"country":         "US",
			"industry":        "Retail",
		},
	})
	require.NoError(t, err)
	assert.True(t, output.Valid)
	assert.Empty(t, output.Errors)
}

func TestExecute_MissingAmountIsInvalidNotError(t *testing.T) {
	output, err := newTestHandler(t).Execute(context.Background(), &Input{
		ApplicationID: "app-2",
		ApplicationData: map[string]interface{}{
			"monthlyRevenue": float64(8000),
			"country":        "US",
		},
	})
	require.NoError(t, err, "schema violations are an outcome, not a job failure")
	assert.False(t, output.Valid)
	assert.NotEmpty(t, output.Errors)
}

func TestExecute_StepBasedPayloadValidatesAfterNormalization(t *testing.T) {
	output, err := newTestHandler(t).Execute(context.Background(), &Input{
		ApplicationID: "app-3",
		ApplicationData: map[string]interface{}{
			"step1": map[string]interface{}{"loanAmount": "$25,000"},
			"step2": map[string]interface{}{"annualRevenue": float64(120000)},
		},
	})
	require.NoError(t, err)
	assert.True(t, output.Valid)
}

func TestExecute_EmptyPayloadFailsJob(t *testing.T) {
	_, err := newTestHandler(t).Execute(context.Background(), &Input{ApplicationID: "app-4"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.CodeOf(err))
}
