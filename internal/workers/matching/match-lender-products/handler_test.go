package matchlenderproducts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/models"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) ActiveProducts(ctx context.Context) ([]*models.LenderProduct, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LenderProduct), args.Error(1)
}

func testCatalog() []*models.LenderProduct {
	return []*models.LenderProduct{
		{
			ID: "prod-wide", LenderName: "Acme", ProductName: "Wide Term Loan",
			Category: models.CategoryTermLoan, Country: models.CountryUS,
			AmountMin: 5000, AmountMax: 100000, RateMin: 12, RateMax: 29,
			TermMinMonths: 6, TermMaxMonths: 48, Active: true,
		},
		{
			ID: "prod-centered", LenderName: "North", ProductName: "Centered LOC",
			Category: models.CategoryLineOfCredit, Country: models.CountryUS,
			AmountMin: 20000, AmountMax: 40000, RateMin: 9, RateMax: 19,
			TermMinMonths: 3, TermMaxMonths: 24, Active: true,
		},
		{
			ID: "prod-small", LenderName: "Micro", ProductName: "Micro Advance",
			Category: models.CategoryWorkingCapital, Country: models.CountryUS,
			AmountMin: 1000, AmountMax: 10000, RateMin: 15, RateMax: 40,
			TermMinMonths: 3, TermMaxMonths: 12, Active: true,
		},
	}
}

func newTestHandler(t *testing.T, catalog CatalogSource) *Handler {
	t.Helper()
	h, err := NewHandler(DefaultConfig(), catalog, logger.NewNoOpLogger())
	require.NoError(t, err)
	return h
}

func TestExecute_RanksEligibleProductsFirst(t *testing.T) {
	mockCatalog := new(MockCatalog)
	mockCatalog.On("ActiveProducts", mock.Anything).Return(testCatalog(), nil)

	h := newTestHandler(t, mockCatalog)
	output, err := h.Execute(context.Background(), &Input{
		ApplicationID: "app-1",
		ApplicationData: map[string]interface{}{
			"requestedAmount": float64(30000),
			"monthlyRevenue":  float64(8000),
			"country":         "US",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "app-1", output.ApplicationID)
	require.Len(t, output.Matches, 3)
	assert.Equal(t, 2, output.EligibleCount)
	// prod-centered sits exactly at its midpoint and outranks the wide range.
	assert.Equal(t, "prod-centered", output.TopProductID)
	assert.False(t, output.Matches[2].Eligible)
	assert.Equal(t, "prod-small", output.Matches[2].Product.ID)
	mockCatalog.AssertExpectations(t)
}

func TestExecute_StepBasedPayloadIsNormalized(t *testing.T) {
	mockCatalog := new(MockCatalog)
	mockCatalog.On("ActiveProducts", mock.Anything).Return(testCatalog(), nil)

	h := newTestHandler(t, mockCatalog)
	output, err := h.Execute(context.Background(), &Input{
		ApplicationID: "app-2",
		ApplicationData: map[string]interface{}{
			"step1": map[string]interface{}{"loanAmount": "$30,000"},
			"step2": map[string]interface{}{"annualRevenue": float64(96000)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(30000), output.Profile.RequestedAmount)
	assert.Equal(t, 8000.0, output.Profile.MonthlyRevenue)
	assert.Equal(t, 2, output.EligibleCount)
}

func TestExecute_MissingApplicationIDFails(t *testing.T) {
	h := newTestHandler(t, new(MockCatalog))

	_, err := h.Execute(context.Background(), &Input{
		ApplicationData: map[string]interface{}{"requestedAmount": float64(30000)},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.CodeOf(err))
}

func TestExecute_CatalogErrorPropagates(t *testing.T) {
	mockCatalog := new(MockCatalog)
	mockCatalog.On("ActiveProducts", mock.Anything).
		Return(nil, apperrors.NewQueryExecutionFailedError("select active products", assert.AnError))

	h := newTestHandler(t, mockCatalog)
	_, err := h.Execute(context.Background(), &Input{
		ApplicationID:   "app-3",
		ApplicationData: map[string]interface{}{"requestedAmount": float64(30000)},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, apperrors.CodeOf(err))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestExecute_MaxResultsTruncates(t *testing.T) {
	mockCatalog := new(MockCatalog)
	mockCatalog.On("ActiveProducts", mock.Anything).Return(testCatalog(), nil)

	cfg := DefaultConfig()
	cfg.MaxResults = 1
	h, err := NewHandler(cfg, mockCatalog, logger.NewNoOpLogger())
	require.NoError(t, err)

	output, err := h.Execute(context.Background(), &Input{
		ApplicationID:   "app-4",
		ApplicationData: map[string]interface{}{"requestedAmount": float64(30000)},
	})
	require.NoError(t, err)
	assert.Len(t, output.Matches, 1)
}
