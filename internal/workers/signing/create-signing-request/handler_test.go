package createsigningrequest

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/esign"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateSigningRequest(ctx context.Context, req *esign.SigningRequest) (*esign.SigningResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*esign.SigningResponse), args.Error(1)
}

func newTestHandler(t *testing.T, provider SigningProvider) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h, err := NewHandler(DefaultConfig(), db, provider, logger.NewNoOpLogger())
	require.NoError(t, err)
	return h, dbMock
}

func approvedAppRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "business_name", "contact_email", "status"}).
		AddRow("app-1", "Acme LLC", "owner@acme.test", "approved")
}

func inFlightCount(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func TestExecute_HappyPath(t *testing.T) {
	provider := new(MockProvider)
	provider.On("CreateSigningRequest", mock.Anything, mock.MatchedBy(func(req *esign.SigningRequest) bool {
		return req.ApplicationID == "app-1" &&
			req.SignerEmail == "owner@acme.test" &&
			req.TemplateID == "tpl-loan-agreement"
	})).Return(&esign.SigningResponse{
		RequestID:  "sr-1",
		SigningURL: "https://sign.example.com/sr-1",
	}, nil)

	h, dbMock := newTestHandler(t, provider)
	dbMock.ExpectQuery("SELECT id, business_name").WithArgs("app-1").WillReturnRows(approvedAppRows())
	dbMock.ExpectQuery("SELECT COUNT").WithArgs("app-1").WillReturnRows(inFlightCount(0))
	dbMock.ExpectExec("INSERT INTO signing_jobs").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectBegin()
	dbMock.ExpectExec("UPDATE signing_jobs SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("UPDATE applications SET signing_url").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	output, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, output.SigningJobID)
	assert.Equal(t, "https://sign.example.com/sr-1", output.SigningURL)
	require.NoError(t, dbMock.ExpectationsWereMet())
	provider.AssertExpectations(t)
}

func TestExecute_BlocksSecondInFlightJob(t *testing.T) {
	h, dbMock := newTestHandler(t, new(MockProvider))
	dbMock.ExpectQuery("SELECT id, business_name").WithArgs("app-1").WillReturnRows(approvedAppRows())
	dbMock.ExpectQuery("SELECT COUNT").WithArgs("app-1").WillReturnRows(inFlightCount(1))

	_, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSigningJobInFlight, apperrors.CodeOf(err))
	assert.False(t, apperrors.IsRetryable(err))
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestExecute_RejectsUnapprovedApplication(t *testing.T) {
	h, dbMock := newTestHandler(t, new(MockProvider))
	dbMock.ExpectQuery("SELECT id, business_name").WithArgs("app-1").WillReturnRows(
		sqlmock.NewRows([]string{"id", "business_name", "contact_email", "status"}).
			AddRow("app-1", "Acme LLC", "owner@acme.test", "under_review"))

	_, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidStatusTransition, apperrors.CodeOf(err))
}

func TestExecute_ProviderFailureMarksJobFailed(t *testing.T) {
	provider := new(MockProvider)
	provider.On("CreateSigningRequest", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewSigningRequestFailedError(assert.AnError))

	h, dbMock := newTestHandler(t, provider)
	dbMock.ExpectQuery("SELECT id, business_name").WithArgs("app-1").WillReturnRows(approvedAppRows())
	dbMock.ExpectQuery("SELECT COUNT").WithArgs("app-1").WillReturnRows(inFlightCount(0))
	dbMock.ExpectExec("INSERT INTO signing_jobs").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("UPDATE signing_jobs SET status").WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSigningRequestFailed, apperrors.CodeOf(err))
	assert.True(t, apperrors.IsRetryable(err))
	require.NoError(t, dbMock.ExpectationsWereMet())
}
