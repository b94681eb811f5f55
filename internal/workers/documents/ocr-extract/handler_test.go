package ocrextract

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/ocr"
)

type MockSigner struct {
	mock.Mock
}

func (m *MockSigner) PresignedGetURL(ctx context.Context, storageKey string) (string, error) {
	args := m.Called(ctx, storageKey)
	return args.String(0), args.Error(1)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, req *ocr.ExtractRequest) (*ocr.ExtractResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ocr.ExtractResult), args.Error(1)
}

func documentRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "application_id", "storage_key", "document_type", "status"}).
		AddRow("doc-1", "app-1", "applications/app-1/doc-1.pdf", "bank_statements", "uploaded")
}

func newTestHandler(t *testing.T, signer URLSigner, extractor Extractor) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h, err := NewHandler(DefaultConfig(), db, signer, extractor, logger.NewNoOpLogger())
	require.NoError(t, err)
	return h, dbMock
}

func TestExecute_HappyPath(t *testing.T) {
	signer := new(MockSigner)
	signer.On("PresignedGetURL", mock.Anything, "applications/app-1/doc-1.pdf").
		Return("https://bucket.s3/presigned", nil)

	extractor := new(MockExtractor)
	extractor.On("Extract", mock.Anything, &ocr.ExtractRequest{
		DocumentURL:  "https://bucket.s3/presigned",
		DocumentType: "bank_statements",
	}).Return(&ocr.ExtractResult{Text: "statement text", Confidence: 0.91}, nil)

	h, dbMock := newTestHandler(t, signer, extractor)
	dbMock.ExpectQuery("SELECT id, application_id, storage_key").
		WithArgs("doc-1").WillReturnRows(documentRow())
	dbMock.ExpectExec("UPDATE documents SET status").
		WithArgs("ocr_pending", "doc-1").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("INSERT INTO ocr_results").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("UPDATE documents SET status").
		WithArgs("ocr_complete", "doc-1").WillReturnResult(sqlmock.NewResult(0, 1))

	output, err := h.Execute(context.Background(), &Input{DocumentID: "doc-1"})
	require.NoError(t, err)

	assert.Equal(t, "ocr_complete", output.Status)
	assert.NotEmpty(t, output.OcrResultID)
	assert.Equal(t, len("statement text"), output.TextLength)
	assert.InDelta(t, 0.91, output.Confidence, 1e-9)
	require.NoError(t, dbMock.ExpectationsWereMet())
	signer.AssertExpectations(t)
	extractor.AssertExpectations(t)
}

func TestExecute_UnknownDocument(t *testing.T) {
	h, dbMock := newTestHandler(t, new(MockSigner), new(MockExtractor))
	dbMock.ExpectQuery("SELECT id, application_id, storage_key").
		WithArgs("doc-missing").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := h.Execute(context.Background(), &Input{DocumentID: "doc-missing"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRecordNotFound, apperrors.CodeOf(err))
	assert.False(t, apperrors.IsRetryable(err))
}

func TestExecute_PermanentRejectionMarksDocumentFailed(t *testing.T) {
	signer := new(MockSigner)
	signer.On("PresignedGetURL", mock.Anything, mock.Anything).Return("https://bucket.s3/presigned", nil)

	extractor := new(MockExtractor)
	extractor.On("Extract", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewOCRRejectedError(422, "unsupported file type"))

	h, dbMock := newTestHandler(t, signer, extractor)
	dbMock.ExpectQuery("SELECT id, application_id, storage_key").
		WithArgs("doc-1").WillReturnRows(documentRow())
	dbMock.ExpectExec("UPDATE documents SET status").
		WithArgs("ocr_pending", "doc-1").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("UPDATE documents SET status").
		WithArgs("ocr_failed", "doc-1").WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := h.Execute(context.Background(), &Input{DocumentID: "doc-1"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeOCRExtractionFailed, apperrors.CodeOf(err))
	assert.False(t, apperrors.IsRetryable(err))
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestExecute_RetryableProviderFailureLeavesStatusPending(t *testing.T) {
	signer := new(MockSigner)
	signer.On("PresignedGetURL", mock.Anything, mock.Anything).Return("https://bucket.s3/presigned", nil)

	extractor := new(MockExtractor)
	extractor.On("Extract", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewOCRExtractionFailedError(assert.AnError))

	h, dbMock := newTestHandler(t, signer, extractor)
	dbMock.ExpectQuery("SELECT id, application_id, storage_key").
		WithArgs("doc-1").WillReturnRows(documentRow())
	dbMock.ExpectExec("UPDATE documents SET status").
		WithArgs("ocr_pending", "doc-1").WillReturnResult(sqlmock.NewResult(0, 1))
	// No ocr_failed update: the job engine will retry against ocr_pending.

	_, err := h.Execute(context.Background(), &Input{DocumentID: "doc-1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	require.NoError(t, dbMock.ExpectationsWereMet())
}
