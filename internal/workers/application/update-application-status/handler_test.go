package updateapplicationstatus

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/models"
)

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h, err := NewHandler(DefaultConfig(), db, logger.NewNoOpLogger())
	require.NoError(t, err)
	return h, dbMock
}

func statusRow(status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"status"}).AddRow(status)
}

func TestExecute_AllowedTransition(t *testing.T) {
	h, dbMock := newTestHandler(t)

	dbMock.ExpectQuery("SELECT status FROM applications").
		WithArgs("app-1").WillReturnRows(statusRow("submitted"))
	dbMock.ExpectBegin()
	dbMock.ExpectExec("UPDATE applications SET status").
		WithArgs("under_review", "app-1", "submitted").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	output, err := h.Execute(context.Background(), &Input{
		ApplicationID: "app-1",
		NewStatus:     models.StatusUnderReview,
		Actor:         "underwriting-service",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, output.PreviousStatus)
	assert.Equal(t, models.StatusUnderReview, output.NewStatus)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestExecute_DisallowedTransition(t *testing.T) {
	h, dbMock := newTestHandler(t)

	dbMock.ExpectQuery("SELECT status FROM applications").
		WithArgs("app-1").WillReturnRows(statusRow("draft"))

	_, err := h.Execute(context.Background(), &Input{
		ApplicationID: "app-1",
		NewStatus:     models.StatusFunded,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidStatusTransition, apperrors.CodeOf(err))
	assert.False(t, apperrors.IsRetryable(err))
	require.NoError(t, dbMock.ExpectationsWereMet(), "disallowed transition must not write")
}

func TestExecute_TerminalStatusStaysTerminal(t *testing.T) {
	h, dbMock := newTestHandler(t)

	dbMock.ExpectQuery("SELECT status FROM applications").
		WithArgs("app-1").WillReturnRows(statusRow("declined"))

	_, err := h.Execute(context.Background(), &Input{
		ApplicationID: "app-1",
		NewStatus:     models.StatusSubmitted,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidStatusTransition, apperrors.CodeOf(err))
}

func TestExecute_SameStatusIsIdempotentNoOp(t *testing.T) {
	h, dbMock := newTestHandler(t)

	dbMock.ExpectQuery("SELECT status FROM applications").
		WithArgs("app-1").WillReturnRows(statusRow("approved"))

	output, err := h.Execute(context.Background(), &Input{
		ApplicationID: "app-1",
		NewStatus:     models.StatusApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, output.NewStatus)
	require.NoError(t, dbMock.ExpectationsWereMet(), "re-applying the current status must not write")
}

func TestExecute_ConcurrentTransitionDetected(t *testing.T) {
	h, dbMock := newTestHandler(t)

	dbMock.ExpectQuery("SELECT status FROM applications").
		WithArgs("app-1").WillReturnRows(statusRow("submitted"))
	dbMock.ExpectBegin()
	// Another worker moved the row between our read and write.
	dbMock.ExpectExec("UPDATE applications SET status").
		WithArgs("under_review", "app-1", "submitted").
		WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectRollback()

	_, err := h.Execute(context.Background(), &Input{
		ApplicationID: "app-1",
		NewStatus:     models.StatusUnderReview,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidStatusTransition, apperrors.CodeOf(err))
}

func TestExecute_UnknownStatusRejected(t *testing.T) {
	h, _ := newTestHandler(t)

	_, err := h.Execute(context.Background(), &Input{
		ApplicationID: "app-1",
		NewStatus:     "archived",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.CodeOf(err))
}
