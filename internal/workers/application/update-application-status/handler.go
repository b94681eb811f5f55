// Package updateapplicationstatus moves an application through its lifecycle
// and records the transition in the audit log.
package updateapplicationstatus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	apperrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/common/metrics"
	"lending-workers/internal/models"
)

const TaskType = "update-application-status"

type Handler struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Handler{
		config: config,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, string(apperrors.ErrCodeValidationFailed), fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		code := string(apperrors.CodeOf(err))
		if code == "" {
			code = string(apperrors.ErrCodeQueryExecutionFailed)
		}
		h.failJob(client, job, code, err.Error())
		return
	}

	h.completeJob(client, job, output)
}

// execute applies the transition under the lifecycle graph. Re-applying the
// current status is a no-op success so job retries stay idempotent; any other
// disallowed move fails without touching the row.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, apperrors.NewValidationError("applicationId", "applicationId is required")
	}
	if !input.NewStatus.Valid() {
		return nil, apperrors.NewValidationError("newStatus", fmt.Sprintf("unknown status %q", input.NewStatus))
	}

	current, err := h.currentStatus(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}

	updatedAt := time.Now().UTC().Format(time.RFC3339)
	if current == input.NewStatus {
		return &Output{
			ApplicationID:  input.ApplicationID,
			PreviousStatus: current,
			NewStatus:      current,
			UpdatedAt:      updatedAt,
		}, nil
	}
	if !current.CanTransitionTo(input.NewStatus) {
		return nil, apperrors.NewInvalidStatusTransitionError(string(current), string(input.NewStatus))
	}

	if err := h.applyTransition(ctx, input, current); err != nil {
		return nil, err
	}

	h.logger.Info("status updated", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"from":          current,
		"to":            input.NewStatus,
	})
	return &Output{
		ApplicationID:  input.ApplicationID,
		PreviousStatus: current,
		NewStatus:      input.NewStatus,
		UpdatedAt:      updatedAt,
	}, nil
}

func (h *Handler) currentStatus(ctx context.Context, applicationID string) (models.ApplicationStatus, error) {
	var status models.ApplicationStatus
	err := h.db.QueryRowContext(ctx,
		`SELECT status FROM applications WHERE id = $1`, applicationID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", apperrors.NewRecordNotFoundError("application", applicationID)
	}
	if err != nil {
		return "", apperrors.NewQueryExecutionFailedError("select application status", err)
	}
	return status, nil
}

func (h *Handler) applyTransition(ctx context.Context, input *Input, previous models.ApplicationStatus) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	// Guard against a concurrent transition between read and write.
	result, err := tx.ExecContext(ctx,
		`UPDATE applications SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		input.NewStatus, input.ApplicationID, previous)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("update application status", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("update application status", err)
	}
	if affected == 0 {
		return apperrors.NewInvalidStatusTransitionError(string(previous), string(input.NewStatus))
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_log (id, application_id, event_type, old_value, new_value, actor, detail, created_at)
		 VALUES ($1, $2, 'status_change', $3, $4, $5, $6, NOW())`,
		uuid.New().String(), input.ApplicationID, previous, input.NewStatus, input.Actor, input.Reason)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError("audit_log", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewQueryExecutionFailedError("commit status transition", err)
	}
	return nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{"error": err})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
