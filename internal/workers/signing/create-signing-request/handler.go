// Package createsigningrequest sends an approved application's loan agreement
// out for e-signature.
package createsigningrequest

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
	"lending-workers/internal/esign"
	"lending-workers/internal/models"
)

const TaskType = "create-signing-request"

// SigningProvider sends one agreement out for signature. Satisfied by
// esign.Client.
type SigningProvider interface {
	CreateSigningRequest(ctx context.Context, req *esign.SigningRequest) (*esign.SigningResponse, error)
}

type Handler struct {
	config   *Config
	db       *sql.DB
	provider SigningProvider
	logger   logger.Logger
}

func NewHandler(config *Config, db *sql.DB, provider SigningProvider, log logger.Logger) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Handler{
		config:   config,
		db:       db,
		provider: provider,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
			code = string(apperrors.ErrCodeSigningRequestFailed)
		}
		h.failJob(client, job, code, err.Error())
		return
	}

	h.completeJob(client, job, output)
}

// execute enforces one in-flight signing job per application: a pending or
// processing row blocks a second request so the applicant never receives two
// live signing links.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, apperrors.NewValidationError("applicationId", "applicationId is required")
	}

	app, err := h.loadApplication(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusApproved {
		return nil, apperrors.NewInvalidStatusTransitionError(string(app.Status), string(models.StatusSigned))
	}

	inFlight, err := h.hasInFlightJob(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if inFlight {
		return nil, apperrors.NewSigningJobInFlightError(input.ApplicationID)
	}

	signingJobID := uuid.New().String()
	if err := h.insertJob(ctx, signingJobID, input.ApplicationID); err != nil {
		return nil, err
	}

	templateID := input.TemplateID
	if templateID == "" {
		templateID = h.config.DefaultTemplateID
	}

	resp, err := h.provider.CreateSigningRequest(ctx, &esign.SigningRequest{
		ApplicationID: input.ApplicationID,
		TemplateID:    templateID,
		SignerEmail:   app.ContactEmail,
		SignerName:    app.BusinessName,
	})
	if err != nil {
		if markErr := h.markJobFailed(ctx, signingJobID); markErr != nil {
			h.logger.Error("failed to mark signing job failed", map[string]interface{}{
				"signingJobId": signingJobID,
				"error":        markErr,
			})
		}
		return nil, err
	}

	if err := h.completeSigningJob(ctx, signingJobID, input.ApplicationID, resp); err != nil {
		return nil, err
	}

	h.logger.Info("signing request created", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"signingJobId":  signingJobID,
	})
	return &Output{
		SigningJobID: signingJobID,
		RequestID:    resp.RequestID,
		SigningURL:   resp.SigningURL,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) loadApplication(ctx context.Context, applicationID string) (*models.Application, error) {
	var app models.Application
	err := h.db.QueryRowContext(ctx,
		`SELECT id, business_name, contact_email, status FROM applications WHERE id = $1`,
		applicationID).
		Scan(&app.ID, &app.BusinessName, &app.ContactEmail, &app.Status)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewRecordNotFoundError("application", applicationID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("select application", err)
	}
	return &app, nil
}

func (h *Handler) hasInFlightJob(ctx context.Context, applicationID string) (bool, error) {
	var count int
	err := h.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM signing_jobs
		 WHERE application_id = $1 AND status IN ('pending', 'processing')`,
		applicationID).Scan(&count)
	if err != nil {
		return false, apperrors.NewQueryExecutionFailedError("count in-flight signing jobs", err)
	}
	return count > 0, nil
}

func (h *Handler) insertJob(ctx context.Context, signingJobID, applicationID string) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO signing_jobs (id, application_id, status, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		signingJobID, applicationID, models.SigningPending)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError("signing_jobs", err)
	}
	return nil
}

func (h *Handler) markJobFailed(ctx context.Context, signingJobID string) error {
	_, err := h.db.ExecContext(ctx,
		`UPDATE signing_jobs SET status = $1, updated_at = NOW() WHERE id = $2`,
		models.SigningFailed, signingJobID)
	return err
}

func (h *Handler) completeSigningJob(ctx context.Context, signingJobID, applicationID string, resp *esign.SigningResponse) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE signing_jobs SET status = $1, request_id = $2, signing_url = $3, updated_at = NOW()
		 WHERE id = $4`,
		models.SigningCompleted, resp.RequestID, resp.SigningURL, signingJobID)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("update signing job", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE applications SET signing_url = $1, updated_at = NOW() WHERE id = $2`,
		resp.SigningURL, applicationID)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("update application signing url", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewQueryExecutionFailedError("commit signing job", err)
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
