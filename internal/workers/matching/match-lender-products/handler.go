// Package matchlenderproducts matches an application's normalized profile
// against the active lender-product catalog.
package matchlenderproducts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/common/metrics"
	"lending-workers/internal/matching"
	"lending-workers/internal/models"
	"lending-workers/internal/profile"
)

const TaskType = "match-lender-products"

// CatalogSource serves the active product set. Satisfied by catalog.Store.
type CatalogSource interface {
	ActiveProducts(ctx context.Context) ([]*models.LenderProduct, error)
}

type Handler struct {
	config  *Config
	catalog CatalogSource
	logger  logger.Logger
}

func NewHandler(config *Config, catalog CatalogSource, log logger.Logger) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Handler{
		config:  config,
		catalog: catalog,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
		metrics.MatchRequestsTotal.WithLabelValues("error").Inc()
		code := string(apperrors.CodeOf(err))
		if code == "" {
			code = string(apperrors.ErrCodeExternalServiceError)
		}
		h.failJob(client, job, code, err.Error())
		return
	}

	metrics.MatchRequestsTotal.WithLabelValues("ok").Inc()
	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, apperrors.NewValidationError("applicationId", "applicationId is required")
	}
	if len(input.ApplicationData) == 0 {
		return nil, apperrors.NewValidationError("applicationData", "applicationData is required")
	}

	applicantProfile := profile.Normalize(input.ApplicationData)

	catalog, err := h.catalog.ActiveProducts(ctx)
	if err != nil {
		return nil, err
	}

	results, err := matching.Match(applicantProfile, catalog)
	if err != nil {
		return nil, err
	}
	if len(results) > h.config.MaxResults {
		results = results[:h.config.MaxResults]
	}

	output := &Output{
		ApplicationID: input.ApplicationID,
		Profile:       applicantProfile,
		Matches:       results,
		MatchedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	for _, r := range results {
		if r.Eligible {
			output.EligibleCount++
		}
	}
	if output.EligibleCount > 0 {
		output.TopProductID = results[0].Product.ID
	}

	h.logger.Info("match completed", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"catalogSize":   len(catalog),
		"eligibleCount": output.EligibleCount,
	})
	return output, nil
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
