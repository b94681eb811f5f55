// Package validateapplication checks a submitted intake payload against the
// application schema before the process moves it into review.
package validateapplication

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"

	apperrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/common/metrics"
	"lending-workers/internal/profile"
)

const TaskType = "validate-application"

// applicationSchema validates the normalized profile, not the raw payload, so
// step-based and legacy submissions are judged by the same rules.
const applicationSchema = `{
	"type": "object",
	"required": ["requestedAmount", "monthlyRevenue", "country"],
	"properties": {
		"requestedAmount": {"type": "integer", "minimum": 1},
		"monthlyRevenue": {"type": "number", "minimum": 0},
		"annualRevenue": {"type": "number", "minimum": 0},
		"country": {"type": "string", "enum": ["US", "CA", "INTL"]},
		"industry": {"type": "string"},
		"timeInBusinessMonths": {"type": "integer", "minimum": 0},
		"useOfFunds": {"type": "string"},
		"creditScoreBand": {"type": "string", "enum": ["excellent", "good", "fair", "poor"]}
	}
}`

type Handler struct {
	config *Config
	schema *gojsonschema.Schema
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(applicationSchema))
	if err != nil {
		return nil, fmt.Errorf("compile application schema: %w", err)
	}
	return &Handler{
		config: config,
		schema: schema,
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
			code = string(apperrors.ErrCodeValidationFailed)
		}
		h.failJob(client, job, code, err.Error())
		return
	}

	h.completeJob(client, job, output)
}

// execute validates the payload. Schema violations are a business outcome
// (valid=false in the output), not a worker failure; only a missing or
// unreadable payload fails the job.
func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, apperrors.NewValidationError("applicationId", "applicationId is required")
	}
	if len(input.ApplicationData) == 0 {
		return nil, apperrors.NewValidationError("applicationData", "applicationData is required")
	}

	normalized := profile.Normalize(input.ApplicationData)
	result, err := h.schema.Validate(gojsonschema.NewGoLoader(normalized))
	if err != nil {
		return nil, apperrors.NewValidationError("applicationData", fmt.Sprintf("payload is not valid JSON: %v", err))
	}

	output := &Output{
		ApplicationID: input.ApplicationID,
		Valid:         result.Valid(),
		ValidatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	for _, violation := range result.Errors() {
		output.Errors = append(output.Errors, violation.String())
	}
	sort.Strings(output.Errors)

	if !output.Valid {
		h.logger.Warn("application failed validation", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"errorCount":    len(output.Errors),
		})
	}
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
