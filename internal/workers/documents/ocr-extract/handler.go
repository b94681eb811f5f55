// Package ocrextract runs a stored document through the OCR provider and
// records the extraction.
package ocrextract

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
	"lending-workers/internal/ocr"
)

const TaskType = "ocr-extract"

// URLSigner turns a storage key into a presigned link the provider can fetch.
// Satisfied by storage.S3Client.
type URLSigner interface {
	PresignedGetURL(ctx context.Context, storageKey string) (string, error)
}

// Extractor is the OCR provider call. Satisfied by ocr.Client.
type Extractor interface {
	Extract(ctx context.Context, req *ocr.ExtractRequest) (*ocr.ExtractResult, error)
}

type Handler struct {
	config    *Config
	db        *sql.DB
	signer    URLSigner
	extractor Extractor
	logger    logger.Logger
}

func NewHandler(config *Config, db *sql.DB, signer URLSigner, extractor Extractor, log logger.Logger) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Handler{
		config:    config,
		db:        db,
		signer:    signer,
		extractor: extractor,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
			code = string(apperrors.ErrCodeOCRExtractionFailed)
		}
		h.failJob(client, job, code, err.Error())
		return
	}

	h.completeJob(client, job, output)
}

// execute moves the document through ocr_pending to ocr_complete, creating a
// new ocr_results row. A permanent provider rejection marks the document
// ocr_failed before the job fails, so re-runs start from a truthful state.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.DocumentID == "" {
		return nil, apperrors.NewValidationError("documentId", "documentId is required")
	}

	doc, err := h.loadDocument(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}

	if err := h.setDocumentStatus(ctx, doc.ID, models.DocStatusOCRPending); err != nil {
		return nil, err
	}

	documentURL, err := h.signer.PresignedGetURL(ctx, doc.StorageKey)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("storage", err)
	}

	started := time.Now()
	result, err := h.extractor.Extract(ctx, &ocr.ExtractRequest{
		DocumentURL:  documentURL,
		DocumentType: string(doc.DocumentType),
	})
	if err != nil {
		if !apperrors.IsRetryable(err) {
			if statusErr := h.setDocumentStatus(ctx, doc.ID, models.DocStatusOCRFailed); statusErr != nil {
				h.logger.Error("failed to mark document ocr_failed", map[string]interface{}{
					"documentId": doc.ID,
					"error":      statusErr,
				})
			}
		}
		return nil, err
	}

	ocrResultID, err := h.insertResult(ctx, doc.ID, result, time.Since(started).Milliseconds())
	if err != nil {
		return nil, err
	}
	if err := h.setDocumentStatus(ctx, doc.ID, models.DocStatusOCRComplete); err != nil {
		return nil, err
	}

	h.logger.Info("extraction completed", map[string]interface{}{
		"documentId":  doc.ID,
		"ocrResultId": ocrResultID,
		"confidence":  result.Confidence,
	})
	return &Output{
		DocumentID:  doc.ID,
		OcrResultID: ocrResultID,
		Status:      string(models.DocStatusOCRComplete),
		Confidence:  result.Confidence,
		TextLength:  len(result.Text),
		ExtractedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) loadDocument(ctx context.Context, documentID string) (*models.Document, error) {
	var doc models.Document
	err := h.db.QueryRowContext(ctx,
		`SELECT id, application_id, storage_key, document_type, status
		 FROM documents WHERE id = $1`, documentID).
		Scan(&doc.ID, &doc.ApplicationID, &doc.StorageKey, &doc.DocumentType, &doc.Status)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewRecordNotFoundError("document", documentID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("select document", err)
	}
	return &doc, nil
}

func (h *Handler) setDocumentStatus(ctx context.Context, documentID string, status models.DocumentStatus) error {
	_, err := h.db.ExecContext(ctx,
		`UPDATE documents SET status = $1 WHERE id = $2`, status, documentID)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("update document status", err)
	}
	return nil
}

func (h *Handler) insertResult(ctx context.Context, documentID string, result *ocr.ExtractResult, processingMS int64) (string, error) {
	fields, err := json.Marshal(result.Fields)
	if err != nil {
		return "", fmt.Errorf("marshal extracted fields: %w", err)
	}

	ocrResultID := uuid.New().String()
	_, err = h.db.ExecContext(ctx,
		`INSERT INTO ocr_results (id, document_id, raw_text, fields, confidence, status, processing_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		ocrResultID, documentID, result.Text, fields, result.Confidence, "completed", processingMS)
	if err != nil {
		return "", apperrors.NewDatabaseInsertFailedError("ocr_results", err)
	}
	return ocrResultID, nil
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
