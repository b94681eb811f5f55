// Package analyzebanking scores an application's OCR'd bank statement and
// persists the resulting analysis.
package analyzebanking

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"lending-workers/internal/banking"
	apperrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/common/metrics"
	"lending-workers/internal/models"
)

const TaskType = "analyze-banking"

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

	started := time.Now()
	output, err := h.execute(ctx, &input)
	metrics.BankingAnalysisDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		code := string(apperrors.CodeOf(err))
		if code == "" {
			code = string(apperrors.ErrCodeExternalServiceError)
		}
		h.failJob(client, job, code, err.Error())
		return
	}

	h.completeJob(client, job, output)
}

// execute analyzes the latest completed OCR pass for the document. Nothing is
// persisted unless the analysis succeeds, so a failed attempt never leaves a
// zero health score behind.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, apperrors.NewValidationError("applicationId", "applicationId is required")
	}
	if input.DocumentID == "" {
		return nil, apperrors.NewValidationError("documentId", "documentId is required")
	}

	ocrResultID, rawText, err := h.loadOcrText(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}

	analysis, err := banking.Analyze(rawText, banking.DocumentMeta{
		ApplicationID:          input.ApplicationID,
		DocumentID:             input.DocumentID,
		OcrResultID:            ocrResultID,
		DeclaredMonthlyRevenue: input.DeclaredMonthlyRevenue,
		MinAverageBalance:      h.config.MinAverageBalance,
	})
	if err != nil {
		return nil, err
	}

	analysis.ID = uuid.New().String()
	if err := h.persist(ctx, analysis); err != nil {
		return nil, err
	}

	h.logger.Info("analysis completed", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"documentId":    input.DocumentID,
		"healthScore":   analysis.HealthScore,
		"riskFactors":   len(analysis.RiskFactors),
	})
	return &Output{
		AnalysisID:      analysis.ID,
		ApplicationID:   input.ApplicationID,
		DocumentID:      input.DocumentID,
		HealthScore:     analysis.HealthScore,
		CashFlowTrend:   analysis.CashFlowTrend,
		NSFCount:        analysis.NSFCount,
		RiskFactors:     analysis.RiskFactors,
		Recommendations: analysis.Recommendations,
		AnalyzedAt:      time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// loadOcrText fetches the most recent completed extraction for the document.
func (h *Handler) loadOcrText(ctx context.Context, documentID string) (string, string, error) {
	var ocrResultID, rawText string
	err := h.db.QueryRowContext(ctx,
		`SELECT id, raw_text FROM ocr_results
		 WHERE document_id = $1 AND status = 'completed'
		 ORDER BY created_at DESC LIMIT 1`, documentID).
		Scan(&ocrResultID, &rawText)
	if err == sql.ErrNoRows {
		return "", "", apperrors.NewRecordNotFoundError("ocr result", documentID)
	}
	if err != nil {
		return "", "", apperrors.NewQueryExecutionFailedError("select ocr result", err)
	}
	return ocrResultID, rawText, nil
}

func (h *Handler) persist(ctx context.Context, a *models.BankingAnalysis) error {
	riskFactors, err := json.Marshal(a.RiskFactors)
	if err != nil {
		return fmt.Errorf("marshal risk factors: %w", err)
	}
	recommendations, err := json.Marshal(a.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO banking_analyses (
			id, application_id, document_id, ocr_result_id, bank_name, account_type,
			opening_balance, closing_balance, average_balance, min_balance, max_balance,
			total_deposits, total_withdrawals, transaction_count, deposit_count,
			net_cash_flow, cash_flow_trend, health_score, nsf_count, overdraft_count,
			risk_factors, recommendations, processing_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, NOW())`,
		a.ID, a.ApplicationID, a.DocumentID, a.OcrResultID, a.BankName, a.AccountType,
		a.OpeningBalance, a.ClosingBalance, a.AverageBalance, a.MinBalance, a.MaxBalance,
		a.TotalDeposits, a.TotalWithdrawals, a.TransactionCount, a.DepositCount,
		a.NetCashFlow, a.CashFlowTrend, a.HealthScore, a.NSFCount, a.OverdraftCount,
		riskFactors, recommendations, a.ProcessingMS)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError("banking_analyses", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE applications SET health_score = $1, updated_at = NOW() WHERE id = $2`,
		a.HealthScore, a.ApplicationID)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("update application health score", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewDatabaseInsertFailedError("banking_analyses", err)
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
