// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lending-workers/internal/catalog"
	"lending-workers/internal/common/camunda"
	"lending-workers/internal/common/config"
	"lending-workers/internal/common/database"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/common/observability"
	"lending-workers/internal/common/storage"
	"lending-workers/internal/crm"
	"lending-workers/internal/esign"
	"lending-workers/internal/ocr"

	// Application Workers (3)
	sn "lending-workers/internal/workers/application/send-notification"
	uas "lending-workers/internal/workers/application/update-application-status"
	va "lending-workers/internal/workers/application/validate-application"

	// Document Workers (2)
	ab "lending-workers/internal/workers/documents/analyze-banking"
	oe "lending-workers/internal/workers/documents/ocr-extract"

	// Matching Worker (1)
	mlp "lending-workers/internal/workers/matching/match-lender-products"

	// Signing Worker (1)
	csr "lending-workers/internal/workers/signing/create-signing-request"

	// CRM Worker (1)
	scc "lending-workers/internal/workers/crm/sync-crm-contact"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebeClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Document Storage ---
	s3Client, err := storage.NewS3Client(
		ctx,
		cfg.Storage.Region,
		cfg.Storage.Bucket,
		time.Duration(cfg.Storage.PresignTTLMinutes)*time.Minute,
	)
	if err != nil {
		zapLog.Fatal("s3 client failed", zap.Error(err))
	}

	// --- Init External Provider Clients ---
	ocrClient := ocr.NewClient(
		cfg.Providers.OCR.BaseURL,
		cfg.Providers.OCR.APIKey,
		time.Duration(cfg.Providers.OCR.TimeoutSeconds)*time.Second,
		cfg.Providers.OCR.MaxRetries,
	)
	esignClient := esign.NewClient(
		cfg.Providers.ESign.BaseURL,
		cfg.Providers.ESign.APIKey,
		time.Duration(cfg.Providers.ESign.TimeoutSeconds)*time.Second,
	)
	crmClient := crm.NewClient(cfg.Providers.CRM.BaseURL, cfg.Providers.CRM.OAuthToken)

	zapLog.Info("All external service clients initialized")

	// --- Init Product Catalog Store ---
	catalogStore := catalog.NewStore(
		pg.DB,
		redis.Client,
		time.Duration(cfg.Matching.CatalogCacheTTLSeconds)*time.Second,
		log,
	)

	var workers []*camunda.Worker
	register := func(taskType string, handler camunda.JobHandler) {
		maxJobs := cfg.Workers[taskType].MaxJobsActive
		if maxJobs <= 0 {
			maxJobs = cfg.Camunda.MaxJobsActive
		}
		w := camunda.NewWorker(zeebeClient.GetClient(), taskType, maxJobs, handler, zapLog)
		w.Start()
		workers = append(workers, w)
	}

	// --- START: Register ALL 8 Workers ---

	// --- 1. Matching Worker ---
	if cfg.Workers[mlp.TaskType].Enabled {
		mlpCfg := mlp.DefaultConfig()
		mlpCfg.Timeout = workerTimeout(cfg.Workers[mlp.TaskType], mlpCfg.Timeout)
		handler, err := mlp.NewHandler(mlpCfg, catalogStore, log)
		if err != nil {
			zapLog.Fatal("failed to create match-lender-products handler", zap.Error(err))
		}
		register(mlp.TaskType, handler)
	}

	// --- 2. Application Workers ---
	if cfg.Workers[va.TaskType].Enabled {
		vaCfg := va.DefaultConfig()
		vaCfg.Timeout = workerTimeout(cfg.Workers[va.TaskType], vaCfg.Timeout)
		handler, err := va.NewHandler(vaCfg, log)
		if err != nil {
			zapLog.Fatal("failed to create validate-application handler", zap.Error(err))
		}
		register(va.TaskType, handler)
	}

	if cfg.Workers[uas.TaskType].Enabled {
		uasCfg := uas.DefaultConfig()
		uasCfg.Timeout = workerTimeout(cfg.Workers[uas.TaskType], uasCfg.Timeout)
		handler, err := uas.NewHandler(uasCfg, pg.DB, log)
		if err != nil {
			zapLog.Fatal("failed to create update-application-status handler", zap.Error(err))
		}
		register(uas.TaskType, handler)
	}

	if cfg.Workers[sn.TaskType].Enabled {
		snCfg := sn.DefaultConfig()
		snCfg.Timeout = workerTimeout(cfg.Workers[sn.TaskType], snCfg.Timeout)
		snCfg.AWSRegion = cfg.Notifications.AWS.Region
		snCfg.FromEmail = cfg.Notifications.AWS.SES.FromEmail
		snCfg.EmailEnabled = cfg.Notifications.AWS.SES.Enabled
		snCfg.SMSEnabled = cfg.Notifications.AWS.SNS.Enabled
		handler, err := sn.NewHandler(snCfg, pg.DB, log)
		if err != nil {
			zapLog.Fatal("failed to create send-notification handler", zap.Error(err))
		}
		register(sn.TaskType, handler)
	}

	// --- 3. Document Workers ---
	if cfg.Workers[oe.TaskType].Enabled {
		oeCfg := oe.DefaultConfig()
		oeCfg.Timeout = workerTimeout(cfg.Workers[oe.TaskType], oeCfg.Timeout)
		handler, err := oe.NewHandler(oeCfg, pg.DB, s3Client, ocrClient, log)
		if err != nil {
			zapLog.Fatal("failed to create ocr-extract handler", zap.Error(err))
		}
		register(oe.TaskType, handler)
	}

	if cfg.Workers[ab.TaskType].Enabled {
		abCfg := ab.DefaultConfig()
		abCfg.Timeout = workerTimeout(cfg.Workers[ab.TaskType], abCfg.Timeout)
		abCfg.MinAverageBalance = cfg.Banking.MinAverageBalance
		handler, err := ab.NewHandler(abCfg, pg.DB, log)
		if err != nil {
			zapLog.Fatal("failed to create analyze-banking handler", zap.Error(err))
		}
		register(ab.TaskType, handler)
	}

	// --- 4. Signing Worker ---
	if cfg.Workers[csr.TaskType].Enabled {
		csrCfg := csr.DefaultConfig()
		csrCfg.Timeout = workerTimeout(cfg.Workers[csr.TaskType], csrCfg.Timeout)
		if cfg.Providers.ESign.DefaultTemplateID != "" {
			csrCfg.DefaultTemplateID = cfg.Providers.ESign.DefaultTemplateID
		}
		handler, err := csr.NewHandler(csrCfg, pg.DB, esignClient, log)
		if err != nil {
			zapLog.Fatal("failed to create create-signing-request handler", zap.Error(err))
		}
		register(csr.TaskType, handler)
	}

	// --- 5. CRM Worker ---
	if cfg.Workers[scc.TaskType].Enabled {
		sccCfg := scc.DefaultConfig()
		sccCfg.Timeout = workerTimeout(cfg.Workers[scc.TaskType], sccCfg.Timeout)
		handler, err := scc.NewHandler(sccCfg, crmClient, log)
		if err != nil {
			zapLog.Fatal("failed to create sync-crm-contact handler", zap.Error(err))
		}
		register(scc.TaskType, handler)
	}

	zapLog.Info("All workers registered successfully", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := pg.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// workerTimeout converts the per-worker timeout from config (milliseconds)
// into a duration, falling back when the worker has no explicit setting.
func workerTimeout(wcfg config.WorkerConfig, fallback time.Duration) time.Duration {
	if wcfg.Timeout <= 0 {
		return fallback
	}
	return time.Duration(wcfg.Timeout) * time.Millisecond
}
