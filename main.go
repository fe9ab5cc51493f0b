package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yashrajoria/equipment-workflow-service/auth"
	"github.com/yashrajoria/equipment-workflow-service/clients"
	"github.com/yashrajoria/equipment-workflow-service/config"
	"github.com/yashrajoria/equipment-workflow-service/controllers"
	"github.com/yashrajoria/equipment-workflow-service/logger"
	"github.com/yashrajoria/equipment-workflow-service/middleware"
	awspkg "github.com/yashrajoria/equipment-workflow-service/pkg/aws"
	"github.com/yashrajoria/equipment-workflow-service/repository"
	"github.com/yashrajoria/equipment-workflow-service/routes"
	"github.com/yashrajoria/equipment-workflow-service/services"
	"github.com/yashrajoria/equipment-workflow-service/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "equipment-workflow-service"

func main() {
	bootEnv := os.Getenv("APP_ENV")
	logger.Initialize(bootEnv)
	defer logger.Log.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal("invalid configuration", zap.Error(err))
	}
	// APP_ENV may come from .env, which is only read by config.Load.
	if cfg.Env != bootEnv {
		logger.Initialize(cfg.Env)
	}

	ctx := context.Background()

	// ── AWS: secrets, metrics, events ──
	var (
		metricsClient *awspkg.MetricsClient
		snsClient     awspkg.SNSPublisher
	)
	if cfg.UseSecrets || cfg.CloudWatchEnabled || cfg.WorkflowSNSTopicARN != "" {
		awsCfg, err := awspkg.LoadAWSConfig(ctx)
		if err != nil {
			logger.Log.Warn("aws config unavailable, aws features disabled", zap.Error(err))
		} else {
			if cfg.UseSecrets {
				if err := cfg.ApplySecrets(ctx, awspkg.NewSecretsClient(awsCfg)); err != nil {
					logger.Log.Warn("secrets manager override failed", zap.Error(err))
				}
			}
			if cfg.CloudWatchEnabled {
				metricsClient = awspkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, true)
				logger.Log.Info("cloudwatch metrics enabled", zap.String("namespace", cfg.CloudWatchNamespace))
			}
			if cfg.WorkflowSNSTopicARN != "" {
				snsClient = awspkg.NewSNSClient(awsCfg)
			}
		}
	}

	// ── ERP ──
	var serviceTokens auth.TokenStore
	if cfg.ERPServiceToken != "" {
		serviceTokens = auth.NewMemoryTokenStore(cfg.ERPServiceToken)
	}
	erp := clients.NewERPClient(cfg.ERPBaseURL, cfg.RequestTimeout, serviceTokens)
	deps := workflow.Dependencies{
		Batches:      clients.NewBatchValidationClient(erp),
		Catalog:      clients.NewCatalogClient(erp),
		Transactions: clients.NewTransactionClient(erp),
	}

	// ── Redis (optional, for idempotency) ──
	var idem repository.IdempotencyRepository
	if cfg.RedisURL != "" {
		redisClient, err := repository.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Log.Fatal("redis unavailable", zap.Error(err))
		}
		defer redisClient.Close()
		idem = repository.NewIdempotencyRepository(redisClient, cfg.IdempotencyTTL)
		logger.Log.Info("connected to redis")
	} else {
		logger.Log.Warn("REDIS_URL not set, idempotency keys are ignored")
	}

	var recorder services.MetricsRecorder
	if metricsClient != nil {
		recorder = metricsClient
	}
	workflowService := services.NewWorkflowService(
		deps,
		repository.NewSessionRegistry(cfg.SessionMax, cfg.SessionTTL),
		idem,
		snsClient,
		cfg.WorkflowSNSTopicARN,
		recorder,
	)
	controller := controllers.NewWorkflowController(workflowService)

	// ── HTTP ──
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPM, cfg.RateLimitBurst, 5*time.Minute)
	stopSweep := make(chan struct{})
	go limiter.Run(stopSweep)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger())
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MetricsMiddleware(metricsClient, serviceName))

	routes.RegisterRoutes(r, controller,
		middleware.RateLimitMiddleware(limiter),
		middleware.AuthMiddleware(auth.NewSubjectResolver(cfg.JWTSecret)),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("equipment workflow service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Log.Info("shutting down")
	close(stopSweep)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("forced shutdown", zap.Error(err))
	}
}
