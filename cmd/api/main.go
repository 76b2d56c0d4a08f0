package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	_ "github.com/talentboard/pipeline-api/api/swagger"
	"github.com/talentboard/pipeline-api/internal/handler"
	"github.com/talentboard/pipeline-api/internal/repository"
	"github.com/talentboard/pipeline-api/internal/service"
	"github.com/talentboard/pipeline-api/pkg/cache"
	"github.com/talentboard/pipeline-api/pkg/config"
	"github.com/talentboard/pipeline-api/pkg/database"
	"github.com/talentboard/pipeline-api/pkg/logger"
	"github.com/talentboard/pipeline-api/pkg/storage"
)

// @title TalentBoard Pipeline API
// @version 1.0.0
// @description Recruitment pipeline backend: selection processes, invitations and compatibility scoring
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, compatibility cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	candidateRepo := repository.NewCandidateRepository(db)
	postingRepo := repository.NewJobPostingRepository(db)
	stageRepo := repository.NewStageRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	processRepo := repository.NewSelectionProcessRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	compatibilityRepo := repository.NewCompatibilityRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	// Services
	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "talentboard-pipeline-api",
	})
	userService := service.NewUserService(userRepo, validate, logr)

	scorer := service.NewSkillOverlapScorer(candidateRepo, postingRepo)
	compatibilityService := service.NewCompatibilityService(compatibilityRepo, cacheRepo, postingRepo, scorer, metricsService, cfg.Compatibility, logr)

	postingService := service.NewJobPostingService(postingRepo, compatibilityService, validate, logr)
	stageService := service.NewStageService(stageRepo, postingRepo, validate, logr)
	candidateService := service.NewCandidateService(candidateRepo, postingRepo, compatibilityService, validate, logr)
	applicationService := service.NewApplicationService(applicationRepo, postingRepo, candidateRepo, validate, logr)
	processService := service.NewSelectionProcessService(processRepo, stageRepo, postingRepo, applicationRepo, userRepo, metricsService, validate, logr)
	invitationService := service.NewInvitationService(invitationRepo, postingRepo, candidateRepo, stageRepo, userRepo, applicationRepo, metricsService, cfg.Invitations, validate, logr)

	recalcQueue := service.NewRecalcQueue(compatibilityService, cfg.Compatibility, logr)
	recalcQueue.Start(ctx)
	defer recalcQueue.Stop()
	dispatcher := service.NewRecalcDispatcher(outboxRepo, recalcQueue, metricsService, cfg.Compatibility, logr)
	dispatcher.Start(ctx)

	invitationService.StartSweeper(ctx)

	var exportService *service.ExportService
	if cfg.AuditExports.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.AuditExports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.AuditExports.SignedURLSecret, cfg.AuditExports.SignedURLTTL)
		exportRepo := repository.NewExportJobRepository(db)
		exportService = service.NewExportService(exportRepo, processRepo, postingRepo, nil, fileStore, signer, validate, logr, cfg.APIPrefix, cfg.AuditExports)
		exportWorker := service.NewExportWorker(exportRepo, exportService, cfg.AuditExports.WorkerRetries, logr)
		exportQueue := service.NewExportQueue(exportWorker, cfg.AuditExports, logr)
		exportQueue.Start(ctx)
		defer exportQueue.Stop()
		exportService.AttachQueue(exportQueue)
		exportService.RecoverPendingJobs(ctx)
		exportService.StartCleanup(ctx)
	}

	deps := routerDeps{
		cfg:           cfg,
		logger:        logr,
		metrics:       metricsService,
		userRepo:      userRepo,
		authService:   authService,
		auth:          handler.NewAuthHandler(authService),
		users:         handler.NewUserHandler(userService),
		postings:      handler.NewJobPostingHandler(postingService),
		stages:        handler.NewStageHandler(stageService),
		candidates:    handler.NewCandidateHandler(candidateService),
		applications:  handler.NewApplicationHandler(applicationService),
		processes:     handler.NewSelectionProcessHandler(processService),
		invitations:   handler.NewInvitationHandler(invitationService),
		compatibility: handler.NewCompatibilityHandler(compatibilityService),
		observability: handler.NewMetricsHandler(metricsService),
	}
	if exportService != nil {
		deps.exports = handler.NewExportHandler(exportService)
	}

	r := newRouter(deps)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown failed", "error", err)
	}
}
