package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tramitia/process-tracker/docs"
	"github.com/tramitia/process-tracker/internal/catalog"
	"github.com/tramitia/process-tracker/internal/config"
	"github.com/tramitia/process-tracker/internal/database"
	"github.com/tramitia/process-tracker/internal/http/handler"
	"github.com/tramitia/process-tracker/internal/http/middleware"
	"github.com/tramitia/process-tracker/internal/http/router"
	"github.com/tramitia/process-tracker/internal/jobs"
	"github.com/tramitia/process-tracker/internal/logger"
	"github.com/tramitia/process-tracker/internal/repository"
	"github.com/tramitia/process-tracker/internal/service"
	"github.com/tramitia/process-tracker/internal/storage"
	"go.uber.org/zap"
)

// @title Tramitia Process Tracker API
// @version 1.0
// @description Regulatory procedure tracking: templates, pricing, budgets, processes and notifications

// @contact.name API Support
// @contact.email soporte@tramitia.com

// @host localhost:8080
// @BasePath /api/v1

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	if basicCfg.App.Environment == "development" {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// In staging/production with USE_AZURE_KEY_VAULT=true credentials come from Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn("Error closing database", zap.Error(err))
		}
	}()

	// PostgreSQL schemas are owned by cmd/migrate; a local SQLite file is created on the fly
	if cfg.Database.Driver == "sqlite" {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to migrate sqlite database: %w", err)
		}
	}

	loadTemplates := templateLoader(cfg.Catalog.TemplatesPath)
	templates, err := loadTemplates()
	if err != nil {
		return fmt.Errorf("failed to load template catalog: %w", err)
	}
	log.Info("Template catalog loaded",
		zap.Int("templates", templates.Len()),
		zap.String("path", cfg.Catalog.TemplatesPath),
	)

	fallback, err := cfg.Pricing.Fallback()
	if err != nil {
		return err
	}

	store := repository.NewStore(db, log)
	trackingService := service.NewTrackingService(templates, store, service.TrackingOptions{
		FallbackPrice: fallback,
		StaleAfter:    cfg.Pricing.StaleAfter(),
		Checker: service.DelayChecker{
			Delay:      cfg.Validation.Delay(),
			Confidence: cfg.Validation.Confidence,
		},
		ValidationThreshold: cfg.Validation.Threshold,
	}, log)

	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	trackingService.SetStorage(fileStorage)
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	if err := trackingService.Load(ctx); err != nil {
		return fmt.Errorf("failed to load tracking state: %w", err)
	}

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler, err = startScheduler(cfg, trackingService, log)
		if err != nil {
			return err
		}
	} else {
		log.Info("Scheduled jobs disabled")
	}

	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)
	rt := router.NewRouter(cfg, log, rateLimiter, router.Handlers{
		Health: handler.NewHealthHandler(func(ctx context.Context) error {
			return database.HealthCheck(ctx, db)
		}, log),
		Template:     handler.NewTemplateHandler(trackingService, loadTemplates, log),
		Price:        handler.NewPriceHandler(trackingService, log),
		Budget:       handler.NewBudgetHandler(trackingService, log),
		Process:      handler.NewProcessHandler(trackingService, cfg.Storage.MaxUploadSizeMB, log),
		Notification: handler.NewNotificationHandler(trackingService, log),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      http.TimeoutHandler(rt.Setup(), cfg.Server.RequestTimeoutDuration(), "request timed out"),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			stopped := scheduler.Stop()
			<-stopped.Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		if err := trackingService.Close(ctx); err != nil {
			log.Warn("Document validations did not stop in time", zap.Error(err))
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}

// templateLoader reads the configured catalog file, or the built-in catalog
// when no path is set. The same loader backs the reload endpoint.
func templateLoader(path string) handler.TemplateLoader {
	return func() (*catalog.TemplateCatalog, error) {
		if path == "" {
			return catalog.LoadDefaultTemplates()
		}
		return catalog.LoadTemplatesFile(path)
	}
}

func startScheduler(cfg *config.Config, trackingService *service.TrackingService, log *zap.Logger) (*jobs.Scheduler, error) {
	scheduler := jobs.NewScheduler(log)
	timeout := cfg.Server.RequestTimeoutDuration()

	if err := jobs.RegisterReconcileJob(scheduler, trackingService, log, cfg.Jobs.ReconcileCron, timeout); err != nil {
		return nil, fmt.Errorf("failed to register reconcile job: %w", err)
	}
	if err := jobs.RegisterBudgetExpiryJob(scheduler, trackingService, cfg.Jobs.BudgetValidity(), log, cfg.Jobs.BudgetExpiryCron, timeout); err != nil {
		return nil, fmt.Errorf("failed to register budget expiry job: %w", err)
	}

	scheduler.Start()
	log.Info("Scheduler started",
		zap.Strings("jobs", scheduler.GetJobNames()),
		zap.String("reconcileCron", cfg.Jobs.ReconcileCron),
		zap.String("budgetExpiryCron", cfg.Jobs.BudgetExpiryCron),
	)
	return scheduler, nil
}
