package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsapp-assistant/backend/internal/grpcserver"
	"whatsapp-assistant/backend/internal/repository"
	"whatsapp-assistant/backend/pkg/config"
	"whatsapp-assistant/backend/pkg/di"
	"whatsapp-assistant/backend/pkg/logger"
	"whatsapp-assistant/backend/pkg/router"
	"whatsapp-assistant/backend/pkg/secrets"
	"whatsapp-assistant/backend/shared/observability"

	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	log := logger.New(logger.ConfigFrom(cfg.Logging.Level, cfg.Logging.Format))
	logger.SetGlobal(log)

	log.Info("Starting application", "version", os.Getenv("APP_VERSION"), "env", cfg.Server.Env)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Vault.Enabled {
		vm, err := secrets.NewVaultManager(secrets.VaultConfig{
			Address:     cfg.Vault.Address,
			Token:       cfg.Vault.Token,
			Namespace:   cfg.Vault.Namespace,
			Mount:       cfg.Vault.Mount,
			SecretsPath: cfg.Vault.SecretsPath,
		}, log)
		if err != nil {
			log.LogError(err, "Failed to initialize vault client")
			os.Exit(1)
		}
		n, err := secrets.Fill(ctx, vm, cfg.SecretTargets(), log)
		if err != nil {
			log.LogError(err, "Failed to load secrets from vault")
			os.Exit(1)
		}
		log.Info("Secrets loaded from vault", "count", n)
	}

	meterProvider, metricsHandler, err := observability.SetupMetrics(cfg.Observability.ServiceName)
	if err != nil {
		log.LogError(err, "Failed to initialize metrics")
		os.Exit(1)
	}
	defer meterProvider.Shutdown(context.Background())

	if cfg.Observability.TracingEnabled {
		shutdownTracing, err := observability.SetupTracing(cfg.Observability.ServiceName)
		if err != nil {
			log.LogError(err, "Failed to initialize tracing")
			os.Exit(1)
		}
		defer shutdownTracing(context.Background())
	}

	var db *gorm.DB
	if !cfg.Database.InMemory {
		db, err = config.NewDB(cfg, log)
		if err != nil {
			log.LogError(err, "Failed to initialize database")
			os.Exit(1)
		}
		if err := repository.Migrate(db); err != nil {
			log.LogError(err, "Failed to migrate database")
			os.Exit(1)
		}
	}

	container, err := di.New(ctx, cfg, db, log, di.Options{})
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}
	defer container.Close()

	if cfg.Seed.Email != "" && cfg.Seed.Password != "" {
		if _, err := container.UserService.SeedUser(ctx, cfg.Seed.Email, cfg.Seed.Password); err != nil {
			log.LogError(err, "Failed to seed user", "email", cfg.Seed.Email)
		}
	}

	go container.Hub.Run(ctx)
	container.Health.Start(ctx)

	r := router.New(container)
	if cfg.OpenAPI.SchemaPath != "" {
		r.AddOpenAPIValidation(cfg.OpenAPI.SchemaPath)
	}
	r.SetupRoutes()
	r.MountMetrics(metricsHandler)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			cancel()
		}
	}()

	var grpcSrv *grpcserver.Server
	if cfg.Server.GRPCPort != "" {
		grpcSrv = grpcserver.New(log)
		go func() {
			log.Info("gRPC health server starting", "port", cfg.Server.GRPCPort)
			if err := grpcSrv.ListenAndServe(":" + cfg.Server.GRPCPort); err != nil {
				log.LogError(err, "gRPC server failed")
			}
		}()
	}

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if grpcSrv != nil {
		grpcSrv.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	log.Info("Server exited gracefully")
}
