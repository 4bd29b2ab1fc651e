package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mindhaven/crisis-safety-backend/internal/api/rest"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/config"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/crypto"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/keyvalue"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/telemetry"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/telephony"
	"github.com/mindhaven/crisis-safety-backend/internal/metrics"
	"github.com/mindhaven/crisis-safety-backend/internal/service/backups"
	crisissvc "github.com/mindhaven/crisis-safety-backend/internal/service/crisis"
	"github.com/mindhaven/crisis-safety-backend/internal/service/dispatch"
	"github.com/mindhaven/crisis-safety-backend/internal/service/migration"
	"github.com/mindhaven/crisis-safety-backend/internal/service/perfmon"
	"github.com/mindhaven/crisis-safety-backend/internal/service/stores"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		metricsAddr = flag.String("metrics-addr", ":9090", "Prometheus metrics listen address")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	slogger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	zlogger, err := buildZapLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to set up zap logger: %v", err)
	}
	defer zlogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.InitializeOpenTelemetry(ctx, &telemetry.Config{
		ServiceName:    "crisis-safety-backend",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		ExportTimeout:  cfg.Telemetry.ExportTimeout,
		BatchTimeout:   cfg.Telemetry.BatchTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			zlogger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	registry, err := metrics.NewRegistry("crisis-safety-backend")
	if err != nil {
		log.Fatalf("Failed to create metrics registry: %v", err)
	}

	kv, err := keyvalue.NewRedisStore(&cfg.Redis, zlogger)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer kv.Close()

	gateway, err := crypto.NewAESGateway(cfg.Backup.EncryptionKey, zlogger)
	if err != nil {
		log.Fatalf("Failed to create encryption gateway: %v", err)
	}

	adapters := []stores.Adapter{
		stores.NewCrisisAdapter(kv),
		stores.NewAssessmentAdapter(kv),
		stores.NewSettingsAdapter(kv),
	}

	retention := make(map[values.StoreType]values.RetentionWindow, len(values.AllStoreTypes()))
	for _, storeType := range values.AllStoreTypes() {
		window, err := values.NewRetentionWindow(cfg.RetentionFor(storeType.String()))
		if err != nil {
			log.Fatalf("Invalid retention window for %s: %v", storeType, err)
		}
		retention[storeType] = window
	}

	monitor := perfmon.NewMonitor(zlogger, registry)

	crisisSvc, err := crisissvc.NewService(kv, registry, zlogger, crisissvc.Config{
		MaxExecutionTimeMs:        cfg.Crisis.MaxExecutionTime.Milliseconds(),
		GuaranteedExecutionTimeMs: cfg.Crisis.GuaranteedExecutionTime.Milliseconds(),
	})
	if err != nil {
		log.Fatalf("Failed to create crisis service: %v", err)
	}

	targets, err := dialTargets(cfg)
	if err != nil {
		log.Fatalf("Invalid dial targets: %v", err)
	}

	dispatchSvc := dispatch.NewService(
		telephony.NewInvoker(zlogger),
		crisisSvc,
		monitor,
		registry,
		zlogger,
		targets,
		rate.Limit(cfg.Crisis.QueueRatePerSecond),
		cfg.Crisis.QueueBurst,
	)
	crisisSvc.AttachDispatcher(dispatchSvc)

	backupSvc := backups.NewService(kv, gateway, adapters, retention, registry, zlogger)

	migrationSvc := migration.NewService(
		backupSvc,
		adapters,
		migration.NewCanonicalConverter(),
		monitor,
		registry,
		zlogger,
		cfg.Migration.ConvertedOpSLA,
	)

	buildInfo.WithLabelValues(cfg.Version, cfg.Environment).Set(1)
	go serveMetrics(*metricsAddr, zlogger)

	handler := rest.NewHandler(rest.Services{
		Crisis:     crisisSvc,
		Dispatch:   dispatchSvc,
		Backups:    backupSvc,
		Migrations: migrationSvc,
		Monitor:    monitor,
	}, slogger)

	server := rest.NewServer(rest.ServerConfig{
		Address:         fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * cfg.Server.ReadTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, handler, slogger)

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func buildZapLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func dialTargets(cfg *config.Config) (dispatch.Targets, error) {
	hotline, err := values.NewPhoneNumber(cfg.Crisis.HotlineNumber)
	if err != nil {
		return dispatch.Targets{}, fmt.Errorf("hotline: %w", err)
	}
	emergencyServices, err := values.NewPhoneNumber(cfg.Crisis.EmergencyServicesNumber)
	if err != nil {
		return dispatch.Targets{}, fmt.Errorf("emergency services: %w", err)
	}
	textLine, err := values.NewPhoneNumber(cfg.Crisis.TextLineNumber)
	if err != nil {
		return dispatch.Targets{}, fmt.Errorf("text line: %w", err)
	}

	return dispatch.Targets{
		Hotline:           hotline,
		EmergencyServices: emergencyServices,
		TextLine:          textLine,
		TextLineKeyword:   cfg.Crisis.TextLineKeyword,
	}, nil
}
