package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/teleguard/agent/internal/camera"
	"github.com/teleguard/agent/internal/handler"
	"github.com/teleguard/agent/internal/middleware"
	"github.com/teleguard/agent/internal/repository"
	"github.com/teleguard/agent/internal/service"
	"github.com/teleguard/agent/internal/telegram"
	"github.com/teleguard/agent/pkg/config"
	"github.com/teleguard/agent/pkg/jobs"
	"github.com/teleguard/agent/pkg/logger"
	corsmiddleware "github.com/teleguard/agent/pkg/middleware/cors"
	reqidmiddleware "github.com/teleguard/agent/pkg/middleware/requestid"
)

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

	metrics := service.NewMetricsService()

	artifactRepo, err := repository.NewArtifactRepository(cfg.Capture.Dir, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to open artifact store", "error", err)
	}
	identityRepo := repository.NewIdentityRepository(cfg.Identity.File, logr)

	ctx := context.Background()

	// Pre-seed the recipient from config when no registration happened yet.
	if cfg.Identity.AdminChatID != 0 {
		existing, err := identityRepo.Get(ctx)
		if err != nil {
			logr.Sugar().Fatalw("failed to read admin identity", "error", err)
		}
		if existing == nil {
			if _, err := identityRepo.Set(ctx, cfg.Identity.AdminChatID); err != nil {
				logr.Sugar().Fatalw("failed to seed admin identity", "error", err)
			}
		}
	}

	var journal *repository.JournalRepository
	if cfg.Journal.Enabled {
		db, err := sqlx.Connect("sqlite", cfg.Journal.Path)
		if err != nil {
			logr.Sugar().Errorw("delivery journal unavailable, continuing without audit", "error", err)
		} else {
			journal, err = repository.NewJournalRepository(db)
			if err != nil {
				logr.Sugar().Errorw("delivery journal schema failed, continuing without audit", "error", err)
				journal = nil
			}
		}
	}

	httpClient := &http.Client{}

	var strategies []service.LocationStrategy
	if len(cfg.Location.DeviceCommand) > 0 {
		device, err := service.NewDeviceSensorStrategy(cfg.Location.DeviceCommand, cfg.Location.DeviceTimeout, logr)
		if err != nil {
			logr.Sugar().Fatalw("failed to init device location strategy", "error", err)
		}
		strategies = append(strategies, device)
	}
	if len(cfg.Location.WifiScanCommand) > 0 && cfg.Location.WifiGeolocate != "" {
		wifi, err := service.NewWifiStrategy(cfg.Location.WifiScanCommand, cfg.Location.WifiGeolocate, cfg.Location.WifiTimeout, httpClient, logr)
		if err != nil {
			logr.Sugar().Fatalw("failed to init wifi location strategy", "error", err)
		}
		strategies = append(strategies, wifi)
	}
	var ipLookup service.IPLookup
	if cfg.Location.IPLookupURL != "" {
		ipLookup = service.NewIPAPILookup(cfg.Location.IPLookupURL, cfg.Location.IPTimeout, httpClient)
	}
	locationSvc := service.NewLocationService(strategies, ipLookup, logr)

	connectivitySvc := service.NewConnectivityService(cfg.Connectivity.ProbeURL, cfg.Connectivity.ProbeTimeout, httpClient, logr)

	sink, err := telegram.NewSink(cfg.Telegram.Token, cfg.Sync.DeliveryTimeout, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to init delivery channel", "error", err)
	}

	cam, err := camera.NewExecCamera(cfg.Capture.CameraCommand, cfg.Capture.CameraTimeout, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to init camera", "error", err)
	}

	captureSvc := service.NewCaptureService(cam, locationSvc, artifactRepo, metrics, logr, service.CaptureServiceConfig{
		BurstCount:  cfg.Capture.BurstCount,
		WarmupDelay: cfg.Capture.WarmupDelay,
	})

	syncCfg := service.SyncServiceConfig{
		DeliveryTimeout: cfg.Sync.DeliveryTimeout,
		StartupAttempts: cfg.Connectivity.StartupAttempts,
		StartupInterval: cfg.Connectivity.StartupInterval,
	}
	var syncSvc *service.SyncService
	if journal != nil {
		syncSvc = service.NewSyncService(artifactRepo, identityRepo, connectivitySvc, sink, locationSvc, journal, metrics, logr, syncCfg)
	} else {
		syncSvc = service.NewSyncService(artifactRepo, identityRepo, connectivitySvc, sink, locationSvc, nil, metrics, logr, syncCfg)
	}

	drainRunner := jobs.NewRunner("drain", func(ctx context.Context) error {
		_, err := syncSvc.Drain(ctx)
		return err
	}, jobs.RunnerConfig{Interval: cfg.Sync.PeriodicInterval, Logger: logr})
	drainRunner.Start(ctx)

	// Capture and startup sync run concurrently and share nothing but the
	// artifact store.
	go captureSvc.RunBurst(ctx)
	go func() {
		if err := syncSvc.AnnounceStartup(ctx); err != nil {
			logr.Sugar().Warnw("startup announce failed", "error", err)
		}
	}()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	var commandHandler *handler.CommandHandler
	if journal != nil {
		commandHandler = handler.NewCommandHandler(captureSvc, locationSvc, syncSvc, artifactRepo, identityRepo, connectivitySvc, journal, drainRunner)
	} else {
		commandHandler = handler.NewCommandHandler(captureSvc, locationSvc, syncSvc, artifactRepo, identityRepo, connectivitySvc, nil, drainRunner)
	}
	commandHandler.Register(r.Group("/api/v1"))

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("agent starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
