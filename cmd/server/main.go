package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"barrel-backend/internal/archive"
	"barrel-backend/internal/auth"
	"barrel-backend/internal/cache"
	"barrel-backend/internal/config"
	"barrel-backend/internal/database"
	"barrel-backend/internal/db"
	"barrel-backend/internal/handlers"
	"barrel-backend/internal/health"
	h "barrel-backend/internal/http"
	"barrel-backend/internal/logger"
	"barrel-backend/internal/middleware"
	"barrel-backend/internal/models"
	"barrel-backend/internal/repositories"
	"barrel-backend/internal/repositories/memory"
	"barrel-backend/internal/services"
	"barrel-backend/internal/timeutil"
)

// openStore connects the configured storage driver. Postgres is migrated to
// the latest schema before use.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (repositories.Store, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := database.NewMigrator(cfg.DSN(), log).RunMigrations(migrateCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return repositories.NewPostgresStore(pool), nil
}

// startArchiver runs the daily audit export in the background. It returns nil
// when archiving is disabled.
func startArchiver(ctx context.Context, cfg *config.Config, source archive.Source, log *slog.Logger) (*archive.Archiver, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	client, err := archive.NewS3Client(ctx, archive.Options{
		Endpoint:  cfg.Archive.Endpoint,
		Region:    cfg.Archive.Region,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
	})
	if err != nil {
		return nil, err
	}
	a := archive.New(source, client, cfg.Archive.Bucket, cfg.Archive.Prefix, log)
	go a.Run(ctx, cfg.Archive.Interval, timeutil.Now)
	log.Info("audit archiving enabled", "bucket", cfg.Archive.Bucket, "interval", cfg.Archive.Interval)
	return a, nil
}

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to the YAML config file")
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}
	if err := timeutil.SetLocation(cfg.App.Timezone); err != nil {
		slog.Error("invalid timezone", "timezone", cfg.App.Timezone, "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, stop, cfg, log); err != nil {
		log.Error("server stopped with error", "err", err)
		stop()
		os.Exit(1)
	}
}

// serve owns every resource opened after configuration so deferred cleanup
// runs before main exits.
func serve(ctx context.Context, stop context.CancelFunc, cfg *config.Config, log *slog.Logger) error {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}
	defer store.Close()

	// Initialize Redis cache (optional - graceful fallback if unavailable)
	var cachePinger health.Pinger
	if cfg.Redis.Enabled {
		if err := cache.Init(cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}); err != nil {
			log.Warn("cache unavailable, continuing without it", "addr", cfg.Redis.Addr, "err", err)
		} else {
			log.Info("cache connected", "addr", cfg.Redis.Addr)
		}
		cachePinger = health.PingFunc(cache.Ping)
		defer cache.Close()
	}

	codes, err := models.NewCodeValidator(cfg.Registry.CodePattern)
	if err != nil {
		return fmt.Errorf("invalid registry.code_pattern: %w", err)
	}

	// Initialize services
	engine := services.NewEngine(store, log)
	registryService := services.NewRegistryService(engine, codes, cfg.Registry.MaxCapacity)
	ledgerService := services.NewLedgerService(engine)
	damageService := services.NewDamageService(engine)
	repairService := services.NewRepairService(engine)
	notificationService := services.NewNotificationService(engine)
	auditService := services.NewAuditService(engine)

	archiver, err := startArchiver(ctx, cfg, auditService, log)
	if err != nil {
		return fmt.Errorf("start audit archiver: %w", err)
	}
	var dayArchiver handlers.DayArchiver
	if archiver != nil {
		dayArchiver = archiver
	}

	// Initialize middleware and handlers
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, auditService, log)
	corsMiddleware := middleware.NewCORS(cfg)
	healthHandler := handlers.NewHealthHandler(health.NewHealthChecker(store, cachePinger))

	router := h.NewRouter(
		handlers.NewBarrelHandler(registryService, ledgerService, damageService, auditService, log),
		handlers.NewDamageHandler(damageService, repairService, auditService, log),
		handlers.NewRepairHandler(repairService, auditService, log),
		handlers.NewNotificationHandler(notificationService, auditService, log),
		handlers.NewAuditHandler(auditService, dayArchiver, log),
		healthHandler,
		authMiddleware,
	)

	// Metrics run inside the router so they see the matched route template
	if cfg.Metrics.Enabled {
		router.Use(middleware.MetricsMiddleware)
	}

	// Wrap with panic recovery, logging and CORS middleware
	handler := middleware.PanicRecovery(log)(middleware.APILogging(log)(corsMiddleware(router)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server running", "addr", srv.Addr, "env", cfg.App.Env, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}
