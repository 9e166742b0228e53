package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/roadwatch/roadwatch/internal/adapter/auth"
	"github.com/roadwatch/roadwatch/internal/adapter/cache"
	httpadapter "github.com/roadwatch/roadwatch/internal/adapter/http"
	"github.com/roadwatch/roadwatch/internal/adapter/persistence"
	"github.com/roadwatch/roadwatch/internal/adapter/sse"
	"github.com/roadwatch/roadwatch/internal/config"
	"github.com/roadwatch/roadwatch/internal/logger"
	"github.com/roadwatch/roadwatch/internal/ports"
	"github.com/roadwatch/roadwatch/internal/usecase"
)

// Version and build information
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	version := flag.Bool("version", false, "Show version information")
	envFile := flag.String("env", "", "Path to a .env file (default ./.env)")
	flag.Parse()

	if *version {
		fmt.Printf("RoadWatch signalement service\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "roadwatch",
		Output:      os.Stdout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appLogger.Info(ctx, "Application starting", map[string]interface{}{
		"version": Version,
		"env":     cfg.Server.Environment,
	})

	db, err := initDatabase(ctx, cfg)
	if err != nil {
		appLogger.Error(ctx, "Failed to initialize database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"name": cfg.Database.DBName,
		})
		os.Exit(1)
	}
	defer db.Close()
	appLogger.Info(ctx, "Database connection established", map[string]interface{}{"host": cfg.Database.Host})

	redisClient, err := initRedis(ctx, cfg)
	if err != nil {
		appLogger.Warn(ctx, "Redis unavailable, using in-process cache", map[string]interface{}{
			"addr":  cfg.GetRedisAddr(),
			"error": err.Error(),
		})
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var reportCache ports.ReportCache
	var rateLimiter ports.RateLimiter
	if redisClient != nil {
		reportCache = cache.NewRedisReportCache(redisClient, cfg.Dashboard.CacheKey)
		if cfg.Security.RateLimitEnabled {
			rateLimiter = cache.NewRedisRateLimiter(redisClient, "roadwatch:ratelimit:",
				cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow)
		}
	} else {
		reportCache = cache.NewMemoryReportCache(nil)
	}

	signalementRepo := persistence.NewPostgresSignalementRepository(db)
	eventRepo := persistence.NewPostgresStatusEventRepository(db)

	broadcaster := sse.NewBroadcaster(appLogger.WithFields(map[string]interface{}{"component": "sse"}),
		cfg.Dashboard.StreamHeartbeat)
	dashboard := usecase.NewDashboardUseCase(signalementRepo, eventRepo, reportCache, broadcaster, appLogger, nil,
		usecase.DashboardConfig{
			CacheTTL:       cfg.Dashboard.CacheTTL,
			RefreshTimeout: cfg.Dashboard.RefreshTimeout,
		})
	signalements := usecase.NewSignalementUseCase(signalementRepo, eventRepo, dashboard,
		appLogger.WithFields(map[string]interface{}{"component": "signalement"}), nil)

	var verifier ports.TokenVerifier
	if cfg.Security.AuthEnabled {
		v, err := auth.NewJWTVerifier(cfg.Security.JWTSecret, cfg.Security.JWTIssuer)
		if err != nil {
			appLogger.Error(ctx, "Failed to initialize token verifier", err, nil)
			os.Exit(1)
		}
		verifier = v
	} else {
		appLogger.Warn(ctx, "Manager routes are not authenticated", nil)
	}

	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		CORSOrigins:  cfg.Security.CORSOrigins,
	}, httpadapter.Dependencies{
		Signalements: signalements,
		Dashboard:    dashboard,
		Verifier:     verifier,
		RateLimiter:  rateLimiter,
		Stream:       broadcaster,
		Logger:       appLogger,
	})

	// Warm the dashboard so the first visitor does not pay for the refresh
	go func() {
		if _, err := dashboard.Refresh(ctx); err != nil {
			appLogger.Warn(ctx, "Initial dashboard refresh failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			appLogger.Error(ctx, "Server failed", err, nil)
			os.Exit(1)
		}
	case <-quit:
	}

	cancel()
	broadcaster.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "Server forced to shutdown", err, nil)
	}
	appLogger.Info(shutdownCtx, "Server exited", nil)
}

// initDatabase opens the connection pool and checks it
func initDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxConnections / 2)
	db.SetConnMaxIdleTime(cfg.Database.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// initRedis returns nil without error when Redis is disabled
func initRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.Timeout,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
