// Package main is the entry point for the Kusanagi campaign content and
// tracking service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	businessflow "github.com/amirphl/Kusanagi/business_flow"
	"github.com/amirphl/Kusanagi/app/handlers"
	"github.com/amirphl/Kusanagi/app/router"
	"github.com/amirphl/Kusanagi/app/scheduler"
	"github.com/amirphl/Kusanagi/app/services"
	"github.com/amirphl/Kusanagi/config"
	"github.com/amirphl/Kusanagi/repository"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application holds the running service and its teardown hooks
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	log.Printf("Starting Kusanagi tracking service version=%s env=%s",
		cfg.Deployment.Version, cfg.Deployment.Environment)

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Printf("Listening on %s", address)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.router.GetApp().ShutdownWithContext(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	for _, stop := range app.stopFuncs {
		stop()
	}

	log.Println("Server exited")
}

// setupLogging routes the standard logger to stdout, a rotated file or both
func setupLogging(cfg *config.ProductionConfig) {
	if cfg.Logging.Output == "stdout" {
		return
	}

	fileSink := &lumberjack.Logger{
		Filename:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	}

	switch cfg.Logging.Output {
	case "file":
		log.SetOutput(fileSink)
	case "both":
		log.SetOutput(io.MultiWriter(os.Stdout, fileSink))
	}
}

// initializeApplication wires repositories, services, flows, handlers and
// the router
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	app := &Application{config: cfg}

	db, err := initializeDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("database initialization failed: %w", err)
	}

	var redisClient *redis.Client
	var cache services.Cache
	var mutex services.Mutex
	if cfg.Cache.Enabled && cfg.Cache.Provider == "redis" {
		redisClient, err = initializeRedis(cfg)
		if err != nil {
			return nil, fmt.Errorf("redis initialization failed: %w", err)
		}
		app.stopFuncs = append(app.stopFuncs, startRedisHealthMonitor(redisClient))
		app.stopFuncs = append(app.stopFuncs, func() { _ = redisClient.Close() })
		cache = services.NewRedisCache(redisClient, cfg.Cache.RedisPrefix)
		mutex = services.NewRedisMutex(redisClient, cfg.Cache.RedisPrefix, 0)
	} else {
		memory := services.NewMemoryCache(cfg.Cache.CleanupInterval)
		cache = memory
		mutex = services.NewLocalMutex()
		log.Println("Cache provider: in-process memory; transforms are not shared across workers")
	}

	// Repositories
	campaignRepo := repository.NewCampaignRepository(db)
	subscriberRepo := repository.NewSubscriberRepository(db)
	listRepo := repository.NewMailListRepository(db)
	deliveryServerRepo := repository.NewDeliveryServerRepository(db)
	trackedURLRepo := repository.NewTrackedURLRepository(db)
	clickRepo := repository.NewTrackedURLClickRepository(db)
	customerTagRepo := repository.NewCustomerTagRepository(db)
	extraTagRepo := repository.NewCampaignExtraTagRepository(db)
	randomRepo := repository.NewRandomContentRepository(db)
	listFieldRepo := repository.NewListFieldRepository(db)
	fieldValueRepo := repository.NewSubscriberFieldValueRepository(db)
	counterRepo := repository.NewTagEventCounterRepository(db)
	deliveryRepo := repository.NewCampaignDeliveryRepository(db)

	// Services
	tokenService, err := services.NewUnsubscribeTokenService(
		cfg.JWT.TokenTTL, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("token service initialization failed: %w", err)
	}
	remoteContent := services.NewRemoteContentService(cfg.RemoteContent.FetchTimeout)

	// Flows
	logger := log.Default()
	hooks := businessflow.NewHookRegistry()
	extractor := businessflow.NewLinkExtractor()
	trackingFlow := businessflow.NewLinkTrackingFlow(
		trackedURLRepo, cache, mutex, hooks, extractor, cfg.Tracking.BaseURL, logger)
	resolver := businessflow.NewTagResolver(tokenService, cfg.Tracking.BaseURL)
	engine := businessflow.NewTagEngine(
		customerTagRepo, extraTagRepo, randomRepo, listFieldRepo, fieldValueRepo,
		counterRepo, remoteContent, trackingFlow, resolver,
		businessflow.DefaultRandomSource(), logger)
	parseFlow := businessflow.NewParseContentFlow(
		engine, trackingFlow, hooks, cfg.Tracking.BaseURL, logger)
	eventFlow := businessflow.NewTrackEventFlow(
		campaignRepo, subscriberRepo, listRepo, trackedURLRepo, clickRepo,
		counterRepo, tokenService, resolver, cfg.Tracking.BaseURL, logger)
	reportFlow := businessflow.NewReportFlow(campaignRepo, trackedURLRepo, clickRepo)

	// Background campaign dispatch
	if cfg.Scheduler.Enabled {
		var sender services.EmailSender
		if cfg.SMTP.DryRun {
			sender = services.NewLogEmailSender()
		} else {
			sender = services.NewSMTPEmailSender(
				cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
		}
		dispatcher := scheduler.NewCampaignScheduler(
			campaignRepo, listRepo, subscriberRepo, deliveryServerRepo, deliveryRepo,
			parseFlow, sender, logger, cfg.Scheduler.Interval)
		app.stopFuncs = append(app.stopFuncs, dispatcher.Start(context.Background()))
	}

	// Handlers and router
	trackHandler := handlers.NewTrackHandler(eventFlow, cfg.Tracking.FallbackURL)
	reportHandler := handlers.NewReportHandler(reportFlow)

	app.router = router.NewFiberRouter(trackHandler, reportHandler, router.Options{
		AllowedOrigins: cfg.Security.AllowedOrigins,
		MetricsEnabled: cfg.Metrics.Enabled,
	})

	return app, nil
}

// initializeDatabase opens the postgres connection pool
func initializeDatabase(cfg *config.ProductionConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	logLevel := gormlogger.Warn
	if cfg.Database.SlowQueryLog {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(log.Default(), gormlogger.Config{
			SlowThreshold:             cfg.Database.SlowQueryTime,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		}),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("Database connection established")
	return db, nil
}

// initializeRedis connects to the shared cache backing transforms and locks
func initializeRedis(cfg *config.ProductionConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DB = cfg.Cache.RedisDB

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Println("Redis connection established")
	return client, nil
}

// startRedisHealthMonitor pings redis periodically so connectivity loss shows
// up in the logs before it shows up as untransformed sends
func startRedisHealthMonitor(client *redis.Client) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
				if err := client.Ping(pingCtx).Err(); err != nil {
					log.Printf("Redis health check failed: %v", err)
				}
				pingCancel()
			}
		}
	}()
	return cancel
}
