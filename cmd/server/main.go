package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/storage/redis/v3"

	"leadrelay/internal/botcheck"
	"leadrelay/internal/config"
	"leadrelay/internal/db"
	"leadrelay/internal/email"
	"leadrelay/internal/feed"
	"leadrelay/internal/jobs"
	"leadrelay/internal/metrics"
	"leadrelay/internal/quotes"
	"leadrelay/internal/server"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	yamlCfg, err := config.LoadYAMLConfig()
	if err != nil {
		log.Fatalf("Failed to load config file: %v", err)
	}
	yamlCfg.Apply(cfg)

	router := quotes.NewRouter(yamlCfg.GetQuoteRoutes())

	// Initialize database
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := database.EnsureQuoteTables(ctx, router.Tables()); err != nil {
		log.Fatalf("Failed to prepare quote tables: %v", err)
	}
	log.Println("Migrations completed successfully")

	// Shared storage for sessions, rate limits, duplicate guard and feed cache
	var storage fiber.Storage
	var redisStore *redis.Storage
	if cfg.RedisURL != "" {
		redisStore = redis.New(redis.Config{URL: cfg.RedisURL})
		defer redisStore.Close()
		storage = redisStore
		log.Println("Using Redis for shared storage")
	} else {
		log.Println("REDIS_URL not set: using in-memory storage and disabling the duplicate guard")
	}

	metrics.Init(database, router.Tables())

	verifier := botcheck.NewVerifier(cfg.CaptchaSecret, cfg.CaptchaVerifyURL)
	if !verifier.Enabled() {
		log.Println("CAPTCHA verification is disabled. Set CAPTCHA_SECRET to enable.")
	}

	notifier := email.NewNotifier(cfg)
	if !cfg.IsEmailEnabled() {
		log.Println("Email notifications are disabled. Set SMTP_HOST and NOTIFY_EMAILS to enable.")
	}

	var guard *quotes.DuplicateGuard
	if redisStore != nil {
		guard = quotes.NewDuplicateGuard(quotes.NewRedisKV(redisStore), cfg.DuplicateWindow)
	}

	relay := quotes.NewRelay(router, database, verifier, guard, notifier, quotes.Options{
		PhoneRegion:   cfg.PhoneRegion,
		HoneypotField: cfg.HoneypotField,
	})

	var feedCache feed.Cache
	if storage != nil {
		feedCache = storage
	}
	proxy := feed.NewProxy(feed.Config{
		DefaultURL:   cfg.RSSFeedURL,
		AllowedHosts: yamlCfg.RSSHosts(cfg),
		CacheTTL:     cfg.RSSCacheTTL,
	}, feedCache)

	srv := server.New(cfg, storage)
	if err := srv.RegisterRoutes(ctx, server.Deps{
		Store: database,
		Relay: relay,
		Feed:  proxy,
	}); err != nil {
		log.Fatalf("Failed to register routes: %v", err)
	}

	// Background retention sweep
	sweeper := jobs.NewRetentionSweeper(database, router.Tables(), cfg.RetentionInterval, cfg.MetadataRetentionDays, cfg.AuditRetentionDays)
	go sweeper.Start(ctx)

	// Graceful shutdown
	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("Server started on %s", cfg.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()
	if err := srv.Shutdown(); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
