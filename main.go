package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"homely-scraper/config"
	"homely-scraper/models"
	"homely-scraper/queue"
	"homely-scraper/scraper/homely"
	"homely-scraper/services"
	"homely-scraper/storage"
	"homely-scraper/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== Property Listing Pipeline starting ===")
	logger.Info("Config — site: %s | workers: %d | retries: %d | queue: %s",
		cfg.SiteName, cfg.Workers, cfg.MaxRetries, cfg.QueueKey)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, err := queue.New(queue.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Key:      cfg.QueueKey,
	})
	if err != nil {
		logger.Error("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	defer q.Close()

	store, err := storage.NewStore(cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		os.Exit(1)
	}
	defer store.Close()

	uploader, err := storage.NewMinioUploader(ctx, storage.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Error("Failed to connect to object storage: %v", err)
		os.Exit(1)
	}

	cdnDomain := cfg.CDNDomain(cfg.SiteName)
	if cdnDomain == "" {
		logger.Error("No CDN domain configured for site %q", cfg.SiteName)
		os.Exit(1)
	}

	relocator := services.NewRelocator(uploader, store, cdnDomain, logger)

	// Seed the index page; external seeders push priority URLs onto the
	// same queue out-of-band.
	added, err := q.Enqueue(ctx, models.WorkItem{
		URL:  cfg.StartURL,
		Meta: models.WorkItemMeta{Schedule: models.SchedulePriority},
	})
	if err != nil {
		logger.Error("Failed to seed start URL: %v", err)
		os.Exit(1)
	}
	if added {
		logger.Info("Seeded start URL: %s", cfg.StartURL)
	}

	homely.New(cfg, logger, q, store, relocator).Run(ctx)

	logger.Info("Done.")
}
