package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/repodoc/docgen_server/config"
	"github.com/repodoc/docgen_server/internal/database"
	"github.com/repodoc/docgen_server/internal/github"
	"github.com/repodoc/docgen_server/internal/pkg/oss"
	"github.com/repodoc/docgen_server/internal/pkg/pubsub"
	"github.com/repodoc/docgen_server/internal/pkg/queue"
	"github.com/repodoc/docgen_server/internal/repository"
	"github.com/repodoc/docgen_server/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	redisClient, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}

	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("oss disabled: %v", err)
			ossClient = nil
		}
	}

	jobRepo := repository.NewJobRepository(db)
	cacheRepo := repository.NewCacheRepository(db)
	ghClient := github.NewClient(&cfg.GitHub)
	publisher := pubsub.NewPublisher(redisClient)

	processor := worker.NewProcessor(cfg, jobRepo, cacheRepo, ghClient, publisher, ossClient)
	pool := worker.NewPool(queue.NewQueue(redisClient, cfg.Queue.AnalysisQueue), processor, cfg.Queue.MaxWorkers)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("shutting down workers")
		cancel()
	}()

	pool.Run(ctx)
}
