package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/repodoc/docgen_server/config"
	"github.com/repodoc/docgen_server/internal/api"
	"github.com/repodoc/docgen_server/internal/api/handler"
	"github.com/repodoc/docgen_server/internal/database"
	"github.com/repodoc/docgen_server/internal/github"
	"github.com/repodoc/docgen_server/internal/pkg/cron"
	"github.com/repodoc/docgen_server/internal/pkg/oss"
	"github.com/repodoc/docgen_server/internal/pkg/pubsub"
	"github.com/repodoc/docgen_server/internal/pkg/queue"
	"github.com/repodoc/docgen_server/internal/pkg/ws"
	"github.com/repodoc/docgen_server/internal/repository"
	"github.com/repodoc/docgen_server/internal/service"
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

	jobRepo := repository.NewJobRepository(db)
	cacheRepo := repository.NewCacheRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	jobQueue := queue.NewQueue(redisClient, cfg.Queue.AnalysisQueue)
	publisher := pubsub.NewPublisher(redisClient)
	subscriber := pubsub.NewSubscriber(redisClient)
	hub := ws.NewHub()

	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("oss disabled: %v", err)
			ossClient = nil
		}
	}

	ghClient := github.NewClient(&cfg.GitHub)
	processor := worker.NewProcessor(cfg, jobRepo, cacheRepo, ghClient, publisher, ossClient)
	pool := worker.NewPool(jobQueue, processor, cfg.Queue.MaxWorkers)

	var signer service.PackageSigner
	if ossClient != nil {
		signer = ossClient
	}
	jobService := service.NewJobService(jobRepo, jobQueue, signer)
	feedbackService := service.NewFeedbackService(feedbackRepo, jobRepo)

	router := api.NewRouter(cfg, &api.Handlers{
		Job:       handler.NewJobHandler(jobService),
		Feedback:  handler.NewFeedbackHandler(feedbackService),
		Health:    handler.NewHealthHandler(cfg, db, redisClient, jobQueue),
		WebSocket: handler.NewWebSocketHandler(hub),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background workers run in-process; run cmd/worker separately to
	// scale horizontally.
	go pool.Run(ctx)

	// Bridge job progress to websocket subscribers.
	go func() {
		if err := subscriber.Subscribe(ctx, func(msg *pubsub.ProgressMessage) {
			hub.Broadcast(msg.JobID, msg)
		}); err != nil && ctx.Err() == nil {
			log.Printf("progress subscription ended: %v", err)
		}
	}()

	cleanup := cron.NewService(cacheRepo)
	cleanup.Start()
	defer cleanup.Stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
