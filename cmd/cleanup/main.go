package main

import (
	"flag"
	"log"

	"github.com/repodoc/docgen_server/config"
	"github.com/repodoc/docgen_server/internal/database"
	"github.com/repodoc/docgen_server/internal/repository"
)

// One-shot cache cleanup, suitable for a system scheduler.
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

	removed, err := repository.NewCacheRepository(db).DeleteExpired()
	if err != nil {
		log.Fatalf("cleanup failed: %v", err)
	}
	log.Printf("removed %d expired cache entries", removed)
}
