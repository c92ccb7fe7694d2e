package cron

import (
	"log"
	"time"

	"github.com/repodoc/docgen_server/internal/repository"
)

// Service periodically purges expired repository cache entries.
type Service struct {
	cacheRepo *repository.CacheRepository
	interval  time.Duration
	stopChan  chan struct{}
}

func NewService(cacheRepo *repository.CacheRepository) *Service {
	return &Service{
		cacheRepo: cacheRepo,
		interval:  time.Hour,
		stopChan:  make(chan struct{}),
	}
}

func (s *Service) Start() {
	go s.run()
	log.Println("cache cleanup service started")
}

func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("cache cleanup service stopped")
}

func (s *Service) run() {
	// Run once at startup, then hourly.
	s.cleanup()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Service) cleanup() {
	count, err := s.cacheRepo.DeleteExpired()
	if err != nil {
		log.Printf("cache cleanup failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("cache cleanup removed %d expired entries", count)
	}
}
