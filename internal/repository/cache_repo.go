package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/repodoc/docgen_server/internal/model"
)

type CacheRepository struct {
	db *gorm.DB
}

func NewCacheRepository(db *gorm.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Get returns the cache entry for a repo URL, or nil when absent or expired.
func (r *CacheRepository) Get(repoURL string) (*model.RepositoryCache, error) {
	var entry model.RepositoryCache
	err := r.db.Where("repo_url = ?", repoURL).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if entry.Expired() {
		return nil, nil
	}
	return &entry, nil
}

// Put upserts the cached analysis for a repo URL with a fresh expiry.
func (r *CacheRepository) Put(repoURL, analysisData string, ttl time.Duration) error {
	entry := &model.RepositoryCache{
		RepoURL:      repoURL,
		AnalysisData: analysisData,
		ExpiresAt:    time.Now().Add(ttl),
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repo_url"}},
		DoUpdates: clause.AssignmentColumns([]string{"analysis_data", "expires_at"}),
	}).Create(entry).Error
}

// DeleteExpired purges entries past their expiry, returning how many went.
func (r *CacheRepository) DeleteExpired() (int64, error) {
	res := r.db.Where("expires_at < ?", time.Now()).Delete(&model.RepositoryCache{})
	return res.RowsAffected, res.Error
}
