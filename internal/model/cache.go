package model

import (
	"time"
)

// RepositoryCache stores a fetched repository analysis so repeated
// submissions of the same URL skip the GitHub round trips until expiry.
type RepositoryCache struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	RepoURL      string    `gorm:"size:500;uniqueIndex;not null" json:"repo_url"`
	AnalysisData string    `gorm:"type:text" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `gorm:"index" json:"expires_at"`
}

func (RepositoryCache) TableName() string {
	return "repository_cache"
}

func (c *RepositoryCache) Expired() bool {
	return time.Now().After(c.ExpiresAt)
}
