package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Job statuses. Transitions are monotonic:
// pending -> processing -> completed | failed.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// IsTerminal reports whether a status admits no further transition.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

type AnalysisJob struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	RepoURL        string     `gorm:"size:500;not null" json:"repo_url"`
	RepoOwner      string     `gorm:"size:100" json:"repo_owner"`
	RepoName       string     `gorm:"size:200" json:"repo_name"`
	Status         string     `gorm:"size:20;default:pending;index" json:"status"`
	CurrentStep    string     `gorm:"size:200" json:"current_step,omitempty"`
	Result         string     `gorm:"type:text" json:"-"` // JSON payload, completed jobs only
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	PackageURL     string     `gorm:"size:500" json:"package_url,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ElapsedSeconds int        `json:"elapsed_seconds,omitempty"`
}

func (AnalysisJob) TableName() string {
	return "analysis_jobs"
}

func (j *AnalysisJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}
