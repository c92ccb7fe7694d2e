package model

import (
	"time"
)

// JobFeedback is a user rating of the documentation generated for a job.
type JobFeedback struct {
	ID                     int64     `gorm:"primaryKey" json:"id"`
	JobID                  string    `gorm:"size:36;not null;index" json:"job_id"`
	Rating                 int       `gorm:"not null" json:"rating"` // 1-5
	FeedbackText           string    `gorm:"type:text" json:"feedback_text,omitempty"`
	ImprovementSuggestions string    `gorm:"type:text" json:"improvement_suggestions,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

func (JobFeedback) TableName() string {
	return "job_feedback"
}
