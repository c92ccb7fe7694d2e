package dto

import (
	"encoding/json"
)

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	RepoURL string `json:"repo_url" binding:"required"`
}

// AnalyzeResponse acknowledges an accepted analysis job.
type AnalyzeResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	RepoOwner string `json:"repo_owner"`
	RepoName  string `json:"repo_name"`
}

// JobDetail is the full serialized snapshot of a job.
// Result is null unless the job completed; ErrorMessage is null unless it failed.
type JobDetail struct {
	JobID          string          `json:"job_id"`
	RepoURL        string          `json:"repo_url"`
	RepoOwner      string          `json:"repo_owner,omitempty"`
	RepoName       string          `json:"repo_name,omitempty"`
	Status         string          `json:"status"`
	CurrentStep    string          `json:"current_step,omitempty"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
	StartedAt      string          `json:"started_at,omitempty"`
	CompletedAt    string          `json:"completed_at,omitempty"`
	ElapsedSeconds int             `json:"elapsed_seconds,omitempty"`
	Result         json.RawMessage `json:"result"`
	ErrorMessage   *string         `json:"error_message"`
	DownloadURL    string          `json:"download_url,omitempty"`
}

// JobListItem is the trimmed representation used by GET /api/v1/jobs.
type JobListItem struct {
	JobID       string `json:"job_id"`
	RepoURL     string `json:"repo_url"`
	RepoOwner   string `json:"repo_owner,omitempty"`
	RepoName    string `json:"repo_name,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	DownloadURL string `json:"download_url,omitempty"`
}

// FeedbackRequest is the body of POST /api/v1/jobs/:id/feedback.
type FeedbackRequest struct {
	Rating                 int    `json:"rating" binding:"required"`
	FeedbackText           string `json:"feedback_text"`
	ImprovementSuggestions string `json:"improvement_suggestions"`
}

// FeedbackItem serializes a stored feedback entry.
type FeedbackItem struct {
	ID                     int64  `json:"id"`
	JobID                  string `json:"job_id"`
	Rating                 int    `json:"rating"`
	FeedbackText           string `json:"feedback_text,omitempty"`
	ImprovementSuggestions string `json:"improvement_suggestions,omitempty"`
	CreatedAt              string `json:"created_at"`
}
