package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/repodoc/docgen_server/internal/model"
)

// JobOption mutates a fixture job before insert.
type JobOption func(*model.AnalysisJob)

func WithRepoURL(url string) JobOption {
	return func(j *model.AnalysisJob) { j.RepoURL = url }
}

func WithOwnerRepo(owner, name string) JobOption {
	return func(j *model.AnalysisJob) {
		j.RepoOwner = owner
		j.RepoName = name
	}
}

func WithResult(result string) JobOption {
	return func(j *model.AnalysisJob) { j.Result = result }
}

func WithPackageURL(url string) JobOption {
	return func(j *model.AnalysisJob) { j.PackageURL = url }
}

func WithCreatedAt(ts time.Time) JobOption {
	return func(j *model.AnalysisJob) { j.CreatedAt = ts }
}

func WithStartedAt(ts time.Time) JobOption {
	return func(j *model.AnalysisJob) { j.StartedAt = &ts }
}

// TestJob inserts a job with the given status and returns it.
func TestJob(t *testing.T, db *gorm.DB, status string, opts ...JobOption) *model.AnalysisJob {
	t.Helper()

	job := &model.AnalysisJob{
		ID:        uuid.NewString(),
		RepoURL:   "https://github.com/octo/hello",
		RepoOwner: "octo",
		RepoName:  "hello",
		Status:    status,
	}
	if status == model.StatusProcessing || model.IsTerminal(status) {
		now := time.Now()
		job.StartedAt = &now
	}
	if model.IsTerminal(status) {
		now := time.Now()
		job.CompletedAt = &now
	}

	for _, opt := range opts {
		opt(job)
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("failed to create test job: %v", err)
	}
	return job
}

// TestCacheEntry inserts a repository cache row.
func TestCacheEntry(t *testing.T, db *gorm.DB, repoURL, data string, expiresAt time.Time) *model.RepositoryCache {
	t.Helper()

	entry := &model.RepositoryCache{
		RepoURL:      repoURL,
		AnalysisData: data,
		ExpiresAt:    expiresAt,
	}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("failed to create test cache entry: %v", err)
	}
	return entry
}

// TestFeedback inserts a feedback row for a job.
func TestFeedback(t *testing.T, db *gorm.DB, jobID string, rating int) *model.JobFeedback {
	t.Helper()

	fb := &model.JobFeedback{
		JobID:        jobID,
		Rating:       rating,
		FeedbackText: "useful documentation",
	}
	if err := db.Create(fb).Error; err != nil {
		t.Fatalf("failed to create test feedback: %v", err)
	}
	return fb
}
