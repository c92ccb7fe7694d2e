package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/repodoc/docgen_server/internal/github"
	"github.com/repodoc/docgen_server/internal/model"
	"github.com/repodoc/docgen_server/internal/model/dto"
	"github.com/repodoc/docgen_server/internal/pkg/queue"
	"github.com/repodoc/docgen_server/internal/repository"
)

var (
	ErrInvalidRepoURL  = errors.New("invalid repository URL")
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotCompleted = errors.New("job has not completed")
	ErrSubmitFailed    = errors.New("failed to schedule analysis")
)

// PackageSigner resolves an object-storage key to a URL clients can
// fetch, typically with a short-lived signature.
type PackageSigner interface {
	DownloadURL(objectKey string, expiry time.Duration) (string, error)
}

const packageURLExpiry = 15 * time.Minute

// JobService owns the job lifecycle from submission to download.
type JobService struct {
	jobRepo *repository.JobRepository
	queue   *queue.Queue
	signer  PackageSigner
}

// NewJobService wires the job lifecycle. signer may be nil when no
// object storage is configured; packages then stay on local disk.
func NewJobService(jobRepo *repository.JobRepository, q *queue.Queue, signer PackageSigner) *JobService {
	return &JobService{
		jobRepo: jobRepo,
		queue:   q,
		signer:  signer,
	}
}

// Submit validates the URL, persists a pending job, and enqueues it.
// The caller gets an acknowledgement immediately; all pipeline work
// happens in the background.
func (s *JobService) Submit(ctx context.Context, repoURL string) (*dto.AnalyzeResponse, error) {
	ref, err := github.ParseRepoURL(repoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRepoURL, err.Error())
	}

	job := &model.AnalysisJob{
		RepoURL:   repoURL,
		RepoOwner: ref.Owner,
		RepoName:  ref.Name,
		Status:    model.StatusPending,
	}
	if err := s.jobRepo.Create(job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	msg := &queue.JobMessage{JobID: job.ID, RepoURL: repoURL}
	if err := s.queue.Push(ctx, msg); err != nil {
		// The record must not stay pending forever with nothing queued.
		if _, failErr := s.jobRepo.Fail(job.ID, "queueing", "failed to schedule the analysis, please retry"); failErr != nil {
			log.Printf("mark unqueued job %s failed: %v", job.ID, failErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	return &dto.AnalyzeResponse{
		JobID:     job.ID,
		Status:    job.Status,
		RepoOwner: job.RepoOwner,
		RepoName:  job.RepoName,
	}, nil
}

// GetJob returns the full job snapshot.
func (s *JobService) GetJob(id string) (*dto.JobDetail, error) {
	job, err := s.jobRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return toJobDetail(job), nil
}

// ListJobs returns one page of jobs, newest first.
func (s *JobService) ListJobs(page, pageSize int) ([]*dto.JobListItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	jobs, total, err := s.jobRepo.List(page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.JobListItem, len(jobs))
	for i, job := range jobs {
		items[i] = toJobListItem(job)
	}
	return items, total, nil
}

// PackagePath resolves the stored package for a completed job. Only a
// local package can be streamed by this server; remote URLs are
// returned as-is for redirecting.
func (s *JobService) PackagePath(id string) (path string, remoteURL string, err error) {
	job, err := s.jobRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", ErrJobNotFound
		}
		return "", "", err
	}
	if job.Status != model.StatusCompleted || job.PackageURL == "" {
		return "", "", ErrJobNotCompleted
	}

	switch {
	case strings.HasPrefix(job.PackageURL, "local://"):
		return strings.TrimPrefix(job.PackageURL, "local://"), "", nil
	case strings.HasPrefix(job.PackageURL, "oss://"):
		if s.signer == nil {
			return "", "", fmt.Errorf("package %s is in object storage but no signer is configured", id)
		}
		url, err := s.signer.DownloadURL(strings.TrimPrefix(job.PackageURL, "oss://"), packageURLExpiry)
		if err != nil {
			return "", "", fmt.Errorf("sign package url: %w", err)
		}
		return "", url, nil
	default:
		return "", job.PackageURL, nil
	}
}

func toJobDetail(job *model.AnalysisJob) *dto.JobDetail {
	detail := &dto.JobDetail{
		JobID:       job.ID,
		RepoURL:     job.RepoURL,
		RepoOwner:   job.RepoOwner,
		RepoName:    job.RepoName,
		Status:      job.Status,
		CurrentStep: job.CurrentStep,
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   job.UpdatedAt.Format(time.RFC3339),
	}
	if job.StartedAt != nil {
		detail.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		detail.CompletedAt = job.CompletedAt.Format(time.RFC3339)
		detail.ElapsedSeconds = job.ElapsedSeconds
	}
	if job.Status == model.StatusCompleted && job.Result != "" {
		detail.Result = json.RawMessage(job.Result)
		detail.DownloadURL = downloadURL(job)
	}
	if job.Status == model.StatusFailed && job.ErrorMessage != "" {
		msg := job.ErrorMessage
		detail.ErrorMessage = &msg
	}
	return detail
}

func toJobListItem(job *model.AnalysisJob) *dto.JobListItem {
	item := &dto.JobListItem{
		JobID:     job.ID,
		RepoURL:   job.RepoURL,
		RepoOwner: job.RepoOwner,
		RepoName:  job.RepoName,
		Status:    job.Status,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}
	if job.Status == model.StatusCompleted && job.PackageURL != "" {
		item.DownloadURL = downloadURL(job)
	}
	return item
}

func downloadURL(job *model.AnalysisJob) string {
	return "/api/v1/jobs/" + job.ID + "/download"
}
