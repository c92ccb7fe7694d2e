package service

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/repodoc/docgen_server/internal/model"
	"github.com/repodoc/docgen_server/internal/model/dto"
	"github.com/repodoc/docgen_server/internal/repository"
)

var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// FeedbackService records and lists user feedback on generated
// documentation.
type FeedbackService struct {
	feedbackRepo *repository.FeedbackRepository
	jobRepo      *repository.JobRepository
}

func NewFeedbackService(feedbackRepo *repository.FeedbackRepository, jobRepo *repository.JobRepository) *FeedbackService {
	return &FeedbackService{
		feedbackRepo: feedbackRepo,
		jobRepo:      jobRepo,
	}
}

// Submit stores feedback for an existing job.
func (s *FeedbackService) Submit(jobID string, req *dto.FeedbackRequest) (*dto.FeedbackItem, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ErrInvalidRating
	}

	if _, err := s.jobRepo.GetByID(jobID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	fb := &model.JobFeedback{
		JobID:                  jobID,
		Rating:                 req.Rating,
		FeedbackText:           req.FeedbackText,
		ImprovementSuggestions: req.ImprovementSuggestions,
	}
	if err := s.feedbackRepo.Create(fb); err != nil {
		return nil, err
	}

	return toFeedbackItem(fb), nil
}

// List returns all feedback for a job, newest first.
func (s *FeedbackService) List(jobID string) ([]*dto.FeedbackItem, error) {
	if _, err := s.jobRepo.GetByID(jobID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	entries, err := s.feedbackRepo.ListByJobID(jobID)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.FeedbackItem, len(entries))
	for i, fb := range entries {
		items[i] = toFeedbackItem(fb)
	}
	return items, nil
}

func toFeedbackItem(fb *model.JobFeedback) *dto.FeedbackItem {
	return &dto.FeedbackItem{
		ID:                     fb.ID,
		JobID:                  fb.JobID,
		Rating:                 fb.Rating,
		FeedbackText:           fb.FeedbackText,
		ImprovementSuggestions: fb.ImprovementSuggestions,
		CreatedAt:              fb.CreatedAt.Format(time.RFC3339),
	}
}
