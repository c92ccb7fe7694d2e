package repository

import (
	"gorm.io/gorm"

	"github.com/repodoc/docgen_server/internal/model"
)

type FeedbackRepository struct {
	db *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) Create(fb *model.JobFeedback) error {
	return r.db.Create(fb).Error
}

func (r *FeedbackRepository) ListByJobID(jobID string) ([]*model.JobFeedback, error) {
	var items []*model.JobFeedback
	err := r.db.Where("job_id = ?", jobID).Order("created_at DESC").Find(&items).Error
	return items, err
}
