package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/repodoc/docgen_server/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.AnalysisJob) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByID(id string) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns jobs ordered newest first, plus the total count.
func (r *JobRepository) List(page, pageSize int) ([]*model.AnalysisJob, int64, error) {
	var total int64
	if err := r.db.Model(&model.AnalysisJob{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []*model.AnalysisJob
	err := r.db.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&jobs).Error
	return jobs, total, err
}

func (r *JobRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&model.AnalysisJob{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// MarkProcessing claims a pending job. The status predicate makes the
// transition a compare-and-swap: a second claim, or a claim on a terminal
// job, affects zero rows and returns false.
func (r *JobRepository) MarkProcessing(id string) (bool, error) {
	now := time.Now()
	res := r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"status":     model.StatusProcessing,
			"started_at": now,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *JobRepository) UpdateStep(id string, step string) error {
	return r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status = ?", id, model.StatusProcessing).
		Update("current_step", step).Error
}

// Complete writes the result payload and moves the job to completed.
// Only a processing job can complete; returns false if the CAS missed.
func (r *JobRepository) Complete(id string, result string, packageURL string) (bool, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       model.StatusCompleted,
		"result":       result,
		"package_url":  packageURL,
		"current_step": "done",
		"completed_at": now,
	}
	r.addElapsed(updates, id, now)

	res := r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status = ?", id, model.StatusProcessing).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// Fail records an error message and moves the job to failed. A pending job
// may fail directly (e.g. enqueue error); a terminal job is never touched.
func (r *JobRepository) Fail(id, step, message string) (bool, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":        model.StatusFailed,
		"error_message": message,
		"current_step":  step,
		"completed_at":  now,
	}
	r.addElapsed(updates, id, now)

	res := r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status IN ?", id, []string{model.StatusPending, model.StatusProcessing}).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// addElapsed computes elapsed_seconds from the stored started_at so the
// terminal transition stays a single write. Jobs that never started
// (failed while pending) carry no elapsed time.
func (r *JobRepository) addElapsed(updates map[string]interface{}, id string, completedAt time.Time) {
	var job model.AnalysisJob
	if err := r.db.Select("started_at").Where("id = ?", id).First(&job).Error; err != nil {
		return
	}
	if job.StartedAt == nil {
		return
	}
	updates["elapsed_seconds"] = int(completedAt.Sub(*job.StartedAt).Seconds())
}
