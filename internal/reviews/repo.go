package reviews

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/quotedesk-backend/pkg/db/models"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
)

var openStatuses = []enums.ReviewStatus{enums.ReviewStatusPending, enums.ReviewStatusRunning}

// Repository persists review jobs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, job *models.ReviewJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ReviewJob, error)
	FindOpenForQuote(ctx context.Context, quoteID uuid.UUID) (*models.ReviewJob, error)
	MarkRunning(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, score int, suggestions json.RawMessage, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)
	ListOpenBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReviewJob, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, job *models.ReviewJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ReviewJob, error) {
	var job models.ReviewJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) FindOpenForQuote(ctx context.Context, quoteID uuid.UUID) (*models.ReviewJob, error) {
	var job models.ReviewJob
	err := r.db.WithContext(ctx).
		Where("quote_id = ? AND status IN ?", quoteID, openStatuses).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Mark* transitions only apply to open jobs; false means the job had already
// finished (for example reaped while a worker was still busy).

func (r *repository) MarkRunning(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, id, []enums.ReviewStatus{enums.ReviewStatusPending}, map[string]any{
		"status":     enums.ReviewStatusRunning,
		"started_at": at,
	})
}

func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, score int, suggestions json.RawMessage, at time.Time) (bool, error) {
	return r.transition(ctx, id, openStatuses, map[string]any{
		"status":       enums.ReviewStatusCompleted,
		"health_score": score,
		"suggestions":  models.JSONDocument(suggestions),
		"finished_at":  at,
	})
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	return r.transition(ctx, id, openStatuses, map[string]any{
		"status":      enums.ReviewStatusFailed,
		"error":       reason,
		"finished_at": at,
	})
}

func (r *repository) ListOpenBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReviewJob, error) {
	var jobs []models.ReviewJob
	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", openStatuses, cutoff.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

func (r *repository) transition(ctx context.Context, id uuid.UUID, from []enums.ReviewStatus, values map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ReviewJob{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
