package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
)

// ReviewJob records one asynchronous quote review and its findings.
type ReviewJob struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	QuoteID     uuid.UUID          `gorm:"column:quote_id;type:uuid;not null"`
	CustomerID  uuid.UUID          `gorm:"column:customer_id;type:uuid;not null"`
	Status      enums.ReviewStatus `gorm:"column:status;not null"`
	HealthScore *int               `gorm:"column:health_score"`
	Suggestions JSONDocument       `gorm:"column:suggestions;type:jsonb"`
	Error       *string            `gorm:"column:error"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	StartedAt   *time.Time         `gorm:"column:started_at"`
	FinishedAt  *time.Time         `gorm:"column:finished_at"`
}

func (ReviewJob) TableName() string { return "review_jobs" }
