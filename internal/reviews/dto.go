package reviews

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/quotedesk-backend/pkg/db/models"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
)

// JobDTO is a review job as the polling endpoint returns it.
type JobDTO struct {
	ID          uuid.UUID          `json:"id"`
	QuoteID     uuid.UUID          `json:"quote_id"`
	CustomerID  uuid.UUID          `json:"customer_id"`
	Status      enums.ReviewStatus `json:"status"`
	HealthScore *int               `json:"health_score,omitempty"`
	Suggestions []Suggestion       `json:"suggestions"`
	Error       *string            `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	FinishedAt  *time.Time         `json:"finished_at,omitempty"`
}

func FromModel(m *models.ReviewJob) *JobDTO {
	if m == nil {
		return nil
	}
	dto := &JobDTO{
		ID:          m.ID,
		QuoteID:     m.QuoteID,
		CustomerID:  m.CustomerID,
		Status:      m.Status,
		HealthScore: m.HealthScore,
		Suggestions: []Suggestion{},
		Error:       m.Error,
		CreatedAt:   m.CreatedAt,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
	}
	if len(m.Suggestions) > 0 {
		// a malformed column leaves the list empty rather than failing the read
		_ = json.Unmarshal(m.Suggestions, &dto.Suggestions)
	}
	return dto
}
