package partslists

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/quotedesk-backend/pkg/db/models"
)

var errVersionMismatch = errors.New("parts list version changed")

// Repository handles parts list headers; items live in lineitems.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, list *models.PartsList) error
	FindByTicket(ctx context.Context, ticketID uuid.UUID) (*models.PartsList, error)
	FindByTicketForUpdate(ctx context.Context, ticketID uuid.UUID) (*models.PartsList, error)
	UpdateVersioned(ctx context.Context, list *models.PartsList, expectedVersion int64) error
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

func (r *repository) Create(ctx context.Context, list *models.PartsList) error {
	if list == nil {
		return fmt.Errorf("parts list is required")
	}
	if list.ID == uuid.Nil {
		list.ID = uuid.New()
	}
	now := time.Now().UTC()
	list.CreatedAt = now
	list.UpdatedAt = now
	if list.Version == 0 {
		list.Version = 1
	}
	return r.db.WithContext(ctx).Create(list).Error
}

func (r *repository) FindByTicket(ctx context.Context, ticketID uuid.UUID) (*models.PartsList, error) {
	var list models.PartsList
	if err := r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).First(&list).Error; err != nil {
		return nil, err
	}
	return &list, nil
}

func (r *repository) FindByTicketForUpdate(ctx context.Context, ticketID uuid.UUID) (*models.PartsList, error) {
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var list models.PartsList
	if err := q.Where("ticket_id = ?", ticketID).First(&list).Error; err != nil {
		return nil, err
	}
	return &list, nil
}

func (r *repository) UpdateVersioned(ctx context.Context, list *models.PartsList, expectedVersion int64) error {
	list.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.PartsList{}).
		Where("id = ? AND version = ?", list.ID, expectedVersion).
		Updates(map[string]any{
			"tax_rate":     list.TaxRate,
			"subtotal":     list.Subtotal,
			"tax_amount":   list.TaxAmount,
			"total_amount": list.TotalAmount,
			"version":      list.Version,
			"updated_at":   list.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errVersionMismatch
	}
	return nil
}
