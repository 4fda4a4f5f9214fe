package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/quotedesk-backend/pkg/db/models"
	"github.com/angelmondragon/quotedesk-backend/pkg/pagination"
)

// ErrVersionMismatch is returned by UpdateVersioned when another save won the race.
var ErrVersionMismatch = errors.New("quote version changed")

// Repository handles quote persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, quote *models.Quote) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	List(ctx context.Context, params ListParams) ([]models.Quote, string, error)
	UpdateVersioned(ctx context.Context, quote *models.Quote, expectedVersion int64) error
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

func (r *repository) Create(ctx context.Context, quote *models.Quote) error {
	if quote == nil {
		return fmt.Errorf("quote is required")
	}
	if quote.ID == uuid.Nil {
		quote.ID = uuid.New()
	}
	now := time.Now().UTC()
	quote.CreatedAt = now
	quote.UpdatedAt = now
	if quote.Version == 0 {
		quote.Version = 1
	}
	return r.db.WithContext(ctx).Create(quote).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&quote).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

// FindByIDForUpdate row-locks the quote on postgres. sqlite serializes writers anyway.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var quote models.Quote
	if err := q.Where("id = ?", id).First(&quote).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repository) List(ctx context.Context, params ListParams) ([]models.Quote, string, error) {
	cursor, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	q := r.db.WithContext(ctx).Model(&models.Quote{})
	if params.CustomerID != nil {
		q = q.Where("customer_id = ?", *params.CustomerID)
	}
	if params.Status != nil {
		q = q.Where("status = ?", *params.Status)
	}
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Quote
	if err := q.Order("created_at DESC").Order("id DESC").
		Limit(pagination.Limit(params.Limit) + 1).
		Find(&rows).Error; err != nil {
		return nil, "", err
	}

	rows, next := pagination.Trim(rows, params.Limit, func(q models.Quote) pagination.Cursor {
		return pagination.Cursor{CreatedAt: q.CreatedAt, ID: q.ID}
	})
	return rows, next, nil
}

// UpdateVersioned writes the mutable columns only if the stored version still
// equals expectedVersion. quote.Version should already hold the new value.
func (r *repository) UpdateVersioned(ctx context.Context, quote *models.Quote, expectedVersion int64) error {
	if quote == nil {
		return fmt.Errorf("quote is required")
	}
	quote.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND version = ?", quote.ID, expectedVersion).
		Updates(map[string]any{
			"title":        quote.Title,
			"status":       quote.Status,
			"tax_rate":     quote.TaxRate,
			"subtotal":     quote.Subtotal,
			"tax_amount":   quote.TaxAmount,
			"total_amount": quote.TotalAmount,
			"version":      quote.Version,
			"updated_at":   quote.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionMismatch
	}
	return nil
}
