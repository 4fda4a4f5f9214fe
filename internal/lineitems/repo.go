package lineitems

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/quotedesk-backend/pkg/db/models"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
)

// Repository persists the rows of one ledger, keyed by (owner_type, owner_id).
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListForOwner(ctx context.Context, owner enums.LineItemOwner, ownerID uuid.UUID) ([]models.LineItem, error)
	CountForOwner(ctx context.Context, owner enums.LineItemOwner, ownerID uuid.UUID) (int64, error)
	ReplaceForOwner(ctx context.Context, owner enums.LineItemOwner, ownerID uuid.UUID, items []ledger.LineItem) ([]models.LineItem, error)
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

func (r *repository) ListForOwner(ctx context.Context, owner enums.LineItemOwner, ownerID uuid.UUID) ([]models.LineItem, error) {
	var rows []models.LineItem
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", owner, ownerID).
		Order("sort_order ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountForOwner(ctx context.Context, owner enums.LineItemOwner, ownerID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.LineItem{}).
		Where("owner_type = ? AND owner_id = ?", owner, ownerID).
		Count(&n).Error
	return n, err
}

// ReplaceForOwner swaps the whole list in one go: existing rows are deleted
// and the given items inserted in list order. A client supplied id survives
// only when it already belongs to this owner and appears once in the request;
// every other row gets a fresh id. Run it inside the caller's transaction.
func (r *repository) ReplaceForOwner(ctx context.Context, owner enums.LineItemOwner, ownerID uuid.UUID, items []ledger.LineItem) ([]models.LineItem, error) {
	if !owner.IsValid() {
		return nil, fmt.Errorf("invalid owner type %q", owner)
	}
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("owner id is required")
	}

	db := r.db.WithContext(ctx)

	var existing []uuid.UUID
	if err := db.Model(&models.LineItem{}).
		Where("owner_type = ? AND owner_id = ?", owner, ownerID).
		Pluck("id", &existing).Error; err != nil {
		return nil, fmt.Errorf("load existing items: %w", err)
	}
	owned := make(map[uuid.UUID]struct{}, len(existing))
	for _, id := range existing {
		owned[id] = struct{}{}
	}

	if err := db.Where("owner_type = ? AND owner_id = ?", owner, ownerID).
		Delete(&models.LineItem{}).Error; err != nil {
		return nil, fmt.Errorf("delete items: %w", err)
	}

	if len(items) == 0 {
		return []models.LineItem{}, nil
	}

	now := time.Now().UTC()
	seen := make(map[uuid.UUID]struct{}, len(items))
	rows := make([]models.LineItem, 0, len(items))
	for i, item := range items {
		row := FromLedger(item, owner, ownerID)
		row.ID = uuid.New()
		if item.ID != nil {
			if _, ok := owned[*item.ID]; ok {
				if _, dup := seen[*item.ID]; !dup {
					row.ID = *item.ID
					seen[*item.ID] = struct{}{}
				}
			}
		}
		row.SortOrder = i + 1
		row.CreatedAt = now
		rows = append(rows, row)
	}

	if err := db.CreateInBatches(&rows, 100).Error; err != nil {
		return nil, fmt.Errorf("insert items: %w", err)
	}
	return rows, nil
}
