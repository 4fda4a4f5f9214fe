package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
)

// LineItem is a persisted ledger row. OwnerType and OwnerID point at either a
// quote or a parts list.
type LineItem struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerType      enums.LineItemOwner `gorm:"column:owner_type;not null"`
	OwnerID        uuid.UUID           `gorm:"column:owner_id;type:uuid;not null"`
	Description    string              `gorm:"column:description;not null;default:''"`
	Category       string              `gorm:"column:category;not null;default:''"`
	SectionName    string              `gorm:"column:section_name;not null;default:''"`
	PartNumber     string              `gorm:"column:part_number;not null;default:''"`
	Supplier       string              `gorm:"column:supplier;not null;default:''"`
	Quantity       decimal.Decimal     `gorm:"column:quantity;type:numeric(14,3);not null"`
	UnitCost       decimal.NullDecimal `gorm:"column:unit_cost;type:numeric(14,2)"`
	UnitPrice      decimal.NullDecimal `gorm:"column:unit_price;type:numeric(14,2)"`
	DiscountRate   decimal.Decimal     `gorm:"column:discount_rate;type:numeric(7,4);not null"`
	DiscountAmount decimal.Decimal     `gorm:"column:discount_amount;type:numeric(14,2);not null"`
	TotalPrice     decimal.Decimal     `gorm:"column:total_price;type:numeric(14,2);not null"`
	IsOptional     bool                `gorm:"column:is_optional;not null;default:false"`
	IsAlternate    bool                `gorm:"column:is_alternate;not null;default:false"`
	SortOrder      int                 `gorm:"column:sort_order;not null"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (LineItem) TableName() string { return "line_items" }
