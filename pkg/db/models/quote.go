package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
)

// Quote is a priced offer to a customer. Totals are denormalized from its line
// items on every bulk replace; Version increments with each replace.
type Quote struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID  uuid.UUID         `gorm:"column:customer_id;type:uuid;not null"`
	Title       string            `gorm:"column:title;not null"`
	Status      enums.QuoteStatus `gorm:"column:status;not null;default:draft"`
	Currency    enums.Currency    `gorm:"column:currency;not null;default:USD"`
	TaxRate     decimal.Decimal   `gorm:"column:tax_rate;type:numeric(7,4);not null;default:0"`
	Subtotal    decimal.Decimal   `gorm:"column:subtotal;type:numeric(14,2);not null;default:0"`
	TaxAmount   decimal.Decimal   `gorm:"column:tax_amount;type:numeric(14,2);not null;default:0"`
	TotalAmount decimal.Decimal   `gorm:"column:total_amount;type:numeric(14,2);not null;default:0"`
	Version     int64             `gorm:"column:version;not null;default:1"`
	CreatedBy   *uuid.UUID        `gorm:"column:created_by;type:uuid"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Quote) TableName() string { return "quotes" }
