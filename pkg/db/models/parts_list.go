package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PartsList is the single item list attached to a helpdesk ticket.
type PartsList struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TicketID    uuid.UUID       `gorm:"column:ticket_id;type:uuid;not null;uniqueIndex"`
	TaxRate     decimal.Decimal `gorm:"column:tax_rate;type:numeric(7,4);not null;default:0"`
	Subtotal    decimal.Decimal `gorm:"column:subtotal;type:numeric(14,2);not null;default:0"`
	TaxAmount   decimal.Decimal `gorm:"column:tax_amount;type:numeric(14,2);not null;default:0"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:numeric(14,2);not null;default:0"`
	Version     int64           `gorm:"column:version;not null;default:1"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (PartsList) TableName() string { return "parts_lists" }
