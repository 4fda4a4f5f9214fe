package lineitems

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/quotedesk-backend/pkg/db/models"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
)

// ToLedger maps stored rows onto ledger items, keeping their order.
func ToLedger(rows []models.LineItem) []ledger.LineItem {
	out := make([]ledger.LineItem, 0, len(rows))
	for _, row := range rows {
		id := row.ID
		out = append(out, ledger.LineItem{
			ID:             &id,
			Description:    row.Description,
			Category:       row.Category,
			SectionName:    row.SectionName,
			PartNumber:     row.PartNumber,
			Supplier:       row.Supplier,
			Quantity:       row.Quantity,
			UnitCost:       row.UnitCost,
			UnitPrice:      row.UnitPrice,
			DiscountRate:   row.DiscountRate,
			DiscountAmount: row.DiscountAmount,
			TotalPrice:     row.TotalPrice,
			IsOptional:     row.IsOptional,
			IsAlternate:    row.IsAlternate,
			SortOrder:      row.SortOrder,
		})
	}
	return out
}

// FromLedger builds a row for the owner. The id is left for the repository to decide.
func FromLedger(item ledger.LineItem, owner enums.LineItemOwner, ownerID uuid.UUID) models.LineItem {
	return models.LineItem{
		OwnerType:      owner,
		OwnerID:        ownerID,
		Description:    item.Description,
		Category:       item.Category,
		SectionName:    item.SectionName,
		PartNumber:     item.PartNumber,
		Supplier:       item.Supplier,
		Quantity:       item.Quantity,
		UnitCost:       item.UnitCost,
		UnitPrice:      item.UnitPrice,
		DiscountRate:   item.DiscountRate,
		DiscountAmount: item.DiscountAmount,
		TotalPrice:     item.TotalPrice,
		IsOptional:     item.IsOptional,
		IsAlternate:    item.IsAlternate,
		SortOrder:      item.SortOrder,
	}
}
