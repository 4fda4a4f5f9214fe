package client

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
)

func partsPath(ticketID uuid.UUID) string {
	return "/api/v1/tickets/" + ticketID.String() + "/parts"
}

// TicketParts returns the ticket's parts list; the server creates an empty
// one on first access.
func (c *Client) TicketParts(ctx context.Context, ticketID uuid.UUID) (ledger.Ledger, error) {
	return c.fetchLedger(ctx, partsPath(ticketID))
}

func (c *Client) ReplaceTicketParts(ctx context.Context, ticketID uuid.UUID, req ledger.ReplaceRequest) (ledger.Ledger, error) {
	return c.replaceLedger(ctx, partsPath(ticketID), req)
}
