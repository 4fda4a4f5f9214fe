package client

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
)

// QuoteGateway binds a ledger.Editor to one quote's items.
type QuoteGateway struct {
	client  *Client
	quoteID uuid.UUID
}

func NewQuoteGateway(c *Client, quoteID uuid.UUID) *QuoteGateway {
	return &QuoteGateway{client: c, quoteID: quoteID}
}

func (g *QuoteGateway) Fetch(ctx context.Context) (ledger.Ledger, error) {
	return g.client.QuoteItems(ctx, g.quoteID)
}

func (g *QuoteGateway) Replace(ctx context.Context, req ledger.ReplaceRequest) (ledger.Ledger, error) {
	return g.client.ReplaceQuoteItems(ctx, g.quoteID, req)
}

// PartsListGateway binds a ledger.Editor to one ticket's parts list.
type PartsListGateway struct {
	client   *Client
	ticketID uuid.UUID
}

func NewPartsListGateway(c *Client, ticketID uuid.UUID) *PartsListGateway {
	return &PartsListGateway{client: c, ticketID: ticketID}
}

func (g *PartsListGateway) Fetch(ctx context.Context) (ledger.Ledger, error) {
	return g.client.TicketParts(ctx, g.ticketID)
}

func (g *PartsListGateway) Replace(ctx context.Context, req ledger.ReplaceRequest) (ledger.Ledger, error) {
	return g.client.ReplaceTicketParts(ctx, g.ticketID, req)
}

var (
	_ ledger.Gateway = (*QuoteGateway)(nil)
	_ ledger.Gateway = (*PartsListGateway)(nil)
)
