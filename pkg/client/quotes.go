package client

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
)

func quotePath(id uuid.UUID) string {
	return "/api/v1/quotes/" + id.String()
}

func (c *Client) ListQuotes(ctx context.Context, p ListQuotesParams) (*QuotePage, error) {
	q := url.Values{}
	if p.CustomerID != nil {
		q.Set("customer_id", p.CustomerID.String())
	}
	if p.Status != "" {
		q.Set("status", p.Status.String())
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Cursor != "" {
		q.Set("cursor", p.Cursor)
	}
	var page QuotePage
	if _, err := c.doJSON(ctx, request{method: http.MethodGet, path: "/api/v1/quotes", query: q}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetQuote(ctx context.Context, id uuid.UUID) (*Quote, error) {
	var quote Quote
	if _, err := c.doJSON(ctx, request{method: http.MethodGet, path: quotePath(id)}, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// CreateQuote is safe to retry with the same IdempotencyKey.
func (c *Client) CreateQuote(ctx context.Context, in CreateQuoteInput) (*Quote, error) {
	key := in.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	var quote Quote
	_, err := c.doJSON(ctx, request{
		method:  http.MethodPost,
		path:    "/api/v1/quotes",
		body:    in,
		headers: map[string]string{"Idempotency-Key": key},
	}, &quote)
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (c *Client) UpdateQuote(ctx context.Context, id uuid.UUID, in UpdateQuoteInput) (*Quote, error) {
	var quote Quote
	if _, err := c.doJSON(ctx, request{method: http.MethodPatch, path: quotePath(id), body: in}, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (c *Client) QuoteItems(ctx context.Context, id uuid.UUID) (ledger.Ledger, error) {
	return c.fetchLedger(ctx, quotePath(id)+"/items")
}

// ReplaceQuoteItems sends the whole list. A set ExpectedVersion is also sent
// as If-Match.
func (c *Client) ReplaceQuoteItems(ctx context.Context, id uuid.UUID, req ledger.ReplaceRequest) (ledger.Ledger, error) {
	return c.replaceLedger(ctx, quotePath(id)+"/items", req)
}

func (c *Client) ExportQuote(ctx context.Context, id uuid.UUID) (*Export, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: quotePath(id) + "/export.xlsx"})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	out := &Export{Filename: "quote-" + id.String() + ".xlsx", Content: content}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		out.Filename = params["filename"]
	}
	return out, nil
}

func (c *Client) fetchLedger(ctx context.Context, path string) (ledger.Ledger, error) {
	var l ledger.Ledger
	_, err := c.doJSON(ctx, request{method: http.MethodGet, path: path}, &l)
	return l, err
}

func (c *Client) replaceLedger(ctx context.Context, path string, req ledger.ReplaceRequest) (ledger.Ledger, error) {
	if req.Items == nil {
		req.Items = []ledger.LineItem{}
	}
	headers := map[string]string{}
	if req.ExpectedVersion != nil {
		headers["If-Match"] = strconv.Quote(strconv.FormatInt(*req.ExpectedVersion, 10))
	}
	var l ledger.Ledger
	_, err := c.doJSON(ctx, request{method: http.MethodPut, path: path, body: req, headers: headers}, &l)
	return l, err
}
