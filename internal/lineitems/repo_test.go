package lineitems

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/quotedesk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/quotedesk-backend/pkg/db/models"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
)

func item(desc string, qty, price int64) ledger.LineItem {
	it := ledger.DefaultItem()
	it.Description = desc
	it.Quantity = decimal.NewFromInt(qty)
	it.UnitPrice = decimal.NewNullDecimal(decimal.NewFromInt(price))
	it.TotalPrice = decimal.NewFromInt(qty * price)
	return it
}

func TestReplaceForOwnerRoundTrip(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	owner := uuid.New()

	rows, err := repo.ReplaceForOwner(ctx, enums.LineItemOwnerQuote, owner, []ledger.LineItem{
		item("Labour", 2, 50),
		item("Cable", 10, 3),
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NotEqual(t, uuid.Nil, rows[0].ID)
	assert.Equal(t, 1, rows[0].SortOrder)
	assert.Equal(t, 2, rows[1].SortOrder)

	listed, err := repo.ListForOwner(ctx, enums.LineItemOwnerQuote, owner)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Labour", listed[0].Description)
	assert.True(t, listed[0].TotalPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, listed[1].UnitPrice.Valid)

	n, err := repo.CountForOwner(ctx, enums.LineItemOwnerQuote, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestReplaceForOwnerKeepsOnlyOwnedIDs(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	owner := uuid.New()

	first, err := repo.ReplaceForOwner(ctx, enums.LineItemOwnerQuote, owner, []ledger.LineItem{item("A", 1, 1)})
	require.NoError(t, err)
	kept := first[0].ID

	foreign := uuid.New()
	dupe := kept
	a := item("A", 1, 1)
	a.ID = &kept
	b := item("B", 1, 1)
	b.ID = &foreign
	c := item("A copy", 1, 1)
	c.ID = &dupe

	second, err := repo.ReplaceForOwner(ctx, enums.LineItemOwnerQuote, owner, []ledger.LineItem{a, b, c})
	require.NoError(t, err)
	require.Len(t, second, 3)
	assert.Equal(t, kept, second[0].ID)
	assert.NotEqual(t, foreign, second[1].ID)
	assert.NotEqual(t, kept, second[2].ID)
}

func TestReplaceForOwnerIsolatesOwners(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	quote := uuid.New()
	list := uuid.New()

	_, err := repo.ReplaceForOwner(ctx, enums.LineItemOwnerQuote, quote, []ledger.LineItem{item("Q", 1, 1)})
	require.NoError(t, err)
	_, err = repo.ReplaceForOwner(ctx, enums.LineItemOwnerPartsList, list, []ledger.LineItem{item("P", 1, 1), item("P2", 1, 1)})
	require.NoError(t, err)

	_, err = repo.ReplaceForOwner(ctx, enums.LineItemOwnerQuote, quote, nil)
	require.NoError(t, err)

	q, err := repo.ListForOwner(ctx, enums.LineItemOwnerQuote, quote)
	require.NoError(t, err)
	assert.Empty(t, q)
	p, err := repo.ListForOwner(ctx, enums.LineItemOwnerPartsList, list)
	require.NoError(t, err)
	assert.Len(t, p, 2)
}

func TestReplaceForOwnerRejectsBadOwner(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	_, err := repo.ReplaceForOwner(context.Background(), "invoice", uuid.New(), nil)
	assert.Error(t, err)
	_, err = repo.ReplaceForOwner(context.Background(), enums.LineItemOwnerQuote, uuid.Nil, nil)
	assert.Error(t, err)
}

func TestMappersPreserveFields(t *testing.T) {
	owner := uuid.New()
	in := item("Valve", 3, 12)
	in.SectionName = "Plumbing"
	in.DiscountRate = decimal.RequireFromString("0.1")
	in.IsOptional = true
	in.SortOrder = 4

	row := FromLedger(in, enums.LineItemOwnerPartsList, owner)
	row.ID = uuid.New()
	out := ToLedger([]models.LineItem{row})

	require.Len(t, out, 1)
	assert.Equal(t, row.ID, *out[0].ID)
	assert.Equal(t, "Plumbing", out[0].SectionName)
	assert.True(t, out[0].DiscountRate.Equal(in.DiscountRate))
	assert.True(t, out[0].IsOptional)
	assert.Equal(t, 4, out[0].SortOrder)
}
