package quotes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/quotedesk-backend/internal/events"
	"github.com/angelmondragon/quotedesk-backend/internal/lineitems"
	"github.com/angelmondragon/quotedesk-backend/pkg/db/models"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/quotedesk-backend/pkg/errors"
	"github.com/angelmondragon/quotedesk-backend/pkg/export"
	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
	"github.com/angelmondragon/quotedesk-backend/pkg/logger"
	"github.com/angelmondragon/quotedesk-backend/pkg/metrics"
	"github.com/angelmondragon/quotedesk-backend/pkg/outbox"
	"github.com/angelmondragon/quotedesk-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/quotedesk-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes quote headers and the quote item ledger.
type Service interface {
	Create(ctx context.Context, actor *outbox.ActorRef, input CreateQuoteInput) (*QuoteDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*QuoteDTO, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, actor *outbox.ActorRef, id uuid.UUID, input UpdateQuoteInput) (*QuoteDTO, error)
	GetItems(ctx context.Context, id uuid.UUID) (*ledger.Ledger, error)
	ReplaceItems(ctx context.Context, actor *outbox.ActorRef, id uuid.UUID, req ledger.ReplaceRequest) (*ledger.Ledger, error)
	Export(ctx context.Context, id uuid.UUID) (*Export, error)
}

// Deps wires a quote service.
type Deps struct {
	Repo    Repository
	Items   lineitems.Repository
	Tx      txRunner
	Outbox  outbox.Emitter
	Bus     events.Publisher
	Metrics *metrics.LedgerMetrics
	Logger  *logger.Logger
	// RequireItemVersion rejects item saves without an expected version.
	RequireItemVersion bool
}

type service struct {
	repo               Repository
	items              lineitems.Repository
	tx                 txRunner
	outbox             outbox.Emitter
	bus                events.Publisher
	metrics            *metrics.LedgerMetrics
	logg               *logger.Logger
	requireItemVersion bool
}

func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("quote repository required")
	}
	if deps.Items == nil {
		return nil, fmt.Errorf("line item repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if deps.Bus == nil {
		return nil, fmt.Errorf("event publisher required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &service{
		repo:               deps.Repo,
		items:              deps.Items,
		tx:                 deps.Tx,
		outbox:             deps.Outbox,
		bus:                deps.Bus,
		metrics:            deps.Metrics,
		logg:               deps.Logger,
		requireItemVersion: deps.RequireItemVersion,
	}, nil
}

func (s *service) Create(ctx context.Context, actor *outbox.ActorRef, input CreateQuoteInput) (*QuoteDTO, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer_id is required")
	}
	currency := enums.CurrencyUSD
	if strings.TrimSpace(input.Currency) != "" {
		parsed, err := enums.ParseCurrency(input.Currency)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
		}
		currency = parsed
	}
	taxRate := decimal.Zero
	if input.TaxRate != nil {
		if err := ledger.ValidateTaxRate(*input.TaxRate); err != nil {
			return nil, lineitems.ValidationError(err)
		}
		taxRate = input.TaxRate.Round(ledger.RatePlaces)
	}

	quote := &models.Quote{
		ID:         uuid.New(),
		CustomerID: input.CustomerID,
		Title:      title,
		Status:     enums.QuoteStatusDraft,
		Currency:   currency,
		TaxRate:    taxRate,
		Version:    1,
	}
	if actor != nil && actor.UserID != uuid.Nil {
		createdBy := actor.UserID
		quote.CreatedBy = &createdBy
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, quote); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create quote")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuoteCreated,
			AggregateType: enums.AggregateQuote,
			AggregateID:   quote.ID,
			Actor:         actor,
			Data: payloads.QuoteCreatedEvent{
				QuoteID:    quote.ID,
				CustomerID: quote.CustomerID,
				Title:      quote.Title,
				Status:     quote.Status,
				Currency:   quote.Currency,
			},
		})
	})
	if err != nil {
		return nil, asDependency(err, "create quote")
	}

	s.logg.Info(s.logg.WithQuoteID(ctx, quote.ID.String()), "quote.created")
	return FromModel(quote), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*QuoteDTO, error) {
	quote, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	return FromModel(quote), nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if _, err := pagination.Decode(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list quotes")
	}
	out := make([]QuoteDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return &ListResult{Quotes: out, NextCursor: next}, nil
}

// Update changes header fields. A tax rate change reprices the stored items
// and bumps the version like an item save does.
func (s *service) Update(ctx context.Context, actor *outbox.ActorRef, id uuid.UUID, input UpdateQuoteInput) (*QuoteDTO, error) {
	var (
		quote     *models.Quote
		changed   []string
		itemCount int
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		quote, err = s.loadForUpdate(ctx, repo, id)
		if err != nil {
			return err
		}
		prevVersion := quote.Version

		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "title must not be empty")
			}
			if title != quote.Title {
				quote.Title = title
				changed = append(changed, "title")
			}
		}
		if input.Status != nil {
			next, err := enums.ParseQuoteStatus(strings.TrimSpace(*input.Status))
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
			}
			if !canTransition(quote.Status, next) {
				return pkgerrors.Newf(pkgerrors.CodeStateConflict, "quote cannot move from %s to %s", quote.Status, next)
			}
			if next != quote.Status {
				quote.Status = next
				changed = append(changed, "status")
			}
		}
		if input.TaxRate != nil {
			if err := ledger.ValidateTaxRate(*input.TaxRate); err != nil {
				return lineitems.ValidationError(err)
			}
			rate := input.TaxRate.Round(ledger.RatePlaces)
			if !rate.Equal(quote.TaxRate) {
				if !quote.Status.Editable() {
					return pkgerrors.Newf(pkgerrors.CodeStateConflict, "tax rate of a %s quote cannot change", quote.Status)
				}
				rows, err := s.items.WithTx(tx).ListForOwner(ctx, enums.LineItemOwnerQuote, quote.ID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote items")
				}
				itemCount = len(rows)
				totals := ledger.ComputeTotals(lineitems.ToLedger(rows), rate).Round()
				quote.TaxRate = rate
				quote.Subtotal = totals.Subtotal
				quote.TaxAmount = totals.TaxAmount
				quote.TotalAmount = totals.TotalAmount
				quote.Version++
				changed = append(changed, "tax_rate")
			}
		}
		if len(changed) == 0 {
			return nil
		}

		if err := repo.UpdateVersioned(ctx, quote, prevVersion); err != nil {
			if errors.Is(err, ErrVersionMismatch) {
				return staleVersion(prevVersion)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update quote")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuoteUpdated,
			AggregateType: enums.AggregateQuote,
			AggregateID:   quote.ID,
			Actor:         actor,
			Data: payloads.QuoteUpdatedEvent{
				QuoteID:    quote.ID,
				CustomerID: quote.CustomerID,
				Status:     quote.Status,
				Changed:    changed,
				Version:    quote.Version,
			},
		})
	})
	if err != nil {
		return nil, asDependency(err, "update quote")
	}

	if contains(changed, "tax_rate") {
		s.publishItemsUpdated(ctx, quote, itemCount)
	}
	if len(changed) > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"quote_id": quote.ID.String(),
			"changed":  changed,
		}), "quote.updated")
	}
	return FromModel(quote), nil
}

func (s *service) GetItems(ctx context.Context, id uuid.UUID) (*ledger.Ledger, error) {
	quote, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.items.ListForOwner(ctx, enums.LineItemOwnerQuote, quote.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote items")
	}
	return &ledger.Ledger{
		Items:   lineitems.ToLedger(rows),
		TaxRate: quote.TaxRate,
		Totals:  totalsOf(quote),
		Version: quote.Version,
	}, nil
}

// ReplaceItems is the server half of the bulk save: the whole list is
// normalized, stored and priced in one transaction and the stored result is
// returned as the new authoritative state.
func (s *service) ReplaceItems(ctx context.Context, actor *outbox.ActorRef, id uuid.UUID, req ledger.ReplaceRequest) (result *ledger.Ledger, err error) {
	defer func() {
		count := 0
		if result != nil {
			count = len(result.Items)
		}
		s.metrics.ObserveSave(string(enums.LineItemOwnerQuote), lineitems.Outcome(err), count)
	}()

	if s.requireItemVersion && req.ExpectedVersion == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expected_version is required")
	}
	prepared, err := lineitems.Prepare(req.Items, req.TaxRate)
	if err != nil {
		return nil, err
	}

	var (
		quote *models.Quote
		rows  []models.LineItem
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		quote, err = s.loadForUpdate(ctx, repo, id)
		if err != nil {
			return err
		}
		if !quote.Status.Editable() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "items of a %s quote cannot change", quote.Status)
		}
		if req.ExpectedVersion != nil && *req.ExpectedVersion != quote.Version {
			return staleVersion(quote.Version)
		}

		rows, err = s.items.WithTx(tx).ReplaceForOwner(ctx, enums.LineItemOwnerQuote, quote.ID, prepared.Items)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace quote items")
		}

		prevVersion := quote.Version
		quote.TaxRate = prepared.TaxRate
		quote.Subtotal = prepared.Totals.Subtotal
		quote.TaxAmount = prepared.Totals.TaxAmount
		quote.TotalAmount = prepared.Totals.TotalAmount
		quote.Version++
		if err := repo.UpdateVersioned(ctx, quote, prevVersion); err != nil {
			if errors.Is(err, ErrVersionMismatch) {
				return staleVersion(prevVersion)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update quote totals")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuoteItemsReplaced,
			AggregateType: enums.AggregateQuote,
			AggregateID:   quote.ID,
			Actor:         actor,
			Data: payloads.QuoteItemsReplacedEvent{
				QuoteID:    quote.ID,
				CustomerID: quote.CustomerID,
				Version:    quote.Version,
				ItemCount:  len(rows),
				TaxRate:    quote.TaxRate,
				Totals: payloads.Totals{
					Subtotal:    quote.Subtotal,
					TaxAmount:   quote.TaxAmount,
					TotalAmount: quote.TotalAmount,
				},
			},
		})
	})
	if err != nil {
		return nil, asDependency(err, "replace quote items")
	}

	s.publishItemsUpdated(ctx, quote, len(rows))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"quote_id":   quote.ID.String(),
		"item_count": len(rows),
		"version":    quote.Version,
	}), "quote.items_replaced")

	return &ledger.Ledger{
		Items:   lineitems.ToLedger(rows),
		TaxRate: quote.TaxRate,
		Totals:  totalsOf(quote),
		Version: quote.Version,
	}, nil
}

func (s *service) Export(ctx context.Context, id uuid.UUID) (*Export, error) {
	quote, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.items.ListForOwner(ctx, enums.LineItemOwnerQuote, quote.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote items")
	}
	ref := quote.ID.String()[:8]
	content, err := export.QuoteWorkbook(export.QuoteHeader{
		Title:     quote.Title,
		Reference: ref,
		Currency:  quote.Currency.String(),
		Status:    quote.Status.String(),
		TaxRate:   quote.TaxRate,
		CreatedAt: quote.CreatedAt,
	}, lineitems.ToLedger(rows), totalsOf(quote))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render quote workbook")
	}
	return &Export{Filename: "quote-" + ref + ".xlsx", Content: content}, nil
}

func (s *service) publishItemsUpdated(ctx context.Context, quote *models.Quote, itemCount int) {
	s.bus.Publish(ctx, events.New(events.QuoteItemsUpdated, map[string]string{
		"quote_id":    quote.ID.String(),
		"customer_id": quote.CustomerID.String(),
		"version":     strconv.FormatInt(quote.Version, 10),
		"item_count":  strconv.Itoa(itemCount),
	}))
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Quote, error) {
	quote, err := repo.FindByID(ctx, id)
	return quote, notFound(err)
}

func (s *service) loadForUpdate(ctx context.Context, repo Repository, id uuid.UUID) (*models.Quote, error) {
	quote, err := repo.FindByIDForUpdate(ctx, id)
	return quote, notFound(err)
}

func notFound(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
}

func staleVersion(current int64) error {
	return pkgerrors.VersionConflict("quote", current)
}

// asDependency keeps typed errors and wraps anything else (commit failures).
func asDependency(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
