package partslists

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/quotedesk-backend/internal/events"
	"github.com/angelmondragon/quotedesk-backend/internal/lineitems"
	"github.com/angelmondragon/quotedesk-backend/pkg/db"
	"github.com/angelmondragon/quotedesk-backend/pkg/db/models"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/quotedesk-backend/pkg/errors"
	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
	"github.com/angelmondragon/quotedesk-backend/pkg/logger"
	"github.com/angelmondragon/quotedesk-backend/pkg/metrics"
	"github.com/angelmondragon/quotedesk-backend/pkg/outbox"
	"github.com/angelmondragon/quotedesk-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the parts list of a helpdesk ticket. A list comes into
// existence the first time its ticket is read or saved.
type Service interface {
	GetForTicket(ctx context.Context, ticketID uuid.UUID) (*ledger.Ledger, error)
	ReplaceItems(ctx context.Context, actor *outbox.ActorRef, ticketID uuid.UUID, req ledger.ReplaceRequest) (*ledger.Ledger, error)
}

type Deps struct {
	Repo               Repository
	Items              lineitems.Repository
	Tx                 txRunner
	Outbox             outbox.Emitter
	Bus                events.Publisher
	Metrics            *metrics.LedgerMetrics
	Logger             *logger.Logger
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
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("parts list repository required")
	case deps.Items == nil:
		return nil, fmt.Errorf("line item repository required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case deps.Bus == nil:
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

func (s *service) GetForTicket(ctx context.Context, ticketID uuid.UUID) (*ledger.Ledger, error) {
	list, err := s.ensure(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	rows, err := s.items.ListForOwner(ctx, enums.LineItemOwnerPartsList, list.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parts list items")
	}
	return toLedger(list, rows), nil
}

func (s *service) ReplaceItems(ctx context.Context, actor *outbox.ActorRef, ticketID uuid.UUID, req ledger.ReplaceRequest) (result *ledger.Ledger, err error) {
	defer func() {
		count := 0
		if result != nil {
			count = len(result.Items)
		}
		s.metrics.ObserveSave(string(enums.LineItemOwnerPartsList), lineitems.Outcome(err), count)
	}()

	if s.requireItemVersion && req.ExpectedVersion == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expected_version is required")
	}
	prepared, err := lineitems.Prepare(req.Items, req.TaxRate)
	if err != nil {
		return nil, err
	}
	if _, err := s.ensure(ctx, ticketID); err != nil {
		return nil, err
	}

	var (
		list *models.PartsList
		rows []models.LineItem
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		list, err = repo.FindByTicketForUpdate(ctx, ticketID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parts list")
		}
		if req.ExpectedVersion != nil && *req.ExpectedVersion != list.Version {
			return staleVersion(list.Version)
		}

		rows, err = s.items.WithTx(tx).ReplaceForOwner(ctx, enums.LineItemOwnerPartsList, list.ID, prepared.Items)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace parts list items")
		}

		prev := list.Version
		list.TaxRate = prepared.TaxRate
		list.Subtotal = prepared.Totals.Subtotal
		list.TaxAmount = prepared.Totals.TaxAmount
		list.TotalAmount = prepared.Totals.TotalAmount
		list.Version++
		if err := repo.UpdateVersioned(ctx, list, prev); err != nil {
			if errors.Is(err, errVersionMismatch) {
				return staleVersion(prev)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update parts list totals")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPartsListItemsReplaced,
			AggregateType: enums.AggregatePartsList,
			AggregateID:   list.ID,
			Actor:         actor,
			Data: payloads.PartsListItemsReplacedEvent{
				PartsListID: list.ID,
				TicketID:    list.TicketID,
				Version:     list.Version,
				ItemCount:   len(rows),
				TaxRate:     list.TaxRate,
				Totals: payloads.Totals{
					Subtotal:    list.Subtotal,
					TaxAmount:   list.TaxAmount,
					TotalAmount: list.TotalAmount,
				},
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace parts list items")
		}
		return nil, err
	}

	s.bus.Publish(ctx, events.New(events.PartsListItemsUpdated, map[string]string{
		"ticket_id":     ticketID.String(),
		"parts_list_id": list.ID.String(),
		"version":       strconv.FormatInt(list.Version, 10),
	}))
	s.logg.Info(s.logg.WithFields(s.logg.WithTicketID(ctx, ticketID.String()), map[string]any{
		"item_count": len(rows),
		"version":    list.Version,
	}), "parts_list.items_replaced")

	return toLedger(list, rows), nil
}

// ensure returns the ticket's list, creating an empty one when missing. Two
// callers racing on the first access both end up reading the winner's row.
func (s *service) ensure(ctx context.Context, ticketID uuid.UUID) (*models.PartsList, error) {
	if ticketID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket id is required")
	}
	list, err := s.repo.FindByTicket(ctx, ticketID)
	if err == nil {
		return list, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parts list")
	}

	list = &models.PartsList{TicketID: ticketID, Version: 1}
	if err := s.repo.Create(ctx, list); err != nil {
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create parts list")
		}
		list, err = s.repo.FindByTicket(ctx, ticketID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parts list")
		}
		return list, nil
	}
	s.logg.Debug(s.logg.WithTicketID(ctx, ticketID.String()), "parts_list.created")
	return list, nil
}

func toLedger(list *models.PartsList, rows []models.LineItem) *ledger.Ledger {
	return &ledger.Ledger{
		Items:   lineitems.ToLedger(rows),
		TaxRate: list.TaxRate,
		Totals: ledger.Totals{
			Subtotal:    list.Subtotal,
			TaxAmount:   list.TaxAmount,
			TotalAmount: list.TotalAmount,
		},
		Version: list.Version,
	}
}

func staleVersion(current int64) error {
	return pkgerrors.VersionConflict("parts list", current)
}
