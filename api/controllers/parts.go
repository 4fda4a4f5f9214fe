package controllers

import (
	"net/http"

	"github.com/angelmondragon/quotedesk-backend/api/responses"
	"github.com/angelmondragon/quotedesk-backend/api/validators"
	"github.com/angelmondragon/quotedesk-backend/internal/partslists"
	"github.com/angelmondragon/quotedesk-backend/pkg/logger"
)

func TicketParts(svc partslists.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticketID, err := validators.ParseUUIDParam(r, "ticketId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		l, err := svc.GetForTicket(r.Context(), ticketID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeLedger(w, l)
	}
}

func TicketReplaceParts(svc partslists.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ticketID, err := validators.ParseUUIDParam(r, "ticketId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := decodeReplaceRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithTicketID(ctx, ticketID.String())
		}
		l, err := svc.ReplaceItems(ctx, actor, ticketID, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeLedger(w, l)
	}
}
