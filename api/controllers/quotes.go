package controllers

import (
	"net/http"
	"strconv"

	"github.com/angelmondragon/quotedesk-backend/api/responses"
	"github.com/angelmondragon/quotedesk-backend/api/validators"
	"github.com/angelmondragon/quotedesk-backend/internal/quotes"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/quotedesk-backend/pkg/errors"
	"github.com/angelmondragon/quotedesk-backend/pkg/logger"
	"github.com/angelmondragon/quotedesk-backend/pkg/pagination"
)

const maxTitleLength = 200

// QuoteList pages quotes newest first, optionally for one customer.
func QuoteList(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := validators.ParseQueryUUID(r, "customer_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := quotes.ListParams{
			CustomerID: customerID,
			Limit:      limit,
			Cursor:     r.URL.Query().Get("cursor"),
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseQuoteStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			params.Status = &status
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func QuoteCreate(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input quotes.CreateQuoteInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.Title = validators.SanitizeString(input.Title, maxTitleLength)

		created, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("ETag", validators.ETag(created.Version))
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func QuoteGet(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "quoteId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("ETag", validators.ETag(quote.Version))
		responses.WriteSuccess(w, quote)
	}
}

// QuoteUpdate applies a partial header update.
func QuoteUpdate(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "quoteId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input quotes.UpdateQuoteInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.Title != nil {
			title := validators.SanitizeString(*input.Title, maxTitleLength)
			input.Title = &title
		}

		updated, err := svc.Update(r.Context(), actor, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("ETag", validators.ETag(updated.Version))
		responses.WriteSuccess(w, updated)
	}
}

func QuoteItems(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "quoteId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		l, err := svc.GetItems(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeLedger(w, l)
	}
}

// QuoteReplaceItems is the bulk save: the body carries the whole list and the
// response is the stored, repriced list.
func QuoteReplaceItems(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "quoteId")
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
			ctx = logg.WithQuoteID(ctx, id.String())
		}
		l, err := svc.ReplaceItems(ctx, actor, id, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeLedger(w, l)
	}
}

// QuoteExport streams the quote as an xlsx workbook.
func QuoteExport(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "quoteId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.Export(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+out.Filename+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(out.Content)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(out.Content); err != nil && logg != nil {
			logg.Error(r.Context(), "quote.export.write_failed", err)
		}
	}
}
