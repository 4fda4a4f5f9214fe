package controllers

import (
	"net/http"

	"github.com/angelmondragon/quotedesk-backend/api/responses"
	"github.com/angelmondragon/quotedesk-backend/api/validators"
	"github.com/angelmondragon/quotedesk-backend/internal/reviews"
	"github.com/angelmondragon/quotedesk-backend/pkg/logger"
)

// ReviewStart queues a review and answers 202. When a review of the quote is
// already open that job comes back with 200 instead.
func ReviewStart(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quoteID, err := validators.ParseUUIDParam(r, "quoteId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job, created, err := svc.Start(r.Context(), actor, quoteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Location", "/api/v1/reviews/"+job.ID.String())
		if created {
			responses.WriteSuccessStatus(w, http.StatusAccepted, job)
			return
		}
		responses.WriteSuccess(w, job)
	}
}

// ReviewGet is the polling fallback for clients without an event stream.
func ReviewGet(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := validators.ParseUUIDParam(r, "jobId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		job, err := svc.Get(r.Context(), jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, job)
	}
}
