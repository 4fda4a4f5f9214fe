package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/quotedesk-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/quotedesk-backend/pkg/errors"
	"github.com/angelmondragon/quotedesk-backend/pkg/outbox"
)

func actorFromRequest(r *http.Request) (*outbox.ActorRef, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return &outbox.ActorRef{
		UserID: userID,
		Role:   middleware.RoleFromContext(r.Context()).String(),
	}, nil
}
