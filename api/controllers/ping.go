package controllers

import (
	"net/http"

	"github.com/angelmondragon/quotedesk-backend/api/middleware"
	"github.com/angelmondragon/quotedesk-backend/api/responses"
)

// PrivatePing echoes the caller identity; useful to check a token.
func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := middleware.PrincipalFromContext(r.Context())
		responses.WriteSuccess(w, map[string]string{
			"scope":   "private",
			"status":  "ok",
			"user_id": p.UserID,
			"role":    p.Role.String(),
			"name":    p.Name,
			"email":   p.Email,
		})
	}
}
