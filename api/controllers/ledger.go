package controllers

import (
	"net/http"

	"github.com/angelmondragon/quotedesk-backend/api/responses"
	"github.com/angelmondragon/quotedesk-backend/api/validators"
	pkgerrors "github.com/angelmondragon/quotedesk-backend/pkg/errors"
	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
)

// decodeReplaceRequest reads a bulk replace body. An If-Match header stands in
// for expected_version; when both are sent they must agree.
func decodeReplaceRequest(r *http.Request) (ledger.ReplaceRequest, error) {
	var req ledger.ReplaceRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		return ledger.ReplaceRequest{}, err
	}
	ifMatch, err := validators.ParseIfMatch(r)
	if err != nil {
		return ledger.ReplaceRequest{}, err
	}
	switch {
	case ifMatch == nil:
	case req.ExpectedVersion == nil:
		req.ExpectedVersion = ifMatch
	case *req.ExpectedVersion != *ifMatch:
		return ledger.ReplaceRequest{}, pkgerrors.New(pkgerrors.CodeValidation, "If-Match disagrees with expected_version").
			WithDetails(map[string]any{"if_match": *ifMatch, "expected_version": *req.ExpectedVersion})
	}
	if req.Items == nil {
		req.Items = []ledger.LineItem{}
	}
	return req, nil
}

func writeLedger(w http.ResponseWriter, l *ledger.Ledger) {
	w.Header().Set("ETag", validators.ETag(l.Version))
	responses.WriteSuccess(w, l)
}
