package quotes

import "github.com/angelmondragon/quotedesk-backend/pkg/enums"

// transitions lists where a quote may move from each status. Accepted and
// declined quotes are final.
var transitions = map[enums.QuoteStatus][]enums.QuoteStatus{
	enums.QuoteStatusDraft:   {enums.QuoteStatusSent},
	enums.QuoteStatusSent:    {enums.QuoteStatusDraft, enums.QuoteStatusAccepted, enums.QuoteStatusDeclined, enums.QuoteStatusExpired},
	enums.QuoteStatusExpired: {enums.QuoteStatusDraft},
}

func canTransition(from, to enums.QuoteStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
