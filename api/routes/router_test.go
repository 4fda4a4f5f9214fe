package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/quotedesk-backend/internal/events"
	"github.com/angelmondragon/quotedesk-backend/internal/lineitems"
	"github.com/angelmondragon/quotedesk-backend/internal/partslists"
	"github.com/angelmondragon/quotedesk-backend/internal/quotes"
	"github.com/angelmondragon/quotedesk-backend/internal/reviews"
	"github.com/angelmondragon/quotedesk-backend/pkg/auth"
	"github.com/angelmondragon/quotedesk-backend/pkg/config"
	"github.com/angelmondragon/quotedesk-backend/pkg/db"
	"github.com/angelmondragon/quotedesk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/quotedesk-backend/pkg/errors"
	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
	"github.com/angelmondragon/quotedesk-backend/pkg/metrics"
	"github.com/angelmondragon/quotedesk-backend/pkg/outbox"
)

type stack struct {
	handler http.Handler
	hub     *events.Hub
	cfg     *config.Config
}

func newStack(t *testing.T) *stack {
	t.Helper()
	conn := dbtest.Open(t)
	hub := events.NewHub()
	tx := db.Wrap(conn)
	items := lineitems.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	reg := prometheus.NewRegistry()
	ledgerMetrics := metrics.NewLedgerMetrics(reg)

	cfg := &config.Config{
		App:    config.AppConfig{Env: "test"},
		JWT:    config.JWTConfig{Secret: "secret", Issuer: "quotedesk", ExpirationMinutes: 60},
		Events: config.EventsConfig{SubscriberBuffer: 8},
	}

	quoteRepo := quotes.NewRepository(conn)
	quoteSvc, err := quotes.NewService(quotes.Deps{
		Repo: quoteRepo, Items: items, Tx: tx, Outbox: emitter, Bus: hub, Metrics: ledgerMetrics,
	})
	require.NoError(t, err)
	partsSvc, err := partslists.NewService(partslists.Deps{
		Repo: partslists.NewRepository(conn), Items: items, Tx: tx, Outbox: emitter, Bus: hub, Metrics: ledgerMetrics,
	})
	require.NoError(t, err)
	reviewSvc, err := reviews.NewService(reviews.Deps{
		Repo: reviews.NewRepository(conn), Quotes: quoteRepo, Items: items, Tx: tx, Outbox: emitter, Bus: hub,
		Config: config.ReviewsConfig{Workers: 1, QueueSize: 4, Timeout: 5 * time.Second},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = reviewSvc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &stack{
		handler: NewRouter(Params{
			Config:      cfg,
			DB:          tx,
			HTTPMetrics: metrics.NewHTTPMetrics(reg),
			Gatherer:    reg,
			Quotes:      quoteSvc,
			PartsLists:  partsSvc,
			Reviews:     reviewSvc,
			Events:      hub,
		}),
		hub: hub,
		cfg: cfg,
	}
}

func (s *stack) token(t *testing.T, role enums.UserRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(s.cfg.JWT, time.Now(), auth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	require.NoError(t, err)
	return token
}

func (s *stack) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, json.RawMessage) {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string          `json:"code"`
			Details json.RawMessage `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return envelope.Error.Code, envelope.Error.Details
}

func (s *stack) createQuote(t *testing.T, token string, taxRate string) quotes.QuoteDTO {
	t.Helper()
	rate := decimal.RequireFromString(taxRate)
	rec := s.do(t, http.MethodPost, "/api/v1/quotes", token, quotes.CreateQuoteInput{
		CustomerID: uuid.New(),
		Title:      "  Boiler replacement  ",
		TaxRate:    &rate,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var quote quotes.QuoteDTO
	decodeData(t, rec, &quote)
	return quote
}

func line(desc string, qty, price int64) ledger.LineItem {
	return ledger.LineItem{
		Description: desc,
		Quantity:    decimal.NewFromInt(qty),
		UnitPrice:   decimal.NewNullDecimal(decimal.NewFromInt(price)),
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-QuoteDesk-Env"))

	rec = s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAPIRequiresToken(t *testing.T) {
	s := newStack(t)
	rec := s.do(t, http.MethodGet, "/api/v1/quotes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestViewerCannotWrite(t *testing.T) {
	s := newStack(t)
	viewer := s.token(t, enums.UserRoleViewer)

	rec := s.do(t, http.MethodGet, "/api/v1/quotes", viewer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/quotes", viewer, quotes.CreateQuoteInput{CustomerID: uuid.New(), Title: "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestQuoteItemsRoundTrip(t *testing.T) {
	s := newStack(t)
	agent := s.token(t, enums.UserRoleAgent)
	quote := s.createQuote(t, agent, "0.1")
	assert.Equal(t, "Boiler replacement", quote.Title)
	base := "/api/v1/quotes/" + quote.ID.String()

	rec := s.do(t, http.MethodPut, base+"/items", agent, ledger.ReplaceRequest{
		Items:   []ledger.LineItem{line("Boiler", 1, 1200), line("Labour", 4, 50)},
		TaxRate: decimal.RequireFromString("0.1"),
	}, "If-Match", fmt.Sprintf("%d", quote.Version))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, fmt.Sprintf(`"%d"`, quote.Version+1), rec.Header().Get("ETag"))

	var saved ledger.Ledger
	decodeData(t, rec, &saved)
	require.Len(t, saved.Items, 2)
	for i, item := range saved.Items {
		require.NotNil(t, item.ID, "server assigns ids")
		assert.Equal(t, i+1, item.SortOrder)
	}
	assert.True(t, saved.Totals.Subtotal.Equal(decimal.NewFromInt(1400)), saved.Totals.Subtotal.String())
	assert.True(t, saved.Totals.TaxAmount.Equal(decimal.NewFromInt(140)))
	assert.True(t, saved.Totals.TotalAmount.Equal(decimal.NewFromInt(1540)))

	rec = s.do(t, http.MethodGet, base+"/items", agent, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched ledger.Ledger
	decodeData(t, rec, &fetched)
	assert.Equal(t, saved.Version, fetched.Version)
	assert.Len(t, fetched.Items, 2)

	// a second writer still holding the old version loses
	rec = s.do(t, http.MethodPut, base+"/items", agent, ledger.ReplaceRequest{
		Items:   []ledger.LineItem{line("Other", 1, 1)},
		TaxRate: decimal.RequireFromString("0.1"),
	}, "If-Match", fmt.Sprintf("%d", quote.Version))
	require.Equal(t, http.StatusConflict, rec.Code)
	code, raw := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeStaleVersion), code)
	var conflict struct {
		CurrentVersion int64 `json:"current_version"`
	}
	require.NoError(t, json.Unmarshal(raw, &conflict))
	assert.Equal(t, saved.Version, conflict.CurrentVersion)
}

func TestReplaceItemsValidationErrors(t *testing.T) {
	s := newStack(t)
	agent := s.token(t, enums.UserRoleAgent)
	quote := s.createQuote(t, agent, "0")

	rec := s.do(t, http.MethodPut, "/api/v1/quotes/"+quote.ID.String()+"/items", agent, ledger.ReplaceRequest{
		Items: []ledger.LineItem{line("Ok", 1, 10), line("Bad", -1, -10)},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	code, raw := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeValidation), code)
	var fields []ledger.FieldError
	require.NoError(t, json.Unmarshal(raw, &fields), string(raw))
	assert.ElementsMatch(t, []ledger.FieldError{
		{Row: 1, Field: ledger.FieldQuantity, Reason: "must not be negative"},
		{Row: 1, Field: ledger.FieldUnitPrice, Reason: "must not be negative"},
	}, fields)

	rec = s.do(t, http.MethodPut, "/api/v1/quotes/"+quote.ID.String()+"/items", agent, ledger.ReplaceRequest{
		Items:           []ledger.LineItem{line("Ok", 1, 10)},
		ExpectedVersion: ptr(1),
	}, "If-Match", "4")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/quotes/not-a-uuid/items", agent, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/quotes/"+uuid.NewString()+"/items", agent, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuoteListAndUpdate(t *testing.T) {
	s := newStack(t)
	admin := s.token(t, enums.UserRoleAdmin)
	quote := s.createQuote(t, admin, "0.2")

	title := "Renamed"
	status := "sent"
	rec := s.do(t, http.MethodPatch, "/api/v1/quotes/"+quote.ID.String(), admin, quotes.UpdateQuoteInput{Title: &title, Status: &status})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated quotes.QuoteDTO
	decodeData(t, rec, &updated)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, enums.QuoteStatusSent, updated.Status)

	rec = s.do(t, http.MethodGet, "/api/v1/quotes?customer_id="+quote.CustomerID.String(), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page quotes.ListResult
	decodeData(t, rec, &page)
	require.Len(t, page.Quotes, 1)
	assert.Equal(t, quote.ID, page.Quotes[0].ID)

	rec = s.do(t, http.MethodGet, "/api/v1/quotes?status=bogus", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// an accepted quote is no longer editable
	accepted := "accepted"
	rec = s.do(t, http.MethodPatch, "/api/v1/quotes/"+quote.ID.String(), admin, quotes.UpdateQuoteInput{Status: &accepted})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPut, "/api/v1/quotes/"+quote.ID.String()+"/items", admin, ledger.ReplaceRequest{
		Items: []ledger.LineItem{line("Late", 1, 1)},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeStateConflict), code)
}

func TestQuoteExport(t *testing.T) {
	s := newStack(t)
	agent := s.token(t, enums.UserRoleAgent)
	quote := s.createQuote(t, agent, "0")

	rec := s.do(t, http.MethodGet, "/api/v1/quotes/"+quote.ID.String()+"/export.xlsx", agent, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "quote-"+quote.ID.String()[:8]+".xlsx")
	// xlsx files are zip archives
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestTicketParts(t *testing.T) {
	s := newStack(t)
	agent := s.token(t, enums.UserRoleAgent)
	path := "/api/v1/tickets/" + uuid.NewString() + "/parts"

	rec := s.do(t, http.MethodGet, path, agent, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var empty ledger.Ledger
	decodeData(t, rec, &empty)
	assert.Empty(t, empty.Items)

	rec = s.do(t, http.MethodPut, path, agent, ledger.ReplaceRequest{
		Items:           []ledger.LineItem{line("Valve", 2, 15)},
		ExpectedVersion: &empty.Version,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved ledger.Ledger
	decodeData(t, rec, &saved)
	assert.Equal(t, empty.Version+1, saved.Version)
	assert.True(t, saved.Totals.Subtotal.Equal(decimal.NewFromInt(30)))
}

func TestReviewLifecycle(t *testing.T) {
	s := newStack(t)
	agent := s.token(t, enums.UserRoleAgent)
	quote := s.createQuote(t, agent, "0")

	rec := s.do(t, http.MethodPost, "/api/v1/quotes/"+quote.ID.String()+"/reviews", agent, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var job reviews.JobDTO
	decodeData(t, rec, &job)
	assert.Equal(t, "/api/v1/reviews/"+job.ID.String(), rec.Header().Get("Location"))

	require.Eventually(t, func() bool {
		rec := s.do(t, http.MethodGet, "/api/v1/reviews/"+job.ID.String(), agent, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		var polled reviews.JobDTO
		decodeData(t, rec, &polled)
		return polled.Status == enums.ReviewStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newStack(t)
	s.do(t, http.MethodGet, "/health/live", "", nil)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quotedesk_http_requests_total")
}

func TestEventsRejectsUnknownNames(t *testing.T) {
	s := newStack(t)
	rec := s.do(t, http.MethodGet, "/api/v1/events?events=nope", s.token(t, enums.UserRoleViewer), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsStreamDeliversItemUpdates(t *testing.T) {
	s := newStack(t)
	server := httptest.NewServer(s.handler)
	t.Cleanup(server.Close)

	agent := s.token(t, enums.UserRoleAgent)
	quote := s.createQuote(t, agent, "0")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/events?events=" + events.QuoteItemsUpdated + "&access_token=" + agent
	conn, br, _, err := ws.Dial(ctx, url)
	require.NoError(t, err)
	defer conn.Close()
	if br != nil {
		ws.PutReader(br)
	}
	require.Eventually(t, func() bool { return s.hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	rec := s.do(t, http.MethodPut, "/api/v1/quotes/"+quote.ID.String()+"/items", agent, ledger.ReplaceRequest{
		Items: []ledger.LineItem{line("Pump", 1, 99)},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	payload, err := wsutil.ReadServerText(conn)
	require.NoError(t, err)

	var ev events.Event
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, events.QuoteItemsUpdated, ev.Name)
	assert.Equal(t, quote.ID.String(), ev.Payload["quote_id"])
	assert.Equal(t, "1", ev.Payload["item_count"])
}

func ptr(v int64) *int64 { return &v }
