package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/quotedesk-backend/pkg/errors"
)

func TestDecodeJSONBody(t *testing.T) {
	type body struct {
		Title string `json:"title" validate:"required,max=5"`
	}

	t.Run("valid", func(t *testing.T) {
		var dest body
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"ok"}`))
		if err := DecodeJSONBody(req, &dest); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dest.Title != "ok" {
			t.Fatalf("expected title ok got %q", dest.Title)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		var dest body
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"ok","extra":1}`))
		err := DecodeJSONBody(req, &dest)
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error got %v", err)
		}
	})

	t.Run("tag failure names json field", func(t *testing.T) {
		var dest body
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"too long"}`))
		err := DecodeJSONBody(req, &dest)
		typed := pkgerrors.As(err)
		if typed == nil {
			t.Fatalf("expected typed error got %v", err)
		}
		details, ok := typed.Details().(map[string]string)
		if !ok || details["title"] != "must be at most 5" {
			t.Fatalf("unexpected details %#v", typed.Details())
		}
	})
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rc := chi.NewRouteContext()
	rc.URLParams.Add("quoteId", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := ParseUUIDParam(req, "quoteId")
	if err != nil || got != id {
		t.Fatalf("expected %s got %s (%v)", id, got, err)
	}

	rc.URLParams.Add("ticketId", "nope")
	if _, err := ParseUUIDParam(req, "ticketId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestParseIfMatch(t *testing.T) {
	tests := []struct {
		header  string
		want    *int64
		wantErr bool
	}{
		{header: ""},
		{header: "*"},
		{header: "3", want: ptr(3)},
		{header: `"7"`, want: ptr(7)},
		{header: `W/"12"`, want: ptr(12)},
		{header: "abc", wantErr: true},
		{header: "-1", wantErr: true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPut, "/", nil)
		if tt.header != "" {
			req.Header.Set("If-Match", tt.header)
		}
		got, err := ParseIfMatch(req)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tt.header)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tt.header, err)
		}
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Fatalf("%q: expected %v got %v", tt.header, tt.want, got)
		}
	}
	if ETag(4) != `"4"` {
		t.Fatalf("unexpected etag %s", ETag(4))
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	if _, err := ParseQueryInt(req, "limit", 25, 1, 100); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected range error got %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if got, err := ParseQueryInt(req, "limit", 25, 1, 100); err != nil || got != 25 {
		t.Fatalf("expected default 25 got %d (%v)", got, err)
	}
}

func ptr(v int64) *int64 { return &v }

func TestDecodeJSONBodyRejectsMalformedBodies(t *testing.T) {
	type body struct {
		Title string `json:"title"`
	}
	cases := map[string]string{
		"empty":         ``,
		"trailing data": `{"title":"a"}{"title":"b"}`,
		"syntax":        `{"title":`,
		"wrong type":    `{"title":5}`,
		"too large":     `{"title":"` + strings.Repeat("x", MaxBodyBytes) + `"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var dest body
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
			if err := DecodeJSONBody(req, &dest); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error got %v", err)
			}
		})
	}
}

func TestDecodeJSONBodyDecimalAndCurrencyRules(t *testing.T) {
	type body struct {
		Rate     decimal.Decimal `json:"rate" validate:"gte=0,lte=1"`
		Currency string          `json:"currency" validate:"omitempty,currency"`
	}

	var ok body
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rate":"0.0825","currency":"eur"}`))
	if err := DecodeJSONBody(req, &ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var bad body
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rate":"1.5","currency":"XYZ"}`))
	typed := pkgerrors.As(DecodeJSONBody(req, &bad))
	if typed == nil {
		t.Fatalf("expected typed error")
	}
	details, _ := typed.Details().(map[string]string)
	if details["rate"] != "must be at most 1" {
		t.Fatalf("unexpected rate detail %q", details["rate"])
	}
	if details["currency"] != "must be a supported currency code" {
		t.Fatalf("unexpected currency detail %q", details["currency"])
	}
}

func TestParseQueryIntBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=30&bad=x&big=900", nil)
	if n, err := ParseQueryInt(req, "missing", 25, 1, 100); err != nil || n != 25 {
		t.Fatalf("expected default 25 got %d (%v)", n, err)
	}
	if n, err := ParseQueryInt(req, "limit", 25, 1, 100); err != nil || n != 30 {
		t.Fatalf("expected 30 got %d (%v)", n, err)
	}
	for _, key := range []string{"bad", "big"} {
		if _, err := ParseQueryInt(req, key, 25, 1, 100); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error got %v", key, err)
		}
	}
}
