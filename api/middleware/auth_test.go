package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/quotedesk-backend/pkg/auth"
	"github.com/angelmondragon/quotedesk-backend/pkg/config"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, stubRevocations{}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT, stubRevocations{}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	userID := uuid.New()
	token := mintTestToken(t, userID, enums.UserRoleAgent)

	var captured struct {
		user string
		role enums.UserRole
	}
	handler := Auth(testJWT, stubRevocations{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != userID.String() {
		t.Fatalf("expected user %s got %s", userID, captured.user)
	}
	if captured.role != enums.UserRoleAgent {
		t.Fatalf("expected role agent got %s", captured.role)
	}
}

func TestAuthRejectsRevokedToken(t *testing.T) {
	token := mintTestToken(t, uuid.New(), enums.UserRoleAdmin)
	handler := Auth(testJWT, stubRevocations{revoked: true}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRevocationStoreFailure(t *testing.T) {
	token := mintTestToken(t, uuid.New(), enums.UserRoleAdmin)
	handler := Auth(testJWT, stubRevocations{err: errors.New("redis down")}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestAuthQueryTokenOnlyForWebSocket(t *testing.T) {
	token := mintTestToken(t, uuid.New(), enums.UserRoleViewer)
	handler := Auth(testJWT, nil, nil)(okHandler())

	plain := httptest.NewRequest(http.MethodGet, "/api/v1/events?access_token="+token, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, plain)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected query token to be ignored without upgrade, got %d", resp.Code)
	}

	upgrade := httptest.NewRequest(http.MethodGet, "/api/v1/events?access_token="+token, nil)
	upgrade.Header.Set("Upgrade", "websocket")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, upgrade)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected upgrade request to authenticate, got %d", resp.Code)
	}
}

func TestRequireWrite(t *testing.T) {
	handler := RequireWrite(nil)(okHandler())
	tests := []struct {
		name   string
		method string
		role   enums.UserRole
		want   int
	}{
		{"viewer read", http.MethodGet, enums.UserRoleViewer, http.StatusOK},
		{"viewer write", http.MethodPut, enums.UserRoleViewer, http.StatusForbidden},
		{"agent write", http.MethodPut, enums.UserRoleAgent, http.StatusOK},
		{"admin create", http.MethodPost, enums.UserRoleAdmin, http.StatusOK},
		{"anonymous write", http.MethodPatch, "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			req = req.WithContext(WithRole(req.Context(), tt.role))
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			if resp.Code != tt.want {
				t.Fatalf("expected %d got %d", tt.want, resp.Code)
			}
		})
	}
}

func mintTestToken(t *testing.T, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

type stubRevocations struct {
	revoked bool
	err     error
}

func (s stubRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.revoked, nil
}

func TestAuthStoresPrincipal(t *testing.T) {
	userID := uuid.New()
	token := mintTestToken(t, userID, enums.UserRoleAdmin)

	var got Principal
	var ok bool
	handler := Auth(testJWT, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = PrincipalFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !ok || got.UserID != userID.String() || got.Role != enums.UserRoleAdmin || got.TokenID == "" {
		t.Fatalf("unexpected principal %+v (ok=%v)", got, ok)
	}
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatal("bare context should carry no principal")
	}
}
