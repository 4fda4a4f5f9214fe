package middleware

import (
	"context"

	"github.com/angelmondragon/quotedesk-backend/pkg/auth"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
)

type principalKey struct{}

// Principal is the authenticated caller, taken from the access token.
type Principal struct {
	UserID  string
	Role    enums.UserRole
	Name    string
	Email   string
	TokenID string
}

func principalFromClaims(claims *auth.AccessTokenClaims) Principal {
	return Principal{
		UserID:  claims.UserID.String(),
		Role:    claims.Role,
		Name:    claims.Name,
		Email:   claims.Email,
		TokenID: claims.ID,
	}
}

// WithPrincipal stores p on ctx, replacing any earlier principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller and whether Auth ran.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func UserIDFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.UserID
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	p, _ := PrincipalFromContext(ctx)
	return p.Role
}

// WithUserID and WithRole patch a single field of the principal.
func WithUserID(ctx context.Context, userID string) context.Context {
	p, _ := PrincipalFromContext(ctx)
	p.UserID = userID
	return WithPrincipal(ctx, p)
}

func WithRole(ctx context.Context, role enums.UserRole) context.Context {
	p, _ := PrincipalFromContext(ctx)
	p.Role = role
	return WithPrincipal(ctx, p)
}
