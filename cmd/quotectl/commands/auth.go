package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/quotedesk-backend/pkg/auth"
	"github.com/angelmondragon/quotedesk-backend/pkg/client"
	"github.com/angelmondragon/quotedesk-backend/pkg/client/session"
	"github.com/angelmondragon/quotedesk-backend/pkg/config"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
)

type loginOptions struct {
	token string

	devSecret string
	devIssuer string
	devUser   string
	devRole   string
	devName   string
	devTTL    int
}

func (a *app) loginCommand() *cobra.Command {
	var opts loginOptions
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save an access token for later commands",
		Long: `Stores a bearer token in the session file after checking it against the API.

Against a local API started with a known QUOTEDESK_JWT_SECRET, --dev-secret
mints a token instead of requiring one from the identity service.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token := strings.TrimSpace(opts.token)
			if token == "" && opts.devSecret != "" {
				minted, err := mintDevToken(opts, time.Now())
				if err != nil {
					return err
				}
				token = minted
			}
			if token == "" {
				return errors.New("--token or --dev-secret is required")
			}

			claims, err := readClaims(token)
			if err != nil {
				return err
			}
			s := session.Session{
				BaseURL: a.baseURL(),
				Token:   token,
				UserID:  claims.UserID.String(),
				Name:    claims.Name,
				Email:   claims.Email,
				Role:    claims.Role.String(),
			}
			if claims.ExpiresAt != nil {
				s.ExpiresAt = claims.ExpiresAt.Time
			}
			if !s.Valid(time.Now()) {
				return errors.New("token has expired")
			}

			c, err := client.New(s.BaseURL, client.WithSession(session.NewStatic(s)), client.WithUserAgent("quotectl"))
			if err != nil {
				return err
			}
			id, err := c.Whoami(cmd.Context())
			if err != nil {
				return fmt.Errorf("verify token: %w", err)
			}
			if err := a.store.Save(s); err != nil {
				return err
			}
			printSuccess(a.out, "Logged in to %s as %s (%s)", s.BaseURL, displayName(s), id.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.token, "token", "", "access token issued by the identity service")
	cmd.Flags().StringVar(&opts.devSecret, "dev-secret", "", "mint a token with this HMAC secret (local API only)")
	cmd.Flags().StringVar(&opts.devIssuer, "dev-issuer", "quotedesk", "issuer for --dev-secret tokens")
	cmd.Flags().StringVar(&opts.devUser, "dev-user", "", "user id for --dev-secret tokens (random when empty)")
	cmd.Flags().StringVar(&opts.devRole, "dev-role", string(enums.UserRoleAgent), "role for --dev-secret tokens")
	cmd.Flags().StringVar(&opts.devName, "dev-name", "Local Developer", "display name for --dev-secret tokens")
	cmd.Flags().IntVar(&opts.devTTL, "dev-ttl", 480, "lifetime in minutes for --dev-secret tokens")
	return cmd
}

func mintDevToken(opts loginOptions, now time.Time) (string, error) {
	role, err := enums.ParseUserRole(opts.devRole)
	if err != nil {
		return "", err
	}
	userID := uuid.New()
	if opts.devUser != "" {
		if userID, err = uuid.Parse(opts.devUser); err != nil {
			return "", fmt.Errorf("--dev-user: %w", err)
		}
	}
	return auth.MintAccessToken(config.JWTConfig{
		Secret:            opts.devSecret,
		Issuer:            opts.devIssuer,
		ExpirationMinutes: opts.devTTL,
	}, now, auth.AccessTokenPayload{UserID: userID, Role: role, Name: opts.devName})
}

// readClaims decodes the profile fields without verifying the signature;
// the API verifies it during login.
func readClaims(token string) (*auth.AccessTokenClaims, error) {
	claims := &auth.AccessTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("malformed token: %w", err)
	}
	if claims.UserID == uuid.Nil {
		return nil, errors.New("token carries no user_id claim")
	}
	return claims, nil
}

func displayName(s session.Session) string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Email != "":
		return s.Email
	default:
		return s.UserID
	}
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved access token",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := a.store.Clear(); err != nil {
				return err
			}
			printSuccess(a.out, "Logged out")
			return nil
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show who the saved token belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			id, err := c.Whoami(cmd.Context())
			if err != nil {
				return err
			}
			s := a.store.Current()
			if a.jsonOut {
				return writeJSON(a.out, map[string]string{
					"api_url": c.BaseURL(),
					"user_id": id.UserID,
					"role":    id.Role,
					"name":    s.Name,
					"email":   s.Email,
				})
			}
			printInfo(a.out, "%s (%s) on %s", displayName(s), id.Role, c.BaseURL())
			if !s.ExpiresAt.IsZero() {
				fmt.Fprintln(a.out, mutedStyle.Render("token expires "+s.ExpiresAt.Local().Format(time.RFC1123)))
			}
			return nil
		},
	}
}
