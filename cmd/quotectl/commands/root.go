// Package commands implements the quotectl command tree.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/quotedesk-backend/pkg/client"
	"github.com/angelmondragon/quotedesk-backend/pkg/client/session"
)

// cliConfig is read from QUOTECTL_* variables; flags override it.
type cliConfig struct {
	APIURL      string `envconfig:"API_URL" default:"http://localhost:8080"`
	SessionFile string `envconfig:"SESSION_FILE"`
}

type app struct {
	cfg     cliConfig
	apiURL  string
	jsonOut bool
	store   *session.FileStore
	out     io.Writer
	newTUI  tuiRunner
}

var errNotLoggedIn = errors.New("not logged in; run `quotectl login --token <jwt>` first")

// NewRootCommand builds the command tree. It does not touch the session file
// until a command runs.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{newTUI: runTUI})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "quotectl",
		Short: "Work with quotedesk quotes and parts lists from the terminal",
		Long: `quotectl talks to the quotedesk API with the token saved by "quotectl login".

Examples:
  quotectl login --token $TOKEN
  quotectl quotes list --status draft
  quotectl edit 4b1e…            # interactive line-item editor
  quotectl review 4b1e… --wait`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "API base URL (default $QUOTECTL_API_URL or the saved session)")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print JSON instead of tables")

	root.AddCommand(
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.quotesCommand(),
		a.itemsCommand(),
		a.editCommand(),
		a.reviewCommand(),
	)
	return root
}

// Execute runs quotectl and exits non-zero on error.
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) init(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()
	if err := envconfig.Process("quotectl", &a.cfg); err != nil {
		return fmt.Errorf("read QUOTECTL_ environment: %w", err)
	}
	path := a.cfg.SessionFile
	if path == "" {
		p, err := session.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	store, err := session.OpenFileStore(path)
	if err != nil {
		return err
	}
	a.store = store
	return nil
}

// baseURL prefers the flag, then the URL the session was created against,
// then the environment.
func (a *app) baseURL() string {
	switch {
	case a.apiURL != "":
		return strings.TrimRight(a.apiURL, "/")
	case a.store != nil && a.store.Current().BaseURL != "":
		return a.store.Current().BaseURL
	default:
		return strings.TrimRight(a.cfg.APIURL, "/")
	}
}

// client returns an API client bound to the saved session.
func (a *app) client() (*client.Client, error) {
	if a.store.Current().Token == "" {
		return nil, errNotLoggedIn
	}
	return client.New(a.baseURL(), client.WithSession(a.store), client.WithUserAgent("quotectl"))
}
