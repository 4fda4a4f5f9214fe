package commands

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/quotedesk-backend/cmd/quotectl/tui"
	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
)

// tuiRunner runs the editor to completion and returns its final state.
type tuiRunner func(ctx context.Context, title string, gw ledger.Gateway) (*ledger.Editor, error)

func runTUI(ctx context.Context, title string, gw ledger.Gateway) (*ledger.Editor, error) {
	p := tea.NewProgram(tui.NewModel(ctx, title, gw), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	return final.(tui.Model).Editor(), nil
}

func (a *app) editCommand() *cobra.Command {
	var ticket bool
	cmd := &cobra.Command{
		Use:   "edit <quote-id>",
		Short: "Edit line items interactively",
		Long: `Opens the line-item grid. Arrow keys move between rows and columns,
enter edits a cell, ctrl+s saves, ctrl+d duplicates, delete removes a row,
ctrl+z and ctrl+y undo and redo.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, title, err := a.gatewayFor(args[0], ticket)
			if err != nil {
				return err
			}
			editor, err := a.newTUI(cmd.Context(), title, gw)
			if err != nil {
				return err
			}
			if editor.IsDirty() {
				printWarning(a.out, "Quit with unsaved changes; version %d on the server is unchanged", editor.Version())
				return nil
			}
			printSuccess(a.out, "%s at version %d", title, editor.Version())
			return nil
		},
	}
	cmd.Flags().BoolVar(&ticket, "ticket", false, "edit the parts list of this ticket id")
	return cmd
}
