package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/quotedesk-backend/pkg/client"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
)

func (a *app) quotesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "quotes",
		Aliases: []string{"quote", "q"},
		Short:   "List, inspect, create and export quotes",
	}
	cmd.AddCommand(
		a.quotesListCommand(),
		a.quotesGetCommand(),
		a.quotesCreateCommand(),
		a.quotesExportCommand(),
	)
	return cmd
}

func (a *app) quotesListCommand() *cobra.Command {
	var (
		customer string
		status   string
		limit    int
		cursor   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quotes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := client.ListQuotesParams{Limit: limit, Cursor: cursor}
			if customer != "" {
				id, err := uuid.Parse(customer)
				if err != nil {
					return fmt.Errorf("--customer: %w", err)
				}
				params.CustomerID = &id
			}
			if status != "" {
				s, err := enums.ParseQuoteStatus(status)
				if err != nil {
					return err
				}
				params.Status = s
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			page, err := c.ListQuotes(cmd.Context(), params)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, page)
			}
			if len(page.Quotes) == 0 {
				printInfo(a.out, "No quotes found")
				return nil
			}
			rows := make([][]string, 0, len(page.Quotes))
			for _, q := range page.Quotes {
				rows = append(rows, []string{
					q.ID.String(),
					q.Title,
					statusBadge(q.Status),
					q.Currency + " " + money(q.TotalAmount),
					fmt.Sprintf("v%d", q.Version),
					q.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			renderTable(a.out, []string{"ID", "TITLE", "STATUS", "TOTAL", "VERSION", "UPDATED"}, rows)
			if page.NextCursor != "" {
				fmt.Fprintln(a.out, mutedStyle.Render("more: --cursor "+page.NextCursor))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&customer, "customer", "", "only quotes for this customer id")
	cmd.Flags().StringVar(&status, "status", "", "only quotes in this status")
	cmd.Flags().IntVar(&limit, "limit", 25, "page size")
	cmd.Flags().StringVar(&cursor, "cursor", "", "cursor from a previous page")
	return cmd
}

func (a *app) quotesGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <quote-id>",
		Short: "Show a quote and its totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			q, err := c.GetQuote(cmd.Context(), id)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, q)
			}
			printQuote(a, q)
			return nil
		},
	}
}

func printQuote(a *app, q *client.Quote) {
	section(a.out, q.Title)
	renderTable(a.out, []string{"FIELD", "VALUE"}, [][]string{
		{"id", q.ID.String()},
		{"customer", q.CustomerID.String()},
		{"status", statusBadge(q.Status)},
		{"version", fmt.Sprintf("%d", q.Version)},
		{"subtotal", q.Currency + " " + money(q.Subtotal)},
		{"tax", fmt.Sprintf("%s (%s%%)", money(q.TaxAmount), q.TaxRate.Mul(decimal.NewFromInt(100)).String())},
		{"total", q.Currency + " " + money(q.TotalAmount)},
	})
}

func (a *app) quotesCreateCommand() *cobra.Command {
	var (
		customer string
		title    string
		currency string
		taxRate  string
		key      string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty draft quote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			customerID, err := uuid.Parse(customer)
			if err != nil {
				return fmt.Errorf("--customer: %w", err)
			}
			in := client.CreateQuoteInput{
				CustomerID:     customerID,
				Title:          title,
				Currency:       currency,
				IdempotencyKey: key,
			}
			if taxRate != "" {
				rate, err := decimal.NewFromString(taxRate)
				if err != nil {
					return fmt.Errorf("--tax-rate: %w", err)
				}
				in.TaxRate = &rate
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			q, err := c.CreateQuote(cmd.Context(), in)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, q)
			}
			printSuccess(a.out, "Created quote %s", q.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&customer, "customer", "", "customer id (required)")
	cmd.Flags().StringVar(&title, "title", "", "quote title (required)")
	cmd.Flags().StringVar(&currency, "currency", "", "ISO currency code (server default when empty)")
	cmd.Flags().StringVar(&taxRate, "tax-rate", "", "tax rate as a fraction, e.g. 0.0825")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "reuse a key to make retries safe (generated when empty)")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func (a *app) quotesExportCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <quote-id>",
		Short: "Download a quote as an .xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			export, err := c.ExportQuote(cmd.Context(), id)
			if err != nil {
				return err
			}
			path := output
			if path == "" {
				path = export.Filename
			}
			if path == "" {
				path = "quote-" + id.String() + ".xlsx"
			}
			if err := os.WriteFile(path, export.Content, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			abs, _ := filepath.Abs(path)
			printSuccess(a.out, "Wrote %s (%d bytes)", abs, len(export.Content))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (defaults to the server's filename)")
	return cmd
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
