package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/quotedesk-backend/pkg/client"
	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
)

// gatewayFor resolves <id> to a quote or, with --ticket, a ticket parts list.
func (a *app) gatewayFor(id string, ticket bool) (ledger.Gateway, string, error) {
	parsed, err := parseID(id)
	if err != nil {
		return nil, "", err
	}
	c, err := a.client()
	if err != nil {
		return nil, "", err
	}
	if ticket {
		return client.NewPartsListGateway(c, parsed), "Ticket " + parsed.String() + " parts", nil
	}
	return client.NewQuoteGateway(c, parsed), "Quote " + parsed.String(), nil
}

func (a *app) itemsCommand() *cobra.Command {
	var ticket bool
	cmd := &cobra.Command{
		Use:   "items <quote-id>",
		Short: "Print the line items of a quote or ticket parts list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, title, err := a.gatewayFor(args[0], ticket)
			if err != nil {
				return err
			}
			l, err := gw.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, l)
			}
			printLedger(a, title, l)
			return nil
		},
	}
	cmd.Flags().BoolVar(&ticket, "ticket", false, "treat the id as a ticket and show its parts list")
	return cmd
}

func printLedger(a *app, title string, l ledger.Ledger) {
	section(a.out, fmt.Sprintf("%s  v%d", title, l.Version))
	if len(l.Items) == 0 {
		printInfo(a.out, "No line items")
	} else {
		rows := make([][]string, 0, len(l.Items))
		for _, item := range l.Items {
			price := ""
			if item.UnitPrice.Valid {
				price = money(item.UnitPrice.Decimal)
			}
			flags := ""
			if item.IsOptional {
				flags += "optional "
			}
			if item.IsAlternate {
				flags += "alternate"
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d", item.SortOrder),
				item.Description,
				item.PartNumber,
				item.Quantity.String(),
				price,
				item.DiscountRate.String(),
				money(item.TotalPrice),
				flags,
			})
		}
		renderTable(a.out, []string{"#", "DESCRIPTION", "PART", "QTY", "UNIT", "DISC", "TOTAL", ""}, rows)
	}
	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "subtotal %s  tax %s  total %s\n",
		money(l.Totals.Subtotal), money(l.Totals.TaxAmount), primaryStyle.Render(money(l.Totals.TotalAmount)))
}
