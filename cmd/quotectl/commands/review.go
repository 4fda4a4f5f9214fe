package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/quotedesk-backend/pkg/client"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
	"github.com/angelmondragon/quotedesk-backend/pkg/poll"
)

func (a *app) reviewCommand() *cobra.Command {
	var (
		wait           bool
		timeout        time.Duration
		interval       time.Duration
		idempotencyKey string
	)
	cmd := &cobra.Command{
		Use:   "review <quote-id>",
		Short: "Start an automated review of a quote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quoteID, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			job, created, err := c.StartReview(cmd.Context(), quoteID, idempotencyKey)
			if err != nil {
				return err
			}
			if !a.jsonOut {
				if created {
					printInfo(a.out, "Review %s started", job.ID)
				} else {
					printInfo(a.out, "Review %s already %s", job.ID, job.Status)
				}
			}

			if wait && !job.Status.Terminal() {
				done, err := c.WaitForReview(cmd.Context(), job.ID, poll.Policy{Interval: interval, MaxWait: timeout})
				switch {
				case errors.Is(err, client.ErrStillProcessing):
					if done != nil {
						job = done
					}
					if !a.jsonOut {
						printWarning(a.out, "Still processing after %s; check again with `quotectl review %s --wait`", timeout, quoteID)
					}
				case err != nil:
					return err
				default:
					job = done
				}
			}

			if a.jsonOut {
				return writeJSON(a.out, job)
			}
			printReview(a, job)
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the review to finish")
	cmd.Flags().DurationVar(&timeout, "timeout", poll.DefaultMaxWait, "how long --wait blocks")
	cmd.Flags().DurationVar(&interval, "interval", poll.DefaultInterval, "poll interval while waiting")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "reuse a key when retrying a start that may have reached the server")
	return cmd
}

func printReview(a *app, job *client.ReviewJob) {
	switch job.Status {
	case enums.ReviewStatusFailed:
		msg := "unknown error"
		if job.Error != nil {
			msg = *job.Error
		}
		printError(a.out, fmt.Errorf("review failed: %s", msg))
		return
	case enums.ReviewStatusCompleted:
	default:
		return
	}

	score := "n/a"
	if job.HealthScore != nil {
		score = fmt.Sprintf("%d/100", *job.HealthScore)
	}
	printSuccess(a.out, "Health score %s", score)
	if len(job.Suggestions) == 0 {
		fmt.Fprintln(a.out, mutedStyle.Render("no suggestions"))
		return
	}
	rows := make([][]string, 0, len(job.Suggestions))
	for _, s := range job.Suggestions {
		row := ""
		if s.Row != nil {
			row = fmt.Sprintf("%d", *s.Row)
		}
		rows = append(rows, []string{s.Severity, s.Kind, row, s.Message})
	}
	renderTable(a.out, []string{"SEVERITY", "KIND", "ROW", "MESSAGE"}, rows)
}
