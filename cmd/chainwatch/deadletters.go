package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/factcheckd/internal/ledger"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
)

var deadLettersCmd = &cobra.Command{
	Use:     "deadletters",
	Aliases: []string{"dl"},
	Short:   "Inspect submissions that exhausted their retries",
}

var deadLettersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead letters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		led, err := openLedgerForCLI()
		if err != nil {
			return err
		}
		defer led.Close()

		letters, err := led.DeadLetters()
		if err != nil {
			return err
		}
		if len(letters) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No dead letters.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderDeadLetters(letters))
		return nil
	},
}

var deadLettersPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove every dead letter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		led, err := openLedgerForCLI()
		if err != nil {
			return err
		}
		defer led.Close()

		n, err := led.PurgeDeadLetters()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %d dead letter(s).\n", n)
		return nil
	},
}

func init() {
	deadLettersCmd.AddCommand(deadLettersListCmd)
	deadLettersCmd.AddCommand(deadLettersPurgeCmd)
}

// openLedgerForCLI opens the ledger without requiring RPC or accounts.
func openLedgerForCLI() (*ledger.Ledger, error) {
	cfg, err := loadConfigOnly()
	if err != nil {
		return nil, err
	}
	if cfg.Chain.Ledger.Path == "" {
		return nil, fmt.Errorf("chain.ledger.path is not set; an in-memory ledger has no dead letters to show")
	}
	return openLedger(cfg, logging.NewNop())
}

var headerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("51")).
	Bold(true).
	Padding(0, 1)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

const maxCell = 48

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxCell {
		return s
	}
	return string(r[:maxCell-1]) + "…"
}

func renderDeadLetters(letters []ledger.DeadLetter) string {
	rows := make([][]string, 0, len(letters))
	for _, dl := range letters {
		rows = append(rows, []string{
			dl.RequestID,
			dl.Model,
			dl.Account,
			strconv.Itoa(dl.Attempts),
			dl.FailedAt.Local().Format(time.DateTime),
			truncate(dl.Claim),
			truncate(dl.LastError),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("238"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("REQUEST", "MODEL", "ACCOUNT", "ATTEMPTS", "FAILED AT", "CLAIM", "LAST ERROR").
		Rows(rows...)
	return t.String()
}
