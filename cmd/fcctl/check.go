package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/factcheckd/internal/router"
	"github.com/fyrsmithlabs/factcheckd/pkg/mcp/stdio"
)

var (
	checkModel string
	checkJSON  bool
)

var checkCmd = &cobra.Command{
	Use:   "check [claim]",
	Short: "Fact-check a claim",
	Long: `Send a claim to the daemon and print the verdict.

Examples:
  # Check a claim
  fcctl check "Vitamin C cures the common cold"

  # Read the claim from stdin and answer with a specific model
  echo "Coffee stunts growth" | fcctl check --model gemini-2.0-flash -

  # Print the raw JSON answer
  fcctl check --json "Garlic lowers blood pressure"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkModel, "model", "", "model id to answer with (default: daemon default)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the raw JSON response")
}

func readClaim(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	claim := strings.TrimSpace(string(data))
	if claim == "" {
		return "", fmt.Errorf("no claim to check")
	}
	return claim, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	claim, err := readClaim(args, os.Stdin)
	if err != nil {
		return err
	}

	res, err := stdio.NewDaemonClient(serverURL).Check(cmd.Context(), claim, checkModel)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if checkJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintln(out, renderResult(res))
	return nil
}

var (
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// scoreStyle colors a correctness score: red below 34, yellow below 67.
func scoreStyle(score int) lipgloss.Style {
	switch {
	case score < 34:
		return badStyle
	case score < 67:
		return warnStyle
	default:
		return goodStyle
	}
}

func renderResult(res *stdio.CheckResult) string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("Classification: ") + string(res.Classification) + "\n")

	v := res.ResponseJSON
	if res.Classification != router.FactCheck || v == nil {
		b.WriteString(dimStyle.Render(res.Response))
		return boxStyle.Render(b.String())
	}

	if v.CorrectnessScore != nil {
		s := *v.CorrectnessScore
		b.WriteString(labelStyle.Render("Correctness:    ") + scoreStyle(s).Render(fmt.Sprintf("%d/100", s)) + "\n")
	} else {
		b.WriteString(labelStyle.Render("Correctness:    ") + dimStyle.Render("unable to assess") + "\n")
	}

	for _, sec := range []struct {
		title   string
		sources []string
	}{{"Confirming", v.Confirming}, {"Refuting", v.Refuting}} {
		if len(sec.sources) == 0 {
			continue
		}
		b.WriteString("\n" + sectionStyle.Render(sec.title) + "\n")
		for _, s := range sec.sources {
			b.WriteString("  • " + s + "\n")
		}
	}

	b.WriteString("\n" + lipgloss.NewStyle().Width(80).Render(v.Response))
	return boxStyle.Render(b.String())
}
