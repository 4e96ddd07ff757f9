package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"wellops/internal/app"
	"wellops/internal/finance"
)

var (
	stmtFrom string
	stmtTo   string
	stmtJSON bool
)

var statementCmd = &cobra.Command{
	Use:   "statement",
	Short: "Render the company rental statement for a period",
	RunE:  runStatement,
}

func init() {
	statementCmd.Flags().StringVar(&stmtFrom, "from", "", "period start (YYYY-MM-DD or RFC 3339)")
	statementCmd.Flags().StringVar(&stmtTo, "to", "", "period end (YYYY-MM-DD or RFC 3339)")
	statementCmd.Flags().BoolVar(&stmtJSON, "json", false, "emit JSON instead of text")
	_ = statementCmd.MarkFlagRequired("from")
	_ = statementCmd.MarkFlagRequired("to")
}

func runStatement(cmd *cobra.Command, _ []string) error {
	from, err := parseDate(stmtFrom)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := parseDate(stmtTo)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}

	a, err := app.New(cfgPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.Store().Close() }()

	st, err := a.Finance().Build(cmd.Context(), from, to)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if stmtJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	finance.RenderText(out, st)
	return nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("bad date %q (want YYYY-MM-DD or RFC 3339)", s)
}
