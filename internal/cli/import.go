package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wellops/internal/app"
	"wellops/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import records from CSV files",
}

var importEquipmentCmd = &cobra.Command{
	Use:   "equipment <file.csv>",
	Short: "Import rental equipment (matched by serial)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], func(a *app.App, f *os.File) (importer.Summary, error) {
			return a.Imports().ImportEquipment(cmd.Context(), f)
		})
	},
}

var importVendorsCmd = &cobra.Command{
	Use:   "vendors <file.csv>",
	Short: "Import vendors (matched by name, case-insensitive)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], func(a *app.App, f *os.File) (importer.Summary, error) {
			return a.Imports().ImportVendors(cmd.Context(), f)
		})
	},
}

func init() {
	importCmd.AddCommand(importEquipmentCmd)
	importCmd.AddCommand(importVendorsCmd)
}

func runImport(cmd *cobra.Command, path string, do func(*app.App, *os.File) (importer.Summary, error)) error {
	a, err := app.New(cfgPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.Store().Close() }()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sum, err := do(a, f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "created %d, updated %d, skipped %d\n", sum.Created, sum.Updated, sum.Skipped)
	for _, issue := range sum.Issues {
		fmt.Fprintf(out, "  line %d: %s\n", issue.Line, issue.Reason)
	}
	return nil
}
