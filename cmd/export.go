// =============================================================================
// Receipt Ledger - Export Command
// =============================================================================
//
// COMMAND USAGE:
//   receipts export [--xlsx file]
//
// FLAGS:
//   --xlsx : Workbook path (default: output.xlsx_filename)
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/ginjaninja78/receipt-ledger/internal/xlsxexport"
	"github.com/spf13/cobra"
)

var exportXLSX string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the ledger to an XLSX workbook",
	Long: `The export command writes the current ledger to an XLSX workbook with a
"Receipts" sheet and a "Categories" sheet. The target defaults to
output.xlsx_filename.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportXLSX, "xlsx", "", "Workbook path (overrides output.xlsx_filename)")
}

func runExport(cmd *cobra.Command, args []string) error {
	target := exportXLSX
	if target == "" {
		target = appConfig.Output.XLSXFilename
	}
	if target == "" {
		return fmt.Errorf("no workbook path: use --xlsx or set output.xlsx_filename")
	}

	l, err := loadLedger(appConfig.Output.Filename)
	if err != nil {
		return err
	}

	if err := xlsxexport.Export(target, l); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows to %s\n", l.Len(), target)
	return nil
}
