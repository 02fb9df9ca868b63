// =============================================================================
// Receipt Ledger - Validate Command
// =============================================================================
//
// COMMAND USAGE:
//   receipts validate [flags]
//
// FLAGS:
//   --warnings-as-errors : Fail on warnings too
//   --fail-fast          : Stop at the first error
//
// EXIT STATUS:
//   Non-zero when the ledger has errors (or warnings with
//   --warnings-as-errors). A missing ledger file is not an error.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/ginjaninja78/receipt-ledger/internal/csvparser"
	"github.com/ginjaninja78/receipt-ledger/internal/ledger"
	"github.com/ginjaninja78/receipt-ledger/internal/validation"
	"github.com/spf13/cobra"
)

var (
	validateWarningsAsErrors bool
	validateFailFast         bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the ledger file for broken rows",
	Long: `The validate command checks the ledger against the configured amount unit and
date/month layouts. Errors (unparsable amounts or dates, a month that does not
match its date, missing columns) stop fetch from loading the ledger. Warnings
(line sums, receipt totals, category conflicts) are reported only.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateWarningsAsErrors, "warnings-as-errors", false, "Fail on warnings too")
	validateCmd.Flags().BoolVar(&validateFailFast, "fail-fast", false, "Stop at the first error")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := appConfig.Output.Filename
	data, err := csvparser.Parse(path, csvSettings())
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s does not exist yet\n", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	v := validation.NewValidator(ledger.FormatFromConfig(appConfig.Output), validation.Options{
		StopOnFirstError:      validateFailFast,
		TreatWarningsAsErrors: validateWarningsAsErrors,
	})
	result := v.Validate(data)

	out := cmd.OutOrStdout()
	for _, e := range result.Errors {
		fmt.Fprintln(out, e.Error())
	}
	fmt.Fprintf(out, "%d rows, %d receipts: %d errors, %d warnings\n",
		result.RowsValidated, result.ReceiptsValidated, result.ErrorCount, result.WarningCount)

	if !result.IsValid {
		return fmt.Errorf("ledger %s has %d error(s)", path, result.ErrorCount)
	}
	return nil
}
