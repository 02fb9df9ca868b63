// =============================================================================
// Receipt Ledger - QR Command
// =============================================================================
//
// COMMAND USAGE:
//   receipts qr [files...]
//
// Parses QR code payloads offline and prints one table row per payload with
// the decoded fields, the ledger key, and whether the receipt is new or
// already recorded. No API calls are made.
//
// =============================================================================

package cmd

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/ginjaninja78/receipt-ledger/internal/ledger"
	"github.com/ginjaninja78/receipt-ledger/internal/qrcode"
	"github.com/spf13/cobra"
)

// qrCmd parses payloads offline and shows whether each receipt is already
// in the ledger. Useful for checking a batch of scans before fetching.
var qrCmd = &cobra.Command{
	Use:   "qr [files...]",
	Short: "Parse QR payloads without calling the API",
	Long: `The qr command parses QR code payloads (one per line, from files or stdin)
and prints the decoded fields together with the ledger key and whether that
receipt is already recorded. No API calls are made.`,
	RunE: runQR,
}

func init() {
	rootCmd.AddCommand(qrCmd)
}

func runQR(cmd *cobra.Command, args []string) error {
	input, closeInputs, err := openInputs(cmd, args)
	if err != nil {
		return err
	}
	defer closeInputs()

	l, err := loadLedger(appConfig.Output.Filename)
	if err != nil {
		return err
	}
	format := l.Format()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LINE\tFN\tFD\tFPD\tTIME\tSUM\tMONTH\tDATE\tSTATUS")

	invalid := 0
	scanner := bufio.NewScanner(input)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		code, err := qrcode.Parse(line)
		if err != nil {
			invalid++
			fmt.Fprintf(w, "%d\t\t\t\t\t\t\t\tinvalid: %v\n", lineNum, err)
			continue
		}

		key := format.KeyOfCode(code)
		status := "new"
		if l.Contains(key) {
			status = "recorded"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			lineNum,
			code.FiscalDrive,
			code.FiscalDocument,
			code.FiscalSign,
			code.CheckDate(),
			key.ReceiptSum,
			key.Month,
			key.Date,
			status)

		// Later duplicates in the same batch would be skipped by fetch.
		l.Append(ledger.Row{Month: key.Month, Date: key.Date, ReceiptSum: code.Sum})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	if invalid > 0 {
		return fmt.Errorf("%d invalid QR payload(s)", invalid)
	}
	return nil
}
