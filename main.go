// =============================================================================
// Receipt Ledger - Main Entry Point
// =============================================================================
//
// This is the main entry point for the receipt ledger CLI. It initializes the
// Cobra CLI framework and delegates command execution to the cmd package.
//
// USAGE:
//   receipts fetch [files...]   - Fetch receipts for scanned QR codes into the ledger
//   receipts qr [files...]      - Parse QR payloads without calling the API
//   receipts categories         - Show the category map derived from the ledger
//   receipts export             - Write the ledger to an XLSX workbook
//   receipts version            - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core logic (QR parsing, FNS client, ledger, pipeline)
//   - pkg/           : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/receipt-ledger/cmd"
)

func main() {
	cmd.Execute()
}
