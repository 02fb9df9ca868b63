// =============================================================================
// Receipt Ledger - Fetch Command
// =============================================================================
//
// This file defines the 'fetch' command, the main command of the tool.
//
// COMMAND USAGE:
//   receipts fetch [files...] [flags]
//
// FLAGS:
//   --dry-run : Fetch and report, but do not write the ledger
//   --strict  : Stop at the first unparsable QR payload
//   --output  : Ledger file to use instead of output.filename
//
// PROCESSING PIPELINE:
//   1. Load the existing ledger (missing file = empty ledger)
//   2. Derive the category map and normalize existing categories
//   3. For each QR payload: skip if recorded, otherwise fetch and append
//   4. Write the ledger (backing up the previous file when configured)
//   5. Write the XLSX mirror and the metrics textfile when configured
//   6. Print a summary
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/ginjaninja78/receipt-ledger/internal/fns"
	"github.com/ginjaninja78/receipt-ledger/internal/ledger"
	"github.com/ginjaninja78/receipt-ledger/internal/metrics"
	"github.com/ginjaninja78/receipt-ledger/internal/pipeline"
	"github.com/ginjaninja78/receipt-ledger/internal/xlsxexport"
	"github.com/ginjaninja78/receipt-ledger/pkg/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	fetchDryRun bool
	fetchStrict bool
	fetchOutput string
)

// =============================================================================
// FETCH COMMAND DEFINITION
// =============================================================================

var fetchCmd = &cobra.Command{
	Use:   "fetch [files...]",
	Short: "Fetch receipts for scanned QR codes and merge them into the ledger",
	Long: `The fetch command reads one QR code payload per line from the given files
(or stdin), fetches each receipt from the FNS verification API and appends its
line items to the ledger.

Receipts whose month, date and total are already in the ledger are skipped
without calling the API. Blank lines and lines starting with '#' are ignored.

The API is called sequentially with a fixed delay between calls. A receipt the
API reports as pending is requested again until it is ready or the configured
number of attempts is exhausted.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runFetch(ctx, cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().BoolVar(&fetchDryRun, "dry-run", false, "Fetch and report without writing the ledger")
	fetchCmd.Flags().BoolVar(&fetchStrict, "strict", false, "Stop at the first unparsable QR payload")
	fetchCmd.Flags().StringVar(&fetchOutput, "output", "", "Ledger file (overrides output.filename)")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runFetch(ctx context.Context, cmd *cobra.Command, args []string) error {
	if err := appConfig.RequireCredentials(); err != nil {
		return err
	}

	ledgerPath := appConfig.Output.Filename
	if fetchOutput != "" {
		ledgerPath = fetchOutput
	}

	runLog := log.With().Str("run", uuid.New().String()).Logger()

	input, closeInputs, err := openInputs(cmd, args)
	if err != nil {
		return err
	}
	defer closeInputs()

	l, err := loadLedger(ledgerPath)
	if err != nil {
		return err
	}
	runLog.Info().
		Str("ledger", ledgerPath).
		Int("rows", l.Len()).
		Int("receipts", l.Receipts()).
		Msg("ledger loaded")

	client := fns.New(fns.Config{
		BaseURL:     appConfig.FNS.BaseURL,
		PhoneNumber: appConfig.FNS.PhoneNumber,
		Password:    appConfig.FNS.Password,
		DeviceID:    appConfig.FNS.DeviceID,
		DeviceOS:    appConfig.FNS.DeviceOS,
		Delay:       appConfig.CallDelay(),
		Timeout:     appConfig.FNS.Timeout,
	}, runLog)

	m := metrics.NewRegistry()
	runner := pipeline.New(client, l, pipeline.Options{
		MaxPendingAttempts: appConfig.PendingAttempts(),
		Strict:             fetchStrict,
	}, runLog, m)

	summary, runErr := runner.Run(ctx, input)

	// Receipts fetched before a fatal error are still saved.
	if fetchDryRun {
		runLog.Info().Msg("dry run, ledger not written")
	} else if err := saveLedger(l, ledgerPath); err != nil {
		if runErr != nil {
			runLog.Error().Err(runErr).Msg("run stopped")
		}
		return err
	}

	if appConfig.Metrics.Textfile != "" {
		m.LedgerRows.Set(float64(l.Len()))
		m.RunDuration.Set(summary.Elapsed.Seconds())
		m.LastRun.Set(float64(time.Now().Unix()))
		if err := m.WriteTextfile(appConfig.Metrics.Textfile); err != nil {
			runLog.Warn().Err(err).Msg("metrics not written")
		}
	}

	printSummary(cmd, summary, l)

	return runErr
}

// saveLedger writes the CSV ledger and its XLSX mirror.
func saveLedger(l *ledger.Ledger, path string) error {
	data, err := l.Bytes(csvSettings())
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	fm := utils.NewFileManager(appConfig.Output.BackupDir)
	backup, err := fm.ReplaceFile(path, data)
	if err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if backup != "" {
		log.Debug().Str("backup", backup).Msg("previous ledger backed up")
	}
	log.Info().Str("ledger", path).Int("rows", l.Len()).Msg("ledger written")

	if appConfig.Output.XLSXFilename != "" {
		if err := xlsxexport.Export(appConfig.Output.XLSXFilename, l); err != nil {
			return err
		}
		log.Info().Str("xlsx", appConfig.Output.XLSXFilename).Msg("workbook written")
	}

	return nil
}

func printSummary(cmd *cobra.Command, s *pipeline.Summary, l *ledger.Ledger) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== Fetch Complete ===")
	fmt.Fprintf(out, "QR codes read:     %d\n", s.LinesRead)
	fmt.Fprintf(out, "Invalid:           %d\n", s.Invalid)
	fmt.Fprintf(out, "Already recorded:  %d\n", s.Duplicates)
	fmt.Fprintf(out, "Fetched:           %d\n", s.Fetched)
	fmt.Fprintf(out, "Failed:            %d\n", s.Failed)
	fmt.Fprintf(out, "Pending retries:   %d\n", s.PendingRetries)
	fmt.Fprintf(out, "Items added:       %d\n", s.ItemsAdded)
	fmt.Fprintf(out, "Ledger rows:       %d\n", l.Len())
	fmt.Fprintf(out, "Time elapsed:      %s\n", s.Elapsed.Round(time.Millisecond))
}
