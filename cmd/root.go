// =============================================================================
// Receipt Ledger - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI and the setup shared
// by all subcommands.
//
// COBRA CLI STRUCTURE:
//   rootCmd (receipts)
//   ├── fetchCmd      (receipts fetch)
//   ├── qrCmd         (receipts qr)
//   ├── categoriesCmd (receipts categories)
//   ├── exportCmd     (receipts export)
//   ├── validateCmd   (receipts validate)
//   └── versionCmd    (receipts version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading the configuration file
//   3. Setting up logging
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/receipt-ledger/internal/config"
	"github.com/ginjaninja78/receipt-ledger/internal/csvparser"
	"github.com/ginjaninja78/receipt-ledger/internal/ledger"
	"github.com/ginjaninja78/receipt-ledger/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// appConfig and log are initialized before any subcommand runs.
var (
	appConfig *config.Config
	log       zerolog.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "receipts",
	Short: "Receipt Ledger - build a categorized CSV ledger from fiscal receipt QR codes",
	Long: `Receipt Ledger reads QR code payloads scanned from Russian fiscal receipts,
fetches the receipt contents from the FNS verification API, and merges the line
items into a CSV ledger with a category per item.

Receipts already present in the ledger (same month, date and total) are skipped,
and categories you assign in the ledger are reused for new items with the same
name.

Example Usage:
  receipts fetch scans.txt                  # Fetch receipts listed in scans.txt
  cat scans.txt | receipts fetch            # Read QR payloads from stdin
  receipts qr scans.txt                     # Check payloads without calling the API
  receipts categories                       # Show the category map
  receipts validate                         # Check the ledger for broken rows
  receipts fetch --config ./my.yaml a.txt   # Use a custom configuration file`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initApp(cmd.ErrOrStderr())
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"settings.yaml",
		"Path to the configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// initApp loads the configuration and builds the logger.
func initApp(logOut io.Writer) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}

	l, err := logger.New(logger.Options{
		Level:  level,
		Format: cfg.Logging.Format,
		Out:    logOut,
	})
	if err != nil {
		return err
	}

	appConfig = cfg
	log = l
	return nil
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// csvSettings returns the ledger CSV settings from the configuration.
func csvSettings() csvparser.Settings {
	return csvparser.Settings{
		Delimiter: appConfig.Output.Delimiter,
		Encoding:  appConfig.Output.Encoding,
	}
}

// loadLedger reads the configured ledger file.
func loadLedger(path string) (*ledger.Ledger, error) {
	return ledger.Load(path, csvSettings(), ledger.FormatFromConfig(appConfig.Output))
}

// openInputs returns a reader over the named files in order, or stdin when
// no files are given. A newline is inserted between files so that a file
// without a trailing newline does not merge with the next one.
func openInputs(cmd *cobra.Command, paths []string) (io.Reader, func(), error) {
	if len(paths) == 0 || (len(paths) == 1 && paths[0] == "-") {
		return cmd.InOrStdin(), func() {}, nil
	}

	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	readers := make([]io.Reader, 0, 2*len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to open input: %w", err)
		}
		files = append(files, f)
		readers = append(readers, f, strings.NewReader("\n"))
	}

	return io.MultiReader(readers...), closeAll, nil
}
