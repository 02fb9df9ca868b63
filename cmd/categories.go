// =============================================================================
// Receipt Ledger - Categories Command
// =============================================================================
//
// COMMAND USAGE:
//   receipts categories
//
// OUTPUT:
//   1. The item name -> category map derived from the ledger
//   2. Names recorded under two categories (the later one is kept)
//   3. The number of rows still without a category
//
// =============================================================================

package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Show the category map derived from the ledger",
	Long: `The categories command prints the item name -> category map that fetch
uses to tag new items, followed by any names recorded under two different
categories. For a conflicting name the category of the later row wins.`,
	RunE: runCategories,
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}

func runCategories(cmd *cobra.Command, args []string) error {
	l, err := loadLedger(appConfig.Output.Filename)
	if err != nil {
		return err
	}

	categories, conflicts := l.Categories()

	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCATEGORY")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", name, categories[name])
	}

	if len(conflicts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "CONFLICT\tPREVIOUS\tKEPT")
		for _, c := range conflicts {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Previous, c.Kept)
		}
	}

	uncategorized := 0
	for _, row := range l.Rows() {
		if categories[row.Name] == "" {
			uncategorized++
		}
	}
	fmt.Fprintf(w, "\n%d categorized names, %d uncategorized rows\n", len(categories), uncategorized)

	return w.Flush()
}
