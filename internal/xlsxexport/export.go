// =============================================================================
// Receipt Ledger - XLSX Export
// =============================================================================
//
// Writes the ledger to an XLSX workbook for people who keep their budget in a
// spreadsheet. The workbook has two sheets:
//   - "Receipts":   the ledger rows, money and quantity as numeric cells
//   - "Categories": the derived name -> category map, sorted by name
//
// The CSV file stays the source of truth; the workbook is rebuilt from it on
// every save.
//
// =============================================================================

package xlsxexport

import (
	"fmt"
	"io"
	"sort"

	"github.com/ginjaninja78/receipt-ledger/internal/config"
	"github.com/ginjaninja78/receipt-ledger/internal/ledger"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names.
const (
	SheetReceipts   = "Receipts"
	SheetCategories = "Categories"
)

// Export writes the ledger workbook to path.
func Export(path string, l *ledger.Ledger) error {
	f, err := build(l)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

// Write writes the ledger workbook to w.
func Write(w io.Writer, l *ledger.Ledger) error {
	f, err := build(l)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func build(l *ledger.Ledger) (*excelize.File, error) {
	f := excelize.NewFile()

	// NewFile starts with "Sheet1".
	if err := f.SetSheetName(f.GetSheetName(0), SheetReceipts); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetCategories); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	if err := writeReceipts(f, l, header); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeCategories(f, l, header); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

func writeReceipts(f *excelize.File, l *ledger.Ledger, headerStyle int) error {
	if err := setRow(f, SheetReceipts, 1, toCells(ledger.Columns)); err != nil {
		return err
	}
	if err := f.SetRowStyle(SheetReceipts, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	format := l.Format()
	for i, row := range l.Rows() {
		cells := []interface{}{
			row.Month,
			row.Date,
			amountCell(format, row.ReceiptSum),
			row.Name,
			row.Category,
			amountCell(format, row.Price),
			row.Quantity.InexactFloat64(),
			amountCell(format, row.Sum),
		}
		if err := setRow(f, SheetReceipts, i+2, cells); err != nil {
			return err
		}
	}

	return nil
}

func writeCategories(f *excelize.File, l *ledger.Ledger, headerStyle int) error {
	if err := setRow(f, SheetCategories, 1, []interface{}{ledger.ColName, ledger.ColCategory}); err != nil {
		return err
	}
	if err := f.SetRowStyle(SheetCategories, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	categories, _ := l.Categories()
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		if err := setRow(f, SheetCategories, i+2, []interface{}{name, categories[name]}); err != nil {
			return err
		}
	}

	return nil
}

// amountCell returns a numeric cell value in the ledger's unit.
func amountCell(format ledger.Format, kopecks int64) interface{} {
	switch format.Unit {
	case config.UnitRubles:
		return kopecks / 100
	case config.UnitDecimal:
		return decimal.New(kopecks, -2).InexactFloat64()
	default:
		return kopecks
	}
}

func setRow(f *excelize.File, sheet string, rowNum int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, rowNum, err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
