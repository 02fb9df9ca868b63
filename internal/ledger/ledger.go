// =============================================================================
// Receipt Ledger - Ledger
// =============================================================================
//
// The ledger is the CSV file of receipt line items this tool maintains. A run
// loads it, checks incoming receipts against the composite key index
// (month, date, receipt total), appends the rows of newly fetched receipts,
// and writes the whole file back.
//
// =============================================================================

package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/receipt-ledger/internal/csvparser"
	"github.com/shopspring/decimal"
)

// Ledger holds the rows of a ledger file and its key index.
type Ledger struct {
	format Format
	rows   []Row
	index  map[Key]struct{}

	// loaded is the number of rows read from disk.
	loaded int
}

// New returns an empty ledger.
func New(format Format) *Ledger {
	return &Ledger{
		format: format,
		index:  make(map[Key]struct{}),
	}
}

// Load reads a ledger file. A file that does not exist yields an empty
// ledger, so the first run creates it.
func Load(path string, settings csvparser.Settings, format Format) (*Ledger, error) {
	data, err := csvparser.Parse(path, settings)
	if errors.Is(err, os.ErrNotExist) {
		return New(format), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger %s: %w", path, err)
	}

	l, err := fromCSV(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger %s: %w", path, err)
	}
	return l, nil
}

// Read parses a ledger from r.
func Read(r io.Reader, settings csvparser.Settings, format Format) (*Ledger, error) {
	data, err := csvparser.Read(r, settings)
	if err != nil {
		return nil, err
	}
	return fromCSV(data, format)
}

func fromCSV(data *csvparser.CSVData, format Format) (*Ledger, error) {
	l := New(format)
	if len(data.Headers) == 0 {
		return l, nil
	}

	if missing := data.MissingHeaders(Columns...); len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	rows := make([]Row, 0, len(data.Rows))
	for i, fields := range data.Rows {
		row, err := format.parseRow(fields)
		if err != nil {
			// Header is line 1.
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}

	l.Append(rows...)
	l.loaded = len(rows)
	return l, nil
}

func (f Format) parseRow(fields map[string]string) (Row, error) {
	row := Row{
		Month:    fields[ColMonth],
		Date:     fields[ColDate],
		Name:     fields[ColName],
		Category: fields[ColCategory],
	}

	money := []struct {
		col  string
		dest *int64
	}{
		{ColReceiptSum, &row.ReceiptSum},
		{ColPrice, &row.Price},
		{ColSum, &row.Sum},
	}
	for _, m := range money {
		v, err := f.ParseAmount(fields[m.col])
		if err != nil {
			return Row{}, fmt.Errorf("column %s: %w", m.col, err)
		}
		*m.dest = v
	}

	qty := strings.TrimSpace(fields[ColQuantity])
	if qty == "" {
		row.Quantity = decimal.Zero
	} else {
		d, err := decimal.NewFromString(qty)
		if err != nil {
			return Row{}, fmt.Errorf("column %s: invalid quantity %q", ColQuantity, qty)
		}
		row.Quantity = d
	}

	return row, nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Format returns the ledger's column format.
func (l *Ledger) Format() Format { return l.format }

// Rows returns the ledger rows in file order. The slice must not be modified.
func (l *Ledger) Rows() []Row { return l.rows }

// Len returns the number of rows.
func (l *Ledger) Len() int { return len(l.rows) }

// Added returns the rows appended since the ledger was loaded.
func (l *Ledger) Added() []Row { return l.rows[l.loaded:] }

// Receipts returns the number of distinct receipt keys.
func (l *Ledger) Receipts() int { return len(l.index) }

// Contains reports whether a receipt with this key is already recorded.
func (l *Ledger) Contains(key Key) bool {
	_, ok := l.index[key]
	return ok
}

// =============================================================================
// MUTATION
// =============================================================================

// Append adds rows and indexes their keys.
func (l *Ledger) Append(rows ...Row) {
	for _, row := range rows {
		l.rows = append(l.rows, row)
		l.index[l.format.KeyOf(row)] = struct{}{}
	}
}

// Categories derives the category map from the ledger rows.
func (l *Ledger) Categories() (CategoryMap, []Conflict) {
	return BuildCategories(l.rows)
}

// ApplyCategories re-sets every row's category from the map, so rows of a
// conflicting name all carry the winning category.
func (l *Ledger) ApplyCategories(categories CategoryMap) {
	for i := range l.rows {
		l.rows[i].Category = categories[l.rows[i].Name]
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

// Write encodes the ledger as CSV.
func (l *Ledger) Write(w io.Writer, settings csvparser.Settings) error {
	records := make([][]string, len(l.rows))
	for i, row := range l.rows {
		records[i] = l.format.Record(row)
	}
	return csvparser.Write(w, settings, Columns, records)
}

// Bytes returns the encoded ledger.
func (l *Ledger) Bytes(settings csvparser.Settings) ([]byte, error) {
	var buf bytes.Buffer
	if err := l.Write(&buf, settings); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
