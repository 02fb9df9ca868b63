// =============================================================================
// Receipt Ledger - Validation Engine
// =============================================================================
//
// This module checks a ledger file before it is trusted as the deduplication
// index. A ledger edited by hand (categories are usually typed in a
// spreadsheet) can pick up broken amounts, dates in another layout, or rows
// whose key no longer matches the receipt they came from.
//
// VALIDATION LEVELS:
//   1. Document-level: required columns present, category conflicts
//   2. Field-level: amounts, quantity, date and month parse with the
//      configured unit and layouts
//   3. Row-level: month agrees with date, price * quantity agrees with sum
//   4. Receipt-level: item sums add up to the receipt total
//
// ERROR HANDLING:
//   - Issues are collected, not returned one at a time
//   - Each issue carries the CSV line, column and offending value
//   - Errors make the ledger unusable; warnings are reported only
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/ginjaninja78/receipt-ledger/internal/config"
	"github.com/ginjaninja78/receipt-ledger/internal/csvparser"
	"github.com/ginjaninja78/receipt-ledger/internal/ledger"
	"github.com/shopspring/decimal"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Rule names.
const (
	RuleRequiredColumn  = "required_column"
	RuleRequired        = "required"
	RuleAmount          = "amount"
	RuleQuantity        = "quantity"
	RuleDateLayout      = "date_layout"
	RuleMonthLayout     = "month_layout"
	RuleMonthMatchesDay = "month_matches_date"
	RuleLineSum         = "line_sum"
	RuleReceiptTotal    = "receipt_total"
	RuleCategory        = "category_conflict"
)

// ValidationError is a single issue found in the ledger.
type ValidationError struct {
	Severity string
	Rule     string

	// Line is the CSV line number (the header is line 1). Zero for
	// document-level issues.
	Line int

	Field   string
	Value   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", strings.ToUpper(e.Severity))
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ", column '%s'", e.Field)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	if e.Value != "" {
		fmt.Fprintf(&b, " (value: '%s')", e.Value)
	}
	return b.String()
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// Result contains the outcome of a validation.
type Result struct {
	// IsValid is true if there are no errors.
	IsValid bool

	// Errors contains all issues, warnings included, in discovery order.
	Errors []*ValidationError

	ErrorCount   int
	WarningCount int

	RowsValidated     int
	ReceiptsValidated int
}

func (r *Result) add(e *ValidationError, opts Options) {
	if opts.TreatWarningsAsErrors {
		e.Severity = SeverityError
	}
	r.Errors = append(r.Errors, e)
	if e.Severity == SeverityError {
		r.ErrorCount++
	} else {
		r.WarningCount++
	}
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Options contains options for validation.
type Options struct {
	// StopOnFirstError stops validation after the first error.
	// Default: false
	StopOnFirstError bool

	// TreatWarningsAsErrors reports every warning as an error.
	// Default: false
	TreatWarningsAsErrors bool
}

// Validator checks ledger data against a column format.
type Validator struct {
	format  ledger.Format
	options Options
}

// NewValidator creates a Validator for ledgers written with format.
func NewValidator(format ledger.Format, options Options) *Validator {
	return &Validator{format: format, options: options}
}

// receiptGroup accumulates the rows sharing one composite key.
type receiptGroup struct {
	line     int
	total    int64
	itemsSum int64
	rows     int
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// Validate checks every row of data.
//
// PARAMETERS:
//   - data: The raw ledger CSV, as read by csvparser.
//
// RETURNS:
//   - The validation result. Rows that fail field-level checks are left out
//     of the receipt-level totals.
func (v *Validator) Validate(data *csvparser.CSVData) *Result {
	result := &Result{}
	defer func() { result.IsValid = result.ErrorCount == 0 }()

	if len(data.Headers) == 0 {
		return result
	}

	if missing := data.MissingHeaders(ledger.Columns...); len(missing) > 0 {
		for _, col := range missing {
			result.add(&ValidationError{
				Severity: SeverityError,
				Rule:     RuleRequiredColumn,
				Field:    col,
				Message:  "required column is missing",
			}, v.options)
		}
		return result
	}

	groups := make(map[ledger.Key]*receiptGroup)
	var order []ledger.Key
	rows := make([]ledger.Row, 0, len(data.Rows))

	for i, fields := range data.Rows {
		line := i + 2
		result.RowsValidated++

		row, ok := v.validateRow(line, fields, result)
		if v.options.StopOnFirstError && result.ErrorCount > 0 {
			return result
		}
		if !ok {
			continue
		}
		rows = append(rows, row)

		key := v.format.KeyOf(row)
		g, seen := groups[key]
		if !seen {
			g = &receiptGroup{line: line, total: row.ReceiptSum}
			groups[key] = g
			order = append(order, key)
		}
		g.itemsSum += row.Sum
		g.rows++
	}

	result.ReceiptsValidated = len(order)

	// Integer rubles lose the kopecks of every item, so totals cannot be
	// compared.
	if v.format.Unit != config.UnitRubles {
		for _, key := range order {
			g := groups[key]
			if g.itemsSum == g.total {
				continue
			}
			result.add(&ValidationError{
				Severity: SeverityWarning,
				Rule:     RuleReceiptTotal,
				Line:     g.line,
				Field:    ledger.ColReceiptSum,
				Value:    key.ReceiptSum,
				Message: fmt.Sprintf("%d items add up to %s", g.rows,
					v.format.Amount(g.itemsSum)),
			}, v.options)
		}
	}

	_, conflicts := ledger.BuildCategories(rows)
	for _, c := range conflicts {
		result.add(&ValidationError{
			Severity: SeverityWarning,
			Rule:     RuleCategory,
			Field:    ledger.ColCategory,
			Value:    c.Name,
			Message:  fmt.Sprintf("categorized as both %q and %q", c.Previous, c.Kept),
		}, v.options)
	}

	return result
}

// =============================================================================
// ROW VALIDATION
// =============================================================================

// validateRow runs the field and row checks. It returns the parsed row and
// whether the row is usable for receipt-level checks.
func (v *Validator) validateRow(line int, fields map[string]string, result *Result) (ledger.Row, bool) {
	errorsBefore := result.ErrorCount
	fail := func(severity, rule, field, value, msg string) {
		result.add(&ValidationError{
			Severity: severity,
			Rule:     rule,
			Line:     line,
			Field:    field,
			Value:    value,
			Message:  msg,
		}, v.options)
	}

	row := ledger.Row{
		Month:    fields[ledger.ColMonth],
		Date:     fields[ledger.ColDate],
		Name:     fields[ledger.ColName],
		Category: fields[ledger.ColCategory],
	}

	if strings.TrimSpace(row.Name) == "" {
		fail(SeverityError, RuleRequired, ledger.ColName, "", "item name is empty")
	}

	for _, m := range []struct {
		col  string
		dest *int64
	}{
		{ledger.ColReceiptSum, &row.ReceiptSum},
		{ledger.ColPrice, &row.Price},
		{ledger.ColSum, &row.Sum},
	} {
		value := fields[m.col]
		amount, err := v.format.ParseAmount(value)
		if err != nil {
			fail(SeverityError, RuleAmount, m.col, value, "not a valid amount")
			continue
		}
		*m.dest = amount
	}

	row.Quantity = decimal.Zero
	if qty := strings.TrimSpace(fields[ledger.ColQuantity]); qty != "" {
		d, err := decimal.NewFromString(qty)
		if err != nil {
			fail(SeverityError, RuleQuantity, ledger.ColQuantity, qty, "not a valid quantity")
		} else {
			row.Quantity = d
		}
	}

	date, dateErr := time.Parse(v.format.DateLayout, row.Date)
	if dateErr != nil {
		fail(SeverityError, RuleDateLayout, ledger.ColDate, row.Date,
			fmt.Sprintf("does not match layout %q", v.format.DateLayout))
	}
	if _, err := time.Parse(v.format.MonthLayout, row.Month); err != nil {
		fail(SeverityError, RuleMonthLayout, ledger.ColMonth, row.Month,
			fmt.Sprintf("does not match layout %q", v.format.MonthLayout))
	} else if dateErr == nil && v.format.Month(date) != row.Month {
		fail(SeverityError, RuleMonthMatchesDay, ledger.ColMonth, row.Month,
			fmt.Sprintf("date %s belongs to month %s", row.Date, v.format.Month(date)))
	}

	if result.ErrorCount > errorsBefore {
		return row, false
	}

	if v.format.Unit != config.UnitRubles {
		expected := decimal.NewFromInt(row.Price).Mul(row.Quantity).Round(0).IntPart()
		if diff := expected - row.Sum; diff > 1 || diff < -1 {
			fail(SeverityWarning, RuleLineSum, ledger.ColSum, v.format.Amount(row.Sum),
				fmt.Sprintf("price * quantity is %s", v.format.Amount(expected)))
		}
	}

	return row, true
}
