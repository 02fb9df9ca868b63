package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/receipt-ledger/internal/config"
	"github.com/shopspring/decimal"
)

// Format controls how derived and money columns are rendered. Two ledgers
// are only comparable when written with the same Format.
type Format struct {
	// DateLayout and MonthLayout are Go time layouts.
	DateLayout  string
	MonthLayout string

	// Unit is one of config.UnitKopecks, config.UnitRubles, config.UnitDecimal.
	Unit string
}

// FormatFromConfig builds a Format from the output settings.
func FormatFromConfig(cfg config.OutputConfig) Format {
	return Format{
		DateLayout:  cfg.DateFormat,
		MonthLayout: cfg.MonthFormat,
		Unit:        cfg.AmountUnit,
	}
}

// Date renders the date column.
func (f Format) Date(t time.Time) string {
	return t.Format(f.DateLayout)
}

// Month renders the month column.
func (f Format) Month(t time.Time) string {
	return t.Format(f.MonthLayout)
}

// Amount renders kopecks in the configured unit.
func (f Format) Amount(kopecks int64) string {
	switch f.Unit {
	case config.UnitRubles:
		// Truncates toward zero, as the legacy ledgers did.
		return strconv.FormatInt(kopecks/100, 10)
	case config.UnitDecimal:
		return decimal.New(kopecks, -2).StringFixed(2)
	default:
		return strconv.FormatInt(kopecks, 10)
	}
}

// ParseAmount reads a money column written in the configured unit. Values
// finer than one kopeck are rejected rather than rounded.
func (f Format) ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	switch f.Unit {
	case config.UnitRubles, config.UnitDecimal:
		d = d.Shift(2)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("amount %q is not a whole number of kopecks", s)
	}
	return d.IntPart(), nil
}
