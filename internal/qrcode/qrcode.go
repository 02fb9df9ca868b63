// =============================================================================
// Receipt Ledger - QR Code Parser
// =============================================================================
//
// Paper fiscal receipts carry a QR code whose decoded text is a URL query
// string, for example:
//
//   t=20190215T1415&s=1234.50&fn=9289000100408074&i=37311&fp=3185475219&n=1
//
// FIELDS:
//   t  - receipt timestamp, YYYYMMDDTHHMM or YYYYMMDDTHHMMSS
//   s  - receipt total in rubles with a decimal point
//   fn - fiscal drive number (FN)
//   i  - fiscal document number (FD)
//   fp - fiscal sign of the document (FPD)
//   n  - receipt number / operation type (1 = sale)
//
// =============================================================================

package qrcode

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrMissingField is returned when a required field is absent or empty.
	ErrMissingField = errors.New("qrcode: missing required field")

	// ErrTimestampFormat is returned for a "t" value of unknown length.
	ErrTimestampFormat = errors.New("qrcode: unknown timestamp format")

	// ErrInvalidSum is returned when "s" is not a non-negative number.
	ErrInvalidSum = errors.New("qrcode: invalid sum")

	// ErrInvalidNumber is returned when fn, i or fp contain non-digits.
	ErrInvalidNumber = errors.New("qrcode: field must be numeric")
)

// Timestamp layouts, selected by length.
const (
	layoutMinutes = "20060102T1504"
	layoutSeconds = "20060102T150405"
)

// DefaultOperationType is used when the payload has no "n" field.
const DefaultOperationType = "1"

// =============================================================================
// CODE STRUCTURE
// =============================================================================

// Code is a parsed receipt QR payload.
type Code struct {
	// FiscalSign is the FPD ("fp").
	FiscalSign string

	// FiscalDrive is the FN ("fn").
	FiscalDrive string

	// FiscalDocument is the FD ("i").
	FiscalDocument string

	// OperationType is the "n" field. The verification API takes it as the
	// operation number in the existence-check path.
	OperationType string

	// Sum is the receipt total in kopecks.
	Sum int64

	// Time is the receipt timestamp. The payload carries no zone, so it is
	// kept in UTC and only ever formatted back into wall-clock strings.
	Time time.Time
}

// =============================================================================
// PARSER
// =============================================================================

// Parse decodes a scanned QR payload.
//
// Surrounding whitespace is ignored, and a URL prefix ending in "?" is
// stripped so that payloads copied from receipt check links also parse.
func Parse(payload string) (*Code, error) {
	payload = strings.TrimSpace(payload)
	if i := strings.IndexByte(payload, '?'); i >= 0 {
		payload = payload[i+1:]
	}

	values, err := url.ParseQuery(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse QR payload: %w", err)
	}

	get := func(key string) (string, error) {
		v := strings.TrimSpace(values.Get(key))
		if v == "" {
			return "", fmt.Errorf("%w %q", ErrMissingField, key)
		}
		return v, nil
	}

	code := &Code{OperationType: DefaultOperationType}

	rawTime, err := get("t")
	if err != nil {
		return nil, err
	}
	if code.Time, err = parseTimestamp(rawTime); err != nil {
		return nil, err
	}

	rawSum, err := get("s")
	if err != nil {
		return nil, err
	}
	if code.Sum, err = parseSum(rawSum); err != nil {
		return nil, err
	}

	numeric := []struct {
		key  string
		dest *string
	}{
		{"fn", &code.FiscalDrive},
		{"i", &code.FiscalDocument},
		{"fp", &code.FiscalSign},
	}
	for _, field := range numeric {
		v, err := get(field.key)
		if err != nil {
			return nil, err
		}
		if !isDigits(v) {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidNumber, field.key, v)
		}
		*field.dest = v
	}

	if n := strings.TrimSpace(values.Get("n")); n != "" {
		code.OperationType = n
	}

	return code, nil
}

// parseTimestamp accepts minute or second precision timestamps.
func parseTimestamp(raw string) (time.Time, error) {
	var layout string
	switch len(raw) {
	case len(layoutMinutes):
		layout = layoutMinutes
	case len(layoutSeconds):
		layout = layoutSeconds
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrTimestampFormat, raw)
	}

	t, err := time.Parse(layout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrTimestampFormat, raw, err)
	}
	return t, nil
}

// parseSum converts a ruble amount such as "1234.5" into kopecks.
func parseSum(raw string) (int64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSum, raw)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidSum, raw)
	}
	kopecks := d.Shift(2)
	if !kopecks.Equal(kopecks.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q has fractional kopecks", ErrInvalidSum, raw)
	}
	return kopecks.IntPart(), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// CheckDate formats the timestamp the way the existence-check endpoint
// expects it: seconds are always reported as zero.
func (c *Code) CheckDate() string {
	return c.Time.Format("2006-01-02T15:04") + ":00"
}

// SumString returns the total in kopecks as a decimal string.
func (c *Code) SumString() string {
	return fmt.Sprintf("%d", c.Sum)
}

// String renders the code back as a canonical QR payload.
func (c *Code) String() string {
	v := url.Values{}
	v.Set("t", c.Time.Format(layoutSeconds))
	v.Set("s", decimal.New(c.Sum, -2).StringFixed(2))
	v.Set("fn", c.FiscalDrive)
	v.Set("i", c.FiscalDocument)
	v.Set("fp", c.FiscalSign)
	v.Set("n", c.OperationType)
	return v.Encode()
}
