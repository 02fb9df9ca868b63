// =============================================================================
// Receipt Ledger - Pipeline
// =============================================================================
//
// The pipeline is the main loop of a fetch run. For every QR payload line:
//
//   1. Parse the payload
//   2. Derive the composite key (month, date, receipt total)
//   3. Skip the receipt if the ledger already has the key
//   4. Existence check, then detail fetch; while the API answers "pending",
//      repeat both steps after the fixed delay
//   5. Flatten the items into rows, tag categories, append to the ledger
//
// Receipts are processed strictly one after another; the fns client spaces
// the API calls by the fixed delay. An unauthorized answer
// stops the run; every other per-receipt failure is logged and counted.
//
// =============================================================================

package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/receipt-ledger/internal/fns"
	"github.com/ginjaninja78/receipt-ledger/internal/ledger"
	"github.com/ginjaninja78/receipt-ledger/internal/metrics"
	"github.com/ginjaninja78/receipt-ledger/internal/qrcode"
	"github.com/rs/zerolog"
)

// ErrTooManyPending is returned for a receipt that stayed pending for all
// allowed attempts.
var ErrTooManyPending = errors.New("receipt still pending after max attempts")

// =============================================================================
// RESULT STRUCTURES
// =============================================================================

// Summary reports the outcome of a run.
type Summary struct {
	LinesRead      int
	Invalid        int
	Duplicates     int
	Fetched        int
	Failed         int
	PendingRetries int
	ItemsAdded     int
	Conflicts      []ledger.Conflict
	Elapsed        time.Duration
}

// =============================================================================
// RUNNER
// =============================================================================

// Options controls a run.
type Options struct {
	// MaxPendingAttempts caps fetch attempts per receipt while the API
	// answers "pending". Zero means no limit.
	MaxPendingAttempts int

	// Strict aborts the run on the first unparsable QR payload.
	Strict bool
}

// Runner merges fetched receipts into a ledger.
type Runner struct {
	client  fns.Client
	ledger  *ledger.Ledger
	opts    Options
	log     zerolog.Logger
	metrics *metrics.Registry

	categories ledger.CategoryMap
}

// New creates a Runner. A nil metrics registry gets a private one.
func New(client fns.Client, l *ledger.Ledger, opts Options, log zerolog.Logger, m *metrics.Registry) *Runner {
	if m == nil {
		m = metrics.NewRegistry()
	}
	return &Runner{
		client:  client,
		ledger:  l,
		opts:    opts,
		log:     log,
		metrics: m,
	}
}

// Run processes QR payload lines from r.
//
// Before the first line, the category map is derived from the ledger and
// re-applied to its rows; conflicts are logged and reported in the Summary.
// Blank lines and lines starting with "#" are ignored. The returned Summary
// is valid even when an error is returned, so the caller can still save the
// receipts fetched before the failure.
func (r *Runner) Run(ctx context.Context, input io.Reader) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}
	defer func() {
		summary.Elapsed = time.Since(start)
	}()

	categories, conflicts := r.ledger.Categories()
	for _, c := range conflicts {
		r.log.Warn().
			Str("name", c.Name).
			Str("previous", c.Previous).
			Str("kept", c.Kept).
			Msg("item has two categories, using the later one")
	}
	r.ledger.ApplyCategories(categories)
	r.categories = categories
	summary.Conflicts = conflicts

	scanner := bufio.NewScanner(input)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := ctx.Err(); err != nil {
			return summary, err
		}

		summary.LinesRead++
		r.metrics.LinesRead.Inc()

		if err := r.processLine(ctx, lineNum, line, summary); err != nil {
			return summary, err
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("failed to read input: %w", err)
	}

	return summary, nil
}

// processLine handles one payload. Only run-fatal errors are returned.
func (r *Runner) processLine(ctx context.Context, lineNum int, line string, summary *Summary) error {
	code, err := qrcode.Parse(line)
	if err != nil {
		summary.Invalid++
		r.metrics.InvalidCodes.Inc()
		if r.opts.Strict {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
		r.log.Error().Err(err).Int("line", lineNum).Msg("invalid QR payload")
		return nil
	}

	format := r.ledger.Format()
	key := format.KeyOfCode(code)
	log := r.log.With().
		Str("fn", code.FiscalDrive).
		Str("fd", code.FiscalDocument).
		Str("fpd", code.FiscalSign).
		Str("date", code.CheckDate()).
		Str("sum", code.SumString()).
		Logger()

	if r.ledger.Contains(key) {
		summary.Duplicates++
		r.metrics.Duplicates.Inc()
		log.Debug().Msg("receipt already recorded")
		return nil
	}

	receipt, retries, err := r.fetch(ctx, code)
	summary.PendingRetries += retries
	if err != nil {
		if errors.Is(err, fns.ErrUnauthorized) || ctx.Err() != nil {
			return err
		}
		summary.Failed++
		r.metrics.Failed.WithLabelValues(failureReason(err)).Inc()
		log.Error().Err(err).Msg("receipt was not loaded")
		return nil
	}

	rows := format.FromReceipt(code, receipt, r.categories)
	if len(rows) == 0 {
		log.Warn().Msg("receipt has no items")
	}
	r.ledger.Append(rows...)

	summary.Fetched++
	summary.ItemsAdded += len(rows)
	r.metrics.Fetched.Inc()
	r.metrics.ItemsAdded.Add(float64(len(rows)))

	log.Info().Int("items", len(rows)).Str("seller", receipt.User).Msg("receipt load completed")
	return nil
}

// fetch runs the check/details pair until the receipt is no longer pending.
// It returns the number of repeated attempts.
func (r *Runner) fetch(ctx context.Context, code *qrcode.Code) (*fns.Receipt, int, error) {
	retries := 0
	for attempt := 1; ; attempt++ {
		receipt, err := r.fetchOnce(ctx, code)
		if !errors.Is(err, fns.ErrPending) {
			return receipt, retries, err
		}

		if r.opts.MaxPendingAttempts > 0 && attempt >= r.opts.MaxPendingAttempts {
			return nil, retries, fmt.Errorf("%w (%d)", ErrTooManyPending, attempt)
		}

		retries++
		r.metrics.PendingRetries.Inc()
		r.log.Debug().Int("attempt", attempt).Str("fd", code.FiscalDocument).Msg("receipt pending, retrying")
	}
}

func (r *Runner) fetchOnce(ctx context.Context, code *qrcode.Code) (*fns.Receipt, error) {
	if err := r.client.Check(ctx, code); err != nil {
		return nil, err
	}
	return r.client.Details(ctx, code)
}

// failureReason labels a per-receipt failure for metrics.
func failureReason(err error) string {
	var statusErr *fns.StatusError
	switch {
	case errors.As(err, &statusErr):
		return string(statusErr.Step) + "_" + strconv.Itoa(statusErr.Code)
	case errors.Is(err, ErrTooManyPending):
		return "pending"
	default:
		return "error"
	}
}
