package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/ginjaninja78/receipt-ledger/internal/config"
	"github.com/ginjaninja78/receipt-ledger/internal/csvparser"
	"github.com/ginjaninja78/receipt-ledger/internal/fns"
	"github.com/ginjaninja78/receipt-ledger/internal/ledger"
	"github.com/ginjaninja78/receipt-ledger/internal/logger"
	"github.com/ginjaninja78/receipt-ledger/internal/metrics"
	"github.com/ginjaninja78/receipt-ledger/internal/qrcode"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// fakeClient answers Check and Details from per-FD scripts.
type fakeClient struct {
	// checks and details hold queued errors per fiscal document number;
	// an empty queue means success.
	checks  map[string][]error
	details map[string][]error
	items   map[string][]fns.Item

	checkCalls   map[string]int
	detailsCalls map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		checks:       map[string][]error{},
		details:      map[string][]error{},
		items:        map[string][]fns.Item{},
		checkCalls:   map[string]int{},
		detailsCalls: map[string]int{},
	}
}

func pop(queue map[string][]error, fd string) error {
	q := queue[fd]
	if len(q) == 0 {
		return nil
	}
	queue[fd] = q[1:]
	return q[0]
}

func (f *fakeClient) Check(ctx context.Context, code *qrcode.Code) error {
	f.checkCalls[code.FiscalDocument]++
	return pop(f.checks, code.FiscalDocument)
}

func (f *fakeClient) Details(ctx context.Context, code *qrcode.Code) (*fns.Receipt, error) {
	f.detailsCalls[code.FiscalDocument]++
	if err := pop(f.details, code.FiscalDocument); err != nil {
		return nil, err
	}
	return &fns.Receipt{User: "shop", Items: f.items[code.FiscalDocument]}, nil
}

var testFormat = ledger.Format{DateLayout: "2006-01-02", MonthLayout: "2006-01", Unit: config.UnitKopecks}

const existingCSV = `month,date,receipt_sum,name,category,price,quantity,sum
2019-02,2019-02-15,123450,Молоко,Продукты,7990,2.000,15980
2019-02,2019-02-15,123450,Сыр,,107470,1.000,107470
2019-03,2019-03-01,5000,Молоко,Молочное,5000,1.000,5000
`

const (
	// Already in the ledger.
	qrExisting = "t=20190215T1415&s=1234.50&fn=9289000100408074&i=100&fp=1&n=1"
	// New receipts.
	qrNew     = "t=20190402T1000&s=250.00&fn=9289000100408074&i=200&fp=2&n=1"
	qrPending = "t=20190403T1000&s=10.00&fn=9289000100408074&i=300&fp=3&n=1"
	qrMissing = "t=20190404T1000&s=20.00&fn=9289000100408074&i=400&fp=4&n=1"
)

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Read(strings.NewReader(existingCSV), csvparser.Settings{Encoding: config.EncodingUTF8}, testFormat)
	if err != nil {
		t.Fatalf("ledger.Read() error = %v", err)
	}
	return l
}

func newRunner(client fns.Client, l *ledger.Ledger, opts Options) (*Runner, *metrics.Registry) {
	m := metrics.NewRegistry()
	return New(client, l, opts, zerolog.Nop(), m), m
}

func TestRunSkipsRecordedReceipts(t *testing.T) {
	client := newFakeClient()
	l := newLedger(t)
	runner, m := newRunner(client, l, Options{})

	summary, err := runner.Run(context.Background(), strings.NewReader(qrExisting+"\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Duplicates != 1 || summary.Fetched != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if client.checkCalls["100"] != 0 {
		t.Error("recorded receipt should not reach the API")
	}
	if got := testutil.ToFloat64(m.Duplicates); got != 1 {
		t.Errorf("duplicates metric = %v", got)
	}
}

func TestRunFetchesNewReceipt(t *testing.T) {
	client := newFakeClient()
	client.items["200"] = []fns.Item{
		{Name: "Молоко", Price: 8000, Quantity: decimal.NewFromInt(1), Sum: 8000},
		{Name: "Хлеб", Price: 17000, Quantity: decimal.NewFromInt(1), Sum: 17000},
	}
	l := newLedger(t)
	runner, _ := newRunner(client, l, Options{})

	input := "# scanned on phone\n\n" + qrNew + "\n" + qrNew + "\n"
	summary, err := runner.Run(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.LinesRead != 2 {
		t.Errorf("LinesRead = %d, want 2 (comment and blank skipped)", summary.LinesRead)
	}
	if summary.Fetched != 1 || summary.ItemsAdded != 2 {
		t.Errorf("summary = %+v", summary)
	}
	// The second copy of the same QR code matches the rows just added.
	if summary.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", summary.Duplicates)
	}
	if client.checkCalls["200"] != 1 || client.detailsCalls["200"] != 1 {
		t.Errorf("calls = check %d, details %d", client.checkCalls["200"], client.detailsCalls["200"])
	}

	added := l.Added()
	if len(added) != 2 {
		t.Fatalf("Added() = %d rows", len(added))
	}
	if added[0].Category != "Молочное" {
		t.Errorf("Молоко category = %q, want the later conflicting category", added[0].Category)
	}
	if added[1].Category != "" {
		t.Errorf("Хлеб category = %q, want empty", added[1].Category)
	}
	if added[0].ReceiptSum != 25000 || added[0].Date != "2019-04-02" || added[0].Month != "2019-04" {
		t.Errorf("derived columns = %+v", added[0])
	}

	// Existing rows were normalized to the winning category.
	if got := l.Rows()[0].Category; got != "Молочное" {
		t.Errorf("existing row category = %q", got)
	}
	if len(summary.Conflicts) != 1 {
		t.Errorf("Conflicts = %v", summary.Conflicts)
	}
}

func TestRunRetriesPending(t *testing.T) {
	client := newFakeClient()
	client.checks["300"] = []error{fns.ErrPending}
	client.details["300"] = []error{fns.ErrPending}
	client.items["300"] = []fns.Item{{Name: "Вода", Price: 1000, Quantity: decimal.NewFromInt(1), Sum: 1000}}

	runner, m := newRunner(client, newLedger(t), Options{MaxPendingAttempts: 5})

	summary, err := runner.Run(context.Background(), strings.NewReader(qrPending))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Attempt 1: check pending. Attempt 2: check ok, details pending.
	// Attempt 3: both ok.
	if summary.PendingRetries != 2 || summary.Fetched != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if client.checkCalls["300"] != 3 || client.detailsCalls["300"] != 2 {
		t.Errorf("calls = check %d, details %d", client.checkCalls["300"], client.detailsCalls["300"])
	}
	if got := testutil.ToFloat64(m.PendingRetries); got != 2 {
		t.Errorf("pending metric = %v", got)
	}
}

func TestRunGivesUpOnPending(t *testing.T) {
	client := newFakeClient()
	client.checks["300"] = []error{fns.ErrPending, fns.ErrPending, fns.ErrPending, fns.ErrPending}

	runner, m := newRunner(client, newLedger(t), Options{MaxPendingAttempts: 3})

	summary, err := runner.Run(context.Background(), strings.NewReader(qrPending))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Failed != 1 || summary.Fetched != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if client.checkCalls["300"] != 3 {
		t.Errorf("check calls = %d, want 3", client.checkCalls["300"])
	}
	if got := testutil.ToFloat64(m.Failed.WithLabelValues("pending")); got != 1 {
		t.Errorf("failed{pending} = %v", got)
	}
}

func TestRunContinuesAfterNotFound(t *testing.T) {
	client := newFakeClient()
	client.checks["400"] = []error{&fns.StatusError{Step: fns.StepCheck, Code: http.StatusNotAcceptable}}
	client.items["200"] = []fns.Item{{Name: "Хлеб", Price: 25000, Quantity: decimal.NewFromInt(1), Sum: 25000}}

	runner, m := newRunner(client, newLedger(t), Options{})

	summary, err := runner.Run(context.Background(), strings.NewReader(qrMissing+"\n"+qrNew+"\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Failed != 1 || summary.Fetched != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if client.detailsCalls["400"] != 0 {
		t.Error("details should not be requested after a failed check")
	}
	if got := testutil.ToFloat64(m.Failed.WithLabelValues("check_406")); got != 1 {
		t.Errorf("failed{check_406} = %v", got)
	}
}

func TestRunStopsOnUnauthorized(t *testing.T) {
	client := newFakeClient()
	client.checks["200"] = []error{fns.ErrUnauthorized}

	runner, _ := newRunner(client, newLedger(t), Options{})

	summary, err := runner.Run(context.Background(), strings.NewReader(qrNew+"\n"+qrPending+"\n"))
	if !errors.Is(err, fns.ErrUnauthorized) {
		t.Fatalf("Run() error = %v, want ErrUnauthorized", err)
	}
	if summary == nil || summary.LinesRead != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if client.checkCalls["300"] != 0 {
		t.Error("run should stop before the next receipt")
	}
}

func TestRunInvalidPayload(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf)

	runner := New(newFakeClient(), newLedger(t), Options{}, log, nil)
	summary, err := runner.Run(context.Background(), strings.NewReader("s=1&fn=1\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Invalid != 1 {
		t.Errorf("Invalid = %d", summary.Invalid)
	}
	if !strings.Contains(buf.String(), "invalid QR payload") {
		t.Errorf("expected log entry, got: %s", buf.String())
	}

	strict := New(newFakeClient(), newLedger(t), Options{Strict: true}, zerolog.Nop(), nil)
	if _, err := strict.Run(context.Background(), strings.NewReader("s=1&fn=1\n")); !errors.Is(err, qrcode.ErrMissingField) {
		t.Errorf("strict Run() error = %v, want ErrMissingField", err)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newFakeClient()
	runner, _ := newRunner(client, newLedger(t), Options{})
	if _, err := runner.Run(ctx, strings.NewReader(qrNew)); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if client.checkCalls["200"] != 0 {
		t.Error("cancelled run should not call the API")
	}
}
