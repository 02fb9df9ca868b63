// =============================================================================
// Receipt Ledger - FNS Receipt API Client
// =============================================================================
//
// Fetching a receipt takes two sequential calls against the FNS verification
// API, both authenticated with HTTP basic auth (phone number, password):
//
//   1. Existence check
//      GET /v1/ofds/*/inns/*/fss/{fn}/operations/{n}/tickets/{fd}
//          ?fiscalSign={fp}&date={YYYY-MM-DDTHH:MM:00}&sum={kopecks}
//      204 -> exists, 202 -> pending, 403 -> unauthorized
//
//   2. Detail fetch
//      GET /v1/inns/*/kkts/*/fss/{fn}/tickets/{fd}?fiscalSign={fp}&sendToEmail=no
//      200 -> JSON receipt, 202 -> pending, 403 -> unauthorized
//
// Every call waits on a limiter that is restarted when the previous response
// has been read, so the configured delay separates the end of one call from
// the start of the next however long the API takes to answer.
//
// =============================================================================

package fns

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ginjaninja78/receipt-ledger/internal/qrcode"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client fetches receipts from the verification API.
type Client interface {
	// Check asks whether the receipt described by the QR code exists.
	Check(ctx context.Context, code *qrcode.Code) error

	// Details downloads the receipt content.
	Details(ctx context.Context, code *qrcode.Code) (*Receipt, error)
}

// Config holds the client settings.
type Config struct {
	BaseURL     string
	PhoneNumber string
	Password    string
	DeviceID    string
	DeviceOS    string

	// Delay is the fixed pause between two API calls.
	Delay time.Duration

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// HTTPClient is the net/http implementation of Client.
type HTTPClient struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger

	limit   rate.Limit
	mu      sync.Mutex
	limiter *rate.Limiter
}

// New creates an HTTP client for the verification API.
func New(cfg Config, log zerolog.Logger) *HTTPClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	// One token per delay with a burst of one: the first call goes out
	// immediately, every later call waits until the delay has elapsed.
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}

	return &HTTPClient{
		cfg:     cfg,
		http:    httpClient,
		log:     log,
		limit:   limit,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// pacer returns the current limiter.
func (c *HTTPClient) pacer() *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limiter
}

// restartPacing starts the delay over from now. It is deferred by every
// call, so it runs after the response body has been consumed.
func (c *HTTPClient) restartPacing() {
	l := rate.NewLimiter(c.limit, 1)
	l.Allow()

	c.mu.Lock()
	c.limiter = l
	c.mu.Unlock()
}

// Check implements Client.
func (c *HTTPClient) Check(ctx context.Context, code *qrcode.Code) error {
	endpoint := fmt.Sprintf("%s/v1/ofds/*/inns/*/fss/%s/operations/%s/tickets/%s",
		c.cfg.BaseURL,
		url.PathEscape(code.FiscalDrive),
		url.PathEscape(code.OperationType),
		url.PathEscape(code.FiscalDocument))

	query := url.Values{}
	query.Set("fiscalSign", code.FiscalSign)
	query.Set("date", code.CheckDate())
	query.Set("sum", code.SumString())

	defer c.restartPacing()
	resp, err := c.do(ctx, endpoint+"?"+query.Encode())
	if err != nil {
		return fmt.Errorf("failed to check receipt: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	c.log.Debug().Int("status", resp.StatusCode).Str("step", string(StepCheck)).Msg("api response")

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusAccepted:
		return ErrPending
	case http.StatusForbidden:
		return ErrUnauthorized
	default:
		return &StatusError{Step: StepCheck, Code: resp.StatusCode}
	}
}

// Details implements Client.
func (c *HTTPClient) Details(ctx context.Context, code *qrcode.Code) (*Receipt, error) {
	endpoint := fmt.Sprintf("%s/v1/inns/*/kkts/*/fss/%s/tickets/%s",
		c.cfg.BaseURL,
		url.PathEscape(code.FiscalDrive),
		url.PathEscape(code.FiscalDocument))

	query := url.Values{}
	query.Set("fiscalSign", code.FiscalSign)
	query.Set("sendToEmail", "no")

	defer c.restartPacing()
	resp, err := c.do(ctx, endpoint+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug().Int("status", resp.StatusCode).Str("step", string(StepDetails)).Msg("api response")

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusAccepted:
		io.Copy(io.Discard, resp.Body)
		return nil, ErrPending
	case http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return nil, ErrUnauthorized
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Step: StepDetails, Code: resp.StatusCode}
	}

	var body detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}
	if body.Document.Receipt == nil {
		return nil, fmt.Errorf("failed to decode receipt: document.receipt is missing")
	}

	return body.Document.Receipt, nil
}

// do paces and sends an authenticated GET request.
func (c *HTTPClient) do(ctx context.Context, target string) (*http.Response, error) {
	if err := c.pacer().Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.cfg.PhoneNumber, c.cfg.Password)
	req.Header.Set("Device-Id", c.cfg.DeviceID)
	req.Header.Set("Device-OS", c.cfg.DeviceOS)

	return c.http.Do(req)
}
