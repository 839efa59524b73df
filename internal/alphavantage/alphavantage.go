// Package alphavantage implements the pipeline's FetchClient against the
// Alpha Vantage TIME_SERIES_DAILY endpoint. The API reports rate limiting
// and bad symbols as soft errors inside a 200 response; those are mapped
// onto the pipeline's classified fetch errors.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/marketetl/stock-etl/internal/pipeline"
	"github.com/marketetl/stock-etl/internal/stock"
)

const (
	defaultBaseURL = "https://www.alphavantage.co/query"
	// OutputSizeCompact returns the latest 100 data points; full returns
	// the complete history.
	OutputSizeCompact = "compact"
	OutputSizeFull    = "full"
)

// Client fetches daily time series from Alpha Vantage.
type Client struct {
	apiKey     string
	baseURL    string
	outputSize string
	client     *http.Client
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithOutputSize sets the requested series size (compact or full).
func WithOutputSize(size string) Option {
	return func(c *Client) { c.outputSize = size }
}

// WithClient sets the HTTP client.
func WithClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New creates a Client with the given API key and options applied.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		outputSize: OutputSizeCompact,
		client:     &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// envelope carries the soft-error fields Alpha Vantage embeds in otherwise
// successful responses.
type envelope struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

// Fetch retrieves the daily series for symbol. Failures come back as a
// *pipeline.FetchError classified as rate_limited, network_error, or
// malformed_response.
func (c *Client) Fetch(ctx context.Context, symbol string) (*stock.RawPayload, error) {
	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", symbol)
	q.Set("apikey", c.apiKey)
	q.Set("outputsize", c.outputSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, c.fail(pipeline.KindNetworkError, symbol, err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, c.fail(pipeline.KindNetworkError, symbol, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusTooManyRequests {
		return nil, c.fail(pipeline.KindRateLimited, symbol, fmt.Errorf("HTTP %d", res.StatusCode))
	}
	if res.StatusCode != http.StatusOK {
		return nil, c.fail(pipeline.KindNetworkError, symbol, fmt.Errorf("HTTP %d", res.StatusCode))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, c.fail(pipeline.KindNetworkError, symbol, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, c.fail(pipeline.KindMalformedResponse, symbol, err)
	}
	// A Note or Information field means the free-tier quota was exhausted.
	if env.Note != "" || env.Information != "" {
		return nil, c.fail(pipeline.KindRateLimited, symbol, nil)
	}
	if env.ErrorMessage != "" {
		return nil, c.fail(pipeline.KindMalformedResponse, symbol, fmt.Errorf("%s", env.ErrorMessage))
	}

	payload, err := stock.ParsePayload(symbol, c.now().UTC(), body)
	if err != nil {
		return nil, c.fail(pipeline.KindMalformedResponse, symbol, err)
	}
	if len(payload.Series) == 0 {
		return nil, c.fail(pipeline.KindMalformedResponse, symbol, fmt.Errorf("no daily time series in response"))
	}

	return payload, nil
}

func (c *Client) fail(kind pipeline.FetchErrorKind, symbol string, err error) error {
	return &pipeline.FetchError{Kind: kind, Symbol: symbol, Err: err}
}
