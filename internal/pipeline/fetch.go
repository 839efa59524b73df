package pipeline

import (
	"context"
	"fmt"

	"github.com/marketetl/stock-etl/internal/stock"
)

// FetchErrorKind classifies why a fetch failed. Failures are per-symbol and
// never abort the run.
type FetchErrorKind string

const (
	KindRateLimited       FetchErrorKind = "rate_limited"
	KindNetworkError      FetchErrorKind = "network_error"
	KindMalformedResponse FetchErrorKind = "malformed_response"
)

// FetchError is a classified provider failure for one symbol.
type FetchError struct {
	Kind   FetchErrorKind
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.Symbol, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Symbol, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetchClient retrieves the raw daily time series for one symbol. A failed
// fetch returns a *FetchError.
type FetchClient interface {
	Fetch(ctx context.Context, symbol string) (*stock.RawPayload, error)
}
