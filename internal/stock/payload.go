package stock

import (
	"encoding/json"
	"fmt"
	"time"
)

// seriesKey is the field holding daily bars in an Alpha Vantage
// TIME_SERIES_DAILY response.
const seriesKey = "Time Series (Daily)"

// RawPayload is one provider response for one symbol: the verbatim body as
// fetched, plus the decoded time series. Immutable once archived.
type RawPayload struct {
	Symbol      string
	RetrievedAt time.Time
	Body        []byte
	Series      map[string]RawEntry
}

// RawEntry is a single unvalidated time-series entry. The provider sends
// prices and volume as JSON strings, but numbers are tolerated too, so the
// fields stay untyped until validation.
type RawEntry struct {
	Open   any `json:"1. open"`
	High   any `json:"2. high"`
	Low    any `json:"3. low"`
	Close  any `json:"4. close"`
	Volume any `json:"5. volume"`
}

// ParsePayload decodes a raw provider body into a RawPayload. A body without
// the time-series field yields an empty series, not an error; callers decide
// whether that is acceptable.
func ParsePayload(symbol string, retrievedAt time.Time, body []byte) (*RawPayload, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}

	p := &RawPayload{
		Symbol:      symbol,
		RetrievedAt: retrievedAt,
		Body:        body,
	}

	raw, ok := doc[seriesKey]
	if !ok {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p.Series); err != nil {
		return nil, fmt.Errorf("parse time series: %w", err)
	}
	return p, nil
}
