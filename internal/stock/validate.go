package stock

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

const dateFormat = "2006-01-02"

// RejectedEntry is one time-series entry that failed validation, kept with
// its reason for the run summary and logs.
type RejectedEntry struct {
	Date   string
	Entry  RawEntry
	Reason RejectReason
}

// Validate converts a raw payload's time series into typed daily records.
// It is total: a malformed entry is routed to the rejected slice and never
// stops validation of its siblings. Valid records come back sorted by date
// ascending regardless of map iteration order.
func Validate(p *RawPayload) ([]DailyRecord, []RejectedEntry) {
	dates := make([]string, 0, len(p.Series))
	for d := range p.Series {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var (
		valid    []DailyRecord
		rejected []RejectedEntry
	)

	for _, dateStr := range dates {
		entry := p.Series[dateStr]

		rec, reason := validateEntry(p.Symbol, dateStr, entry)
		if reason != "" {
			rejected = append(rejected, RejectedEntry{
				Date:   dateStr,
				Entry:  entry,
				Reason: reason,
			})
			continue
		}
		valid = append(valid, rec)
	}

	return valid, rejected
}

func validateEntry(symbol, dateStr string, entry RawEntry) (DailyRecord, RejectReason) {
	date, err := time.Parse(dateFormat, dateStr)
	if err != nil {
		return DailyRecord{}, ReasonMalformedDate
	}

	prices := make([]float64, 4)
	for i, v := range []any{entry.Open, entry.High, entry.Low, entry.Close} {
		f, ok := toFloat(v)
		if !ok {
			return DailyRecord{}, ReasonMalformedPrice
		}
		prices[i] = f
	}

	volume, ok := toInt(entry.Volume)
	if !ok {
		return DailyRecord{}, ReasonMalformedVolume
	}

	for _, f := range prices {
		if f < 0 {
			return DailyRecord{}, ReasonNegativeValue
		}
	}
	if volume < 0 {
		return DailyRecord{}, ReasonNegativeValue
	}

	return DailyRecord{
		Symbol: symbol,
		Date:   date,
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: volume,
	}, ""
}

// toFloat coerces a JSON value (string, float64, or json.Number) to a finite
// float64.
func toFloat(v any) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch val := v.(type) {
	case float64:
		f = val
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(val), 64)
	case json.Number:
		f, err = val.Float64()
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toInt coerces a JSON value to an integer. Floats with a fractional part
// are rejected rather than truncated.
func toInt(v any) (int64, bool) {
	switch val := v.(type) {
	case float64:
		if val != math.Trunc(val) || math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, false
		}
		return int64(val), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return n, err == nil
	case json.Number:
		n, err := val.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}
