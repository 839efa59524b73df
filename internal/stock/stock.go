package stock

import "time"

// RejectReason classifies why a raw time-series entry failed validation.
type RejectReason string

const (
	ReasonMalformedDate   RejectReason = "malformed_date"
	ReasonMalformedPrice  RejectReason = "malformed_price"
	ReasonMalformedVolume RejectReason = "malformed_volume"
	ReasonNegativeValue   RejectReason = "negative_value"
)

// DailyRecord is one validated trading day for a symbol.
type DailyRecord struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// EnrichedRecord is a DailyRecord with derived fields attached. It only
// exists in memory between enrichment and the upsert.
type EnrichedRecord struct {
	DailyRecord
	// DailyChangePct is nil when the open price is zero and the change
	// cannot be computed.
	DailyChangePct *float64  `json:"dailyChangePercentage"`
	ExtractedAt    time.Time `json:"extractionTimestamp"`
}

// StoredRow is the persisted form of an EnrichedRecord.
type StoredRow struct {
	ID             int64     `json:"id"`
	Symbol         string    `json:"symbol"`
	Date           time.Time `json:"date"`
	OpenPrice      float64   `json:"openPrice"`
	HighPrice      float64   `json:"highPrice"`
	LowPrice       float64   `json:"lowPrice"`
	ClosePrice     float64   `json:"closePrice"`
	Volume         int64     `json:"volume"`
	DailyChangePct *float64  `json:"dailyChangePercentage"`
	ExtractedAt    time.Time `json:"extractionTimestamp"`
}

// TableStats summarizes the whole stock_daily_data table.
type TableStats struct {
	RowCount        int64     `json:"rowCount"`
	DistinctSymbols int64     `json:"distinctSymbols"`
	MinDate         time.Time `json:"minDate"`
	MaxDate         time.Time `json:"maxDate"`
}

// SymbolStats summarizes one symbol's rows.
type SymbolStats struct {
	Symbol      string    `json:"symbol"`
	RecordCount int64     `json:"recordCount"`
	MinDate     time.Time `json:"minDate"`
	MaxDate     time.Time `json:"maxDate"`
}
