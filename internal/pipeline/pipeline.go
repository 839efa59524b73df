// Package pipeline runs one extract→archive→validate→enrich→load pass over
// a fixed symbol universe. Symbols are processed strictly in order, one at a
// time, with an enforced minimum delay between provider calls; the provider's
// rate limit is a hard contract, not a tuning knob.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marketetl/stock-etl/internal/stock"
)

// Archiver persists raw provider payloads for lineage.
type Archiver interface {
	Archive(payload *stock.RawPayload, runDate time.Time) (string, error)
}

// Store loads enriched records with duplicate suppression.
type Store interface {
	InsertIgnore(ctx context.Context, rec stock.EnrichedRecord) (bool, error)
}

// SymbolOutcome is the result of one symbol's pass through the pipeline.
type SymbolOutcome struct {
	Symbol        string `json:"symbol"`
	Fetched       bool   `json:"fetched"`
	Archived      bool   `json:"archived"`
	ValidCount    int    `json:"validCount"`
	RejectedCount int    `json:"rejectedCount"`
	Inserted      int    `json:"inserted"`
	Skipped       int    `json:"skipped"`
	FailureReason string `json:"failureReason,omitempty"`
}

func (o SymbolOutcome) Failed() bool { return o.FailureReason != "" }

// RunSummary aggregates per-symbol outcomes of one run, in input order.
type RunSummary struct {
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt time.Time       `json:"completedAt"`
	Symbols     []SymbolOutcome `json:"symbols"`
}

// TotalInserted sums newly inserted rows across all symbols.
func (s *RunSummary) TotalInserted() int {
	n := 0
	for _, o := range s.Symbols {
		n += o.Inserted
	}
	return n
}

// FailedSymbols lists symbols whose pass failed.
func (s *RunSummary) FailedSymbols() []string {
	var out []string
	for _, o := range s.Symbols {
		if o.Failed() {
			out = append(out, o.Symbol)
		}
	}
	return out
}

// Runner orchestrates the pipeline. It is the single writer against the
// store; no concurrent runs are expected against the same database.
type Runner struct {
	fetcher FetchClient
	archive Archiver
	store   Store
	pacer   *pacer
	now     func() time.Time
}

// NewRunner creates a Runner. interval is the minimum time between provider
// calls; zero disables pacing (tests, providers without limits).
func NewRunner(fetcher FetchClient, archive Archiver, store Store, interval time.Duration) *Runner {
	return &Runner{
		fetcher: fetcher,
		archive: archive,
		store:   store,
		pacer:   &pacer{interval: interval},
		now:     time.Now,
	}
}

// RunOnce processes each symbol in order and returns a summary of per-symbol
// outcomes. Per-symbol failures are recorded, never propagated; the only
// error returned is context cancellation, alongside the partial summary.
func (r *Runner) RunOnce(ctx context.Context, symbols []string) (*RunSummary, error) {
	summary := &RunSummary{
		StartedAt: r.now().UTC(),
		Symbols:   make([]SymbolOutcome, 0, len(symbols)),
	}
	slog.Info("pipeline run started", "symbols", symbols)

	for _, symbol := range symbols {
		// Honor the provider pacing contract before every call, including
		// after a failed symbol.
		if err := r.pacer.wait(ctx); err != nil {
			summary.CompletedAt = r.now().UTC()
			return summary, err
		}

		outcome := r.processSymbol(ctx, symbol)
		summary.Symbols = append(summary.Symbols, outcome)

		if outcome.Failed() {
			slog.Warn("symbol failed",
				"symbol", symbol, "reason", outcome.FailureReason)
		} else {
			slog.Info("symbol processed",
				"symbol", symbol,
				"valid", outcome.ValidCount, "rejected", outcome.RejectedCount,
				"inserted", outcome.Inserted, "skipped", outcome.Skipped)
		}

		if ctx.Err() != nil {
			summary.CompletedAt = r.now().UTC()
			return summary, ctx.Err()
		}
	}

	summary.CompletedAt = r.now().UTC()
	slog.Info("pipeline run completed",
		"inserted", summary.TotalInserted(), "failed", summary.FailedSymbols())
	return summary, nil
}

func (r *Runner) processSymbol(ctx context.Context, symbol string) SymbolOutcome {
	outcome := SymbolOutcome{Symbol: symbol}

	payload, err := r.fetcher.Fetch(ctx, symbol)
	r.pacer.stamp()
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			outcome.FailureReason = string(fe.Kind)
		} else {
			outcome.FailureReason = err.Error()
		}
		return outcome
	}
	outcome.Fetched = true

	runDate := r.now().UTC()
	path, err := r.archive.Archive(payload, runDate)
	if err != nil {
		outcome.FailureReason = fmt.Sprintf("archive: %v", err)
		return outcome
	}
	slog.Debug("raw payload archived", "symbol", symbol, "path", path)
	outcome.Archived = true

	valid, rejected := stock.Validate(payload)
	outcome.ValidCount = len(valid)
	outcome.RejectedCount = len(rejected)
	for _, rej := range rejected {
		slog.Warn("entry rejected",
			"symbol", symbol, "date", rej.Date, "reason", rej.Reason)
	}

	extractedAt := r.now().UTC()
	for _, rec := range valid {
		enriched := stock.Enrich(rec, extractedAt)

		inserted, err := r.store.InsertIgnore(ctx, enriched)
		if err != nil {
			// Storage failure is fatal to this symbol's load step only;
			// counts so far stand.
			outcome.FailureReason = fmt.Sprintf("load: %v", err)
			return outcome
		}
		if inserted {
			outcome.Inserted++
		} else {
			outcome.Skipped++
		}
	}

	return outcome
}
