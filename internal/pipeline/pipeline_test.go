package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketetl/stock-etl/internal/stock"
)

// --- fakes ---

type fakeFetcher struct {
	payloads map[string]*stock.RawPayload
	errs     map[string]error
	calls    []string
}

func (f *fakeFetcher) Fetch(_ context.Context, symbol string) (*stock.RawPayload, error) {
	f.calls = append(f.calls, symbol)
	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
	return f.payloads[symbol], nil
}

type fakeArchiver struct {
	archived []string
	err      error
}

func (f *fakeArchiver) Archive(p *stock.RawPayload, _ time.Time) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.archived = append(f.archived, p.Symbol)
	return "raw_data/" + p.Symbol + ".json", nil
}

type fakeStore struct {
	rows map[string]stock.EnrichedRecord
	err  error
}

func (f *fakeStore) InsertIgnore(_ context.Context, rec stock.EnrichedRecord) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.rows == nil {
		f.rows = make(map[string]stock.EnrichedRecord)
	}
	key := rec.Symbol + "|" + rec.Date.Format("2006-01-02")
	if _, ok := f.rows[key]; ok {
		return false, nil
	}
	f.rows[key] = rec
	return true, nil
}

func payload(symbol string, dates ...string) *stock.RawPayload {
	series := make(map[string]stock.RawEntry, len(dates))
	for _, d := range dates {
		series[d] = stock.RawEntry{
			Open: "150.0", High: "152.0", Low: "149.0", Close: "151.5", Volume: "1000000",
		}
	}
	return &stock.RawPayload{Symbol: symbol, RetrievedAt: time.Now(), Series: series}
}

// --- tests ---

func TestRunOnce_HappyPath(t *testing.T) {
	fetcher := &fakeFetcher{payloads: map[string]*stock.RawPayload{
		"AAPL": payload("AAPL", "2025-10-01", "2025-10-02"),
		"MSFT": payload("MSFT", "2025-10-01"),
	}}
	archive := &fakeArchiver{}
	store := &fakeStore{}
	runner := NewRunner(fetcher, archive, store, 0)

	summary, err := runner.RunOnce(context.Background(), []string{"AAPL", "MSFT"})
	require.NoError(t, err)
	require.Len(t, summary.Symbols, 2)

	aapl := summary.Symbols[0]
	assert.Equal(t, "AAPL", aapl.Symbol)
	assert.True(t, aapl.Fetched)
	assert.True(t, aapl.Archived)
	assert.Equal(t, 2, aapl.ValidCount)
	assert.Equal(t, 2, aapl.Inserted)
	assert.Equal(t, 0, aapl.Skipped)
	assert.False(t, aapl.Failed())

	assert.Equal(t, []string{"AAPL", "MSFT"}, archive.archived)
	assert.Equal(t, 3, summary.TotalInserted())
	assert.Empty(t, summary.FailedSymbols())
}

func TestRunOnce_RerunSkipsDuplicates(t *testing.T) {
	fetcher := &fakeFetcher{payloads: map[string]*stock.RawPayload{
		"AAPL": payload("AAPL", "2025-10-01"),
	}}
	store := &fakeStore{}
	runner := NewRunner(fetcher, &fakeArchiver{}, store, 0)
	ctx := context.Background()

	first, err := runner.RunOnce(ctx, []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Symbols[0].Inserted)
	assert.Equal(t, 0, first.Symbols[0].Skipped)

	second, err := runner.RunOnce(ctx, []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Symbols[0].Inserted)
	assert.Equal(t, 1, second.Symbols[0].Skipped)
	assert.Len(t, store.rows, 1)
}

func TestRunOnce_FetchFailureDoesNotStopRun(t *testing.T) {
	fetcher := &fakeFetcher{
		payloads: map[string]*stock.RawPayload{
			"AAPL": payload("AAPL", "2025-10-01"),
			"MSFT": payload("MSFT", "2025-10-01"),
		},
		errs: map[string]error{
			"GOOG": &FetchError{Kind: KindRateLimited, Symbol: "GOOG"},
		},
	}
	runner := NewRunner(fetcher, &fakeArchiver{}, &fakeStore{}, 0)

	summary, err := runner.RunOnce(context.Background(), []string{"AAPL", "GOOG", "MSFT"})
	require.NoError(t, err)
	require.Len(t, summary.Symbols, 3)

	goog := summary.Symbols[1]
	assert.True(t, goog.Failed())
	assert.Equal(t, "rate_limited", goog.FailureReason)
	assert.False(t, goog.Fetched)

	// Both siblings were still attempted and loaded.
	assert.Equal(t, []string{"AAPL", "GOOG", "MSFT"}, fetcher.calls)
	assert.False(t, summary.Symbols[0].Failed())
	assert.False(t, summary.Symbols[2].Failed())
	assert.Equal(t, []string{"GOOG"}, summary.FailedSymbols())
}

func TestRunOnce_MalformedEntriesCounted(t *testing.T) {
	p := payload("AAPL", "2025-10-01", "2025-10-02")
	bad := p.Series["2025-10-02"]
	bad.Close = "N/A"
	p.Series["2025-10-02"] = bad

	fetcher := &fakeFetcher{payloads: map[string]*stock.RawPayload{"AAPL": p}}
	runner := NewRunner(fetcher, &fakeArchiver{}, &fakeStore{}, 0)

	summary, err := runner.RunOnce(context.Background(), []string{"AAPL"})
	require.NoError(t, err)

	outcome := summary.Symbols[0]
	assert.Equal(t, 1, outcome.ValidCount)
	assert.Equal(t, 1, outcome.RejectedCount)
	assert.Equal(t, 1, outcome.Inserted)
	assert.False(t, outcome.Failed())
}

func TestRunOnce_ArchiveFailureFailsSymbol(t *testing.T) {
	fetcher := &fakeFetcher{payloads: map[string]*stock.RawPayload{
		"AAPL": payload("AAPL", "2025-10-01"),
	}}
	archive := &fakeArchiver{err: errors.New("disk full")}
	store := &fakeStore{}
	runner := NewRunner(fetcher, archive, store, 0)

	summary, err := runner.RunOnce(context.Background(), []string{"AAPL"})
	require.NoError(t, err)

	outcome := summary.Symbols[0]
	assert.True(t, outcome.Failed())
	assert.Contains(t, outcome.FailureReason, "archive")
	assert.Empty(t, store.rows)
}

func TestRunOnce_StoreFailureFailsSymbol(t *testing.T) {
	fetcher := &fakeFetcher{payloads: map[string]*stock.RawPayload{
		"AAPL": payload("AAPL", "2025-10-01"),
		"MSFT": payload("MSFT", "2025-10-01"),
	}}
	store := &fakeStore{err: fmt.Errorf("database is locked")}
	runner := NewRunner(fetcher, &fakeArchiver{}, store, 0)

	summary, err := runner.RunOnce(context.Background(), []string{"AAPL", "MSFT"})
	require.NoError(t, err)

	// Load failure is per-symbol; the run still covers every symbol.
	require.Len(t, summary.Symbols, 2)
	assert.Contains(t, summary.Symbols[0].FailureReason, "load")
	assert.Contains(t, summary.Symbols[1].FailureReason, "load")
}

func TestRunOnce_PacingBetweenCalls(t *testing.T) {
	fetcher := &fakeFetcher{
		payloads: map[string]*stock.RawPayload{"AAPL": payload("AAPL", "2025-10-01")},
		errs: map[string]error{
			"GOOG": &FetchError{Kind: KindNetworkError, Symbol: "GOOG"},
		},
	}
	runner := NewRunner(fetcher, &fakeArchiver{}, &fakeStore{}, 40*time.Millisecond)

	start := time.Now()
	// Failure of GOOG must still pace the following call.
	_, err := runner.RunOnce(context.Background(), []string{"GOOG", "AAPL", "AAPL"})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRunOnce_ContextCancelled(t *testing.T) {
	fetcher := &fakeFetcher{payloads: map[string]*stock.RawPayload{
		"AAPL": payload("AAPL", "2025-10-01"),
	}}
	runner := NewRunner(fetcher, &fakeArchiver{}, &fakeStore{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := runner.RunOnce(ctx, []string{"AAPL", "MSFT"})
	assert.ErrorIs(t, err, context.Canceled)
	// Partial results stay valid.
	assert.NotNil(t, summary)
}
