package rawstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketetl/stock-etl/internal/stock"
)

const sampleBody = `{
	"Time Series (Daily)": {
		"2025-10-01": {"1. open": "150.0", "2. high": "152.0", "3. low": "149.0", "4. close": "151.5", "5. volume": "1000000"}
	}
}`

func TestArchiveAndRetrieve(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	runDate := time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC)
	payload := &stock.RawPayload{Symbol: "AAPL", Body: []byte(sampleBody)}

	path, err := store.Archive(payload, runDate)
	require.NoError(t, err)
	assert.Equal(t, "AAPL_2025-10-02.json", filepath.Base(path))

	// Artifact holds the verbatim body.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleBody, string(data))

	got, err := store.Retrieve("AAPL", runDate)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
	require.Len(t, got.Series, 1)
	assert.Equal(t, "151.5", got.Series["2025-10-01"].Close)
}

func TestArchive_OverwritesSameDay(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	runDate := time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC)

	_, err = store.Archive(&stock.RawPayload{Symbol: "AAPL", Body: []byte(`{"v":1}`)}, runDate)
	require.NoError(t, err)
	path, err := store.Archive(&stock.RawPayload{Symbol: "AAPL", Body: []byte(`{"v":2}`)}, runDate)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))

	// Same day re-run replaces; it does not accumulate artifacts.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRetrieve_Missing(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Retrieve("AAPL", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}
