// Package rawstore keeps the raw provider responses on disk for lineage,
// one JSON artifact per (symbol, run date). Artifacts are never mutated;
// re-running the same day overwrites the artifact wholesale.
package rawstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marketetl/stock-etl/internal/stock"
)

const dateFormat = "2006-01-02"

type Store struct {
	dir string
}

// New creates the archive directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the deterministic artifact path for (symbol, runDate).
func (s *Store) Path(symbol string, runDate time.Time) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", symbol, runDate.Format(dateFormat)))
}

// Archive writes the payload's verbatim body to its artifact path. The write
// goes through a temp file and rename so a partially written artifact is
// never visible.
func (s *Store) Archive(payload *stock.RawPayload, runDate time.Time) (string, error) {
	final := s.Path(payload.Symbol, runDate)

	tmp, err := os.CreateTemp(s.dir, filepath.Base(final)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(payload.Body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}

	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("publish artifact: %w", err)
	}
	return final, nil
}

// Retrieve re-decodes an archived artifact for reprocessing without a fresh
// fetch. RetrievedAt is taken from the artifact's modification time.
func (s *Store) Retrieve(symbol string, runDate time.Time) (*stock.RawPayload, error) {
	path := s.Path(symbol, runDate)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	return stock.ParsePayload(symbol, info.ModTime().UTC(), body)
}
