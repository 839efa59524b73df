package stock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/marketetl/stock-etl/internal/stock"
)

const (
	dateFormat      = "2006-01-02"
	timestampFormat = "2006-01-02 15:04:05"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertIgnore persists one enriched record. A row for the same
// (symbol, date) already being present is not an error: the insert is a
// no-op and the method reports inserted=false so callers can count skips.
func (r *Repository) InsertIgnore(ctx context.Context, rec domain.EnrichedRecord) (bool, error) {
	const query = `INSERT OR IGNORE INTO stock_daily_data
		(symbol, date, open_price, high_price, low_price, close_price,
		 volume, daily_change_percentage, extraction_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var changePct sql.NullFloat64
	if rec.DailyChangePct != nil {
		changePct = sql.NullFloat64{Float64: *rec.DailyChangePct, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query,
		rec.Symbol, rec.Date.Format(dateFormat),
		rec.Open, rec.High, rec.Low, rec.Close,
		rec.Volume, changePct,
		rec.ExtractedAt.UTC().Format(timestampFormat),
	)
	if err != nil {
		return false, fmt.Errorf("insert record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListBySymbol returns every stored row for a symbol, oldest date first.
func (r *Repository) ListBySymbol(ctx context.Context, symbol string) ([]domain.StoredRow, error) {
	const query = selectColumns + ` WHERE symbol = ? ORDER BY date ASC`

	rows, err := r.db.QueryContext(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("list by symbol: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRows(rows)
}

// ListByDateRange returns rows with from <= date <= to, oldest first.
// Symbol is an optional filter; empty string means all symbols. Reversed
// bounds simply match nothing.
func (r *Repository) ListByDateRange(ctx context.Context, from, to time.Time, symbol string) ([]domain.StoredRow, error) {
	query := selectColumns + ` WHERE date >= ? AND date <= ?`
	args := []any{from.Format(dateFormat), to.Format(dateFormat)}

	if symbol != "" {
		query += " AND symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY date ASC, symbol ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list by date range: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRows(rows)
}

// Stats reports aggregate statistics over the whole table.
func (r *Repository) Stats(ctx context.Context) (*domain.TableStats, error) {
	const query = `SELECT COUNT(*), COUNT(DISTINCT symbol),
		COALESCE(MIN(date), ''), COALESCE(MAX(date), '')
		FROM stock_daily_data`

	var stats domain.TableStats
	var minStr, maxStr string

	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.RowCount, &stats.DistinctSymbols, &minStr, &maxStr,
	)
	if err != nil {
		return nil, fmt.Errorf("table stats: %w", err)
	}

	// Min/max stay zero times for an empty table.
	stats.MinDate, _ = time.Parse(dateFormat, minStr)
	stats.MaxDate, _ = time.Parse(dateFormat, maxStr)
	return &stats, nil
}

// StatsBySymbol reports per-symbol row counts and date coverage.
func (r *Repository) StatsBySymbol(ctx context.Context) ([]domain.SymbolStats, error) {
	const query = `SELECT symbol, COUNT(*), MIN(date), MAX(date)
		FROM stock_daily_data
		GROUP BY symbol
		ORDER BY symbol ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("symbol stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.SymbolStats
	for rows.Next() {
		var s domain.SymbolStats
		var minStr, maxStr string
		if err := rows.Scan(&s.Symbol, &s.RecordCount, &minStr, &maxStr); err != nil {
			return nil, fmt.Errorf("scan symbol stats: %w", err)
		}
		s.MinDate, _ = time.Parse(dateFormat, minStr)
		s.MaxDate, _ = time.Parse(dateFormat, maxStr)
		out = append(out, s)
	}

	return out, rows.Err()
}

const selectColumns = `SELECT id, symbol, date, open_price, high_price,
	low_price, close_price, volume, daily_change_percentage,
	extraction_timestamp
	FROM stock_daily_data`

func scanRows(rows *sql.Rows) ([]domain.StoredRow, error) {
	var out []domain.StoredRow
	for rows.Next() {
		var row domain.StoredRow
		var dateStr, extractedStr string
		var changePct sql.NullFloat64

		if err := rows.Scan(
			&row.ID, &row.Symbol, &dateStr,
			&row.OpenPrice, &row.HighPrice, &row.LowPrice, &row.ClosePrice,
			&row.Volume, &changePct, &extractedStr,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if changePct.Valid {
			v := changePct.Float64
			row.DailyChangePct = &v
		}
		row.Date, _ = time.Parse(dateFormat, dateStr)
		row.ExtractedAt, _ = time.Parse(timestampFormat, extractedStr)
		out = append(out, row)
	}

	return out, rows.Err()
}
