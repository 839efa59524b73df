package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/marketetl/stock-etl/internal/apperror"
	"github.com/marketetl/stock-etl/internal/stock"
)

const dateFormat = "2006-01-02"

// StockStore is the read side of the repository exposed over HTTP. The
// pipeline remains the only writer; this surface never mutates.
type StockStore interface {
	ListBySymbol(ctx context.Context, symbol string) ([]stock.StoredRow, error)
	ListByDateRange(ctx context.Context, from, to time.Time, symbol string) ([]stock.StoredRow, error)
	Stats(ctx context.Context) (*stock.TableStats, error)
	StatsBySymbol(ctx context.Context) ([]stock.SymbolStats, error)
}

type handler struct {
	store StockStore
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) getBySymbol(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	if symbol == "" {
		writeAppError(w, apperror.New(apperror.BadRequest, "symbol is required"))
		return
	}

	rows, err := h.store.ListBySymbol(r.Context(), symbol)
	if err != nil {
		writeAppError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		writeCSV(w, rows)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handler) getByDateRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	startStr := q.Get("startDate")
	if startStr == "" {
		writeAppError(w, apperror.New(apperror.BadRequest, "startDate is required"))
		return
	}
	start, err := time.Parse(dateFormat, startStr)
	if err != nil {
		writeAppError(w, apperror.New(apperror.BadRequest, "invalid startDate format, expected YYYY-MM-DD"))
		return
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	if v := q.Get("endDate"); v != "" {
		end, err = time.Parse(dateFormat, v)
		if err != nil {
			writeAppError(w, apperror.New(apperror.BadRequest, "invalid endDate format, expected YYYY-MM-DD"))
			return
		}
	}

	symbol := strings.ToUpper(q.Get("symbol"))

	rows, err := h.store.ListByDateRange(r.Context(), start, end, symbol)
	if err != nil {
		writeAppError(w, err)
		return
	}

	if q.Get("format") == "csv" {
		writeCSV(w, rows)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	bySymbol, err := h.store.StatsBySymbol(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"table":   stats,
		"symbols": bySymbol,
	})
}

func writeAppError(w http.ResponseWriter, err error) {
	if ae, ok := err.(*apperror.AppError); ok {
		writeError(w, ae.HTTPStatus(), ae.Message())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
