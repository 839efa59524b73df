package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/marketetl/stock-etl/internal/stock"
)

type APIResponse[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func writeJSON[T any](w http.ResponseWriter, status int, data T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse[T]{
		Message: "ok",
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse[string]{
		Message: message,
		Data:    "",
	})
}

func writeCSV(w http.ResponseWriter, rows []stock.StoredRow) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=stock_daily_data.csv")
	w.WriteHeader(http.StatusOK)

	_, _ = fmt.Fprintln(w, "Symbol,Date,Open,High,Low,Close,Volume,DailyChangePct,ExtractedAt")
	for _, row := range rows {
		pct := ""
		if row.DailyChangePct != nil {
			pct = fmt.Sprintf("%.2f", *row.DailyChangePct)
		}
		_, _ = fmt.Fprintf(w, "%s,%s,%.4f,%.4f,%.4f,%.4f,%d,%s,%s\n",
			row.Symbol,
			row.Date.Format(time.DateOnly),
			row.OpenPrice,
			row.HighPrice,
			row.LowPrice,
			row.ClosePrice,
			row.Volume,
			pct,
			row.ExtractedAt.Format(time.DateTime),
		)
	}
}
