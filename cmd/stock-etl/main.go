package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marketetl/stock-etl/internal/alphavantage"
	"github.com/marketetl/stock-etl/internal/config"
	"github.com/marketetl/stock-etl/internal/pipeline"
	"github.com/marketetl/stock-etl/internal/platform/sqlite"
	"github.com/marketetl/stock-etl/internal/rawstore"
	stockrepo "github.com/marketetl/stock-etl/internal/repository/stock"
	"github.com/marketetl/stock-etl/internal/server"
	"github.com/marketetl/stock-etl/internal/stock"
)

const dateFormat = "2006-01-02"

func main() {
	cfg := config.Load()

	root := &cobra.Command{
		Use:           "stock-etl",
		Short:         "Daily stock price ETL pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd(cfg), serveCmd(cfg), queryCmd(cfg), statsCmd(cfg))

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// runCmd executes one pipeline pass. It is designed to be driven by cron or
// a systemd timer; scheduling lives outside the process.
func runCmd(cfg config.Config) *cobra.Command {
	var symbolsFlag string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one fetch→archive→validate→load pass over the symbol universe",
		RunE: func(c *cobra.Command, _ []string) error {
			if cfg.APIKey == "" {
				return fmt.Errorf("ALPHAVANTAGE_API_KEY is not set")
			}
			symbols := cfg.Symbols
			if symbolsFlag != "" {
				symbols = splitSymbols(symbolsFlag)
			}

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Losing the store entirely is the one fatal condition.
			db, err := sqlite.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = db.Close() }()

			raw, err := rawstore.New(cfg.RawDataDir)
			if err != nil {
				return err
			}

			fetcher := alphavantage.New(cfg.APIKey,
				alphavantage.WithBaseURL(cfg.BaseURL),
				alphavantage.WithOutputSize(cfg.OutputSize),
			)
			runner := pipeline.NewRunner(fetcher, raw, stockrepo.NewRepository(db.DB), cfg.RequestInterval)

			summary, err := runner.RunOnce(ctx, symbols)
			if summary != nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				_ = enc.Encode(summary)
			}
			// Per-symbol failures are reported in the summary, not via the
			// exit status; only interruption surfaces here.
			return err
		},
	}

	cmd.Flags().StringVar(&symbolsFlag, "symbols", "", "comma-separated symbol list overriding the configured universe")
	return cmd
}

// serveCmd exposes the query API and, optionally, a periodic pipeline loop.
func serveCmd(cfg config.Config) *cobra.Command {
	var every time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only query API",
		RunE: func(c *cobra.Command, _ []string) error {
			if every > 0 && cfg.APIKey == "" {
				return fmt.Errorf("ALPHAVANTAGE_API_KEY is not set")
			}

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := sqlite.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = db.Close() }()
			repo := stockrepo.NewRepository(db.DB)

			srv := server.New(ctx, cfg.Port, repo)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := srv.Start(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			if every > 0 {
				raw, err := rawstore.New(cfg.RawDataDir)
				if err != nil {
					return err
				}
				fetcher := alphavantage.New(cfg.APIKey,
					alphavantage.WithBaseURL(cfg.BaseURL),
					alphavantage.WithOutputSize(cfg.OutputSize),
				)
				runner := pipeline.NewRunner(fetcher, raw, repo, cfg.RequestInterval)

				g.Go(func() error {
					ticker := time.NewTicker(every)
					defer ticker.Stop()
					for {
						select {
						case <-ctx.Done():
							return nil
						case <-ticker.C:
							if _, err := runner.RunOnce(ctx, cfg.Symbols); err != nil && !errors.Is(err, context.Canceled) {
								slog.Error("scheduled run failed", "error", err)
							}
						}
					}
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().DurationVar(&every, "schedule", 0, "run the pipeline every interval (e.g. 24h); 0 disables")
	return cmd
}

// queryCmd prints stored rows as CSV, mirroring the HTTP query surface.
func queryCmd(cfg config.Config) *cobra.Command {
	var symbol, startStr, endStr string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query stored rows by symbol and/or date range",
		RunE: func(c *cobra.Command, _ []string) error {
			if symbol == "" && startStr == "" {
				return fmt.Errorf("at least one of --symbol or --start is required")
			}

			db, err := sqlite.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = db.Close() }()
			repo := stockrepo.NewRepository(db.DB)

			ctx := c.Context()
			symbol = strings.ToUpper(symbol)

			rows, err := listRows(ctx, repo, symbol, startStr, endStr)
			if err != nil {
				return err
			}

			fmt.Println("symbol,date,open,high,low,close,volume,daily_change_pct,extracted_at")
			for _, r := range rows {
				pct := ""
				if r.DailyChangePct != nil {
					pct = fmt.Sprintf("%.2f", *r.DailyChangePct)
				}
				fmt.Printf("%s,%s,%.4f,%.4f,%.4f,%.4f,%d,%s,%s\n",
					r.Symbol, r.Date.Format(dateFormat),
					r.OpenPrice, r.HighPrice, r.LowPrice, r.ClosePrice,
					r.Volume, pct, r.ExtractedAt.Format(time.DateTime))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "ticker symbol filter")
	cmd.Flags().StringVar(&startStr, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", "", "end date (YYYY-MM-DD), defaults to today")
	return cmd
}

func listRows(ctx context.Context, repo *stockrepo.Repository, symbol, startStr, endStr string) ([]stock.StoredRow, error) {
	if startStr == "" {
		return repo.ListBySymbol(ctx, symbol)
	}

	start, err := time.Parse(dateFormat, startStr)
	if err != nil {
		return nil, fmt.Errorf("invalid --start: %w", err)
	}
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if endStr != "" {
		end, err = time.Parse(dateFormat, endStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --end: %w", err)
		}
	}
	return repo.ListByDateRange(ctx, start, end, symbol)
}

// statsCmd prints table statistics, overall and per symbol.
func statsCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print database statistics",
		RunE: func(c *cobra.Command, _ []string) error {
			db, err := sqlite.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = db.Close() }()
			repo := stockrepo.NewRepository(db.DB)

			ctx := c.Context()
			stats, err := repo.Stats(ctx)
			if err != nil {
				return err
			}
			bySymbol, err := repo.StatsBySymbol(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("rows: %d  symbols: %d", stats.RowCount, stats.DistinctSymbols)
			if stats.RowCount > 0 {
				fmt.Printf("  dates: %s .. %s",
					stats.MinDate.Format(dateFormat), stats.MaxDate.Format(dateFormat))
			}
			fmt.Println()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SYMBOL\tRECORDS\tFIRST\tLAST")
			for _, s := range bySymbol {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
					s.Symbol, s.RecordCount,
					s.MinDate.Format(dateFormat), s.MaxDate.Format(dateFormat))
			}
			return w.Flush()
		},
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
