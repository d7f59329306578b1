// cmd/backtest replays historical minute bars through the indicator and
// strategy pipeline and prints the trade log with performance metrics.
//
// Usage:
//
//	go run ./cmd/backtest --symbol=113672 --from=2025-06-02 --to=2025-06-06
//	go run ./cmd/backtest --symbol=113672 --fetch --strategy=strategies/macd.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"bondscan/internal/backtest"
	"bondscan/internal/feed"
	"bondscan/internal/markethours"
	sqlitestore "bondscan/internal/store/sqlite"
	"bondscan/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	symbol := flag.String("symbol", "", "Bond code to backtest (required)")
	dbPath := flag.String("db", "data/bondscan.db", "Path to SQLite database")
	strategyFile := flag.String("strategy", "", "Strategy YAML file (default: built-in MACD+volume)")
	fromStr := flag.String("from", "", "Start date YYYY-MM-DD (default: all stored bars)")
	toStr := flag.String("to", "", "End date YYYY-MM-DD inclusive (default: all stored bars)")
	fetch := flag.Bool("fetch", false, "Fetch bars from the quote source and store them before running")
	capital := flag.Float64("capital", 100_000, "Initial capital for the equity curve")
	flag.Parse()

	if *symbol == "" {
		log.Fatal("[backtest] --symbol is required")
	}

	from, to, err := parseWindow(*fromStr, *toStr)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	cfg := strategy.Default()
	if *strategyFile != "" {
		cfg, err = strategy.LoadFile(*strategyFile)
		if err != nil {
			log.Fatalf("[backtest] strategy load failed: %v", err)
		}
		log.Printf("[backtest] loaded strategy %q from %s", cfg.Name, *strategyFile)
	}

	if *fetch {
		if err := fetchAndStore(*symbol, *dbPath, from, to); err != nil {
			log.Fatalf("[backtest] fetch failed: %v", err)
		}
	}

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer reader.Close()

	bars, err := reader.ReadBars(*symbol, from, to)
	if err != nil {
		log.Fatalf("[backtest] read bars failed: %v", err)
	}
	log.Printf("[backtest] loaded %d bars for %s", len(bars), *symbol)

	result, err := backtest.Run(*symbol, cfg, bars, backtest.Options{
		InitialCapital: *capital,
	})
	if err != nil {
		log.Fatalf("[backtest] run failed: %v", err)
	}

	fmt.Println(result.Report())

	if err := persist(*dbPath, result, cfg); err != nil {
		log.Printf("[backtest] WARNING: result not persisted: %v", err)
	} else {
		log.Printf("[backtest] run %s saved (%d trades)", result.RunID, len(result.Trades))
	}
}

// parseWindow turns YYYY-MM-DD flags into a CST time window. The end date
// is inclusive, so it extends to the following midnight.
func parseWindow(fromStr, toStr string) (from, to time.Time, err error) {
	if fromStr != "" {
		from, err = time.ParseInLocation("2006-01-02", fromStr, markethours.CST)
		if err != nil {
			return from, to, fmt.Errorf("invalid --from %q: %w", fromStr, err)
		}
	}
	if toStr != "" {
		to, err = time.ParseInLocation("2006-01-02", toStr, markethours.CST)
		if err != nil {
			return from, to, fmt.Errorf("invalid --to %q: %w", toStr, err)
		}
		to = to.AddDate(0, 0, 1)
	}
	return from, to, nil
}

// fetchAndStore pulls minute bars from the quote source and writes them to
// SQLite so later runs can replay offline.
func fetchAndStore(symbol, dbPath string, from, to time.Time) error {
	client := feed.NewEastmoneyClient()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	bars, err := client.MinuteBars(ctx, symbol, from, to)
	if err != nil {
		return err
	}
	log.Printf("[backtest] fetched %d bars from quote source", len(bars))

	os.MkdirAll("data", 0o755)
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: dbPath})
	if err != nil {
		return err
	}
	defer writer.Close()
	return writer.SaveBars(bars)
}

func persist(dbPath string, result *backtest.Result, cfg strategy.Config) error {
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: dbPath})
	if err != nil {
		return err
	}
	defer writer.Close()

	if err := writer.SaveRun(result.RunID, result.Symbol, cfg.Name, result); err != nil {
		return err
	}
	for _, t := range result.Trades {
		if err := writer.SaveTrade(t, result.RunID); err != nil {
			return err
		}
	}
	return nil
}
