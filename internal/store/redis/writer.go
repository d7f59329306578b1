// Package redis distributes live scanner output: alerts go to a capped
// stream plus pub/sub, and the newest per-symbol snapshot is kept under a
// TTL key for dashboards that only want current state.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"bondscan/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: a full trading day of minute-level alerts is far
	// below this; the cap only bounds pathological alert storms.
	alertStreamMaxLen = 10000
	defaultLatestTTL  = 30 * time.Minute
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer publishes alerts and per-symbol snapshots.
type Writer struct {
	client *goredis.Client

	// OnWrite, when set, is called after each alert pipeline with its
	// duration.
	OnWrite func(d time.Duration)
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client}, nil
}

// Run reads alerts from alertCh and writes them to Redis.
// Blocks until ctx is cancelled or alertCh is closed.
func (w *Writer) Run(ctx context.Context, alertCh <-chan model.Alert) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert, ok := <-alertCh:
			if !ok {
				return
			}
			w.WriteAlert(ctx, alert)
		}
	}
}

// WriteAlert performs the pipelined XADD + SET + PUBLISH for one alert.
func (w *Writer) WriteAlert(ctx context.Context, alert model.Alert) {
	jsonData := string(alert.JSON())
	streamKey := "alerts:" + alert.Symbol
	latestKey := "alert:latest:" + alert.Symbol
	pubsubCh := "pub:alerts"

	pipe := w.client.Pipeline()

	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: alertStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)
	pipe.Publish(ctx, pubsubCh, jsonData)

	start := time.Now()
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] alert pipeline error for %s: %v", alert.Symbol, err)
	}
	if w.OnWrite != nil {
		w.OnWrite(time.Since(start))
	}
}

// WriteSnapshot keeps the newest indicator snapshot per symbol under a TTL
// key so dashboards can poll current state without replaying the stream.
func (w *Writer) WriteSnapshot(ctx context.Context, symbol string, data []byte) {
	key := "snapshot:latest:" + symbol
	if err := w.client.Set(ctx, key, string(data), defaultLatestTTL).Err(); err != nil {
		log.Printf("[redis] snapshot set error for %s: %v", symbol, err)
	}
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
