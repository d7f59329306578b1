package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"bondscan/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// ReaderConfig configures the Redis reader.
type ReaderConfig struct {
	Addr     string
	Password string
	DB       int
}

// Reader serves recent alerts and latest snapshots to API consumers.
type Reader struct {
	client *goredis.Client
}

// NewReader creates a Reader and pings the server.
func NewReader(cfg ReaderConfig) (*Reader, error) {
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

	log.Printf("[redis-reader] connected to %s", cfg.Addr)
	return &Reader{client: client}, nil
}

// RecentAlerts returns up to count most recent alerts for a symbol,
// newest first.
func (r *Reader) RecentAlerts(ctx context.Context, symbol string, count int64) ([]model.Alert, error) {
	msgs, err := r.client.XRevRangeN(ctx, "alerts:"+symbol, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("redis xrevrange alerts:%s: %w", symbol, err)
	}

	alerts := make([]model.Alert, 0, len(msgs))
	for _, m := range msgs {
		data, ok := m.Values["data"].(string)
		if !ok {
			continue
		}
		var a model.Alert
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			log.Printf("[redis-reader] skip malformed alert in alerts:%s: %v", symbol, err)
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// LatestAlert returns the most recent alert for a symbol, nil when none is
// cached (expired TTL counts as none).
func (r *Reader) LatestAlert(ctx context.Context, symbol string) (*model.Alert, error) {
	data, err := r.client.Get(ctx, "alert:latest:"+symbol).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get alert:latest:%s: %w", symbol, err)
	}

	var a model.Alert
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, fmt.Errorf("unmarshal latest alert for %s: %w", symbol, err)
	}
	return &a, nil
}

// LatestSnapshot returns the raw latest indicator snapshot for a symbol,
// nil when none is cached.
func (r *Reader) LatestSnapshot(ctx context.Context, symbol string) ([]byte, error) {
	data, err := r.client.Get(ctx, "snapshot:latest:"+symbol).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get snapshot:latest:%s: %w", symbol, err)
	}
	return []byte(data), nil
}

// Close closes the Redis client.
func (r *Reader) Close() error {
	return r.client.Close()
}
