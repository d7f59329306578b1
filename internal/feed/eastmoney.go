package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bondscan/internal/markethours"
	"bondscan/internal/model"
)

const defaultKlineURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get"

// EastmoneyClient fetches 1-minute convertible-bond bars from the public
// Eastmoney kline endpoint. The endpoint is unauthenticated; requests are
// routed through a circuit breaker so a dead upstream degrades the session
// instead of hammering it.
type EastmoneyClient struct {
	baseURL string
	httpc   *http.Client
	breaker *Breaker
}

// NewEastmoneyClient creates a client with default timeouts and breaker
// thresholds (trip after 5 consecutive failures, probe after 30s).
func NewEastmoneyClient() *EastmoneyClient {
	c := &EastmoneyClient{
		baseURL: defaultKlineURL,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		breaker: NewBreaker(5, 30*time.Second),
	}
	c.breaker.OnStateChange = func(from, to BreakerState) {
		log.Printf("[feed] quote source breaker %s -> %s", from, to)
	}
	return c
}

// BreakerState exposes the upstream-health state for metrics and alerts.
func (c *EastmoneyClient) BreakerState() BreakerState { return c.breaker.State() }

// secID maps a bond code to Eastmoney's market-prefixed security id.
// Shanghai convertibles start with 11, Shenzhen with 12.
func secID(symbol string) (string, error) {
	switch {
	case strings.HasPrefix(symbol, "11"):
		return "1." + symbol, nil
	case strings.HasPrefix(symbol, "12"):
		return "0." + symbol, nil
	default:
		return "", fmt.Errorf("feed: %q is not a convertible bond code", symbol)
	}
}

type klineResponse struct {
	RC   int    `json:"rc"`
	Msg  string `json:"msg"`
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// MinuteBars implements Source. Timestamps in [beg, end] inclusive; a zero
// end means "up to now".
func (c *EastmoneyClient) MinuteBars(ctx context.Context, symbol string, beg, end time.Time) ([]model.Bar, error) {
	id, err := secID(symbol)
	if err != nil {
		return nil, err
	}
	if end.IsZero() {
		end = time.Now()
	}

	q := url.Values{}
	q.Set("secid", id)
	q.Set("klt", "1") // 1-minute bars
	q.Set("fqt", "1")
	q.Set("beg", beg.In(markethours.CST).Format("20060102"))
	q.Set("end", end.In(markethours.CST).Format("20060102"))
	q.Set("fields1", "f1,f2,f3,f4,f5,f6")
	q.Set("fields2", "f51,f52,f53,f54,f55,f56")

	var bars []model.Bar
	err = c.breaker.Do(func() error {
		var ferr error
		bars, ferr = c.fetch(ctx, symbol, q)
		return ferr
	})
	if err != nil {
		return nil, err
	}

	// The endpoint ignores intraday beg/end precision, so trim here.
	out := bars[:0]
	for _, b := range bars {
		if b.TS.Before(beg) || b.TS.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (c *EastmoneyClient) fetch(ctx context.Context, symbol string, q url.Values) ([]model.Bar, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("feed: create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: fetch %s: unexpected status %d", symbol, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("feed: read response for %s: %w", symbol, err)
	}

	var kr klineResponse
	if err := json.Unmarshal(body, &kr); err != nil {
		return nil, fmt.Errorf("feed: decode response for %s: %w", symbol, err)
	}
	if kr.Data == nil {
		return nil, fmt.Errorf("feed: no data for %s (rc=%d msg=%q)", symbol, kr.RC, kr.Msg)
	}

	bars := make([]model.Bar, 0, len(kr.Data.Klines))
	for _, line := range kr.Data.Klines {
		bar, err := parseKline(symbol, line)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseKline decodes one "date,open,close,high,low,volume" row. The
// upstream labels minute bars by their close time (the first morning bar
// is 09:31); we shift to open-time labeling so the first bar is 09:30.
func parseKline(symbol, line string) (model.Bar, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 6 {
		return model.Bar{}, fmt.Errorf("feed: malformed kline for %s: %q", symbol, line)
	}

	ts, err := time.ParseInLocation("2006-01-02 15:04", parts[0], markethours.CST)
	if err != nil {
		return model.Bar{}, fmt.Errorf("feed: bad kline timestamp for %s: %w", symbol, err)
	}

	fields := make([]float64, 4)
	for i, raw := range parts[1:5] {
		fields[i], err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.Bar{}, fmt.Errorf("feed: bad kline price for %s: %w", symbol, err)
		}
	}
	vol, err := strconv.ParseInt(parts[5], 10, 64)
	if err != nil {
		return model.Bar{}, fmt.Errorf("feed: bad kline volume for %s: %w", symbol, err)
	}

	return model.Bar{
		Symbol: symbol,
		TS:     ts.Add(-time.Minute),
		Open:   fields[0],
		Close:  fields[1],
		High:   fields[2],
		Low:    fields[3],
		Volume: vol,
	}, nil
}
