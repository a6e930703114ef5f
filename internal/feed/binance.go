package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/edge-lab/internal/market"
)

const (
	defaultBaseURL = "https://api.binance.com"
	maxKlineLimit  = 1000

	// Cached files are accepted regardless of recency (delisted pairs stop
	// producing candles) but must carry enough history to be worth keeping.
	minCacheCandles = 2000
	minCacheSpan    = 365 * 24 * time.Hour
)

// Config parameterizes the fetcher.
type Config struct {
	BaseURL      string
	CacheDir     string
	HistoryStart time.Time
	MemoTTL      time.Duration
	HTTP         HTTPConfig
}

func (c *Config) normalize() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.HistoryStart.IsZero() {
		c.HistoryStart = time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if c.MemoTTL <= 0 {
		c.MemoTTL = 30 * time.Minute
	}
	if c.HTTP == (HTTPConfig{}) {
		c.HTTP = DefaultHTTPConfig()
	}
}

// Fetcher loads candle series with three layers: in-memory memo, JSON disk
// cache, then the exchange REST API.
type Fetcher struct {
	cfg    Config
	client *Client
	memo   *cache.Cache
	logger *logrus.Logger
}

// NewFetcher creates a fetcher and its cache directory.
func NewFetcher(cfg Config, logger *logrus.Logger) (*Fetcher, error) {
	cfg.normalize()
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}
	return &Fetcher{
		cfg:    cfg,
		client: NewClient(cfg.HTTP, logger),
		memo:   cache.New(cfg.MemoTTL, 2*cfg.MemoTTL),
		logger: logger,
	}, nil
}

// Close releases the underlying HTTP client.
func (f *Fetcher) Close() error {
	return f.client.Close()
}

// ToSymbol normalizes a pair label to the exchange symbol form:
// "sol/usdt" becomes "SOLUSDT".
func ToSymbol(pair string) string {
	s := strings.ToUpper(pair)
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

// Candles returns the full history for a symbol and interval, fetching and
// caching it on first use.
func (f *Fetcher) Candles(ctx context.Context, symbol, interval string) (market.Series, error) {
	key := symbol + ":" + interval
	if hit, ok := f.memo.Get(key); ok {
		return hit.(market.Series), nil
	}

	if series, ok := f.loadDiskCache(symbol, interval); ok {
		f.memo.Set(key, series, cache.DefaultExpiration)
		return series, nil
	}

	series, err := f.fetchAll(ctx, symbol, interval)
	if err != nil {
		return nil, err
	}
	f.saveDiskCache(symbol, interval, series)
	f.memo.Set(key, series, cache.DefaultExpiration)
	return series, nil
}

// cachedCandle is the disk cache row: millisecond timestamps, plain floats.
type cachedCandle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

func (f *Fetcher) cachePath(symbol, interval string) string {
	return filepath.Join(f.cfg.CacheDir, fmt.Sprintf("%s_%s.json", symbol, interval))
}

func (f *Fetcher) loadDiskCache(symbol, interval string) (market.Series, bool) {
	if f.cfg.CacheDir == "" {
		return nil, false
	}
	raw, err := os.ReadFile(f.cachePath(symbol, interval))
	if err != nil {
		return nil, false
	}
	var rows []cachedCandle
	if err := json.Unmarshal(raw, &rows); err != nil {
		f.logger.WithError(err).WithField("symbol", symbol).Warn("Corrupt candle cache, refetching")
		return nil, false
	}
	series := make(market.Series, len(rows))
	for i, r := range rows {
		series[i] = market.Candle{
			Time:   time.UnixMilli(r.Time).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	if !cacheValid(series) {
		return nil, false
	}
	return series, true
}

func (f *Fetcher) saveDiskCache(symbol, interval string, series market.Series) {
	if f.cfg.CacheDir == "" {
		return
	}
	rows := make([]cachedCandle, len(series))
	for i, c := range series {
		rows[i] = cachedCandle{
			Time:   c.Time.UnixMilli(),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		}
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		f.logger.WithError(err).Warn("Failed to encode candle cache")
		return
	}
	if err := os.WriteFile(f.cachePath(symbol, interval), raw, 0o644); err != nil {
		f.logger.WithError(err).Warn("Failed to write candle cache")
	}
}

// cacheValid accepts cached history with enough depth and span. Start date
// is not checked (some pairs list late) and neither is recency (some
// delist).
func cacheValid(series market.Series) bool {
	if len(series) < minCacheCandles {
		return false
	}
	return series[len(series)-1].Time.Sub(series[0].Time) >= minCacheSpan
}

// fetchAll pages through the klines endpoint from the configured history
// start to now.
func (f *Fetcher) fetchAll(ctx context.Context, symbol, interval string) (market.Series, error) {
	f.logger.WithFields(logrus.Fields{
		"symbol":   symbol,
		"interval": interval,
		"from":     f.cfg.HistoryStart.Format("2006-01-02"),
	}).Info("Fetching candle history")

	var all market.Series
	from := f.cfg.HistoryStart.UnixMilli()
	now := time.Now().UnixMilli()

	for from < now {
		batch, err := f.fetchPage(ctx, symbol, interval, from)
		if err != nil {
			return nil, fmt.Errorf("fetching %s %s: %w", symbol, interval, err)
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		from = batch[len(batch)-1].Time.UnixMilli() + 1
		if len(batch) < maxKlineLimit {
			break
		}
	}

	all = dedupe(all)
	if err := all.Validate(); err != nil {
		return nil, fmt.Errorf("fetched %s %s: %w", symbol, interval, err)
	}

	f.logger.WithFields(logrus.Fields{
		"symbol":  symbol,
		"candles": len(all),
	}).Info("Candle history fetched")
	return all, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, symbol, interval string, startTime int64) (market.Series, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("startTime", fmt.Sprintf("%d", startTime))
	q.Set("limit", fmt.Sprintf("%d", maxKlineLimit))

	resp, err := f.client.Get(ctx, f.cfg.BaseURL+"/api/v3/klines?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("klines status %d: %s", resp.StatusCode, string(body))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseKlines(raw)
}

// parseKlines decodes the exchange kline rows. Prices arrive as strings
// and go through decimal to avoid locale or float-precision surprises
// before the final float conversion.
func parseKlines(raw []byte) (market.Series, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decoding klines: %w", err)
	}

	series := make(market.Series, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline row has %d fields, want at least 6", len(row))
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return nil, fmt.Errorf("kline open time: %w", err)
		}

		vals := make([]float64, 5)
		for i := 1; i <= 5; i++ {
			var s string
			if err := json.Unmarshal(row[i], &s); err != nil {
				return nil, fmt.Errorf("kline field %d: %w", i, err)
			}
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("kline field %d %q: %w", i, s, err)
			}
			vals[i-1] = d.InexactFloat64()
		}

		series = append(series, market.Candle{
			Time:   time.UnixMilli(openTime).UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return series, nil
}

// dedupe drops duplicate timestamps, keeping first occurrence, and sorts.
func dedupe(series market.Series) market.Series {
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Time.Before(series[j].Time)
	})
	out := series[:0]
	var last time.Time
	for i, c := range series {
		if i > 0 && !c.Time.After(last) {
			continue
		}
		out = append(out, c)
		last = c.Time
	}
	return out
}
