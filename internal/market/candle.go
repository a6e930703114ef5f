// Package market defines the candle data model consumed by the simulation engine.
package market

import (
	"fmt"
	"time"
)

// Candle represents one OHLCV bar. Candles are immutable once loaded.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Range returns the high-low span of the bar.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Series is an ordered candle sequence for a single instrument and timeframe.
type Series []Candle

// Validate checks that the series is strictly ascending in time with no
// duplicate timestamps. A violation is a fatal input error for the caller,
// not something the engine tolerates.
func (s Series) Validate() error {
	for i := 1; i < len(s); i++ {
		if !s[i].Time.After(s[i-1].Time) {
			return fmt.Errorf("candle series not time-ordered at index %d: %s >= %s",
				i, s[i-1].Time.Format(time.RFC3339), s[i].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// SliceByTime returns the contiguous sub-series with timestamps inside
// [start, end]. The two-pointer scan keeps the operation allocation-free on
// the candle data itself.
func (s Series) SliceByTime(start, end time.Time) Series {
	lo := 0
	for lo < len(s) && s[lo].Time.Before(start) {
		lo++
	}
	hi := lo
	for hi < len(s) && !s[hi].Time.After(end) {
		hi++
	}
	return s[lo:hi]
}

// AssetClass selects a cost profile and session calendar.
type AssetClass string

const (
	AssetCrypto AssetClass = "crypto"
	AssetForex  AssetClass = "forex"
	AssetStocks AssetClass = "stocks"
)

// Valid reports whether the asset class is one of the known profiles.
func (a AssetClass) Valid() bool {
	switch a {
	case AssetCrypto, AssetForex, AssetStocks:
		return true
	}
	return false
}

// BarsPerMonth returns the number of 15m bars in a calendar month for the
// asset's trading session: 24/7 markets trade 30*24*4 bars, US stock
// sessions roughly 22 trading days of 26 bars.
func (a AssetClass) BarsPerMonth() int {
	if a == AssetStocks {
		return 22 * 26
	}
	return 30 * 24 * 4
}
