package market

import (
	"testing"
	"time"
)

func TestValidateOrdered(t *testing.T) {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Series{
		{Time: base},
		{Time: base.Add(15 * time.Minute)},
		{Time: base.Add(30 * time.Minute)},
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("expected ordered series to validate, got %v", err)
	}
}

func TestValidateRejectsDuplicates(t *testing.T) {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Series{
		{Time: base},
		{Time: base.Add(15 * time.Minute)},
		{Time: base.Add(15 * time.Minute)},
	}
	if err := s.Validate(); err == nil {
		t.Fatal("expected duplicate timestamp to fail validation")
	}
}

func TestValidateRejectsOutOfOrder(t *testing.T) {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Series{
		{Time: base.Add(15 * time.Minute)},
		{Time: base},
	}
	if err := s.Validate(); err == nil {
		t.Fatal("expected out-of-order series to fail validation")
	}
}

func TestSliceByTime(t *testing.T) {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(Series, 10)
	for i := range s {
		s[i] = Candle{Time: base.Add(time.Duration(i) * time.Hour)}
	}

	sub := s.SliceByTime(base.Add(2*time.Hour), base.Add(5*time.Hour))
	if len(sub) != 4 {
		t.Fatalf("expected 4 candles, got %d", len(sub))
	}
	if !sub[0].Time.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("unexpected first candle %v", sub[0].Time)
	}
	if !sub[len(sub)-1].Time.Equal(base.Add(5 * time.Hour)) {
		t.Fatalf("unexpected last candle %v", sub[len(sub)-1].Time)
	}
}

func TestBarsPerMonth(t *testing.T) {
	if got := AssetCrypto.BarsPerMonth(); got != 2880 {
		t.Fatalf("crypto bars per month = %d, want 2880", got)
	}
	if got := AssetStocks.BarsPerMonth(); got != 572 {
		t.Fatalf("stocks bars per month = %d, want 572", got)
	}
}
