package market

import (
	"testing"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestQuoteMid(t *testing.T) {
	q := Quote{Bid: 100, Ask: 102}
	if got := q.Mid(); got != 101 {
		t.Fatalf("Mid = %v, want 101", got)
	}
}

func TestKlineBullishAnatomy(t *testing.T) {
	k := Kline{Open: 100, High: 110, Low: 95, Close: 106}

	if !k.IsBullish() || k.IsBearish() {
		t.Fatal("candle closing above its open must be bullish")
	}
	if got := k.Body(); got != 6 {
		t.Fatalf("Body = %v, want 6", got)
	}
	if got := k.Range(); got != 15 {
		t.Fatalf("Range = %v, want 15", got)
	}
	if got := k.UpperWick(); got != 4 {
		t.Fatalf("UpperWick = %v, want 4", got)
	}
	if got := k.LowerWick(); got != 5 {
		t.Fatalf("LowerWick = %v, want 5", got)
	}
}

func TestKlineBearishAnatomy(t *testing.T) {
	k := Kline{Open: 106, High: 110, Low: 95, Close: 100}

	if !k.IsBearish() || k.IsBullish() {
		t.Fatal("candle closing below its open must be bearish")
	}
	if got := k.Body(); got != 6 {
		t.Fatalf("Body = %v, want 6", got)
	}
	if got := k.UpperWick(); got != 4 {
		t.Fatalf("UpperWick = %v, want 4", got)
	}
	if got := k.LowerWick(); got != 5 {
		t.Fatalf("LowerWick = %v, want 5", got)
	}
}

func TestKlineDojiHasNoBody(t *testing.T) {
	k := Kline{Open: 100, High: 101, Low: 99, Close: 100}
	if k.IsBullish() || k.IsBearish() {
		t.Fatal("flat candle is neither bullish nor bearish")
	}
	if got := k.Body(); got != 0 {
		t.Fatalf("Body = %v, want 0", got)
	}
}
