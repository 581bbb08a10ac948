package market

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// MockClient provides simulated market data for development/testing
type MockClient struct {
	prices     map[string]float64
	lastUpdate time.Time
	mu         sync.RWMutex // Protects prices map and lastUpdate
}

// NewMockClient creates a new mock client
func NewMockClient() *MockClient {
	mc := &MockClient{
		lastUpdate: time.Now(),
	}

	// Initialize with realistic base prices
	mc.prices = map[string]float64{
		"BTCUSDT": 104500.00,
		"ETHUSDT": 3900.00,
		"BNBUSDT": 710.00,
		"SOLUSDT": 220.00,
		"XRPUSDT": 2.35,
		"ADAUSDT": 1.05,
	}

	return mc
}

// updatePrices adds small random variations to simulate market movement
func (mc *MockClient) updatePrices() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if time.Since(mc.lastUpdate) < time.Second {
		return
	}

	for symbol, price := range mc.prices {
		// Random walk: -0.5% to +0.5% change
		change := (rand.Float64() - 0.5) * 0.01
		mc.prices[symbol] = price * (1 + change)
	}
	mc.lastUpdate = time.Now()
}

// GetQuote returns a simulated bid/ask around the current mock price
func (mc *MockClient) GetQuote(symbol string) (*Quote, error) {
	mc.updatePrices()

	mc.mu.RLock()
	defer mc.mu.RUnlock()

	price, ok := mc.prices[symbol]
	if !ok {
		price = 100.0
	}

	spread := price * 0.0001
	return &Quote{
		Symbol: symbol,
		Bid:    price - spread/2,
		Ask:    price + spread/2,
	}, nil
}

// GetBars returns a simulated random-walk candle series, oldest first
func (mc *MockClient) GetBars(symbol, timeframe string, limit int) ([]Kline, error) {
	mc.updatePrices()

	mc.mu.RLock()
	price, ok := mc.prices[symbol]
	mc.mu.RUnlock()
	if !ok {
		price = 100.0
	}

	interval := timeframeDuration(timeframe)
	now := time.Now().Truncate(interval)
	bars := make([]Kline, limit)

	// Walk backward from the current price so the last bar closes near it
	closePrice := price
	for i := limit - 1; i >= 0; i-- {
		change := (rand.Float64() - 0.5) * 0.01
		openPrice := closePrice / (1 + change)
		high := math.Max(openPrice, closePrice) * (1 + rand.Float64()*0.002)
		low := math.Min(openPrice, closePrice) * (1 - rand.Float64()*0.002)

		openTime := now.Add(-time.Duration(limit-i) * interval)
		bars[i] = Kline{
			OpenTime:  openTime.UnixMilli(),
			Open:      openPrice,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    1000 + rand.Float64()*5000,
			CloseTime: openTime.Add(interval).UnixMilli() - 1,
		}
		closePrice = openPrice
	}

	return bars, nil
}

// SetPrice pins the mock price for a symbol
func (mc *MockClient) SetPrice(symbol string, price float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.prices[symbol] = price
}

func timeframeDuration(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Minute
	}
}
