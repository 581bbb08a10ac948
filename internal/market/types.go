package market

// Kline represents a single candlestick
type Kline struct {
	OpenTime  int64   `json:"openTime"`
	Open      float64 `json:"open,string"`
	High      float64 `json:"high,string"`
	Low       float64 `json:"low,string"`
	Close     float64 `json:"close,string"`
	Volume    float64 `json:"volume,string"`
	CloseTime int64   `json:"closeTime"`
}

// Quote represents the current best bid/ask for a symbol
type Quote struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bidPrice,string"`
	Ask    float64 `json:"askPrice,string"`
}

// Mid returns the midpoint between bid and ask
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// Body returns the absolute size of the candle body
func (k Kline) Body() float64 {
	if k.Close >= k.Open {
		return k.Close - k.Open
	}
	return k.Open - k.Close
}

// Range returns the full high-low range of the candle
func (k Kline) Range() float64 {
	return k.High - k.Low
}

// IsBullish reports whether the candle closed above its open
func (k Kline) IsBullish() bool {
	return k.Close > k.Open
}

// IsBearish reports whether the candle closed below its open
func (k Kline) IsBearish() bool {
	return k.Close < k.Open
}

// UpperWick returns the length of the wick above the body
func (k Kline) UpperWick() float64 {
	if k.Close >= k.Open {
		return k.High - k.Close
	}
	return k.High - k.Open
}

// LowerWick returns the length of the wick below the body
func (k Kline) LowerWick() float64 {
	if k.Close >= k.Open {
		return k.Open - k.Low
	}
	return k.Close - k.Low
}
