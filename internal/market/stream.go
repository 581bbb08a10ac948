package market

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// TickerStream maintains a live book-ticker websocket subscription so the
// evaluation cycle can read fresh quotes without a REST round-trip
type TickerStream struct {
	mu sync.RWMutex

	wsURL     string
	symbols   []string
	conn      *websocket.Conn
	isRunning bool
	stopChan  chan struct{}
	logger    zerolog.Logger

	quotes     map[string]Quote
	lastUpdate map[string]time.Time
	reconnects int
}

type bookTickerEvent struct {
	Symbol string `json:"s"`
	Bid    string `json:"b"`
	Ask    string `json:"a"`
}

// NewTickerStream creates a ticker stream for the given symbols
func NewTickerStream(wsURL string, symbols []string, logger zerolog.Logger) *TickerStream {
	return &TickerStream{
		wsURL:      wsURL,
		symbols:    symbols,
		stopChan:   make(chan struct{}),
		logger:     logger.With().Str("component", "TickerStream").Logger(),
		quotes:     make(map[string]Quote),
		lastUpdate: make(map[string]time.Time),
	}
}

// Start connects and begins consuming ticker events until Stop is called
func (s *TickerStream) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("ticker stream already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	go s.run()
	return nil
}

// Stop closes the stream
func (s *TickerStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	s.isRunning = false
	close(s.stopChan)
	if s.conn != nil {
		s.conn.Close()
	}
}

// Quote returns the most recent streamed quote for a symbol, along with
// whether one has been observed at all
func (s *TickerStream) Quote(symbol string) (Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[symbol]
	return q, ok
}

// LastUpdate returns when the symbol's quote was last refreshed
func (s *TickerStream) LastUpdate(symbol string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate[symbol]
}

func (s *TickerStream) run() {
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		if err := s.connect(); err != nil {
			s.mu.Lock()
			s.reconnects++
			attempts := s.reconnects
			s.mu.Unlock()

			backoff := time.Duration(attempts) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			s.logger.Warn().Err(err).Dur("backoff", backoff).Msg("Ticker stream disconnected, reconnecting")

			select {
			case <-time.After(backoff):
			case <-s.stopChan:
				return
			}
		}
	}
}

func (s *TickerStream) connect() error {
	streams := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		streams[i] = strings.ToLower(sym) + "@bookTicker"
	}
	url := fmt.Sprintf("%s/stream?streams=%s", s.wsURL, strings.Join(streams, "/"))

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.wsURL, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.reconnects = 0
	s.mu.Unlock()

	s.logger.Info().Int("symbols", len(s.symbols)).Msg("Ticker stream connected")

	return s.readLoop(conn)
}

func (s *TickerStream) readLoop(conn *websocket.Conn) error {
	defer conn.Close()

	for {
		select {
		case <-s.stopChan:
			return nil
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var envelope struct {
			Data bookTickerEvent `json:"data"`
		}
		if err := json.Unmarshal(message, &envelope); err != nil {
			s.logger.Debug().Err(err).Msg("Skipping unparseable stream message")
			continue
		}
		if envelope.Data.Symbol == "" {
			continue
		}

		bid := parseFloat(envelope.Data.Bid)
		ask := parseFloat(envelope.Data.Ask)

		s.mu.Lock()
		s.quotes[envelope.Data.Symbol] = Quote{Symbol: envelope.Data.Symbol, Bid: bid, Ask: ask}
		s.lastUpdate[envelope.Data.Symbol] = time.Now()
		s.mu.Unlock()
	}
}

// StreamProvider serves quotes from a live ticker stream when they are
// fresh enough, falling back to the wrapped provider otherwise. Bars
// always come from the wrapped provider.
type StreamProvider struct {
	inner  Provider
	stream *TickerStream
	maxAge time.Duration
}

// NewStreamProvider wraps a provider with streamed quote lookups
func NewStreamProvider(inner Provider, stream *TickerStream, maxAge time.Duration) *StreamProvider {
	if maxAge <= 0 {
		maxAge = 10 * time.Second
	}
	return &StreamProvider{inner: inner, stream: stream, maxAge: maxAge}
}

// GetQuote returns the streamed quote if one is fresh, else a REST quote
func (p *StreamProvider) GetQuote(symbol string) (*Quote, error) {
	if q, ok := p.stream.Quote(symbol); ok {
		if time.Since(p.stream.LastUpdate(symbol)) <= p.maxAge {
			return &q, nil
		}
	}
	return p.inner.GetQuote(symbol)
}

// GetBars delegates to the wrapped provider
func (p *StreamProvider) GetBars(symbol, timeframe string, limit int) ([]Kline, error) {
	return p.inner.GetBars(symbol, timeframe, limit)
}
