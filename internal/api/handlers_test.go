package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"trading-alert-engine/internal/alert"
	"trading-alert-engine/internal/auth"
	"trading-alert-engine/internal/engine"
	"trading-alert-engine/internal/evaluator"
	"trading-alert-engine/internal/events"
	"trading-alert-engine/internal/indicators"
	"trading-alert-engine/internal/logging"
	"trading-alert-engine/internal/market"
	"trading-alert-engine/internal/orderblock"
	"trading-alert-engine/internal/session"
	"trading-alert-engine/internal/structure"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memStore struct {
	mu     sync.Mutex
	alerts map[string]*alert.Alert
}

func (s *memStore) Load(ctx context.Context) (map[string]*alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alerts == nil {
		s.alerts = make(map[string]*alert.Alert)
	}
	out := make(map[string]*alert.Alert, len(s.alerts))
	for id, a := range s.alerts {
		cp := *a
		out[id] = &cp
	}
	return out, nil
}

func (s *memStore) Save(ctx context.Context, alerts map[string]*alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = make(map[string]*alert.Alert, len(alerts))
	for id, a := range alerts {
		cp := *a
		s.alerts[id] = &cp
	}
	return nil
}

type fixedProvider struct{ price float64 }

func (p fixedProvider) GetQuote(symbol string) (*market.Quote, error) {
	return &market.Quote{Symbol: symbol, Bid: p.price, Ask: p.price}, nil
}

func (p fixedProvider) GetBars(symbol, timeframe string, limit int) ([]market.Kline, error) {
	bars := make([]market.Kline, limit)
	for i := range bars {
		bars[i] = market.Kline{Open: p.price, High: p.price + 1, Low: p.price - 1, Close: p.price, Volume: 1000}
	}
	return bars, nil
}

const testAdminToken = "bootstrap-admin-token"

func newTestServer(t *testing.T) (*Server, *alert.Registry) {
	t.Helper()
	logger := logging.Nop()

	registry, err := alert.NewRegistry(context.Background(), &memStore{}, logger)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	provider := fixedProvider{price: 105}
	cfg := engine.DefaultConfig()
	bundles := indicators.NewCalculator(provider, []string{cfg.BaseTimeframe, cfg.HTFTimeframe}, 50)
	validator := orderblock.NewValidator(orderblock.DefaultConfig(), logger)
	dispatcher := evaluator.NewDispatcher(evaluator.DefaultConfig(), validator, nil, logger)
	eng := engine.New(cfg, registry, provider, bundles, structure.NewAnalyzer(0),
		session.NewClassifier(), dispatcher, nil, events.NewEventBus(), logger)

	hash, err := auth.HashAdminToken(testAdminToken)
	if err != nil {
		t.Fatalf("HashAdminToken: %v", err)
	}

	srv := NewServer(
		ServerConfig{Host: "127.0.0.1", Port: 0, AdminTokenHash: hash},
		registry, eng, events.NewEventBus(),
		auth.NewJWTManager("test-secret", time.Hour), logger,
	)
	return srv, registry
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func adminToken(t *testing.T, srv *Server) string {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost, "/api/auth/token", "", map[string]string{
		"admin_token": testAdminToken,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("token exchange status = %d: %s", w.Code, w.Body.String())
	}
	return decode(t, w)["access_token"].(string)
}

func TestHealthIsOpen(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if decode(t, w)["status"] != "healthy" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestTokenExchange(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/auth/token", "", map[string]string{
		"admin_token": "wrong-token",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d, want 401", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/api/auth/token", "", map[string]string{
		"admin_token": testAdminToken,
		"subject":     "ops",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["token_type"] != "Bearer" || body["access_token"] == "" {
		t.Fatalf("unexpected token response: %v", body)
	}
}

func TestAlertRoutesRequireAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/alerts", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/alerts", "garbage-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", w.Code)
	}
}

func TestAlertLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	token := adminToken(t, srv)

	w := doJSON(t, srv, http.MethodPost, "/api/alerts", token, map[string]interface{}{
		"symbol":     "BTCUSDT",
		"kind":       "PRICE",
		"condition":  "GREATER_THAN",
		"parameters": map[string]interface{}{"price_level": 100000.0},
		"expires_in": "24h",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	created := decode(t, w)
	id := created["id"].(string)
	if id == "" {
		t.Fatal("created alert has no id")
	}
	if created["one_time"] != true {
		t.Fatal("one_time should default to true")
	}

	w = doJSON(t, srv, http.MethodGet, "/api/alerts?symbol=BTCUSDT&enabled=true", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	if decode(t, w)["count"] != float64(1) {
		t.Fatalf("list count: %s", w.Body.String())
	}

	w = doJSON(t, srv, http.MethodPost, "/api/alerts/"+id+"/disable", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("disable status = %d", w.Code)
	}
	w = doJSON(t, srv, http.MethodGet, "/api/alerts?enabled=true", token, nil)
	if decode(t, w)["count"] != float64(0) {
		t.Fatalf("disabled alert still listed as enabled: %s", w.Body.String())
	}

	w = doJSON(t, srv, http.MethodPost, "/api/alerts/"+id+"/enable", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("enable status = %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/alerts/"+id, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodDelete, "/api/alerts/"+id, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, srv, http.MethodGet, "/api/alerts/"+id, token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", w.Code)
	}
}

func TestCreateAlertValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	token := adminToken(t, srv)

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing symbol", map[string]interface{}{"kind": "PRICE", "condition": "GREATER_THAN"}},
		{"unknown kind", map[string]interface{}{"symbol": "BTCUSDT", "kind": "TAROT", "condition": "GREATER_THAN"}},
		{"unknown condition", map[string]interface{}{"symbol": "BTCUSDT", "kind": "PRICE", "condition": "SOMETIME"}},
		{"bad duration", map[string]interface{}{"symbol": "BTCUSDT", "kind": "PRICE", "condition": "GREATER_THAN", "expires_in": "next tuesday"}},
		{"negative duration", map[string]interface{}{"symbol": "BTCUSDT", "kind": "PRICE", "condition": "GREATER_THAN", "expires_in": "-1h"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, srv, http.MethodPost, "/api/alerts", token, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestRunCycleRequiresAdmin(t *testing.T) {
	srv, registry := newTestServer(t)

	nonAdmin, err := srv.jwtManager.GenerateToken("viewer", false)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	w := doJSON(t, srv, http.MethodPost, "/api/engine/run", nonAdmin, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-admin status = %d, want 403", w.Code)
	}

	if _, err := registry.Add(context.Background(), alert.AddParams{
		Symbol: "BTCUSDT", Kind: alert.KindPrice, Condition: alert.CondGreaterThan,
		Parameters: map[string]interface{}{"price_level": 100.0},
		OneTime:    true,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	token := adminToken(t, srv)
	w = doJSON(t, srv, http.MethodPost, "/api/engine/run", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin status = %d: %s", w.Code, w.Body.String())
	}
	result := decode(t, w)
	if result["triggered"] != float64(1) {
		t.Fatalf("cycle result: %s", w.Body.String())
	}

	w = doJSON(t, srv, http.MethodGet, "/api/engine/status", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status status = %d", w.Code)
	}
	if decode(t, w)["last_cycle"] == nil {
		t.Fatalf("last_cycle missing after a manual run: %s", w.Body.String())
	}
}
