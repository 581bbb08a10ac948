package notification

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"trading-alert-engine/internal/alert"
	"trading-alert-engine/internal/evaluator"
)

type fakeNotifier struct {
	name    string
	enabled bool
	fail    bool
	sent    []*Notification
}

func (f *fakeNotifier) Send(n *Notification) error {
	f.sent = append(f.sent, n)
	if f.fail {
		return errors.New("delivery failed")
	}
	return nil
}

func (f *fakeNotifier) Name() string    { return f.name }
func (f *fakeNotifier) IsEnabled() bool { return f.enabled }

func TestManagerFansOutToEnabledNotifiers(t *testing.T) {
	m := NewManager()
	on := &fakeNotifier{name: "on", enabled: true}
	off := &fakeNotifier{name: "off", enabled: false}
	m.AddNotifier(on)
	m.AddNotifier(off)

	if err := m.Send(&Notification{Type: NotifyInfo, Message: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(on.sent) != 1 {
		t.Fatalf("enabled notifier got %d sends, want 1", len(on.sent))
	}
	if len(off.sent) != 0 {
		t.Fatal("disabled notifier must not receive sends")
	}
}

func TestManagerDeliversToAllEvenWhenOneFails(t *testing.T) {
	m := NewManager()
	flaky := &fakeNotifier{name: "flaky", enabled: true, fail: true}
	steady := &fakeNotifier{name: "steady", enabled: true}
	m.AddNotifier(flaky)
	m.AddNotifier(steady)

	err := m.Send(&Notification{Type: NotifyInfo, Message: "hello"})
	if err == nil {
		t.Fatal("expected the failing notifier's error to surface")
	}
	if len(steady.sent) != 1 {
		t.Fatal("later notifier skipped after an earlier failure")
	}
}

func TestNotifyTriggerFormatsTheMatch(t *testing.T) {
	m := NewManager()
	sink := &fakeNotifier{name: "sink", enabled: true}
	m.AddNotifier(sink)

	a := &alert.Alert{
		ID:          "a1",
		Symbol:      "BTCUSDT",
		Kind:        alert.KindPrice,
		Condition:   alert.CondGreaterThan,
		Description: "breakout watch",
		OneTime:     true,
	}
	match := &evaluator.MatchContext{
		AlertID: "a1",
		Symbol:  "BTCUSDT",
		Message: "price above 100000",
		Price:   100250.5,
	}

	if err := m.NotifyTrigger(a, match); err != nil {
		t.Fatalf("NotifyTrigger: %v", err)
	}
	if len(sink.sent) != 1 {
		t.Fatalf("got %d sends, want 1", len(sink.sent))
	}

	n := sink.sent[0]
	if n.Type != NotifyTrigger {
		t.Fatalf("type = %q, want trigger", n.Type)
	}
	if n.Symbol != "BTCUSDT" || n.Price != 100250.5 {
		t.Fatalf("symbol/price not carried: %+v", n)
	}
	if !strings.Contains(n.Message, "price above 100000") {
		t.Fatalf("match message missing: %q", n.Message)
	}
	if !strings.Contains(n.Message, "one-shot") {
		t.Fatalf("one-shot note missing: %q", n.Message)
	}
	if n.Extra["alert_id"] != "a1" || n.Extra["kind"] != "PRICE" {
		t.Fatalf("extra fields: %v", n.Extra)
	}
}

func TestWebhookNotifierPostsDiscordEmbed(t *testing.T) {
	var got map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad webhook payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: ts.URL, Enabled: true})
	if !n.IsEnabled() {
		t.Fatal("notifier with URL should be enabled")
	}

	err := n.Send(&Notification{
		Type:    NotifyTrigger,
		Title:   "Alert: BTCUSDT",
		Message: "price above 100000",
		Symbol:  "BTCUSDT",
		Price:   100250.5,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	embeds, ok := got["embeds"].([]interface{})
	if !ok || len(embeds) != 1 {
		t.Fatalf("embeds missing from payload: %v", got)
	}
	embed := embeds[0].(map[string]interface{})
	if embed["title"] != "Alert: BTCUSDT" {
		t.Fatalf("embed title: %v", embed["title"])
	}
	if _, ok := embed["fields"]; !ok {
		t.Fatal("symbol/price fields missing from embed")
	}
}

func TestWebhookNotifierSurfacesHTTPErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: ts.URL, Enabled: true})
	if err := n.Send(&Notification{Type: NotifyInfo, Message: "x"}); err == nil {
		t.Fatal("502 response should be an error")
	}
}

func TestNotifiersDisabledWithoutTargets(t *testing.T) {
	if NewWebhookNotifier(WebhookConfig{Enabled: true}).IsEnabled() {
		t.Fatal("webhook without URL should be disabled")
	}
	if NewTelegramNotifier(TelegramConfig{Enabled: true, BotToken: "t"}).IsEnabled() {
		t.Fatal("telegram without chat id should be disabled")
	}
	if !NewTelegramNotifier(TelegramConfig{Enabled: true, BotToken: "t", ChatID: "c"}).IsEnabled() {
		t.Fatal("fully configured telegram should be enabled")
	}
}
