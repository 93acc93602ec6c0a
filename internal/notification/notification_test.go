package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"signalengine/internal/model"
)

func testSignal() model.Signal {
	return model.Signal{
		Asset:      "EURUSD=X",
		Direction:  model.DirectionBuy,
		Confidence: 82.5,
		Entry:      1.08345,
		TakeProfit: 1.0851,
		StopLoss:   1.0826,
		Expiry:     "5 Minutes",
		EntryTime:  time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC),
		MarketType: "Real Global Market",
		Strategy:   "Trend Pullback",
		Rationale:  "Active",
	}
}

func TestFormatSignal_ForexPrecision(t *testing.T) {
	msg := FormatSignal(testSignal())
	for _, want := range []string{"Asset: EURUSD=X", "Action: BUY", "Confidence: 82.50%", "Entry: 1.08345", "Entry (UTC): 10:05:00"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in message:\n%s", want, msg)
		}
	}
	sig := testSignal()
	sig.Asset = "BTC/USDT"
	sig.Entry = 64000.123
	if msg := FormatSignal(sig); !strings.Contains(msg, "Entry: 64000.12\n") {
		t.Errorf("crypto should use 2 decimals:\n%s", msg)
	}
}

func TestTelegram_SendsToAlertChat(t *testing.T) {
	var got map[string]interface{}
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "default", nil).WithBaseURL(srv.URL)
	a := SignalAlert(testSignal())
	a.ChatID = "42"
	if err := n.Send(context.Background(), a); err != nil {
		t.Fatalf("send: %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("unexpected path %s", path)
	}
	if got["chat_id"] != "42" {
		t.Errorf("expected chat 42, got %v", got["chat_id"])
	}
	if got["parse_mode"] != "MarkdownV2" {
		t.Errorf("expected MarkdownV2, got %v", got["parse_mode"])
	}
	if !strings.Contains(got["text"].(string), `EURUSD\=X`) {
		t.Errorf("expected escaped asset in %q", got["text"])
	}
}

func TestTelegram_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "1", nil).WithBaseURL(srv.URL)
	err := n.Send(context.Background(), Alert{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected status error, got %v", err)
	}
	if err := NewTelegramNotifier("TOKEN", "", nil).Send(context.Background(), Alert{}); err == nil {
		t.Fatal("expected error without a chat id")
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := escapeMarkdown("a.b-c!"); got != `a\.b\-c\!` {
		t.Errorf("got %q", got)
	}
}

func TestWebhook_PostsSignal(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, nil)
	if err := n.Send(context.Background(), SignalAlert(testSignal())); err != nil {
		t.Fatalf("send: %v", err)
	}
	var p struct {
		Level  string       `json:"level"`
		Signal model.Signal `json:"signal"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Level != "SIGNAL" || p.Signal.Asset != "EURUSD=X" {
		t.Errorf("unexpected payload: %s", body)
	}
}

func TestWebhook_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	if err := NewWebhookNotifier(srv.URL, nil).Send(context.Background(), Alert{}); err == nil {
		t.Fatal("expected error on 502")
	}
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafka_KeyedByAsset(t *testing.T) {
	w := &fakeWriter{}
	n := NewKafkaNotifierWith(w)
	if err := n.Send(context.Background(), SignalAlert(testSignal())); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	m := w.msgs[0]
	if string(m.Key) != "EURUSD=X" {
		t.Errorf("expected key EURUSD=X, got %s", m.Key)
	}
	var sig model.Signal
	if err := json.Unmarshal(m.Value, &sig); err != nil || sig.Confidence != 82.5 {
		t.Errorf("unexpected value %s (%v)", m.Value, err)
	}
	if err := n.Close(); err != nil || !w.closed {
		t.Error("expected writer closed")
	}
}

func TestKafka_WriteError(t *testing.T) {
	n := NewKafkaNotifierWith(&fakeWriter{err: errors.New("broker down")})
	if err := n.Send(context.Background(), Alert{Title: "plain"}); err == nil {
		t.Fatal("expected error")
	}
}

type fakeNotifier struct {
	mu    sync.Mutex
	chats []string
	fail  map[string]bool
}

func (f *fakeNotifier) Send(_ context.Context, a Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[a.ChatID] {
		return errors.New("blocked")
	}
	f.chats = append(f.chats, a.ChatID)
	return nil
}

type fakeUsers struct {
	users []model.AutotradeConfig
	err   error
}

func (f fakeUsers) ListNotifiableUsers(context.Context) ([]model.AutotradeConfig, error) {
	return f.users, f.err
}

type fakeRecorder struct{ n int }

func (f *fakeRecorder) RecordSignal(context.Context, model.Signal) error {
	f.n++
	return nil
}

func TestDispatcher_UsersAndSinks(t *testing.T) {
	direct := &fakeNotifier{fail: map[string]bool{"2": true}}
	sink := &fakeNotifier{}
	rec := &fakeRecorder{}
	users := fakeUsers{users: []model.AutotradeConfig{
		{UserID: 1, NotificationsEnabled: true},
		{UserID: 2, NotificationsEnabled: true},
		{UserID: 3, NotificationsEnabled: false},
		{UserID: 4, NotificationsEnabled: true},
	}}
	d := NewDispatcher(DispatcherConfig{
		Users:    users,
		Direct:   direct,
		Sinks:    []Sink{{Name: "kafka", Notifier: sink}},
		Recorder: rec,
	}, nil)

	d.Handle(context.Background(), testSignal())

	if rec.n != 1 {
		t.Errorf("expected signal recorded once, got %d", rec.n)
	}
	if len(sink.chats) != 1 || sink.chats[0] != "" {
		t.Errorf("expected one broadcast without chat id, got %v", sink.chats)
	}
	got := map[string]bool{}
	for _, c := range direct.chats {
		got[c] = true
	}
	if len(got) != 2 || !got["1"] || !got["4"] {
		t.Errorf("expected delivery to users 1 and 4, got %v", direct.chats)
	}
}

func TestDispatcher_UserListError(t *testing.T) {
	direct := &fakeNotifier{}
	sink := &fakeNotifier{}
	d := NewDispatcher(DispatcherConfig{
		Users:  fakeUsers{err: errors.New("db locked")},
		Direct: direct,
		Sinks:  []Sink{{Name: "webhook", Notifier: sink}},
	}, nil)

	d.Handle(context.Background(), testSignal())
	if len(direct.chats) != 0 {
		t.Errorf("expected no direct sends, got %v", direct.chats)
	}
	if len(sink.chats) != 1 {
		t.Errorf("broadcast sinks should still receive the signal")
	}
}
