package sqlite

import (
	"context"
	"testing"
	"time"

	"signalengine/internal/model"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUsers_DefaultsAndFilters(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	users := []model.AutotradeConfig{
		{UserID: 3, Enabled: true, NotificationsEnabled: false},
		{UserID: 1, Enabled: true, MinConfidence: 90, MaxTradesPerDay: 2, RiskPerTrade: 2.5, Assets: "R_100", NotificationsEnabled: true},
		{UserID: 2, Enabled: false, NotificationsEnabled: true},
	}
	for _, u := range users {
		if err := s.UpsertUser(ctx, u); err != nil {
			t.Fatalf("upsert %d: %v", u.UserID, err)
		}
	}

	got, err := s.GetUserConfig(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.MinConfidence != 75 || got.MaxTradesPerDay != 5 || got.RiskPerTrade != 1.0 || got.Assets != model.DefaultAutotradeAssets {
		t.Errorf("defaults not applied: %+v", got)
	}

	auto, err := s.ListAutotradeUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(auto) != 2 || auto[0].UserID != 1 || auto[1].UserID != 3 {
		t.Errorf("autotrade users = %+v, want ids [1 3]", auto)
	}
	if auto[0].MinConfidence != 90 || auto[0].Assets != "R_100" {
		t.Errorf("user 1 settings lost: %+v", auto[0])
	}

	notif, err := s.ListNotifiableUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(notif) != 2 || notif[0].UserID != 1 || notif[1].UserID != 2 {
		t.Errorf("notifiable users = %+v, want ids [1 2]", notif)
	}

	// update in place
	if err := s.UpsertUser(ctx, model.AutotradeConfig{UserID: 3, Enabled: false}); err != nil {
		t.Fatal(err)
	}
	auto, _ = s.ListAutotradeUsers(ctx)
	if len(auto) != 1 {
		t.Errorf("expected 1 autotrade user after disable, got %d", len(auto))
	}
}

func TestGetUserConfig_Missing(t *testing.T) {
	if _, err := openTest(t).GetUserConfig(context.Background(), 42); err == nil {
		t.Error("expected error for unknown user")
	}
}

func TestCountTradesToday_OnlyToday(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 15, 30, 0, 0, time.UTC)
	s := openTest(t).WithClock(func() time.Time { return now })

	trades := []model.TradeRecord{
		{UserID: 7, Asset: "BTC/USDT", Direction: model.DirectionBuy, Amount: 1, Status: model.ExecutionSuccess, Timestamp: now.Add(-time.Hour)},
		{UserID: 7, Asset: "GC=F", Direction: model.DirectionSell, Amount: 1, Status: model.ExecutionError, Timestamp: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)},
		{UserID: 7, Asset: "GC=F", Direction: model.DirectionSell, Amount: 1, Status: model.ExecutionSuccess, Timestamp: time.Date(2024, 6, 9, 23, 59, 59, 0, time.UTC)},
		{UserID: 8, Asset: "GC=F", Direction: model.DirectionBuy, Amount: 1, Status: model.ExecutionSuccess, Timestamp: now},
		{UserID: 7, Asset: "ETH/USDT", Direction: model.DirectionBuy, Amount: 2, Status: model.ExecutionSuccess}, // zero ts = now
	}
	for _, tr := range trades {
		if err := s.RecordTrade(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.CountTradesToday(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("CountTradesToday = %d, want 3 (yesterday and other users excluded)", n)
	}

	recent, err := s.RecentTrades(ctx, 7, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 4 || recent[0].Asset != "ETH/USDT" {
		t.Errorf("unexpected recent trades: %+v", recent)
	}
	if recent[0].Status != model.ExecutionSuccess || recent[0].Direction != model.DirectionBuy {
		t.Errorf("enum round trip failed: %+v", recent[0])
	}
}

func TestRecordSignal(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	sig := model.Signal{ID: "abc", Asset: "EURUSD=X", Direction: model.DirectionSell, Confidence: 81.25,
		Entry: 1.0845, TakeProfit: 1.08, StopLoss: 1.087, Strategy: "Stable Market Scan", Expiry: "5 Minutes"}
	if err := s.RecordSignal(ctx, sig); err != nil {
		t.Fatal(err)
	}
	n, err := s.SignalCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("SignalCount = %d, want 1", n)
	}
}
