package model

import (
	"encoding/json"
	"time"
)

// Direction is a trading direction.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionHold Direction = "HOLD"
)

// Volatility buckets derived from ATR against its own mean.
type Volatility string

const (
	VolatilityHigh   Volatility = "HIGH"
	VolatilityNormal Volatility = "NORMAL"
	VolatilityLow    Volatility = "LOW"
)

// Signal is the fused output of one evaluation. Immutable once produced.
type Signal struct {
	ID            string     `json:"id"`
	Asset         string     `json:"asset"`
	Class         Class      `json:"class"`
	Direction     Direction  `json:"direction"`
	Confidence    float64    `json:"confidence"` // 0-100
	Entry         float64    `json:"entry"`
	TakeProfit    float64    `json:"tp"`
	StopLoss      float64    `json:"sl"`
	Expiry        string     `json:"expiry"` // human label, e.g. "5 Minutes"
	ExpiryMinutes int        `json:"expiry_minutes"`
	EntryTime     time.Time  `json:"entry_time"`
	MarketType    string     `json:"market_type"`
	TradeType     string     `json:"trade_type"`
	Strategy      string     `json:"strategy"`
	Trend         string     `json:"trend"`
	Support       float64    `json:"support"`
	Resistance    float64    `json:"resistance"`
	Volatility    Volatility `json:"volatility"`
	Rationale     string     `json:"rationale"`
	CreatedAt     time.Time  `json:"created_at"`
}

// DedupKey returns "asset_direction", the radar's duplicate-suppression key.
func (s *Signal) DedupKey() string {
	return s.Asset + "_" + string(s.Direction)
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
