package model

import "time"

// Defaults applied when a user row leaves a field unset.
const (
	DefaultMinConfidence   = 75.0
	DefaultMaxTradesPerDay = 5
	DefaultRiskPerTrade    = 1.0
	DefaultAutotradeAssets = "BTC/USDT,ETH/USDT,GC=F"
)

// AutotradeConfig is a user's autotrading configuration. It is owned by the
// persistence collaborator; the core only reads it.
type AutotradeConfig struct {
	UserID               int64   `json:"user_id"`
	Enabled              bool    `json:"enabled"`
	MinConfidence        float64 `json:"min_confidence"`
	MaxTradesPerDay      int     `json:"max_trades_per_day"`
	RiskPerTrade         float64 `json:"risk_per_trade"`
	Assets               string  `json:"assets"` // comma-separated
	NotificationsEnabled bool    `json:"notifications_enabled"`
}

// AssetList returns the configured instruments.
func (c AutotradeConfig) AssetList() []string {
	return ParseAssetList(c.Assets)
}

// Amount returns the stake per trade, falling back to 1.0 when unset or invalid.
func (c AutotradeConfig) Amount() float64 {
	if c.RiskPerTrade <= 0 {
		return DefaultRiskPerTrade
	}
	return c.RiskPerTrade
}

// ExecutionStatus is the outcome reported by an executor.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionError   ExecutionStatus = "error"
)

// ExecutionResult is the single-call execution contract's reply.
type ExecutionResult struct {
	Status     ExecutionStatus `json:"status"`
	ContractID string          `json:"contract_id,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// OK reports whether the execution succeeded.
func (r ExecutionResult) OK() bool { return r.Status == ExecutionSuccess }

// TradeRecord is one row in the trade ledger.
type TradeRecord struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	Asset      string          `json:"asset"`
	Direction  Direction       `json:"direction"`
	Amount     float64         `json:"amount"`
	EntryPrice float64         `json:"entry_price"`
	Confidence float64         `json:"confidence"`
	Status     ExecutionStatus `json:"status"`
	ContractID string          `json:"contract_id"`
	Message    string          `json:"message"`
	Timestamp  time.Time       `json:"timestamp"`
}
