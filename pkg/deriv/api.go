package deriv

import (
	"context"
	"fmt"
)

// Contract types for rise/fall options.
const (
	ContractCall = "CALL"
	ContractPut  = "PUT"
)

// Account is the authorize reply.
type Account struct {
	LoginID   string  `json:"loginid"`
	Currency  string  `json:"currency"`
	Balance   float64 `json:"balance"`
	IsVirtual int     `json:"is_virtual"`
}

// Candle is one ticks_history candle. Prices may arrive as numbers.
type Candle struct {
	Epoch int64   `json:"epoch"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// TradeRequest describes a stake-based rise/fall contract.
type TradeRequest struct {
	Symbol       string
	ContractType string  // ContractCall or ContractPut
	Amount       float64 // stake
	Currency     string  // default USD
	Duration     int     // default 5
	DurationUnit string  // default "m"
}

// Proposal is a priced contract offer.
type Proposal struct {
	ID       string  `json:"id"`
	AskPrice float64 `json:"ask_price"`
	Payout   float64 `json:"payout"`
	Spot     float64 `json:"spot"`
}

// Purchase is the buy reply.
type Purchase struct {
	ContractID    int64   `json:"contract_id"`
	TransactionID int64   `json:"transaction_id"`
	BuyPrice      float64 `json:"buy_price"`
	Longcode      string  `json:"longcode"`
}

// Authorize authenticates the session with an API token.
func (s *Session) Authorize(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	var resp struct {
		Authorize Account `json:"authorize"`
	}
	if err := s.Call(ctx, map[string]any{"authorize": token}, &resp); err != nil {
		return nil, err
	}
	return &resp.Authorize, nil
}

// Candles requests the latest count candles of granularity seconds.
func (s *Session) Candles(ctx context.Context, symbol string, count, granularity int) ([]Candle, error) {
	req := map[string]any{
		"ticks_history":     symbol,
		"adjust_start_time": 1,
		"count":             count,
		"end":               "latest",
		"start":             1,
		"style":             "candles",
		"granularity":       granularity,
	}
	var resp struct {
		Candles []Candle `json:"candles"`
	}
	if err := s.Call(ctx, req, &resp); err != nil {
		return nil, err
	}
	return resp.Candles, nil
}

// Proposal prices a contract.
func (s *Session) Proposal(ctx context.Context, tr TradeRequest) (*Proposal, error) {
	if tr.Currency == "" {
		tr.Currency = "USD"
	}
	if tr.Duration <= 0 {
		tr.Duration = 5
	}
	if tr.DurationUnit == "" {
		tr.DurationUnit = "m"
	}
	req := map[string]any{
		"proposal":      1,
		"amount":        tr.Amount,
		"basis":         "stake",
		"contract_type": tr.ContractType,
		"currency":      tr.Currency,
		"duration":      tr.Duration,
		"duration_unit": tr.DurationUnit,
		"symbol":        tr.Symbol,
	}
	var resp struct {
		Proposal Proposal `json:"proposal"`
	}
	if err := s.Call(ctx, req, &resp); err != nil {
		return nil, err
	}
	if resp.Proposal.ID == "" {
		return nil, fmt.Errorf("deriv: proposal for %s returned no id", tr.Symbol)
	}
	return &resp.Proposal, nil
}

// Buy buys a proposal at up to price.
func (s *Session) Buy(ctx context.Context, proposalID string, price float64) (*Purchase, error) {
	var resp struct {
		Buy Purchase `json:"buy"`
	}
	if err := s.Call(ctx, map[string]any{"buy": proposalID, "price": price}, &resp); err != nil {
		return nil, err
	}
	return &resp.Buy, nil
}
