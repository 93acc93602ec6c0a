package execution

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"signalengine/internal/model"
	"signalengine/pkg/deriv"
)

// MissingTokenMessage is the result message when no API token is configured.
const MissingTokenMessage = "Deriv API Token missing."

// Trader is the subset of *deriv.Client the executor uses.
type Trader interface {
	HasToken() bool
	Trade(ctx context.Context, req deriv.TradeRequest) (int64, error)
}

// DerivExecutor buys 5-minute stake-based rise/fall contracts.
type DerivExecutor struct {
	trader Trader
	symbol func(asset string) string
	log    *slog.Logger
}

// NewDerivExecutor creates a live executor. symbol maps an asset to its
// Deriv code; nil uses the asset unchanged.
func NewDerivExecutor(trader Trader, symbol func(string) string, log *slog.Logger) *DerivExecutor {
	if symbol == nil {
		symbol = func(s string) string { return s }
	}
	if log == nil {
		log = slog.Default()
	}
	return &DerivExecutor{trader: trader, symbol: symbol, log: log.With("component", "deriv_exec")}
}

// Execute prices and buys one contract.
func (e *DerivExecutor) Execute(ctx context.Context, asset string, direction model.Direction, amount float64) (model.ExecutionResult, error) {
	if !e.trader.HasToken() {
		return model.ExecutionResult{Status: model.ExecutionError, Message: MissingTokenMessage}, ErrNotConfigured
	}
	ct, err := ContractType(direction)
	if err != nil {
		return failed(err)
	}

	sym := e.symbol(asset)
	id, err := e.trader.Trade(ctx, deriv.TradeRequest{
		Symbol:       sym,
		ContractType: ct,
		Amount:       amount,
		Currency:     "USD",
		Duration:     5,
		DurationUnit: "m",
	})
	if err != nil {
		e.log.Warn("trade failed", "asset", asset, "symbol", sym, "error", err)
		return failed(fmt.Errorf("deriv trade %s: %w", sym, err))
	}
	cid := strconv.FormatInt(id, 10)
	e.log.Info("contract bought", "asset", asset, "symbol", sym, "contract_type", ct, "amount", amount, "contract_id", cid)
	return model.ExecutionResult{Status: model.ExecutionSuccess, ContractID: cid}, nil
}
