package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"signalengine/internal/model"
)

// Fill represents a simulated trade.
type Fill struct {
	ContractID string          `json:"contract_id"`
	Asset      string          `json:"asset"`
	Direction  model.Direction `json:"direction"`
	Amount     float64         `json:"amount"`
	FilledAt   time.Time       `json:"filled_at"`
}

// PaperExecutor simulates execution without broker calls. It is the
// default executor unless live trading is enabled.
type PaperExecutor struct {
	mu       sync.RWMutex
	fills    []Fill
	orderSeq int64
	now      func() time.Time
	log      *slog.Logger
}

// NewPaperExecutor creates a paper trading executor.
func NewPaperExecutor(log *slog.Logger) *PaperExecutor {
	if log == nil {
		log = slog.Default()
	}
	return &PaperExecutor{
		fills: make([]Fill, 0, 64),
		now:   time.Now,
		log:   log.With("component", "paper"),
	}
}

// GetFills returns a snapshot of all fills.
func (p *PaperExecutor) GetFills() []Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// Execute records a simulated fill.
func (p *PaperExecutor) Execute(ctx context.Context, asset string, direction model.Direction, amount float64) (model.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return failed(err)
	}
	if _, err := ContractType(direction); err != nil {
		return failed(err)
	}
	if amount <= 0 {
		return failed(fmt.Errorf("execution: invalid amount %v", amount))
	}

	p.mu.Lock()
	p.orderSeq++
	id := fmt.Sprintf("PAPER-%d", p.orderSeq)
	p.fills = append(p.fills, Fill{
		ContractID: id,
		Asset:      asset,
		Direction:  direction,
		Amount:     amount,
		FilledAt:   p.now(),
	})
	p.mu.Unlock()

	p.log.Info("paper fill", "asset", asset, "direction", string(direction), "amount", amount, "contract_id", id)
	return model.ExecutionResult{Status: model.ExecutionSuccess, ContractID: id}, nil
}
