// Package autotrader runs the periodic scan-and-distribute loop: one
// evaluation pass over the union of every enabled user's assets, then
// per-user trades within their confidence and daily limits.
package autotrader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"signalengine/internal/logger"
	"signalengine/internal/metrics"
	"signalengine/internal/model"
	"signalengine/internal/signal"
)

// State is the loop's lifecycle state.
type State string

const (
	StateIdle         State = "IDLE"
	StateScanning     State = "SCANNING"
	StateDistributing State = "DISTRIBUTING"
	StateSleeping     State = "SLEEPING"
	StateStopped      State = "STOPPED"
)

var stateGauge = map[State]float64{
	StateIdle:         0,
	StateScanning:     1,
	StateDistributing: 2,
	StateSleeping:     3,
	StateStopped:      4,
}

// Defaults for Config fields left at zero.
const (
	DefaultInterval = 300 * time.Second
	DefaultBackoff  = 60 * time.Second
)

// Config tunes the loop.
type Config struct {
	Interval time.Duration
	Backoff  time.Duration // sleep after a failed cycle
}

// Evaluator evaluates instruments in one bounded parallel pass.
type Evaluator interface {
	EvaluateAll(ctx context.Context, instruments []model.Instrument, opts signal.Options) (map[string]model.Signal, error)
}

// UserLister returns users with autotrading enabled.
type UserLister interface {
	ListAutotradeUsers(ctx context.Context) ([]model.AutotradeConfig, error)
}

// Report summarizes one cycle.
type Report struct {
	Users       int
	Instruments int
	Signals     int
	Orders      int
	Executed    int
	Failed      int
}

// Trader is the autotrade loop. Run it once; State is safe to call from
// any goroutine.
type Trader struct {
	cfg    Config
	users  UserLister
	ledger model.TradeLedger
	exec   model.Executor
	eval   Evaluator
	log    *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	state State

	// Metrics and Health are optional.
	Metrics *metrics.Metrics
	Health  *metrics.HealthStatus
}

// New creates a trader in the IDLE state.
func New(cfg Config, users UserLister, ledger model.TradeLedger, exec model.Executor, eval Evaluator, log *slog.Logger) *Trader {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if log == nil {
		log = slog.Default()
	}
	return &Trader{
		cfg:    cfg,
		users:  users,
		ledger: ledger,
		exec:   exec,
		eval:   eval,
		log:    log.With("component", "autotrader"),
		now:    time.Now,
		state:  StateIdle,
	}
}

// WithClock replaces the time source. Intended for tests.
func (t *Trader) WithClock(now func() time.Time) *Trader {
	t.now = now
	return t
}

// State returns the current lifecycle state.
func (t *Trader) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Trader) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
	if t.Metrics != nil {
		t.Metrics.AutotradeState.Set(stateGauge[s])
	}
	if t.Health != nil {
		var at time.Time
		if s == StateSleeping {
			at = t.now()
		}
		t.Health.SetAutotrade(string(s), at)
	}
}

// Run cycles until ctx is cancelled, then enters STOPPED and returns ctx.Err().
func (t *Trader) Run(ctx context.Context) error {
	defer t.setState(StateStopped)
	t.log.Info("autotrader started", "interval", t.cfg.Interval, "backoff", t.cfg.Backoff)
	for {
		wait := t.cfg.Interval
		rep, err := t.RunCycle(ctx)
		if ctx.Err() != nil {
			t.log.Info("autotrader stopped")
			return ctx.Err()
		}
		if err != nil {
			t.log.Error("autotrade cycle failed", "error", err, "retry_in", t.cfg.Backoff)
			wait = t.cfg.Backoff
		} else {
			t.log.Info("autotrade cycle complete", "users", rep.Users, "instruments", rep.Instruments,
				"signals", rep.Signals, "orders", rep.Orders, "executed", rep.Executed, "failed", rep.Failed)
		}

		t.setState(StateSleeping)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.log.Info("autotrader stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunCycle performs one scan-and-distribute pass.
func (t *Trader) RunCycle(ctx context.Context) (Report, error) {
	var rep Report
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID("autotrade", t.now()))
	trace := logger.LogWithTrace(ctx)

	t.setState(StateScanning)
	users, err := t.users.ListAutotradeUsers(ctx)
	if err != nil {
		t.cycleDone("error")
		return rep, fmt.Errorf("list autotrade users: %w", err)
	}
	rep.Users = len(users)
	if len(users) == 0 {
		t.cycleDone("ok")
		return rep, nil
	}

	instruments := Instruments(users)
	rep.Instruments = len(instruments)
	signals, err := t.eval.EvaluateAll(ctx, instruments, signal.Options{Fast: true})
	if err != nil {
		t.cycleDone("error")
		return rep, fmt.Errorf("evaluate: %w", err)
	}
	rep.Signals = len(signals)

	t.setState(StateDistributing)
	counts := make(map[int64]int, len(users))
	for _, u := range users {
		n, err := t.ledger.CountTradesToday(ctx, u.UserID)
		if err != nil {
			t.log.Warn("count trades failed, skipping user", append(trace, "user_id", u.UserID, "error", err)...)
			continue
		}
		counts[u.UserID] = n
	}

	orders := Plan(users, signals, counts)
	rep.Orders = len(orders)
	for _, o := range orders {
		if ctx.Err() != nil {
			break
		}
		if t.execute(ctx, o) {
			rep.Executed++
		} else {
			rep.Failed++
		}
	}
	t.cycleDone("ok")
	return rep, nil
}

func (t *Trader) execute(ctx context.Context, o Order) bool {
	res, err := t.exec.Execute(ctx, o.Asset, o.Direction, o.Amount)
	if res.Status == "" {
		res.Status = model.ExecutionError
		if err != nil {
			res.Message = err.Error()
		}
	}
	attrs := append(logger.LogWithTrace(ctx), "user_id", o.UserID, "asset", o.Asset,
		"direction", string(o.Direction), "amount", o.Amount, "confidence", o.Confidence)
	if res.OK() {
		t.log.Info("trade executed", append(attrs, "contract_id", res.ContractID)...)
	} else {
		t.log.Warn("trade failed", append(attrs, "message", res.Message)...)
	}
	if t.Metrics != nil {
		t.Metrics.TradesTotal.WithLabelValues(string(res.Status)).Inc()
	}

	rec := model.TradeRecord{
		UserID:     o.UserID,
		Asset:      o.Asset,
		Direction:  o.Direction,
		Amount:     o.Amount,
		EntryPrice: o.Entry,
		Confidence: o.Confidence,
		Status:     res.Status,
		ContractID: res.ContractID,
		Message:    res.Message,
		Timestamp:  t.now().UTC(),
	}
	if err := t.ledger.RecordTrade(ctx, rec); err != nil {
		t.log.Error("record trade failed", append(attrs, "error", err)...)
	}
	return res.OK()
}

func (t *Trader) cycleDone(outcome string) {
	if t.Metrics != nil {
		t.Metrics.AutotradeCycles.WithLabelValues(outcome).Inc()
	}
}
