package model

import "context"

// ── Boundary Port Interfaces ──
// The core consumes persistence and execution through these interfaces and
// never holds their data across a sleep. The SQLite store, the paper and
// Deriv executors satisfy them.

// UserStore reads user autotrade configuration.
type UserStore interface {
	// GetUserConfig returns one user's configuration.
	GetUserConfig(ctx context.Context, userID int64) (AutotradeConfig, error)

	// ListAutotradeUsers returns every user with autotrading enabled.
	ListAutotradeUsers(ctx context.Context) ([]AutotradeConfig, error)

	// ListNotifiableUsers returns users that opted into signal notifications.
	ListNotifiableUsers(ctx context.Context) ([]AutotradeConfig, error)
}

// TradeLedger is the append-only trade record store.
type TradeLedger interface {
	// CountTradesToday counts the user's trades since the start of the current UTC day.
	CountTradesToday(ctx context.Context, userID int64) (int, error)

	// RecordTrade appends an execution outcome.
	RecordTrade(ctx context.Context, rec TradeRecord) error
}

// SignalRecorder appends produced signals to history.
type SignalRecorder interface {
	RecordSignal(ctx context.Context, sig Signal) error
}

// Executor is the single execution primitive: one fire-and-forget request per trade.
type Executor interface {
	Execute(ctx context.Context, asset string, direction Direction, amount float64) (ExecutionResult, error)
}
