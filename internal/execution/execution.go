// Package execution places trades for the autotrader. Every executor
// satisfies model.Executor: one request per trade, no position tracking.
//
// Failures are reported twice: in the ExecutionResult (status "error" and a
// message, which is what the trade ledger records) and as a Go error for
// callers that want errors.Is.
package execution

import (
	"errors"
	"fmt"

	"signalengine/internal/model"
	"signalengine/pkg/deriv"
)

// ErrNotConfigured is returned when the broker credentials are missing.
var ErrNotConfigured = errors.New("execution: broker not configured")

// ErrNoDirection is returned for HOLD or an unknown direction.
var ErrNoDirection = errors.New("execution: direction is not tradeable")

// ContractType maps BUY to CALL and SELL to PUT.
func ContractType(d model.Direction) (string, error) {
	switch d {
	case model.DirectionBuy:
		return deriv.ContractCall, nil
	case model.DirectionSell:
		return deriv.ContractPut, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrNoDirection, d)
	}
}

func failed(err error) (model.ExecutionResult, error) {
	return model.ExecutionResult{Status: model.ExecutionError, Message: err.Error()}, err
}
