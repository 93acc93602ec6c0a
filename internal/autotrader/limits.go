package autotrader

import "signalengine/internal/model"

// Order is one planned execution for one user.
type Order struct {
	UserID     int64
	Asset      string
	Direction  model.Direction
	Amount     float64
	Confidence float64
	Entry      float64
}

// CanTrade checks a signal against a user's limits given the trades already
// taken today. Returns true if the trade is allowed, false with a reason if not.
func CanTrade(cfg model.AutotradeConfig, sig model.Signal, tradesToday int) (bool, string) {
	if sig.Direction != model.DirectionBuy && sig.Direction != model.DirectionSell {
		return false, "no tradeable direction"
	}
	if sig.Confidence < cfg.MinConfidence {
		return false, "below min confidence"
	}
	if tradesToday >= cfg.MaxTradesPerDay {
		return false, "max trades per day reached"
	}
	return true, ""
}

// Plan distributes signals to users. counts holds each user's trades so
// far today; a user absent from counts is skipped. Orders taken during
// planning count against the same user's daily limit.
func Plan(users []model.AutotradeConfig, signals map[string]model.Signal, counts map[int64]int) []Order {
	var orders []Order
	for _, u := range users {
		taken, ok := counts[u.UserID]
		if !ok {
			continue
		}
		for _, asset := range u.AssetList() {
			sig, ok := signals[asset]
			if !ok {
				continue
			}
			if allowed, _ := CanTrade(u, sig, taken); !allowed {
				continue
			}
			taken++
			orders = append(orders, Order{
				UserID:     u.UserID,
				Asset:      asset,
				Direction:  sig.Direction,
				Amount:     u.Amount(),
				Confidence: sig.Confidence,
				Entry:      sig.Entry,
			})
		}
	}
	return orders
}

// Instruments returns the distinct assets across users in first-seen order.
func Instruments(users []model.AutotradeConfig) []model.Instrument {
	seen := make(map[string]bool)
	var out []model.Instrument
	for _, u := range users {
		for _, asset := range u.AssetList() {
			if seen[asset] {
				continue
			}
			seen[asset] = true
			out = append(out, model.NewInstrument(asset, model.ClassUnknown))
		}
	}
	return out
}
