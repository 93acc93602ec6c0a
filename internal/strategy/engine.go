// Package strategy provides the strategy engine that runs the rule set over
// a feature set and resolves the votes into one decision.
//
// A Rule is a pure function of the feature set that either abstains or votes
// BUY/SELL with a fixed strength. The Engine evaluates every rule in order;
// opposing votes make the decision a conflict, otherwise the strongest vote
// wins with ties going to the earlier rule.
package strategy

import (
	"signalengine/internal/feature"
	"signalengine/internal/model"
)

// Decision names.
const (
	NameNoneQualified = "No Strategy Qualified"
	NameStable        = "Stable Market Scan"
	NameConflict      = "High Volatility Conflict"
)

// MinRows is the shortest table the rules are evaluated on.
const MinRows = 20

// State is the outcome class of an evaluation.
type State int

const (
	// StateNeutral means no rule voted (or the table was too short).
	StateNeutral State = iota
	// StateSelected means one direction won.
	StateSelected
	// StateConflict means rules voted both ways.
	StateConflict
)

func (s State) String() string {
	switch s {
	case StateSelected:
		return "selected"
	case StateConflict:
		return "conflict"
	default:
		return "neutral"
	}
}

// Vote is one rule's output.
type Vote struct {
	Name      string          `json:"name"`
	Direction model.Direction `json:"direction"`
	Strength  float64         `json:"strength"`
}

// Rule evaluates the feature set. ok is false when the rule abstains.
type Rule func(fs *feature.Set) (v Vote, ok bool)

// Decision is the resolved outcome. Direction is HOLD unless State is Selected.
type Decision struct {
	Name      string          `json:"name"`
	Direction model.Direction `json:"direction"`
	State     State           `json:"state"`
	Votes     []Vote          `json:"votes,omitempty"`
}

// Engine holds the ordered rule set.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine over the given rules, or the default five
// when none are given.
func NewEngine(rules ...Rule) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Engine{rules: rules}
}

// Register appends a rule after the existing ones.
func (e *Engine) Register(r Rule) {
	e.rules = append(e.rules, r)
}

// Evaluate runs every rule and resolves the votes.
func (e *Engine) Evaluate(fs *feature.Set) Decision {
	if fs == nil || fs.Rows < MinRows {
		return Decision{Name: NameNoneQualified, Direction: model.DirectionHold, State: StateNeutral}
	}

	var votes []Vote
	for _, rule := range e.rules {
		if v, ok := rule(fs); ok {
			votes = append(votes, v)
		}
	}
	return Resolve(votes)
}

// Resolve reduces votes to a decision.
func Resolve(votes []Vote) Decision {
	if len(votes) == 0 {
		return Decision{Name: NameStable, Direction: model.DirectionHold, State: StateNeutral}
	}

	var buy, sell bool
	best := votes[0]
	for _, v := range votes {
		switch v.Direction {
		case model.DirectionBuy:
			buy = true
		case model.DirectionSell:
			sell = true
		}
		if v.Strength > best.Strength {
			best = v
		}
	}
	if buy && sell {
		return Decision{Name: NameConflict, Direction: model.DirectionHold, State: StateConflict, Votes: votes}
	}
	return Decision{Name: best.Name, Direction: best.Direction, State: StateSelected, Votes: votes}
}
