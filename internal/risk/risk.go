package risk

import (
	"fmt"

	"tradebots/internal/broker"
	"tradebots/internal/strategy"

	"github.com/rs/zerolog"
)

const DefaultMaxLeverage = 50

type Limits struct {
	MaxLeverage int
}

// Rejection names the rule an intent broke; Reason doubles as a metric label.
type Rejection struct {
	Reason string
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return r.Reason
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

type Gate struct {
	Limits Limits
	Log    zerolog.Logger
}

func NewGate(limits Limits, log zerolog.Logger) Gate {
	if limits.MaxLeverage <= 0 {
		limits.MaxLeverage = DefaultMaxLeverage
	}
	return Gate{Limits: limits, Log: log}
}

func (g Gate) Evaluate(intent strategy.Intent) error {
	if !intent.Size.IsPositive() {
		return g.reject(intent, "invalid_size", fmt.Sprintf("size %s", intent.Size))
	}
	if intent.Leverage < 1 {
		return g.reject(intent, "invalid_leverage", fmt.Sprintf("leverage %d", intent.Leverage))
	}
	if intent.Leverage > g.Limits.MaxLeverage {
		return g.reject(intent, "max_leverage_exceeded", fmt.Sprintf("leverage %d above %d", intent.Leverage, g.Limits.MaxLeverage))
	}
	if intent.Price.IsNegative() {
		return g.reject(intent, "invalid_price", fmt.Sprintf("price %s", intent.Price))
	}
	if intent.Type == broker.Limit && !intent.Price.IsPositive() {
		return g.reject(intent, "invalid_price", "limit order without price")
	}
	return nil
}

func (g Gate) reject(intent strategy.Intent, reason, detail string) error {
	g.Log.Info().
		Str("reason", reason).
		Str("side", string(intent.Side)).
		Str("size", intent.Size.String()).
		Int("leverage", intent.Leverage).
		Msg("risk rejected")
	return &Rejection{Reason: reason, Detail: detail}
}
