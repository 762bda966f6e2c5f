package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradebots/internal/broker"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindMarketMaker Kind = "market-maker"
	KindSentiment   Kind = "sentiment"
	KindRandom      Kind = "random"
)

// Intent is an order the strategy wants placed. Price is zero for market
// intents.
type Intent struct {
	Side     broker.Side
	Type     broker.OrderType
	Price    decimal.Decimal
	Size     decimal.Decimal
	Leverage int
	Reason   string
}

// MarketView is the read side of the exchange bound to one trader. Every call
// goes to the exchange; nothing is cached between cycles.
type MarketView interface {
	MarketStats(ctx context.Context) (broker.MarketStats, error)
	OrderBook(ctx context.Context) (broker.OrderBook, error)
	Position(ctx context.Context) (broker.Position, bool, error)
}

type Strategy interface {
	Kind() Kind
	// Tag prefixes the agent's log lines.
	Tag() string
	TraderType() broker.TraderType
	Decide(ctx context.Context, view MarketView) ([]Intent, error)
	// NextDelay is the sleep before the next cycle.
	NextDelay() time.Duration
}

// Tag is the short label an agent running this kind logs under.
func (k Kind) Tag() string {
	switch k {
	case KindMarketMaker:
		return "MM"
	case KindSentiment:
		return "NEWS"
	case KindRandom:
		return "RAND"
	default:
		return strings.ToUpper(string(k))
	}
}

func ParseKind(value string) (Kind, error) {
	switch Kind(value) {
	case KindMarketMaker, KindSentiment, KindRandom:
		return Kind(value), nil
	default:
		return "", fmt.Errorf("unknown strategy: %q", value)
	}
}

// round2 rounds half away from zero to cents, the precision the exchange quotes in.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
