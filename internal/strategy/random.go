package strategy

import (
	"context"
	"math/rand"
	"time"

	"tradebots/internal/broker"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type RandomParams struct {
	MinSize   float64
	MaxSize   float64
	Leverage  int
	Interval  time.Duration
	JitterMin time.Duration
	JitterMax time.Duration
	MinDelay  time.Duration
}

// Random hits whichever side of the book a coin flip picks, falling back to
// the other side when the preferred one has no liquidity to take.
type Random struct {
	params RandomParams
	rand   *rand.Rand
	log    zerolog.Logger
}

func NewRandom(params RandomParams, rng *rand.Rand, log zerolog.Logger) *Random {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Random{params: params, rand: rng, log: log}
}

func (r *Random) Kind() Kind                    { return KindRandom }
func (r *Random) Tag() string                   { return KindRandom.Tag() }
func (r *Random) TraderType() broker.TraderType { return broker.TraderBot }

func (r *Random) Decide(ctx context.Context, view MarketView) ([]Intent, error) {
	book, err := view.OrderBook(ctx)
	if err != nil {
		return nil, err
	}
	intent, ok := r.pick(book, r.rand.Float64() < 0.5)
	if !ok {
		r.log.Info().Msg("no liquidity in book, skipping")
		return nil, nil
	}

	touch := book.Asks
	if intent.Side == broker.Sell {
		touch = book.Bids
	}
	r.log.Info().Str("side", string(intent.Side)).Str("size", intent.Size.String()).Str("touch", touch[0].Price.String()).Msg("random market order")
	return []Intent{intent}, nil
}

// pick chooses the side given the coin flip; a buy takes asks and a sell
// takes bids.
func (r *Random) pick(book broker.OrderBook, preferBuy bool) (Intent, bool) {
	if len(book.Bids) == 0 && len(book.Asks) == 0 {
		return Intent{}, false
	}

	side := broker.Sell
	if preferBuy {
		side = broker.Buy
	}
	if side == broker.Buy && len(book.Asks) == 0 {
		side = broker.Sell
	} else if side == broker.Sell && len(book.Bids) == 0 {
		side = broker.Buy
	}

	return Intent{
		Side:     side,
		Type:     broker.Market,
		Size:     r.size(),
		Leverage: r.params.Leverage,
		Reason:   "random_flow",
	}, true
}

func (r *Random) size() decimal.Decimal {
	span := r.params.MaxSize - r.params.MinSize
	value := r.params.MinSize + r.rand.Float64()*span
	return round2(decimal.NewFromFloat(value))
}

// NextDelay adds whole-second jitter in [JitterMin, JitterMax] to the base
// interval and never returns less than MinDelay.
func (r *Random) NextDelay() time.Duration {
	delay := r.params.Interval
	lo := int64(r.params.JitterMin / time.Second)
	hi := int64(r.params.JitterMax / time.Second)
	if hi >= lo {
		delay += time.Duration(lo+r.rand.Int63n(hi-lo+1)) * time.Second
	}
	if delay < r.params.MinDelay {
		delay = r.params.MinDelay
	}
	return delay
}
