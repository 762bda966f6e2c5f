package strategy

import (
	"context"
	"time"

	"tradebots/internal/broker"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type MarketMakerParams struct {
	SpreadPercent float64
	OrderSize     float64
	Leverage      int
	NumLevels     int
	Interval      time.Duration
}

// MarketMaker quotes a symmetric ladder around the last traded price. It does
// not skew for inventory and never cancels: stale quotes rest until they fill
// or expire on the exchange.
type MarketMaker struct {
	params    MarketMakerParams
	spreadPct decimal.Decimal
	size      decimal.Decimal
	log       zerolog.Logger
}

func NewMarketMaker(params MarketMakerParams, log zerolog.Logger) *MarketMaker {
	return &MarketMaker{
		params:    params,
		spreadPct: decimal.NewFromFloat(params.SpreadPercent),
		size:      decimal.NewFromFloat(params.OrderSize),
		log:       log,
	}
}

func (m *MarketMaker) Kind() Kind                    { return KindMarketMaker }
func (m *MarketMaker) Tag() string                   { return KindMarketMaker.Tag() }
func (m *MarketMaker) TraderType() broker.TraderType { return broker.TraderMarketMaker }
func (m *MarketMaker) NextDelay() time.Duration      { return m.params.Interval }

func (m *MarketMaker) Decide(ctx context.Context, view MarketView) ([]Intent, error) {
	stats, err := view.MarketStats(ctx)
	if err != nil {
		return nil, err
	}
	if !stats.LastPrice.IsPositive() {
		m.log.Warn().Str("last_price", stats.LastPrice.String()).Msg("no usable last price, not quoting")
		return nil, nil
	}
	intents := m.Quote(stats.LastPrice)
	if len(intents) == 0 {
		m.log.Warn().Str("mid", stats.LastPrice.String()).Float64("spread_percent", m.params.SpreadPercent).Msg("spread rounds to zero at this price, not quoting")
		return nil, nil
	}
	m.log.Info().Str("mid", stats.LastPrice.String()).Int("quotes", len(intents)).Msg("quoting")
	return intents, nil
}

// Quote builds up to NumLevels bid/ask pairs, level i sitting (i+1)
// half-spreads away from mid. A level is dropped when rounding to cents would
// put it at or through mid or make it no wider than the level inside it.
func (m *MarketMaker) Quote(mid decimal.Decimal) []Intent {
	if !mid.IsPositive() || m.params.NumLevels <= 0 {
		return nil
	}
	halfSpread := mid.Mul(m.spreadPct).Div(decimal.NewFromInt(100)).Div(decimal.NewFromInt(2))

	intents := make([]Intent, 0, 2*m.params.NumLevels)
	prevWidth := decimal.Zero
	for i := 0; i < m.params.NumLevels; i++ {
		offset := halfSpread.Mul(decimal.NewFromInt(int64(i + 1)))
		bid, ask := round2(mid.Sub(offset)), round2(mid.Add(offset))
		width := ask.Sub(bid)
		if !bid.LessThan(mid) || !ask.GreaterThan(mid) || !width.GreaterThan(prevWidth) || !bid.IsPositive() {
			continue
		}
		prevWidth = width
		intents = append(intents,
			Intent{
				Side:     broker.Buy,
				Type:     broker.Limit,
				Price:    bid,
				Size:     m.size,
				Leverage: m.params.Leverage,
				Reason:   "quote_bid",
			},
			Intent{
				Side:     broker.Sell,
				Type:     broker.Limit,
				Price:    ask,
				Size:     m.size,
				Leverage: m.params.Leverage,
				Reason:   "quote_ask",
			},
		)
	}
	return intents
}
