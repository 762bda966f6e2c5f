package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"time"

	"tradebots/internal/broker"
	"tradebots/internal/md"
	"tradebots/internal/metrics"
	"tradebots/internal/risk"
	"tradebots/internal/state"
	"tradebots/internal/strategy"

	"github.com/rs/zerolog"
)

const DefaultStatusEvery = 20

// Exchange is the part of the broker client an agent needs.
type Exchange interface {
	Register(ctx context.Context, reg broker.Registration) (broker.Identity, error)
	MarketStats(ctx context.Context) (broker.MarketStats, error)
	OrderBook(ctx context.Context) (broker.OrderBook, error)
	Position(ctx context.Context, traderID string) (broker.Position, bool, error)
	SubmitOrder(ctx context.Context, token string, req broker.OrderRequest) (broker.OrderResult, error)
}

type Options struct {
	Strategy    strategy.Strategy
	Exchange    Exchange
	Gate        risk.Gate
	Decisions   *DecisionLogger
	Tape        *md.Tape
	Username    string
	Password    string
	StatusEvery int
	Log         zerolog.Logger
}

// Agent runs one strategy against the exchange under a single identity.
// Cycles never overlap.
type Agent struct {
	strategy    strategy.Strategy
	exchange    Exchange
	gate        risk.Gate
	decisions   *DecisionLogger
	tape        *md.Tape
	username    string
	password    string
	statusEvery int
	log         zerolog.Logger

	identity broker.Identity
	stats    *state.Stats
	fills    *md.FillTracker
	now      func() time.Time
}

type cycleResult struct {
	intents   int
	submitted int
	rejected  int
	failed    int
	err       error
}

func New(opts Options) *Agent {
	statusEvery := opts.StatusEvery
	if statusEvery <= 0 {
		statusEvery = DefaultStatusEvery
	}
	return &Agent{
		strategy:    opts.Strategy,
		exchange:    opts.Exchange,
		gate:        opts.Gate,
		decisions:   opts.Decisions,
		tape:        opts.Tape,
		username:    opts.Username,
		password:    opts.Password,
		statusEvery: statusEvery,
		log:         opts.Log,
		stats:       state.NewStats(time.Now().UTC()),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Username builds the per-process login for a strategy, e.g. "mm_bot_4821".
func Username(kind strategy.Kind, rng *rand.Rand) string {
	prefix := "bot"
	switch kind {
	case strategy.KindMarketMaker:
		prefix = "mm_bot"
	case strategy.KindSentiment:
		prefix = "news_bot"
	case strategy.KindRandom:
		prefix = "rand_bot"
	}
	return fmt.Sprintf("%s_%d", prefix, 1000+rng.Intn(9000))
}

func (a *Agent) Identity() broker.Identity { return a.identity }

func (a *Agent) Stats() state.Snapshot { return a.stats.Snapshot() }

// Run registers once and then cycles until ctx is canceled. Only a failed
// registration is returned as an error.
func (a *Agent) Run(ctx context.Context) error {
	identity, err := a.exchange.Register(ctx, broker.Registration{
		Username: a.username,
		Password: a.password,
		Type:     a.strategy.TraderType(),
	})
	if err != nil {
		a.log.Error().Err(err).Str("username", a.username).Msg("registration failed")
		return err
	}
	a.identity = identity
	a.log = a.log.With().Str("trader_id", identity.TraderID).Logger()
	a.log.Info().Str("username", identity.Username).Str("type", string(a.strategy.TraderType())).Msg("agent started")

	if a.tape != nil {
		a.fills = md.NewFillTracker(identity.TraderID, md.DefaultPriceWindow)
		go a.followTape(ctx)
	}

	view := &marketView{exchange: a.exchange, traderID: identity.TraderID}
	kind := string(a.strategy.Kind())
	for {
		metrics.CyclesTotal.WithLabelValues(kind).Inc()
		result := a.runCycle(ctx, view)
		if result.err != nil {
			metrics.CycleErrorsTotal.WithLabelValues(kind).Inc()
			a.log.Warn().Err(result.err).Msg("cycle failed")
		}
		cycles := a.stats.CycleDone(result.err, a.now())
		a.log.Debug().
			Uint64("cycle", cycles).
			Int("intents", result.intents).
			Int("submitted", result.submitted).
			Int("rejected", result.rejected).
			Int("failed", result.failed).
			Msg("cycle done")
		if cycles%uint64(a.statusEvery) == 0 {
			a.reportStatus(ctx, view)
		}

		if err := waitForContext(ctx, a.strategy.NextDelay()); err != nil {
			a.log.Info().Uint64("cycles", cycles).Msg("agent stopped")
			return nil
		}
	}
}

// runCycle never lets an error or panic escape; both come back in the result.
func (a *Agent) runCycle(ctx context.Context, view strategy.MarketView) (result cycleResult) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("cycle panicked")
			result.err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	intents, err := a.strategy.Decide(ctx, view)
	if err != nil {
		result.err = err
		return result
	}
	result.intents = len(intents)
	for _, intent := range intents {
		if ctx.Err() != nil {
			break
		}
		switch a.execute(ctx, intent) {
		case outcomeSubmitted:
			result.submitted++
		case outcomeRejected:
			result.rejected++
		case outcomeFailed:
			result.failed++
		}
	}
	return result
}

type outcome int

const (
	outcomeSubmitted outcome = iota
	outcomeRejected
	outcomeFailed
)

func (a *Agent) execute(ctx context.Context, intent strategy.Intent) outcome {
	kind := string(a.strategy.Kind())
	decision := a.newDecision(intent)

	if err := a.gate.Evaluate(intent); err != nil {
		reason := err.Error()
		var rej *risk.Rejection
		if errors.As(err, &rej) {
			reason = rej.Reason
		}
		metrics.IntentsRejectedTotal.WithLabelValues(kind, reason).Inc()
		a.stats.OrderRejected()
		decision.Result = ResultRejected
		decision.Error = err.Error()
		a.decisions.Append(decision)
		return outcomeRejected
	}

	result, err := a.exchange.SubmitOrder(ctx, a.identity.Token, broker.OrderRequest{
		TraderID: a.identity.TraderID,
		Side:     intent.Side,
		Type:     intent.Type,
		Price:    intent.Price,
		Size:     intent.Size,
		Leverage: intent.Leverage,
	})
	if err != nil {
		metrics.OrderFailuresTotal.WithLabelValues(kind).Inc()
		a.stats.OrderFailed(err, a.now())
		a.log.Warn().Err(err).Str("side", string(intent.Side)).Str("type", string(intent.Type)).Str("size", intent.Size.String()).Msg("order failed")
		decision.Result = ResultFailed
		decision.Error = err.Error()
		a.decisions.Append(decision)
		return outcomeFailed
	}

	metrics.OrdersTotal.WithLabelValues(kind, string(intent.Side), string(intent.Type)).Inc()
	a.stats.OrderSubmitted(a.now())
	event := a.log.Info().
		Str("side", string(intent.Side)).
		Str("type", string(intent.Type)).
		Str("size", intent.Size.String()).
		Int("leverage", intent.Leverage).
		Str("order_id", result.OrderID).
		Int("trades", len(result.Trades))
	if intent.Type == broker.Limit {
		event = event.Str("price", intent.Price.String())
	}
	event.Msg("order submitted")

	decision.Result = ResultSubmitted
	decision.OrderID = result.OrderID
	decision.Trades = len(result.Trades)
	a.decisions.Append(decision)
	return outcomeSubmitted
}

func (a *Agent) newDecision(intent strategy.Intent) Decision {
	d := Decision{
		Timestamp: a.now(),
		Agent:     a.strategy.Tag(),
		Strategy:  string(a.strategy.Kind()),
		TraderID:  a.identity.TraderID,
		Side:      string(intent.Side),
		Type:      string(intent.Type),
		Size:      intent.Size.String(),
		Leverage:  intent.Leverage,
		Reason:    intent.Reason,
	}
	if intent.Type == broker.Limit {
		d.Price = intent.Price.String()
	}
	return d
}

func (a *Agent) followTape(ctx context.Context) {
	kind := string(a.strategy.Kind())
	err := a.tape.Run(ctx, func(trade broker.Trade) {
		if a.fills.Record(trade) {
			metrics.FillsTotal.WithLabelValues(kind).Inc()
			a.stats.FillSeen()
			a.log.Debug().Str("price", trade.Price.String()).Str("size", trade.Size.String()).Msg("fill")
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn().Err(err).Msg("trade tape stopped")
	}
}

// marketView binds the exchange reads to this agent's trader id.
type marketView struct {
	exchange Exchange
	traderID string
}

func (v *marketView) MarketStats(ctx context.Context) (broker.MarketStats, error) {
	return v.exchange.MarketStats(ctx)
}

func (v *marketView) OrderBook(ctx context.Context) (broker.OrderBook, error) {
	return v.exchange.OrderBook(ctx)
}

func (v *marketView) Position(ctx context.Context) (broker.Position, bool, error) {
	return v.exchange.Position(ctx, v.traderID)
}

func waitForContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
