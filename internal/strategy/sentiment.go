package strategy

import (
	"context"
	"math"
	"strings"
	"time"

	"tradebots/internal/broker"
	"tradebots/internal/metrics"
	"tradebots/internal/news"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var bullishKeywords = []string{
	"surge", "soar", "rally", "gain", "growth", "bullish", "record high",
	"boom", "recovery", "optimism", "breakthrough", "success", "profit",
	"strong", "up", "rise", "positive", "confident", "buy",
}

var bearishKeywords = []string{
	"crash", "plunge", "fall", "drop", "decline", "bearish", "record low",
	"recession", "fear", "concern", "crisis", "loss", "weak", "down",
	"negative", "sell", "panic", "warning", "risk", "uncertainty",
}

type SentimentParams struct {
	PositionSize float64
	Leverage     int
	Threshold    float64
	Interval     time.Duration
}

// Sentiment takes a directional market position when headline keyword
// sentiment is strong enough. It adds to a position on the same side but never
// flips or closes one on the other side.
type Sentiment struct {
	params SentimentParams
	size   decimal.Decimal
	feed   news.Feed
	log    zerolog.Logger
}

func NewSentiment(params SentimentParams, feed news.Feed, log zerolog.Logger) *Sentiment {
	return &Sentiment{
		params: params,
		size:   decimal.NewFromFloat(params.PositionSize),
		feed:   feed,
		log:    log,
	}
}

func (s *Sentiment) Kind() Kind                    { return KindSentiment }
func (s *Sentiment) Tag() string                   { return KindSentiment.Tag() }
func (s *Sentiment) TraderType() broker.TraderType { return broker.TraderBot }
func (s *Sentiment) NextDelay() time.Duration      { return s.params.Interval }

func (s *Sentiment) Decide(ctx context.Context, view MarketView) ([]Intent, error) {
	headlines, err := s.feed.Headlines(ctx)
	if err != nil {
		return nil, err
	}
	if len(headlines) == 0 {
		s.log.Info().Msg("no headlines to analyze")
		return nil, nil
	}

	titles := make([]string, 0, len(headlines))
	for _, h := range headlines {
		titles = append(titles, h.Title)
	}
	score := Score(titles)
	metrics.SentimentScore.Set(score)
	s.logHeadlines(headlines, score)

	if math.Abs(score) < s.params.Threshold {
		s.log.Info().Float64("score", score).Msg("sentiment too weak, no trade")
		return nil, nil
	}

	pos, found, err := view.Position(ctx)
	if err != nil {
		return nil, err
	}
	current := decimal.Zero
	if found {
		current = pos.Size
	}

	intent, ok := s.decide(score, current)
	if !ok {
		s.log.Info().Float64("score", score).Str("position", current.String()).Msg("signal against open position, holding")
		return nil, nil
	}
	s.log.Info().Float64("score", score).Str("side", string(intent.Side)).Str("size", intent.Size.String()).Int("leverage", intent.Leverage).Msg("sentiment signal")
	return []Intent{intent}, nil
}

// decide applies the position rule to a score that already cleared the
// threshold in either direction.
func (s *Sentiment) decide(score float64, current decimal.Decimal) (Intent, bool) {
	switch {
	case score >= s.params.Threshold && !current.IsNegative():
		return s.marketIntent(broker.Buy, "bullish_sentiment"), true
	case score <= -s.params.Threshold && !current.IsPositive():
		return s.marketIntent(broker.Sell, "bearish_sentiment"), true
	default:
		return Intent{}, false
	}
}

func (s *Sentiment) marketIntent(side broker.Side, reason string) Intent {
	return Intent{
		Side:     side,
		Type:     broker.Market,
		Size:     s.size,
		Leverage: s.params.Leverage,
		Reason:   reason,
	}
}

func (s *Sentiment) logHeadlines(headlines []news.Headline, score float64) {
	s.log.Info().Int("headlines", len(headlines)).Float64("score", score).Msg("headlines analyzed")
	for i, h := range headlines {
		if i == 3 {
			break
		}
		polarity := h.Polarity
		if polarity == news.Unlabeled {
			polarity = Polarity(h.Title)
		}
		s.log.Debug().Str("polarity", string(polarity)).Msg(truncate(h.Title, 60))
	}
}

// Score is (bullish-bearish)/(bullish+bearish) over keyword hits across all
// headlines, or 0 when nothing matches.
func Score(headlines []string) float64 {
	bullish, bearish := 0, 0
	for _, headline := range headlines {
		b, r := keywordHits(headline)
		bullish += b
		bearish += r
	}
	total := bullish + bearish
	if total == 0 {
		return 0
	}
	return float64(bullish-bearish) / float64(total)
}

// Polarity infers a label for a headline that arrived without one.
func Polarity(headline string) news.Polarity {
	bullish, bearish := keywordHits(headline)
	switch {
	case bullish > bearish:
		return news.Bullish
	case bearish > bullish:
		return news.Bearish
	default:
		return news.Neutral
	}
}

func keywordHits(headline string) (bullish, bearish int) {
	lower := strings.ToLower(headline)
	for _, keyword := range bullishKeywords {
		if strings.Contains(lower, keyword) {
			bullish++
		}
	}
	for _, keyword := range bearishKeywords {
		if strings.Contains(lower, keyword) {
			bearish++
		}
	}
	return bullish, bearish
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
