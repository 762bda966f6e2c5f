package strategy

import (
	"context"
	"math"
	"testing"
	"time"

	"tradebots/internal/broker"
	"tradebots/internal/news"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func newTestSentiment(feed news.Feed) *Sentiment {
	return NewSentiment(SentimentParams{PositionSize: 2, Leverage: 25, Threshold: 0.3, Interval: 30 * time.Second}, feed, zerolog.Nop())
}

func TestScore(t *testing.T) {
	cases := []struct {
		name      string
		headlines []string
		want      float64
	}{
		{name: "empty", headlines: nil, want: 0},
		{name: "no keywords", headlines: []string{"Weather is mild today", "Museum opens new wing"}, want: 0},
		{name: "all bullish", headlines: []string{"Markets surge on positive economic data"}, want: 1},
		{name: "all bearish", headlines: []string{"Oil prices drop amid demand worries"}, want: -1},
		{name: "balanced", headlines: []string{"Markets surge", "Markets crash"}, want: 0},
		{name: "case insensitive", headlines: []string{"RALLY", "rally", "Plunge"}, want: 1.0 / 3.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.headlines)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestScoreOrderInvariantAndBounded(t *testing.T) {
	headlines := []string{
		"Concerns grow over inflation data",
		"Strong jobs report boosts market confidence",
		"Trade tensions rise between major economies",
		"Market volatility increases on uncertainty",
		"Innovation breakthroughs drive tech sector",
	}
	base := Score(headlines)
	if base < -1 || base > 1 {
		t.Fatalf("score out of bounds: %v", base)
	}

	reversed := make([]string, len(headlines))
	for i, h := range headlines {
		reversed[len(headlines)-1-i] = h
	}
	if got := Score(reversed); got != base {
		t.Fatalf("expected order invariance, got %v vs %v", got, base)
	}
	rotated := append(append([]string{}, headlines[2:]...), headlines[:2]...)
	if got := Score(rotated); got != base {
		t.Fatalf("expected order invariance, got %v vs %v", got, base)
	}
}

func TestPolarityInference(t *testing.T) {
	if got := Polarity("Tech stocks rally"); got != news.Bullish {
		t.Fatalf("expected bullish, got %s", got)
	}
	if got := Polarity("Oil prices plunge"); got != news.Bearish {
		t.Fatalf("expected bearish, got %s", got)
	}
	if got := Polarity("Weather is mild today"); got != news.Neutral {
		t.Fatalf("expected neutral, got %s", got)
	}
}

func TestSentimentDecideNeverFlips(t *testing.T) {
	s := newTestSentiment(staticFeed{})
	cases := []struct {
		name     string
		score    float64
		position string
		wantSide broker.Side
		wantOK   bool
	}{
		{name: "bullish against short", score: 0.9, position: "-3", wantOK: false},
		{name: "bearish against long", score: -0.9, position: "3", wantOK: false},
		{name: "bullish from flat", score: 0.9, position: "0", wantSide: broker.Buy, wantOK: true},
		{name: "bullish adds to long", score: 0.5, position: "2", wantSide: broker.Buy, wantOK: true},
		{name: "bearish from flat", score: -0.4, position: "0", wantSide: broker.Sell, wantOK: true},
		{name: "bearish adds to short", score: -1, position: "-2", wantSide: broker.Sell, wantOK: true},
		{name: "exactly at threshold", score: 0.3, position: "0", wantSide: broker.Buy, wantOK: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			intent, ok := s.decide(tc.score, mustDecimal(t, tc.position))
			if ok != tc.wantOK {
				t.Fatalf("expected ok=%v, got %v", tc.wantOK, ok)
			}
			if !ok {
				return
			}
			if intent.Side != tc.wantSide || intent.Type != broker.Market {
				t.Fatalf("expected market %s, got %s %s", tc.wantSide, intent.Type, intent.Side)
			}
			if !intent.Size.Equal(decimal.NewFromInt(2)) || intent.Leverage != 25 {
				t.Fatalf("unexpected size/leverage %s/%d", intent.Size, intent.Leverage)
			}
		})
	}
}

func TestSentimentDecideFromFlat(t *testing.T) {
	feed := staticFeed{headlines: []news.Headline{
		{Title: "Markets surge on positive economic data"},
		{Title: "Tech stocks rally as earnings beat expectations"},
	}}
	s := newTestSentiment(feed)

	intents, err := s.Decide(context.Background(), &fakeView{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 1 {
		t.Fatalf("expected one intent, got %d", len(intents))
	}
	if intents[0].Side != broker.Buy || !intents[0].Size.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected buy of 2, got %s %s", intents[0].Side, intents[0].Size)
	}
}

func TestSentimentHoldsAgainstShort(t *testing.T) {
	feed := staticFeed{headlines: []news.Headline{{Title: "Markets surge on positive economic data"}}}
	s := newTestSentiment(feed)
	view := &fakeView{position: broker.Position{Size: decimal.NewFromInt(-3)}, hasPosition: true}

	intents, err := s.Decide(context.Background(), view)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 0 {
		t.Fatalf("expected no intents against short, got %d", len(intents))
	}
}

func TestSentimentWeakSignalSkipsPositionLookup(t *testing.T) {
	feed := staticFeed{headlines: []news.Headline{{Title: "Markets surge"}, {Title: "Markets crash"}}}
	s := newTestSentiment(feed)
	view := &fakeView{}

	intents, err := s.Decide(context.Background(), view)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 0 {
		t.Fatalf("expected no intents, got %d", len(intents))
	}
	if view.positionCalls != 0 {
		t.Fatalf("expected no position lookup, got %d", view.positionCalls)
	}
}

func TestSentimentNoHeadlines(t *testing.T) {
	s := newTestSentiment(staticFeed{})
	intents, err := s.Decide(context.Background(), &fakeView{})
	if err != nil || len(intents) != 0 {
		t.Fatalf("expected nothing, got %d intents err=%v", len(intents), err)
	}
}
