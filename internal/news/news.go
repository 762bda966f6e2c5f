// Package news supplies headline lists to the sentiment agent: live sources
// (NewsAPI, Alpaca) and a canned sample set used whenever they are unavailable.
package news

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MaxHeadlines caps what a single fetch hands to the strategy.
const MaxHeadlines = 10

type Polarity string

const (
	Unlabeled Polarity = ""
	Bullish   Polarity = "bullish"
	Bearish   Polarity = "bearish"
	Neutral   Polarity = "neutral"
)

type Headline struct {
	Title    string
	Polarity Polarity
}

type Feed interface {
	Name() string
	Headlines(ctx context.Context) ([]Headline, error)
}

// FetchError is a failed live fetch; it is always recovered by falling back to
// the samples.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch news from %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

var sampleHeadlines = []Headline{
	{Title: "Markets surge on positive economic data", Polarity: Bullish},
	{Title: "Tech stocks rally as earnings beat expectations", Polarity: Bullish},
	{Title: "Concerns grow over inflation data", Polarity: Bearish},
	{Title: "Strong jobs report boosts market confidence", Polarity: Bullish},
	{Title: "Oil prices drop amid demand worries", Polarity: Bearish},
	{Title: "Central bank signals optimism for growth", Polarity: Bullish},
	{Title: "Trade tensions rise between major economies", Polarity: Bearish},
	{Title: "Consumer spending shows strong growth", Polarity: Bullish},
	{Title: "Market volatility increases on uncertainty", Polarity: Bearish},
	{Title: "Innovation breakthroughs drive tech sector", Polarity: Bullish},
}

// Samples serves a random subset of the labeled canned headlines.
type Samples struct {
	count int
	mu    sync.Mutex
	rand  *rand.Rand
}

func NewSamples(count int, rng *rand.Rand) *Samples {
	if count <= 0 || count > len(sampleHeadlines) {
		count = 5
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Samples{count: count, rand: rng}
}

func (s *Samples) Name() string { return "samples" }

func (s *Samples) Headlines(ctx context.Context) ([]Headline, error) {
	s.mu.Lock()
	perm := s.rand.Perm(len(sampleHeadlines))
	s.mu.Unlock()

	out := make([]Headline, 0, s.count)
	for _, idx := range perm[:s.count] {
		out = append(out, sampleHeadlines[idx])
	}
	return out, nil
}

type fallbackFeed struct {
	primary  Feed
	fallback Feed
	log      zerolog.Logger
}

// WithFallback serves primary's headlines and switches to fallback for any
// cycle where primary fails.
func WithFallback(primary, fallback Feed, log zerolog.Logger) Feed {
	return &fallbackFeed{primary: primary, fallback: fallback, log: log}
}

func (f *fallbackFeed) Name() string { return f.primary.Name() }

func (f *fallbackFeed) Headlines(ctx context.Context) ([]Headline, error) {
	headlines, err := f.primary.Headlines(ctx)
	if err == nil {
		return capHeadlines(headlines), nil
	}
	fetchErr := &FetchError{Source: f.primary.Name(), Err: err}
	f.log.Warn().Err(fetchErr).Str("fallback", f.fallback.Name()).Msg("news fetch failed, using fallback headlines")
	return f.fallback.Headlines(ctx)
}

func capHeadlines(headlines []Headline) []Headline {
	out := headlines[:0:0]
	for _, h := range headlines {
		if h.Title == "" {
			continue
		}
		out = append(out, h)
		if len(out) == MaxHeadlines {
			break
		}
	}
	return out
}
