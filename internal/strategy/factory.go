package strategy

import (
	"fmt"
	"math/rand"

	"tradebots/internal/news"

	"github.com/rs/zerolog"
)

// Params bundles every strategy's settings; Build only reads the one it needs.
type Params struct {
	MarketMaker MarketMakerParams
	Sentiment   SentimentParams
	Random      RandomParams
}

// Build returns the strategy for kind. feed is only used by the sentiment
// strategy and rng only by the random one.
func Build(kind Kind, params Params, feed news.Feed, rng *rand.Rand, log zerolog.Logger) (Strategy, error) {
	switch kind {
	case KindMarketMaker:
		return NewMarketMaker(params.MarketMaker, log), nil
	case KindSentiment:
		if feed == nil {
			return nil, fmt.Errorf("sentiment strategy needs a news feed")
		}
		return NewSentiment(params.Sentiment, feed, log), nil
	case KindRandom:
		return NewRandom(params.Random, rng, log), nil
	default:
		return nil, fmt.Errorf("unknown strategy: %q", kind)
	}
}
