package news

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"
)

const (
	ProviderAuto    = "auto"
	ProviderNewsAPI = "newsapi"
	ProviderAlpaca  = "alpaca"
	ProviderSamples = "samples"
)

type Options struct {
	Provider      string
	NewsAPIKey    string
	NewsAPIURL    string
	AlpacaKey     string
	AlpacaSecret  string
	AlpacaSymbols []string
	SampleSize    int
	Rand          *rand.Rand
}

// New picks the headline source. Live sources are always wrapped so a failed
// fetch degrades to the samples; a live source without credentials is
// replaced by the samples outright.
func New(opts Options, log zerolog.Logger) (Feed, error) {
	samples := NewSamples(opts.SampleSize, opts.Rand)

	provider := opts.Provider
	if provider == "" || provider == ProviderAuto {
		switch {
		case opts.NewsAPIKey != "":
			provider = ProviderNewsAPI
		case opts.AlpacaKey != "" && opts.AlpacaSecret != "":
			provider = ProviderAlpaca
		default:
			provider = ProviderSamples
		}
	}

	switch provider {
	case ProviderNewsAPI:
		if opts.NewsAPIKey == "" {
			log.Warn().Msg("NEWS_API_KEY not set, using sample headlines")
			return samples, nil
		}
		return WithFallback(NewNewsAPI(opts.NewsAPIURL, opts.NewsAPIKey), samples, log), nil
	case ProviderAlpaca:
		if opts.AlpacaKey == "" || opts.AlpacaSecret == "" {
			log.Warn().Msg("APCA_API_KEY_ID/APCA_API_SECRET_KEY not set, using sample headlines")
			return samples, nil
		}
		return WithFallback(NewAlpaca(opts.AlpacaKey, opts.AlpacaSecret, opts.AlpacaSymbols), samples, log), nil
	case ProviderSamples:
		return samples, nil
	default:
		return nil, fmt.Errorf("unknown news provider: %q", provider)
	}
}
