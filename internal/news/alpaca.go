package news

import (
	"context"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

type newsGetter interface {
	GetNews(req marketdata.GetNewsRequest) ([]marketdata.News, error)
}

// Alpaca reads the latest market news headlines from Alpaca's data API.
type Alpaca struct {
	client  newsGetter
	symbols []string
}

func NewAlpaca(apiKey, apiSecret string, symbols []string) *Alpaca {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})
	return &Alpaca{client: client, symbols: symbols}
}

func (a *Alpaca) Name() string { return "alpaca" }

func (a *Alpaca) Headlines(ctx context.Context) ([]Headline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := a.client.GetNews(marketdata.GetNewsRequest{
		Symbols:    a.symbols,
		TotalLimit: MaxHeadlines,
	})
	if err != nil {
		return nil, err
	}
	headlines := make([]Headline, 0, len(items))
	for _, item := range items {
		headlines = append(headlines, Headline{Title: strings.TrimSpace(item.Headline)})
	}
	return capHeadlines(headlines), nil
}
