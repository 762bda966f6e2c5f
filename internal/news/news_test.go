package news

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog"
)

type failingFeed struct{ calls int }

func (f *failingFeed) Name() string { return "broken" }

func (f *failingFeed) Headlines(ctx context.Context) ([]Headline, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

type fakeNews struct {
	items []marketdata.News
	req   marketdata.GetNewsRequest
}

func (f *fakeNews) GetNews(req marketdata.GetNewsRequest) ([]marketdata.News, error) {
	f.req = req
	return f.items, nil
}

func TestSamplesReturnsDistinctLabeledHeadlines(t *testing.T) {
	samples := NewSamples(5, rand.New(rand.NewSource(7)))
	headlines, err := samples.Headlines(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(headlines) != 5 {
		t.Fatalf("expected 5 headlines, got %d", len(headlines))
	}
	seen := map[string]bool{}
	for _, h := range headlines {
		if seen[h.Title] {
			t.Fatalf("duplicate headline %q", h.Title)
		}
		seen[h.Title] = true
		if h.Polarity != Bullish && h.Polarity != Bearish {
			t.Fatalf("expected labeled sample, got %q", h.Polarity)
		}
	}
}

func TestFallbackUsedOnFetchError(t *testing.T) {
	primary := &failingFeed{}
	feed := WithFallback(primary, NewSamples(5, rand.New(rand.NewSource(1))), zerolog.Nop())

	headlines, err := feed.Headlines(context.Background())
	if err != nil {
		t.Fatalf("fallback should hide the error, got %v", err)
	}
	if primary.calls != 1 {
		t.Fatalf("expected primary to be tried once, got %d", primary.calls)
	}
	if len(headlines) != 5 {
		t.Fatalf("expected sample headlines, got %d", len(headlines))
	}
}

func TestNewsAPIParsesTitles(t *testing.T) {
	var gotKey, gotCategory string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("apiKey")
		gotCategory = r.URL.Query().Get("category")
		_, _ = w.Write([]byte(`{"status":"ok","articles":[{"title":"Stocks rally"},{"title":""},{"title":"Oil prices drop"}]}`))
	}))
	defer server.Close()

	headlines, err := NewNewsAPI(server.URL, "secret").Headlines(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "secret" || gotCategory != "business" {
		t.Fatalf("unexpected query key=%q category=%q", gotKey, gotCategory)
	}
	if len(headlines) != 2 || headlines[0].Title != "Stocks rally" {
		t.Fatalf("unexpected headlines %+v", headlines)
	}
}

func TestNewsAPIStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","message":"apiKeyInvalid"}`))
	}))
	defer server.Close()

	if _, err := NewNewsAPI(server.URL, "bad").Headlines(context.Background()); err == nil {
		t.Fatalf("expected error for 401")
	}
}

func TestAlpacaHeadlines(t *testing.T) {
	fake := &fakeNews{items: []marketdata.News{{Headline: " Fed holds rates "}, {Headline: "Chipmakers surge"}}}
	feed := &Alpaca{client: fake, symbols: []string{"SPY"}}

	headlines, err := feed.Headlines(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(headlines) != 2 || headlines[0].Title != "Fed holds rates" {
		t.Fatalf("unexpected headlines %+v", headlines)
	}
	if fake.req.TotalLimit != MaxHeadlines || len(fake.req.Symbols) != 1 {
		t.Fatalf("unexpected request %+v", fake.req)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	feed, err := New(Options{Provider: ProviderAuto}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feed.Name() != "samples" {
		t.Fatalf("expected samples without credentials, got %s", feed.Name())
	}

	feed, err = New(Options{Provider: ProviderAuto, NewsAPIKey: "k"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feed.Name() != "newsapi" {
		t.Fatalf("expected newsapi with key, got %s", feed.Name())
	}

	feed, err = New(Options{Provider: ProviderNewsAPI}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feed.Name() != "samples" {
		t.Fatalf("expected samples when key is missing, got %s", feed.Name())
	}

	if _, err := New(Options{Provider: "rss"}, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
