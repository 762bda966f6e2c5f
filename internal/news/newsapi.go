package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const DefaultNewsAPIURL = "https://newsapi.org/v2/top-headlines"

// NewsAPI reads business top headlines from newsapi.org.
type NewsAPI struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Title string `json:"title"`
	} `json:"articles"`
}

func NewNewsAPI(endpoint, apiKey string) *NewsAPI {
	if endpoint == "" {
		endpoint = DefaultNewsAPIURL
	}
	return &NewsAPI{endpoint: endpoint, apiKey: apiKey, client: &http.Client{}}
}

func (n *NewsAPI) Name() string { return "newsapi" }

func (n *NewsAPI) Headlines(ctx context.Context) ([]Headline, error) {
	query := url.Values{}
	query.Set("apiKey", n.apiKey)
	query.Set("category", "business")
	query.Set("language", "en")
	query.Set("pageSize", strconv.Itoa(MaxHeadlines))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("newsapi error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if payload.Status == "error" {
		return nil, fmt.Errorf("newsapi error: %s", payload.Message)
	}

	headlines := make([]Headline, 0, len(payload.Articles))
	for _, article := range payload.Articles {
		headlines = append(headlines, Headline{Title: strings.TrimSpace(article.Title)})
	}
	return capHeadlines(headlines), nil
}
