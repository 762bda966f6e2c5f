package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const DefaultBaseURL = "http://localhost:8080"

// Instrument is the only market the exchange lists.
const Instrument = "R.index"

type TraderType string

const (
	TraderBot         TraderType = "bot"
	TraderMarketMaker TraderType = "market_maker"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

type OrderType string

const (
	Limit  OrderType = "limit"
	Market OrderType = "market"
)

type Registration struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Type     TraderType `json:"type"`
}

// Identity is issued once per process by Register and never persisted.
type Identity struct {
	TraderID string
	Token    string
	Username string
}

type MarketStats struct {
	Instrument   string          `json:"instrument"`
	LastPrice    decimal.Decimal `json:"last_price"`
	MarkPrice    decimal.Decimal `json:"mark_price"`
	High24h      decimal.Decimal `json:"high_24h"`
	Low24h       decimal.Decimal `json:"low_24h"`
	Volume24h    decimal.Decimal `json:"volume_24h"`
	OpenInterest decimal.Decimal `json:"open_interest"`
}

type Level struct {
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	OrderCount int             `json:"order_count"`
}

// OrderBook sides are kept in exchange order: bids descending, asks ascending.
type OrderBook struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

type Position struct {
	Instrument       string          `json:"instrument"`
	Size             decimal.Decimal `json:"size"`
	EntryPrice       decimal.Decimal `json:"entry_price"`
	Leverage         int             `json:"leverage"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	LiquidationPrice decimal.Decimal `json:"liquidation_price"`
}

type OrderRequest struct {
	TraderID string
	Side     Side
	Type     OrderType
	Price    decimal.Decimal
	Size     decimal.Decimal
	Leverage int
}

type Trade struct {
	ID       string          `json:"id"`
	Price    decimal.Decimal `json:"price"`
	Size     decimal.Decimal `json:"size"`
	BuyerID  string          `json:"buyer_id"`
	SellerID string          `json:"seller_id"`
}

type OrderResult struct {
	OrderID string
	Status  string
	Trades  []Trade
}

type orderPayload struct {
	TraderID   string    `json:"trader_id"`
	Instrument string    `json:"instrument"`
	Side       Side      `json:"side"`
	Type       OrderType `json:"type"`
	Price      string    `json:"price"`
	Size       string    `json:"size"`
	Leverage   int       `json:"leverage"`
}

type orderResponse struct {
	Order *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"order"`
	Trades []Trade `json:"trades"`
}

type registerResponse struct {
	Trader *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"trader"`
	Token string `json:"token"`
}

// Client talks to the exchange REST API. It never retries.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func New(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
		log:     log,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Register(ctx context.Context, reg Registration) (Identity, error) {
	var resp registerResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", "", reg, &resp); err != nil {
		return Identity{}, &RegistrationError{Username: reg.Username, Err: err}
	}
	if resp.Trader == nil || resp.Trader.ID == "" {
		return Identity{}, &RegistrationError{Username: reg.Username, Err: errors.New("response missing trader.id")}
	}
	if _, err := uuid.Parse(resp.Trader.ID); err != nil {
		return Identity{}, &RegistrationError{Username: reg.Username, Err: fmt.Errorf("invalid trader.id %q: %w", resp.Trader.ID, err)}
	}
	if resp.Token == "" {
		return Identity{}, &RegistrationError{Username: reg.Username, Err: errors.New("response missing token")}
	}

	c.log.Info().Str("username", reg.Username).Str("trader_id", resp.Trader.ID).Str("type", string(reg.Type)).Msg("registered")
	return Identity{TraderID: resp.Trader.ID, Token: resp.Token, Username: reg.Username}, nil
}

func (c *Client) MarketStats(ctx context.Context) (MarketStats, error) {
	var stats MarketStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/market/stats", "", nil, &stats); err != nil {
		return MarketStats{}, &MarketDataError{Op: "market stats", Err: err}
	}
	return stats, nil
}

func (c *Client) OrderBook(ctx context.Context) (OrderBook, error) {
	var book OrderBook
	if err := c.do(ctx, http.MethodGet, "/api/v1/market/orderbook", "", nil, &book); err != nil {
		return OrderBook{}, &MarketDataError{Op: "orderbook", Err: err}
	}
	return book, nil
}

// Position returns the trader's position on the instrument. found is false when
// the exchange reports no position at all, which callers treat as flat.
func (c *Client) Position(ctx context.Context, traderID string) (Position, bool, error) {
	var positions []Position
	path := "/api/v1/traders/" + url.PathEscape(traderID) + "/positions"
	if err := c.do(ctx, http.MethodGet, path, "", nil, &positions); err != nil {
		return Position{}, false, &MarketDataError{Op: "positions", Err: err}
	}
	if len(positions) == 0 {
		return Position{}, false, nil
	}
	return positions[0], true, nil
}

func (c *Client) SubmitOrder(ctx context.Context, token string, req OrderRequest) (OrderResult, error) {
	price := req.Price
	if req.Type == Market {
		price = decimal.Zero
	}
	payload := orderPayload{
		TraderID:   req.TraderID,
		Instrument: Instrument,
		Side:       req.Side,
		Type:       req.Type,
		Price:      price.String(),
		Size:       req.Size.String(),
		Leverage:   req.Leverage,
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", token, payload, &resp); err != nil {
		submitErr := &OrderSubmitError{Side: req.Side, Type: req.Type, Err: err}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			submitErr.StatusCode = apiErr.StatusCode
			submitErr.Message = apiErr.Message
		}
		return OrderResult{}, submitErr
	}

	result := OrderResult{Trades: resp.Trades}
	if resp.Order != nil {
		result.OrderID = resp.Order.ID
		result.Status = resp.Order.Status
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("exchange call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage pulls the "error" field out of the exchange's error body and
// falls back to the raw text.
func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
