package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const testTraderID = "5f0c7d0e-8a0b-4c1e-9d55-3a1f2b6c7e81"

type fakeExchange struct {
	mu         sync.Mutex
	positions  map[string]string
	orders     []orderPayload
	authHeader []string
	anonReads  int
	rejectWith string
}

func newFakeExchange(t *testing.T) (*fakeExchange, *httptest.Server) {
	t.Helper()
	fx := &fakeExchange{positions: map[string]string{}}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", func(w http.ResponseWriter, req *http.Request) {
			var reg Registration
			if err := json.NewDecoder(req.Body).Decode(&reg); err != nil || reg.Username == "" || reg.Password == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password required"})
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{
				"trader": map[string]any{"id": testTraderID, "username": reg.Username, "type": reg.Type},
				"token":  testTraderID,
			})
		})
		r.Get("/market/stats", func(w http.ResponseWriter, req *http.Request) {
			fx.countRead(req)
			writeJSON(w, http.StatusOK, map[string]any{"instrument": Instrument, "last_price": "1000", "mark_price": "1000.5"})
		})
		r.Get("/market/orderbook", func(w http.ResponseWriter, req *http.Request) {
			fx.countRead(req)
			writeJSON(w, http.StatusOK, map[string]any{
				"bids": []map[string]any{{"price": "999.5", "size": "3", "order_count": 1}},
				"asks": []map[string]any{{"price": "1000.5", "size": "2", "order_count": 2}, {"price": "1001", "size": "4", "order_count": 1}},
			})
		})
		r.Get("/traders/{traderID}/positions", func(w http.ResponseWriter, req *http.Request) {
			fx.countRead(req)
			id := chi.URLParam(req, "traderID")
			fx.mu.Lock()
			size, ok := fx.positions[id]
			fx.mu.Unlock()
			if !ok {
				writeJSON(w, http.StatusOK, []any{})
				return
			}
			writeJSON(w, http.StatusOK, []map[string]any{{"trader_id": id, "instrument": Instrument, "size": size, "leverage": 5}})
		})
		r.Post("/orders", func(w http.ResponseWriter, req *http.Request) {
			var payload orderPayload
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			fx.mu.Lock()
			fx.orders = append(fx.orders, payload)
			fx.authHeader = append(fx.authHeader, req.Header.Get("Authorization"))
			reject := fx.rejectWith
			fx.mu.Unlock()
			if reject != "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": reject})
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{
				"order":  map[string]any{"id": "ord-1", "status": "filled"},
				"trades": []map[string]any{{"id": "t-1", "price": "1000.5", "size": payload.Size}},
			})
		})
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return fx, server
}

func (fx *fakeExchange) countRead(req *http.Request) {
	if req.Header.Get("Authorization") != "" {
		return
	}
	fx.mu.Lock()
	fx.anonReads++
	fx.mu.Unlock()
}

func (fx *fakeExchange) setPosition(traderID, size string) {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	fx.positions[traderID] = size
}

func (fx *fakeExchange) setReject(message string) {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	fx.rejectWith = message
}

func (fx *fakeExchange) submitted() ([]orderPayload, []string) {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return append([]orderPayload(nil), fx.orders...), append([]string(nil), fx.authHeader...)
}

func (fx *fakeExchange) reads() int {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return fx.anonReads
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestRegisterReturnsIdentity(t *testing.T) {
	_, server := newFakeExchange(t)
	client := New(server.URL, zerolog.Nop())

	id, err := client.Register(context.Background(), Registration{Username: "mm_bot_1234", Password: "pw", Type: TraderMarketMaker})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id.TraderID != testTraderID || id.Token == "" {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestRegisterFailureIsRegistrationError(t *testing.T) {
	_, server := newFakeExchange(t)
	client := New(server.URL, zerolog.Nop())

	_, err := client.Register(context.Background(), Registration{Username: "bot", Type: TraderBot})
	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected RegistrationError, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected wrapped 400 APIError, got %v", err)
	}
}

func TestRegisterRejectsMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"trader": map[string]any{"id": "not-a-uuid"}, "token": "x"})
	}))
	defer server.Close()
	client := New(server.URL, zerolog.Nop())

	_, err := client.Register(context.Background(), Registration{Username: "bot", Password: "pw", Type: TraderBot})
	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected RegistrationError, got %v", err)
	}
}

func TestMarketReadsAreAnonymous(t *testing.T) {
	fx, server := newFakeExchange(t)
	client := New(server.URL, zerolog.Nop())
	ctx := context.Background()

	stats, err := client.MarketStats(ctx)
	if err != nil {
		t.Fatalf("market stats: %v", err)
	}
	if !stats.LastPrice.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected last price 1000, got %s", stats.LastPrice)
	}

	book, err := client.OrderBook(ctx)
	if err != nil {
		t.Fatalf("orderbook: %v", err)
	}
	if len(book.Bids) != 1 || len(book.Asks) != 2 {
		t.Fatalf("unexpected book %+v", book)
	}
	if !book.Asks[0].Price.Equal(decimal.RequireFromString("1000.5")) {
		t.Fatalf("expected best ask 1000.5, got %s", book.Asks[0].Price)
	}
	if got := fx.reads(); got != 2 {
		t.Fatalf("expected 2 anonymous reads, got %d", got)
	}
}

func TestPositionAbsentVersusZero(t *testing.T) {
	fx, server := newFakeExchange(t)
	client := New(server.URL, zerolog.Nop())
	ctx := context.Background()

	_, found, err := client.Position(ctx, testTraderID)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if found {
		t.Fatalf("expected no position")
	}

	fx.setPosition(testTraderID, "-3")
	pos, found, err := client.Position(ctx, testTraderID)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if !found || !pos.Size.Equal(decimal.NewFromInt(-3)) {
		t.Fatalf("expected short 3, got found=%v size=%s", found, pos.Size)
	}
}

func TestMarketDataErrorOnTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()
	client := New(url, zerolog.Nop())

	_, err := client.MarketStats(context.Background())
	var mdErr *MarketDataError
	if !errors.As(err, &mdErr) {
		t.Fatalf("expected MarketDataError, got %v", err)
	}
}

func TestSubmitOrderSendsBearerAndPayload(t *testing.T) {
	fx, server := newFakeExchange(t)
	client := New(server.URL, zerolog.Nop())

	result, err := client.SubmitOrder(context.Background(), "tok-1", OrderRequest{
		TraderID: testTraderID,
		Side:     Buy,
		Type:     Market,
		Price:    decimal.NewFromInt(1234),
		Size:     decimal.RequireFromString("2.5"),
		Leverage: 10,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.OrderID != "ord-1" || len(result.Trades) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	orders, headers := fx.submitted()
	if headers[0] != "Bearer tok-1" {
		t.Fatalf("expected bearer header, got %q", headers[0])
	}
	got := orders[0]
	if got.Instrument != Instrument || got.Side != Buy || got.Type != Market {
		t.Fatalf("unexpected payload %+v", got)
	}
	if got.Price != "0" || got.Size != "2.5" || got.Leverage != 10 {
		t.Fatalf("expected market price 0 size 2.5 leverage 10, got %+v", got)
	}
}

func TestSubmitOrderCarriesUpstreamMessage(t *testing.T) {
	fx, server := newFakeExchange(t)
	fx.setReject("insufficient margin")
	client := New(server.URL, zerolog.Nop())

	_, err := client.SubmitOrder(context.Background(), "tok-1", OrderRequest{
		TraderID: testTraderID,
		Side:     Sell,
		Type:     Limit,
		Price:    decimal.NewFromInt(1001),
		Size:     decimal.NewFromInt(3),
		Leverage: 5,
	})
	var submitErr *OrderSubmitError
	if !errors.As(err, &submitErr) {
		t.Fatalf("expected OrderSubmitError, got %v", err)
	}
	if submitErr.StatusCode != http.StatusBadRequest || submitErr.Message != "insufficient margin" {
		t.Fatalf("unexpected submit error %+v", submitErr)
	}
	orders, _ := fx.submitted()
	if orders[0].Price != "1001" {
		t.Fatalf("expected limit price to be sent, got %q", orders[0].Price)
	}
}
