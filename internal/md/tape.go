// Package md follows the exchange's public trade stream.
package md

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"tradebots/internal/broker"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	DefaultReconnectDelay = 5 * time.Second

	messageTrade = "trade"
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	writeWait    = 10 * time.Second
)

type TradeHandler func(broker.Trade)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Tape struct {
	url            string
	reconnectDelay time.Duration
	log            zerolog.Logger
}

// TapeURL turns the exchange REST base URL into its websocket endpoint.
func TapeURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

func NewTape(apiURL string, reconnectDelay time.Duration, log zerolog.Logger) (*Tape, error) {
	wsURL, err := TapeURL(apiURL)
	if err != nil {
		return nil, err
	}
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Tape{url: wsURL, reconnectDelay: reconnectDelay, log: log}, nil
}

// Run streams trades to handler, reconnecting after read failures, until ctx
// is canceled.
func (t *Tape) Run(ctx context.Context, handler TradeHandler) error {
	for {
		err := t.consume(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.log.Warn().Err(err).Dur("retry_in", t.reconnectDelay).Msg("trade tape disconnected")
		select {
		case <-time.After(t.reconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *Tape) consume(ctx context.Context, handler TradeHandler) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.url, err)
	}
	defer conn.Close()
	t.log.Info().Str("url", t.url).Msg("trade tape connected")

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-ctx.Done():
				// unblocks ReadMessage
				_ = conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		trade, ok, err := decodeTrade(message)
		if err != nil {
			t.log.Debug().Err(err).Msg("skipping undecodable tape message")
			continue
		}
		if ok {
			handler(trade)
		}
	}
}

func decodeTrade(message []byte) (broker.Trade, bool, error) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return broker.Trade{}, false, err
	}
	if env.Type != messageTrade {
		return broker.Trade{}, false, nil
	}
	var trade broker.Trade
	if err := json.Unmarshal(env.Data, &trade); err != nil {
		return broker.Trade{}, false, err
	}
	return trade, true, nil
}
