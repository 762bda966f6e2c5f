package md

import (
	"sync"

	"tradebots/internal/broker"

	"github.com/shopspring/decimal"
)

const DefaultPriceWindow = 20

type FillSnapshot struct {
	Position  decimal.Decimal
	Cash      decimal.Decimal
	Fills     int
	MeanPrice decimal.Decimal
	HasMean   bool
}

// FillTracker keeps net position and cash from tape trades where the trader
// is the buyer or the seller, plus recent tape prices.
type FillTracker struct {
	traderID string

	mu       sync.Mutex
	position decimal.Decimal
	cash     decimal.Decimal
	fills    int
	prices   *RingBuffer
}

func NewFillTracker(traderID string, window int) *FillTracker {
	if window <= 0 {
		window = DefaultPriceWindow
	}
	return &FillTracker{
		traderID: traderID,
		prices:   NewRingBuffer(window),
	}
}

// Record reports whether the trade was one of ours.
func (f *FillTracker) Record(trade broker.Trade) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices.Add(trade.Price)

	notional := trade.Price.Mul(trade.Size)
	own := false
	if trade.BuyerID == f.traderID {
		f.position = f.position.Add(trade.Size)
		f.cash = f.cash.Sub(notional)
		own = true
	}
	if trade.SellerID == f.traderID {
		f.position = f.position.Sub(trade.Size)
		f.cash = f.cash.Add(notional)
		own = true
	}
	if own {
		f.fills++
	}
	return own
}

func (f *FillTracker) Snapshot() FillSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := FillSnapshot{Position: f.position, Cash: f.cash, Fills: f.fills}
	if n := f.prices.Len(); n > 0 {
		snap.MeanPrice, _ = f.prices.Mean(n)
		snap.HasMean = true
	}
	return snap
}
