package md

import (
	"errors"

	"github.com/shopspring/decimal"
)

// RingBuffer keeps the last size trade prices.
type RingBuffer struct {
	values []decimal.Decimal
	size   int
	index  int
	filled bool
}

func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1
	}
	return &RingBuffer{
		values: make([]decimal.Decimal, size),
		size:   size,
	}
}

func (r *RingBuffer) Add(value decimal.Decimal) {
	r.values[r.index] = value
	r.index = (r.index + 1) % r.size
	if r.index == 0 {
		r.filled = true
	}
}

func (r *RingBuffer) Len() int {
	if r.filled {
		return r.size
	}
	return r.index
}

// Values returns the buffered prices oldest first.
func (r *RingBuffer) Values() []decimal.Decimal {
	length := r.Len()
	result := make([]decimal.Decimal, 0, length)
	if length == 0 {
		return result
	}
	if r.filled {
		result = append(result, r.values[r.index:]...)
	}
	result = append(result, r.values[:r.index]...)
	return result
}

// Mean averages the most recent window prices.
func (r *RingBuffer) Mean(window int) (decimal.Decimal, error) {
	if window <= 0 {
		return decimal.Zero, errors.New("window must be positive")
	}
	values := r.Values()
	if len(values) < window {
		return decimal.Zero, errors.New("not enough trades for mean")
	}
	sum := decimal.Zero
	for _, v := range values[len(values)-window:] {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(window))), nil
}
