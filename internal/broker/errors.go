package broker

import "fmt"

// APIError is a non-2xx answer from the exchange.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange error %d: %s", e.StatusCode, e.Message)
}

// RegistrationError is fatal: an agent cannot run without an identity.
type RegistrationError struct {
	Username string
	Err      error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register %s: %v", e.Username, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

type MarketDataError struct {
	Op  string
	Err error
}

func (e *MarketDataError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *MarketDataError) Unwrap() error { return e.Err }

// OrderSubmitError carries the upstream status and message when the exchange
// answered; StatusCode is zero for transport failures.
type OrderSubmitError struct {
	Side       Side
	Type       OrderType
	StatusCode int
	Message    string
	Err        error
}

func (e *OrderSubmitError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("submit %s %s order: status %d: %s", e.Type, e.Side, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("submit %s %s order: %v", e.Type, e.Side, e.Err)
}

func (e *OrderSubmitError) Unwrap() error { return e.Err }
