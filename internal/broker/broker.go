package broker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMissingCredentials is returned when the broker key or secret is unset
var ErrMissingCredentials = errors.New("broker credentials missing: set BROKER_API_KEY and BROKER_API_SECRET")

// OrderSide buy or sell
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// TimeInForce order duration
type TimeInForce string

const (
	TimeInForceDay TimeInForce = "day"
	TimeInForceGTC TimeInForce = "gtc"
	TimeInForceIOC TimeInForce = "ioc"
)

// ParseSide validates an order side
func ParseSide(s string) (OrderSide, error) {
	switch OrderSide(s) {
	case OrderSideBuy, OrderSideSell:
		return OrderSide(s), nil
	}
	return "", fmt.Errorf("invalid order side %q (buy or sell)", s)
}

// ParseTimeInForce validates a time in force
func ParseTimeInForce(s string) (TimeInForce, error) {
	switch TimeInForce(s) {
	case TimeInForceDay, TimeInForceGTC, TimeInForceIOC:
		return TimeInForce(s), nil
	}
	return "", fmt.Errorf("invalid time in force %q (day, gtc or ioc)", s)
}

// OrderResult is the broker's view of an order
type OrderResult struct {
	OrderID     string      `json:"order_id"`
	Symbol      string      `json:"symbol"`
	Side        OrderSide   `json:"side"`
	Type        string      `json:"type"`
	TimeInForce TimeInForce `json:"time_in_force"`
	Quantity    float64     `json:"qty"`
	FilledQty   float64     `json:"filled_qty"`
	AvgPrice    float64     `json:"filled_avg_price"`
	Status      string      `json:"status"`
	SubmittedAt time.Time   `json:"submitted_at"`
	FilledAt    time.Time   `json:"filled_at"`
}

// Account is the trading account summary
type Account struct {
	ID             string  `json:"id"`
	AccountNumber  string  `json:"account_number"`
	Status         string  `json:"status"`
	Currency       string  `json:"currency"`
	Cash           float64 `json:"cash"`
	BuyingPower    float64 `json:"buying_power"`
	Equity         float64 `json:"equity"`
	PortfolioValue float64 `json:"portfolio_value"`
}

// Broker is a thin order-routing client; it performs no sizing or risk checks
type Broker interface {
	// Name returns the broker name
	Name() string

	// IsReady reports whether credentials are configured
	IsReady() bool

	Account(ctx context.Context) (*Account, error)
	SubmitMarketOrder(ctx context.Context, symbol string, qty int, side OrderSide, tif TimeInForce) (*OrderResult, error)
	ClosePosition(ctx context.Context, symbol string) (*OrderResult, error)
}
