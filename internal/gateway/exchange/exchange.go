// Package exchange defines the order boundary the execution layer
// talks to. Backends (paper simulator, Binance spot) stay behind this
// interface so the execution logic never sees provider-specific shapes.
package exchange

import (
	"context"
	"errors"
	"time"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderType string

const (
	OrderMarket   OrderType = "MARKET"
	OrderLimit    OrderType = "LIMIT"
	OrderStopLoss OrderType = "STOP_LOSS"
)

type Status string

const (
	StatusNew      Status = "NEW"
	StatusFilled   Status = "FILLED"
	StatusRejected Status = "REJECTED"
	StatusCanceled Status = "CANCELED"
)

// ErrOrderNotFound from GetOrderStatus means the order never reached
// the exchange: resubmission is safe.
var ErrOrderNotFound = errors.New("exchange: order not found")

// OrderRequest carries the caller-generated client order ID; the
// exchange echoes it back so ambiguous submissions can be reconciled.
type OrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      float64
	Price         float64 // limit price, zero for market
	StopPrice     float64 // trigger for STOP_LOSS
}

type OrderResult struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Status        Status
	FilledQty     float64
	AvgPrice      float64
	Reason        string // populated on rejection
	UpdatedAt     time.Time
}

type Exchange interface {
	Name() string

	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)

	// GetOrderStatus looks an order up by its client order ID. It
	// returns ErrOrderNotFound when the exchange has no record of it.
	GetOrderStatus(ctx context.Context, symbol, clientOrderID string) (OrderResult, error)
}
