// Package store persists sessions, trades, positions and in-flight
// orders. Writes go to a SQLite primary; when the primary errors they
// land in a local append-only journal and are replayed once the
// primary recovers. Every write is idempotent keyed by entity ID.
package store

import "time"

type TradeStatus string

const (
	TradeFilled   TradeStatus = "FILLED"
	TradeRejected TradeStatus = "REJECTED"
)

type PositionStatus string

const (
	PositionOpen       PositionStatus = "OPEN"
	PositionClosed     PositionStatus = "CLOSED"
	PositionLiquidated PositionStatus = "LIQUIDATED"
)

// Order lifecycle states for at-most-once execution.
const (
	OrderPending   = "PENDING"
	OrderFilled    = "FILLED"
	OrderRejected  = "REJECTED"
	OrderUnknown   = "UNKNOWN"
	OrderAbandoned = "ABANDONED"
)

type Session struct {
	ID          string
	StartedAt   time.Time
	EndedAt     time.Time
	TradeCount  int
	RealizedPnL float64
	Status      string
}

// Trade is an immutable ledger entry. Corrections are new compensating
// records, never edits.
type Trade struct {
	ID        string
	SessionID string
	Symbol    string
	Side      string
	Quantity  float64
	Price     float64
	Notional  float64
	PnL       float64
	Status    TradeStatus
	Reason    string
	Reasoning string
	CreatedAt time.Time
}

type Position struct {
	Symbol     string
	EntryPrice float64
	Quantity   float64
	StopLoss   float64
	TakeProfit float64
	Status     PositionStatus
	OpenedAt   time.Time
	ClosedAt   time.Time
}

type PendingOrder struct {
	ClientOrderID   string
	ExchangeOrderID string
	SessionID       string
	Symbol          string
	Side            string
	OrderType       string
	Quantity        float64
	Price           float64
	StopLoss        float64
	TakeProfit      float64
	State           string
	Reason          string
	FilledQty       float64
	FilledPrice     float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
