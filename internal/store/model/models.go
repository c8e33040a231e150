package model

type SessionModel struct {
	ID          string  `gorm:"column:id;primaryKey"`
	StartedAt   int64   `gorm:"column:started_at"`
	EndedAt     int64   `gorm:"column:ended_at"`
	TradeCount  int     `gorm:"column:trade_count"`
	RealizedPnL float64 `gorm:"column:realized_pnl"`
	Status      string  `gorm:"column:status"`
	UpdatedAt   int64   `gorm:"column:updated_at"`
}

func (SessionModel) TableName() string { return "sessions" }

// TradeModel rows are append-only; replaying the same trade ID is a
// no-op, never an update.
type TradeModel struct {
	ID        string  `gorm:"column:id;primaryKey"`
	SessionID string  `gorm:"column:session_id;index"`
	Symbol    string  `gorm:"column:symbol;index"`
	Side      string  `gorm:"column:side"`
	Quantity  float64 `gorm:"column:quantity"`
	Price     float64 `gorm:"column:price"`
	Notional  float64 `gorm:"column:notional"`
	PnL       float64 `gorm:"column:pnl"`
	Status    string  `gorm:"column:status"`
	Reason    string  `gorm:"column:reason"`
	Reasoning string  `gorm:"column:reasoning"`
	CreatedAt int64   `gorm:"column:created_at"`
}

func (TradeModel) TableName() string { return "trades" }

type PositionModel struct {
	Symbol     string  `gorm:"column:symbol;primaryKey"`
	EntryPrice float64 `gorm:"column:entry_price"`
	Quantity   float64 `gorm:"column:quantity"`
	StopLoss   float64 `gorm:"column:stop_loss"`
	TakeProfit float64 `gorm:"column:take_profit"`
	Status     string  `gorm:"column:status"`
	OpenedAt   int64   `gorm:"column:opened_at"`
	ClosedAt   int64   `gorm:"column:closed_at"`
	UpdatedAt  int64   `gorm:"column:updated_at"`
}

func (PositionModel) TableName() string { return "positions" }

type PendingOrderModel struct {
	ClientOrderID   string  `gorm:"column:client_order_id;primaryKey"`
	ExchangeOrderID string  `gorm:"column:exchange_order_id"`
	SessionID       string  `gorm:"column:session_id"`
	Symbol          string  `gorm:"column:symbol;index"`
	Side            string  `gorm:"column:side"`
	OrderType       string  `gorm:"column:order_type"`
	Quantity        float64 `gorm:"column:quantity"`
	Price           float64 `gorm:"column:price"`
	StopLoss        float64 `gorm:"column:stop_loss"`
	TakeProfit      float64 `gorm:"column:take_profit"`
	State           string  `gorm:"column:state;index"`
	Reason          string  `gorm:"column:reason"`
	FilledQty       float64 `gorm:"column:filled_qty"`
	FilledPrice     float64 `gorm:"column:filled_price"`
	CreatedAt       int64   `gorm:"column:created_at"`
	UpdatedAt       int64   `gorm:"column:updated_at"`
}

func (PendingOrderModel) TableName() string { return "pending_orders" }
