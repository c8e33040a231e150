package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"helmsman/internal/store/model"
)

// primary is the gorm-backed SQLite store.
type primary struct {
	db *gorm.DB
}

func newPrimary(path string) (*primary, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store: 数据库路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	// CGO_ENABLED=0 builds: route through the pure-Go modernc driver
	// registered as "sqlite" by the blank import in fallback.go.
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&model.SessionModel{},
		&model.TradeModel{},
		&model.PositionModel{},
		&model.PendingOrderModel{},
	); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism without lock contention.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &primary{db: db}, nil
}

func (p *primary) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *primary) saveSession(ctx context.Context, s Session) error {
	m := model.SessionModel{
		ID:          s.ID,
		StartedAt:   s.StartedAt.Unix(),
		TradeCount:  s.TradeCount,
		RealizedPnL: s.RealizedPnL,
		Status:      s.Status,
		UpdatedAt:   time.Now().Unix(),
	}
	if !s.EndedAt.IsZero() {
		m.EndedAt = s.EndedAt.Unix()
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&m).Error
}

// saveTrade appends the ledger entry. Replaying an already stored trade
// ID does nothing.
func (p *primary) saveTrade(ctx context.Context, t Trade) error {
	m := model.TradeModel{
		ID:        t.ID,
		SessionID: t.SessionID,
		Symbol:    t.Symbol,
		Side:      t.Side,
		Quantity:  t.Quantity,
		Price:     t.Price,
		Notional:  t.Notional,
		PnL:       t.PnL,
		Status:    string(t.Status),
		Reason:    t.Reason,
		Reasoning: t.Reasoning,
		CreatedAt: t.CreatedAt.Unix(),
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&m).Error
}

func (p *primary) savePosition(ctx context.Context, pos Position) error {
	m := model.PositionModel{
		Symbol:     pos.Symbol,
		EntryPrice: pos.EntryPrice,
		Quantity:   pos.Quantity,
		StopLoss:   pos.StopLoss,
		TakeProfit: pos.TakeProfit,
		Status:     string(pos.Status),
		UpdatedAt:  time.Now().Unix(),
	}
	if !pos.OpenedAt.IsZero() {
		m.OpenedAt = pos.OpenedAt.Unix()
	}
	if !pos.ClosedAt.IsZero() {
		m.ClosedAt = pos.ClosedAt.Unix()
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		UpdateAll: true,
	}).Create(&m).Error
}

func (p *primary) savePendingOrder(ctx context.Context, o PendingOrder) error {
	m := model.PendingOrderModel{
		ClientOrderID:   o.ClientOrderID,
		ExchangeOrderID: o.ExchangeOrderID,
		SessionID:       o.SessionID,
		Symbol:          o.Symbol,
		Side:            o.Side,
		OrderType:       o.OrderType,
		Quantity:        o.Quantity,
		Price:           o.Price,
		StopLoss:        o.StopLoss,
		TakeProfit:      o.TakeProfit,
		State:           o.State,
		Reason:          o.Reason,
		FilledQty:       o.FilledQty,
		FilledPrice:     o.FilledPrice,
		CreatedAt:       o.CreatedAt.Unix(),
		UpdatedAt:       time.Now().Unix(),
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_order_id"}},
		UpdateAll: true,
	}).Create(&m).Error
}

func (p *primary) pendingOrder(ctx context.Context, clientOrderID string) (PendingOrder, bool, error) {
	var m model.PendingOrderModel
	err := p.db.WithContext(ctx).Where("client_order_id = ?", clientOrderID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PendingOrder{}, false, nil
	}
	if err != nil {
		return PendingOrder{}, false, err
	}
	return pendingFromModel(m), true, nil
}

// unknownOrders lists orders parked after an ambiguous submit, oldest
// first, for the resolution pass.
func (p *primary) unknownOrders(ctx context.Context) ([]PendingOrder, error) {
	var models []model.PendingOrderModel
	err := p.db.WithContext(ctx).
		Where("state = ?", OrderUnknown).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]PendingOrder, 0, len(models))
	for _, m := range models {
		out = append(out, pendingFromModel(m))
	}
	return out, nil
}

func pendingFromModel(m model.PendingOrderModel) PendingOrder {
	return PendingOrder{
		ClientOrderID:   m.ClientOrderID,
		ExchangeOrderID: m.ExchangeOrderID,
		SessionID:       m.SessionID,
		Symbol:          m.Symbol,
		Side:            m.Side,
		OrderType:       m.OrderType,
		Quantity:        m.Quantity,
		Price:           m.Price,
		StopLoss:        m.StopLoss,
		TakeProfit:      m.TakeProfit,
		State:           m.State,
		Reason:          m.Reason,
		FilledQty:       m.FilledQty,
		FilledPrice:     m.FilledPrice,
		CreatedAt:       time.Unix(m.CreatedAt, 0),
		UpdatedAt:       time.Unix(m.UpdatedAt, 0),
	}
}

// loadSession recomputes trade count and realized pnl from the ledger
// instead of trusting the session row.
func (p *primary) loadSession(ctx context.Context, id string) (Session, error) {
	var m model.SessionModel
	if err := p.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return Session{}, err
	}
	s := Session{
		ID:        m.ID,
		StartedAt: time.Unix(m.StartedAt, 0),
		Status:    m.Status,
	}
	if m.EndedAt > 0 {
		s.EndedAt = time.Unix(m.EndedAt, 0)
	}
	type totals struct {
		Count int
		PnL   float64
	}
	var t totals
	err := p.db.WithContext(ctx).Model(&model.TradeModel{}).
		Select("COUNT(*) as count, COALESCE(SUM(pnl), 0) as pn_l").
		Where("session_id = ? AND status = ?", id, string(TradeFilled)).
		Scan(&t).Error
	if err != nil {
		return Session{}, err
	}
	s.TradeCount = t.Count
	s.RealizedPnL = t.PnL
	return s, nil
}

func (p *primary) openPositions(ctx context.Context) ([]Position, error) {
	var rows []model.PositionModel
	err := p.db.WithContext(ctx).
		Where("status = ?", string(PositionOpen)).
		Order("symbol").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Position, 0, len(rows))
	for _, m := range rows {
		out = append(out, Position{
			Symbol:     m.Symbol,
			EntryPrice: m.EntryPrice,
			Quantity:   m.Quantity,
			StopLoss:   m.StopLoss,
			TakeProfit: m.TakeProfit,
			Status:     PositionStatus(m.Status),
			OpenedAt:   time.Unix(m.OpenedAt, 0),
		})
	}
	return out, nil
}

func (p *primary) tradesSince(ctx context.Context, sessionID string, since time.Time) ([]Trade, error) {
	var rows []model.TradeModel
	q := p.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since.Unix())
	}
	if err := q.Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Trade, 0, len(rows))
	for _, m := range rows {
		out = append(out, Trade{
			ID:        m.ID,
			SessionID: m.SessionID,
			Symbol:    m.Symbol,
			Side:      m.Side,
			Quantity:  m.Quantity,
			Price:     m.Price,
			Notional:  m.Notional,
			PnL:       m.PnL,
			Status:    TradeStatus(m.Status),
			Reason:    m.Reason,
			Reasoning: m.Reasoning,
			CreatedAt: time.Unix(m.CreatedAt, 0),
		})
	}
	return out, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
