package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"helmsman/internal/logger"
)

type Config struct {
	Path         string
	FallbackPath string
}

// Store routes writes to the primary and degrades to the journal when
// the primary errors. Reads always hit the primary: the fallback only
// buffers writes, it is not a query surface.
type Store struct {
	primary  *primary
	fallback *journal
}

func New(cfg Config) (*Store, error) {
	p, err := newPrimary(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open primary store: %w", err)
	}
	j, err := newJournal(cfg.FallbackPath)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("open fallback journal: %w", err)
	}
	return &Store{primary: p, fallback: j}, nil
}

func (s *Store) Close() error {
	err := s.primary.Close()
	if jerr := s.fallback.Close(); err == nil {
		err = jerr
	}
	return err
}

func (s *Store) SaveSession(ctx context.Context, sess Session) error {
	return s.write(ctx, entitySession, sess, func() error {
		return s.primary.saveSession(ctx, sess)
	})
}

func (s *Store) SaveTrade(ctx context.Context, t Trade) error {
	return s.write(ctx, entityTrade, t, func() error {
		return s.primary.saveTrade(ctx, t)
	})
}

func (s *Store) SavePosition(ctx context.Context, p Position) error {
	return s.write(ctx, entityPosition, p, func() error {
		return s.primary.savePosition(ctx, p)
	})
}

func (s *Store) SavePendingOrder(ctx context.Context, o PendingOrder) error {
	return s.write(ctx, entityOrder, o, func() error {
		return s.primary.savePendingOrder(ctx, o)
	})
}

// write attempts the primary and falls back to the journal. Only when
// both fail does the caller see an error.
func (s *Store) write(ctx context.Context, entity string, record any, save func() error) error {
	err := save()
	if err == nil {
		return nil
	}
	logger.Warnf("store: primary write failed (%s), journaling: %v", entity, err)
	if jerr := s.fallback.append(ctx, entity, record); jerr != nil {
		return fmt.Errorf("primary failed (%v) and journal failed: %w", err, jerr)
	}
	return nil
}

// UnknownOrders lists orders whose outcome was ambiguous at submit time
// and still awaits resolution against the exchange.
func (s *Store) UnknownOrders(ctx context.Context) ([]PendingOrder, error) {
	return s.primary.unknownOrders(ctx)
}

func (s *Store) PendingOrder(ctx context.Context, clientOrderID string) (PendingOrder, bool, error) {
	return s.primary.pendingOrder(ctx, clientOrderID)
}

func (s *Store) LoadSession(ctx context.Context, id string) (Session, error) {
	return s.primary.loadSession(ctx, id)
}

func (s *Store) OpenPositions(ctx context.Context) ([]Position, error) {
	return s.primary.openPositions(ctx)
}

func (s *Store) TradesSince(ctx context.Context, sessionID string, since time.Time) ([]Trade, error) {
	return s.primary.tradesSince(ctx, sessionID, since)
}

// Reconcile replays journaled writes into the primary in order.
// Idempotent upserts make replay safe; entries are removed one by one
// so a mid-replay crash loses nothing.
func (s *Store) Reconcile(ctx context.Context) (int, error) {
	entries, err := s.fallback.pending(ctx)
	if err != nil {
		return 0, err
	}
	replayed := 0
	for _, e := range entries {
		if err := s.replay(ctx, e); err != nil {
			// Primary is still down; stop and retry next round.
			return replayed, err
		}
		if err := s.fallback.remove(ctx, e.id); err != nil {
			return replayed, err
		}
		replayed++
	}
	if replayed > 0 {
		logger.Infof("store: reconciled %d journaled writes", replayed)
	}
	return replayed, nil
}

func (s *Store) replay(ctx context.Context, e journalEntry) error {
	switch e.entity {
	case entitySession:
		var sess Session
		if err := json.Unmarshal(e.payload, &sess); err != nil {
			return err
		}
		return s.primary.saveSession(ctx, sess)
	case entityTrade:
		var t Trade
		if err := json.Unmarshal(e.payload, &t); err != nil {
			return err
		}
		return s.primary.saveTrade(ctx, t)
	case entityPosition:
		var p Position
		if err := json.Unmarshal(e.payload, &p); err != nil {
			return err
		}
		return s.primary.savePosition(ctx, p)
	case entityOrder:
		var o PendingOrder
		if err := json.Unmarshal(e.payload, &o); err != nil {
			return err
		}
		return s.primary.savePendingOrder(ctx, o)
	default:
		logger.Warnf("store: dropping journal entry with unknown entity %q", e.entity)
		return nil
	}
}

// JournalDepth reports how many writes are waiting for reconciliation.
func (s *Store) JournalDepth(ctx context.Context) (int, error) {
	return s.fallback.size(ctx)
}
