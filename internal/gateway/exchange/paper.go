package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PriceFunc supplies the simulator's fill price, normally backed by the
// market aggregator.
type PriceFunc func(ctx context.Context, symbol string) (float64, error)

// Paper is an in-process exchange that fills market orders at the
// supplied price plus a fixed slippage. It remembers every order by
// client ID so status reconciliation behaves like a real venue.
type Paper struct {
	mu     sync.Mutex
	orders map[string]OrderResult
	seq    int64

	price       PriceFunc
	slippageBps float64
	clock       func() time.Time

	// Test hooks. submitErr makes PlaceOrder fail; when fillAnyway is
	// set the order still fills, modeling the lost-ack case.
	submitErr  error
	fillAnyway bool
}

func NewPaper(price PriceFunc, slippageBps float64) *Paper {
	return &Paper{
		orders:      make(map[string]OrderResult),
		price:       price,
		slippageBps: slippageBps,
		clock:       time.Now,
	}
}

func (p *Paper) Name() string { return "paper" }

func (p *Paper) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if req.ClientOrderID == "" {
		return OrderResult{}, fmt.Errorf("paper: client order id required")
	}

	p.mu.Lock()
	if prior, ok := p.orders[req.ClientOrderID]; ok {
		p.mu.Unlock()
		return prior, nil
	}
	p.mu.Unlock()

	if p.submitErr != nil && !p.fillAnyway {
		return OrderResult{}, p.submitErr
	}

	price := req.Price
	if req.Type == OrderMarket || price <= 0 {
		px, err := p.price(ctx, req.Symbol)
		if err != nil {
			return OrderResult{}, fmt.Errorf("paper: no price for %s: %w", req.Symbol, err)
		}
		price = px
	}
	if req.Side == SideBuy {
		price *= 1 + p.slippageBps/10000
	} else {
		price *= 1 - p.slippageBps/10000
	}

	p.mu.Lock()
	p.seq++
	result := OrderResult{
		OrderID:       fmt.Sprintf("paper-%d", p.seq),
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Status:        StatusFilled,
		FilledQty:     req.Quantity,
		AvgPrice:      price,
		UpdatedAt:     p.clock(),
	}
	if req.Quantity <= 0 {
		result.Status = StatusRejected
		result.Reason = "quantity must be positive"
		result.FilledQty = 0
		result.AvgPrice = 0
	}
	p.orders[req.ClientOrderID] = result
	p.mu.Unlock()

	if p.submitErr != nil {
		// Order landed but the ack is lost.
		return OrderResult{}, p.submitErr
	}
	return result, nil
}

func (p *Paper) GetOrderStatus(ctx context.Context, symbol, clientOrderID string) (OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	result, ok := p.orders[clientOrderID]
	if !ok {
		return OrderResult{}, ErrOrderNotFound
	}
	return result, nil
}
