package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"

	"helmsman/internal/pkg/symbol"
)

const binanceOrderNotExist = -2013

type BinanceConfig struct {
	APIKey      string
	APISecret   string
	RESTBaseURL string
	HTTPTimeout time.Duration
}

// Binance 现货下单通道，客户端订单号透传给交易所用于去重。
type Binance struct {
	client  *binance.Client
	convert symbol.BinanceConverter
}

func NewBinance(cfg BinanceConfig) *Binance {
	client := binance.NewClient(cfg.APIKey, cfg.APISecret)
	if cfg.RESTBaseURL != "" {
		client.BaseURL = cfg.RESTBaseURL
	}
	if cfg.HTTPTimeout > 0 {
		client.HTTPClient.Timeout = cfg.HTTPTimeout
	}
	return &Binance{client: client}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	svc := b.client.NewCreateOrderService().
		Symbol(b.convert.ToExchange(req.Symbol)).
		Side(binance.SideType(req.Side)).
		Quantity(formatQty(req.Quantity)).
		NewClientOrderID(req.ClientOrderID)

	switch req.Type {
	case OrderMarket:
		svc = svc.Type(binance.OrderTypeMarket)
	case OrderLimit:
		svc = svc.Type(binance.OrderTypeLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Price(formatQty(req.Price))
	case OrderStopLoss:
		svc = svc.Type(binance.OrderTypeStopLoss).
			StopPrice(formatQty(req.StopPrice))
	default:
		return OrderResult{}, fmt.Errorf("binance: unsupported order type %s", req.Type)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return OrderResult{}, err
	}

	result := OrderResult{
		OrderID:       strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Symbol:        req.Symbol,
		Status:        mapStatus(resp.Status),
		FilledQty:     parseQty(resp.ExecutedQuantity),
		UpdatedAt:     time.Now(),
	}
	result.AvgPrice = avgFillPrice(resp.Fills)
	return result, nil
}

func (b *Binance) GetOrderStatus(ctx context.Context, sym, clientOrderID string) (OrderResult, error) {
	order, err := b.client.NewGetOrderService().
		Symbol(b.convert.ToExchange(sym)).
		OrigClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == binanceOrderNotExist {
			return OrderResult{}, ErrOrderNotFound
		}
		return OrderResult{}, err
	}

	result := OrderResult{
		OrderID:       strconv.FormatInt(order.OrderID, 10),
		ClientOrderID: order.ClientOrderID,
		Symbol:        sym,
		Status:        mapStatus(order.Status),
		FilledQty:     parseQty(order.ExecutedQuantity),
		UpdatedAt:     time.UnixMilli(order.UpdateTime),
	}
	if result.FilledQty > 0 {
		quote := parseQty(order.CummulativeQuoteQuantity)
		if quote > 0 {
			result.AvgPrice = quote / result.FilledQty
		} else {
			result.AvgPrice = parseQty(order.Price)
		}
	}
	return result, nil
}

func mapStatus(s binance.OrderStatusType) Status {
	switch s {
	case binance.OrderStatusTypeFilled:
		return StatusFilled
	case binance.OrderStatusTypeRejected, binance.OrderStatusTypeExpired:
		return StatusRejected
	case binance.OrderStatusTypeCanceled:
		return StatusCanceled
	default:
		return StatusNew
	}
}

func avgFillPrice(fills []*binance.Fill) float64 {
	var qty, quote float64
	for _, f := range fills {
		q := parseQty(f.Quantity)
		qty += q
		quote += q * parseQty(f.Price)
	}
	if qty <= 0 {
		return 0
	}
	return quote / qty
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseQty(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
