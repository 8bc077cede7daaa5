package gate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

// BinanceExecutor adapts Binance USD-M futures to the Executor
// contract. It is deliberately thin: sizing, approval and ledger state
// live on the caller's side of the gate.
type BinanceExecutor struct {
	client  *futures.Client
	timeout time.Duration
}

// NewBinanceExecutor wraps an authenticated futures client.
func NewBinanceExecutor(apiKey, secretKey string, testnet bool) *BinanceExecutor {
	if testnet {
		futures.UseTestnet = true
	}
	return &BinanceExecutor{
		client:  futures.NewClient(apiKey, secretKey),
		timeout: 15 * time.Second,
	}
}

func (b *BinanceExecutor) Submit(o *model.Order, idempotencyKey string) (*model.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	svc := b.client.NewCreateOrderService().
		Symbol(o.Pair).
		Side(sideType(o.Side)).
		Quantity(strconv.FormatFloat(o.Quantity, 'f', -1, 64))
	if idempotencyKey != "" {
		svc = svc.NewClientOrderID(idempotencyKey)
	}

	switch o.Type {
	case model.OrderMarket:
		svc = svc.Type(futures.OrderTypeMarket)
	case model.OrderLimit:
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(strconv.FormatFloat(o.LimitPrice, 'f', -1, 64))
	case model.OrderStopMarket:
		svc = svc.Type(futures.OrderTypeStopMarket).
			StopPrice(strconv.FormatFloat(o.StopPrice, 'f', -1, 64))
	case model.OrderStopLimit:
		svc = svc.Type(futures.OrderTypeStop).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(strconv.FormatFloat(o.LimitPrice, 'f', -1, 64)).
			StopPrice(strconv.FormatFloat(o.StopPrice, 'f', -1, 64))
	default:
		return nil, &model.ValidationError{Field: "type", Reason: fmt.Sprintf("type %q not supported by live adapter", o.Type)}
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance create order: %w", err)
	}

	accepted := *o
	accepted.ID = fmt.Sprintf("%d:%s", res.OrderID, o.Pair)
	accepted.Status = mapStatus(res.Status)
	accepted.CreatedAt = time.UnixMilli(res.UpdateTime).UTC()
	return &accepted, nil
}

func (b *BinanceExecutor) Cancel(id string) error {
	orderID, pair, err := splitID(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	_, err = b.client.NewCancelOrderService().Symbol(pair).OrderID(orderID).Do(ctx)
	if err != nil {
		return fmt.Errorf("binance cancel order: %w", err)
	}
	return nil
}

func (b *BinanceExecutor) GetStatus(id string) (*model.Order, error) {
	orderID, pair, err := splitID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	res, err := b.client.NewGetOrderService().Symbol(pair).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance get order: %w", err)
	}

	qty, _ := strconv.ParseFloat(res.OrigQuantity, 64)
	price, _ := strconv.ParseFloat(res.AvgPrice, 64)
	return &model.Order{
		ID:        id,
		Pair:      res.Symbol,
		Side:      orderSide(res.Side),
		Quantity:  qty,
		Status:    mapStatus(res.Status),
		FillPrice: price,
		CreatedAt: time.UnixMilli(res.Time).UTC(),
	}, nil
}

// Live order IDs are "<exchange id>:<symbol>" so status lookups know
// which symbol to query.
func splitID(id string) (int64, string, error) {
	for i := 0; i < len(id); i++ {
		if id[i] == ':' {
			n, err := strconv.ParseInt(id[:i], 10, 64)
			if err != nil {
				return 0, "", &model.ValidationError{Field: "id", Reason: "malformed live order id"}
			}
			return n, id[i+1:], nil
		}
	}
	return 0, "", &model.ValidationError{Field: "id", Reason: "live order id must be <id>:<symbol>"}
}

func sideType(s model.Side) futures.SideType {
	if s == model.Long {
		return futures.SideTypeBuy
	}
	return futures.SideTypeSell
}

func orderSide(s futures.SideType) model.Side {
	if s == futures.SideTypeBuy {
		return model.Long
	}
	return model.Short
}

func mapStatus(s futures.OrderStatusType) model.OrderStatus {
	switch s {
	case futures.OrderStatusTypeNew, futures.OrderStatusTypePartiallyFilled:
		return model.OrderPending
	case futures.OrderStatusTypeFilled:
		return model.OrderFilled
	case futures.OrderStatusTypeCanceled, futures.OrderStatusTypeExpired:
		return model.OrderCancelled
	case futures.OrderStatusTypeRejected:
		return model.OrderRejected
	}
	return model.OrderPending
}
