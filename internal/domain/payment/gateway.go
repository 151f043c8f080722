package payment

import (
	"context"
)

// LineItem 支付会话的明细
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int
}

// CheckoutRequest 创建支付会话请求
type CheckoutRequest struct {
	OrderID    string
	CustomerID string
	Currency   string
	LineItems  []LineItem
}

// CheckoutSession 支付会话
type CheckoutSession struct {
	SessionID       string
	URL             string
	PaymentIntentID string
}

// Gateway 支付网关(外部协作方)
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	CreateRefund(ctx context.Context, paymentIntentID string, amount int64, reason string) (string, error)
}
