package payment

import (
	"time"
)

// Status 支付状态
type Status string

const (
	StatusPending   Status = "PENDING"   // 已创建支付会话,等待结果
	StatusSucceeded Status = "SUCCEEDED" // 支付成功
	StatusFailed    Status = "FAILED"    // 支付失败
)

// Payment 支付记录
// 以支付网关的PaymentIntentID为业务主键,重复的回调只会更新同一条记录
type Payment struct {
	ID                string
	OrderID           string
	PaymentIntentID   string
	CheckoutSessionID string
	Status            Status
	Amount            int64
	Currency          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RefundStatus 退款状态
type RefundStatus string

const (
	RefundPending   RefundStatus = "PENDING"
	RefundSucceeded RefundStatus = "SUCCEEDED"
	RefundFailed    RefundStatus = "FAILED"
)

// Refund 退款记录
type Refund struct {
	ID              string
	PaymentID       string
	OrderID         string
	Amount          int64
	Reason          string
	Restock         bool
	Status          RefundStatus
	GatewayRefundID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Refundable 剩余可退金额
func Refundable(p *Payment, refunded int64) int64 {
	if p.Amount <= refunded {
		return 0
	}
	return p.Amount - refunded
}
