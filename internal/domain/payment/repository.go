package payment

import (
	"context"
)

// Repository 支付记录仓储
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	FindByIntentID(ctx context.Context, paymentIntentID string) (*Payment, error)

	// FindSucceededByOrder 查询订单的成功支付
	FindSucceededByOrder(ctx context.Context, orderID string) (*Payment, error)

	// LockByID 在调用方事务中锁定支付记录(SELECT ... FOR UPDATE)
	LockByID(ctx context.Context, id string) (*Payment, error)

	// Upsert 按PaymentIntentID插入或更新
	Upsert(ctx context.Context, p *Payment) error

	UpdateStatus(ctx context.Context, id string, status Status) error
}

// RefundRepository 退款记录仓储
type RefundRepository interface {
	Create(ctx context.Context, r *Refund) error
	Update(ctx context.Context, r *Refund) error

	// SumActive 统计支付下PENDING和SUCCEEDED退款的总额
	SumActive(ctx context.Context, paymentID string) (int64, error)
}
