package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/order"
	"github.com/xiebiao/storefront/internal/domain/payment"
	"github.com/xiebiao/storefront/internal/domain/uow"
	"github.com/xiebiao/storefront/pkg/clock"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/saga"
)

// Restocker 退款回补库存,由hold.Manager实现
type Restocker interface {
	// CheckRefundStock 校验订单各库存项的回补数量不超过已扣减未回补的数量
	CheckRefundStock(ctx context.Context, orderID string, want map[string]int) error
	RefundStock(ctx context.Context, stockItemID string, qty int, orderID string) error
}

// RefundService 退款服务
type RefundService struct {
	tx       uow.Transactor
	orders   order.Repository
	payments payment.Repository
	refunds  payment.RefundRepository
	gateway  payment.Gateway
	stock    Restocker
	clock    clock.Clock
	timeout  time.Duration
	logger   *zap.Logger
}

// NewRefundService 创建退款服务
// timeout是整个退款流程的超时,0表示不限制
func NewRefundService(
	tx uow.Transactor,
	orders order.Repository,
	payments payment.Repository,
	refunds payment.RefundRepository,
	gateway payment.Gateway,
	stock Restocker,
	clk clock.Clock,
	timeout time.Duration,
	logger *zap.Logger,
) *RefundService {
	return &RefundService{
		tx:       tx,
		orders:   orders,
		payments: payments,
		refunds:  refunds,
		gateway:  gateway,
		stock:    stock,
		clock:    clk,
		timeout:  timeout,
		logger:   logger,
	}
}

// RefundInput 退款参数
type RefundInput struct {
	OrderID      string
	CustomerID   string
	Amount       int64 // 0表示退还全部剩余金额
	Reason       string
	Restock      bool     // 是否回补数字商品库存
	OrderItemIDs []string // 回补的明细,为空表示全部明细
}

// Refund 退款
//
// 步骤:
//  1. 锁定支付记录,校验可退金额和回补数量,记录PENDING退款(补偿: 网关未退款时标记FAILED)
//  2. 调用网关退款,成功后记录网关退款ID并标记SUCCEEDED
//  3. Restock时为数字商品写入REFUND流水回补库存
func (s *RefundService) Refund(ctx context.Context, in RefundInput) (*payment.Refund, error) {
	o, err := s.orders.FindByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if !o.IsOwnedBy(in.CustomerID) {
		return nil, apperrors.ErrAccessDenied
	}
	if in.Amount < 0 {
		return nil, payment.ErrInvalidRefundAmount
	}
	restockItems, err := selectRestockItems(o, in)
	if err != nil {
		return nil, err
	}

	refund, p, err := s.record(ctx, o, in, restockItems)
	if err != nil {
		return nil, err
	}

	sg := saga.NewSaga("refund", saga.WithLogger(s.logger), saga.WithTimeout(s.timeout))
	sg.AddStep("record-refund",
		nil,
		func(ctx context.Context) error {
			// 网关已退款时保留记录,钱已经退回
			if refund.GatewayRefundID != "" {
				return nil
			}
			refund.Status = payment.RefundFailed
			refund.UpdatedAt = s.clock.Now()
			return s.refunds.Update(ctx, refund)
		},
	)
	sg.AddStep("gateway-refund",
		func(ctx context.Context) error {
			gatewayID, err := s.gateway.CreateRefund(ctx, p.PaymentIntentID, refund.Amount, in.Reason)
			if err != nil {
				return err
			}
			refund.GatewayRefundID = gatewayID
			refund.Status = payment.RefundSucceeded
			refund.UpdatedAt = s.clock.Now()
			return s.refunds.Update(ctx, refund)
		},
		nil,
	)
	if len(restockItems) > 0 {
		sg.AddStep("restock",
			func(ctx context.Context) error {
				return s.tx.Transaction(ctx, func(ctx context.Context) error {
					for _, item := range restockItems {
						if err := s.stock.RefundStock(ctx, item.StockItemID, item.Quantity, o.ID); err != nil {
							return err
						}
					}
					return nil
				})
			},
			nil,
		)
	}

	if err := sg.Execute(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("退款成功",
		zap.String("order_id", o.ID),
		zap.String("refund_id", refund.ID),
		zap.Int64("amount", refund.Amount),
		zap.Bool("restock", in.Restock),
	)
	return refund, nil
}

// record 锁定支付记录后校验并写入PENDING退款
// 同一笔支付的并发退款在这里串行,已有PENDING/SUCCEEDED退款计入已退金额
func (s *RefundService) record(ctx context.Context, o *order.Order, in RefundInput, restockItems []order.OrderItem) (*payment.Refund, *payment.Payment, error) {
	var (
		refund *payment.Refund
		locked *payment.Payment
	)
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		p, err := s.payments.FindSucceededByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if p, err = s.payments.LockByID(ctx, p.ID); err != nil {
			return err
		}

		refunded, err := s.refunds.SumActive(ctx, p.ID)
		if err != nil {
			return err
		}
		remaining := payment.Refundable(p, refunded)
		amount := in.Amount
		if amount == 0 {
			amount = remaining
		}
		if amount == 0 || amount > remaining {
			return apperrors.WithDetail(payment.ErrRefundExceedsPayment, "申请%d,剩余可退%d", amount, remaining)
		}

		if len(restockItems) > 0 {
			want := make(map[string]int, len(restockItems))
			for _, item := range restockItems {
				want[item.StockItemID] += item.Quantity
			}
			if err := s.stock.CheckRefundStock(ctx, o.ID, want); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		refund = &payment.Refund{
			ID:        uuid.NewString(),
			PaymentID: p.ID,
			OrderID:   o.ID,
			Amount:    amount,
			Reason:    in.Reason,
			Restock:   in.Restock,
			Status:    payment.RefundPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		locked = p
		return s.refunds.Create(ctx, refund)
	})
	if err != nil {
		return nil, nil, err
	}
	return refund, locked, nil
}

// selectRestockItems 需要回补的数字商品明细
func selectRestockItems(o *order.Order, in RefundInput) ([]order.OrderItem, error) {
	if !in.Restock {
		return nil, nil
	}

	var selected []order.OrderItem
	if len(in.OrderItemIDs) == 0 {
		selected = o.Items
	} else {
		for _, id := range in.OrderItemIDs {
			item, ok := o.FindItem(id)
			if !ok {
				return nil, apperrors.WithDetail(apperrors.ErrInvalidParams, "订单明细%s不存在", id)
			}
			selected = append(selected, *item)
		}
	}

	items := make([]order.OrderItem, 0, len(selected))
	for _, item := range selected {
		if item.FulfillmentType == order.FulfillmentDigital && item.StockItemID != "" {
			items = append(items, item)
		}
	}
	return items, nil
}
