package order

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/order"
	"github.com/xiebiao/storefront/internal/domain/payment"
	"github.com/xiebiao/storefront/internal/domain/uow"
	"github.com/xiebiao/storefront/pkg/clock"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// CheckoutService 为草稿订单创建支付会话
type CheckoutService struct {
	tx       uow.Transactor
	orders   order.Repository
	payments payment.Repository
	gateway  payment.Gateway
	clock    clock.Clock
	logger   *zap.Logger
}

// NewCheckoutService 创建支付服务
func NewCheckoutService(
	tx uow.Transactor,
	orders order.Repository,
	payments payment.Repository,
	gateway payment.Gateway,
	clk clock.Clock,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		tx:       tx,
		orders:   orders,
		payments: payments,
		gateway:  gateway,
		clock:    clk,
		logger:   logger,
	}
}

// CheckoutResult 支付会话
type CheckoutResult struct {
	OrderID   string `json:"order_id"`
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// Checkout 创建支付会话,订单 DRAFT → PENDING
// 网关调用在事务之外;并发发起支付时只有一个请求能完成状态迁移
func (s *CheckoutService) Checkout(ctx context.Context, orderID, customerID string) (*CheckoutResult, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.IsOwnedBy(customerID) {
		return nil, apperrors.ErrAccessDenied
	}
	if o.Status != order.StatusDraft {
		return nil, order.ErrOrderNotInDraftState
	}

	req := payment.CheckoutRequest{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Currency:   o.Currency,
		LineItems:  make([]payment.LineItem, 0, len(o.Items)),
	}
	for _, item := range o.Items {
		req.LineItems = append(req.LineItems, payment.LineItem{
			Name:       item.ProductID,
			UnitAmount: item.UnitAmount,
			Quantity:   item.Quantity,
		})
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.logger.Warn("创建支付会话失败", zap.String("order_id", o.ID), zap.Error(err))
		return nil, err
	}

	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		now := s.clock.Now()
		if err := s.orders.SetCheckoutSession(ctx, o.ID, session.SessionID); err != nil {
			return err
		}
		err := s.payments.Create(ctx, &payment.Payment{
			ID:                uuid.NewString(),
			OrderID:           o.ID,
			PaymentIntentID:   session.PaymentIntentID,
			CheckoutSessionID: session.SessionID,
			Status:            payment.StatusPending,
			Amount:            o.TotalAmount,
			Currency:          o.Currency,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
		if err != nil {
			return err
		}
		if err := o.MarkPending(now); err != nil {
			return err
		}
		return s.orders.UpdateStatus(ctx, o, order.StatusDraft)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("支付会话已创建",
		zap.String("order_id", o.ID),
		zap.String("session_id", session.SessionID),
	)
	return &CheckoutResult{OrderID: o.ID, SessionID: session.SessionID, URL: session.URL}, nil
}
