// Package fulfillment 把支付结果落到订单、占用和履约任务上
//
// 支付成功: 记录支付 → 订单PAID → 扣减库存/确认预约并投递履约任务 → 订单FULFILLED
// 支付失败: 记录支付失败 → 订单CANCELLED → 释放库存占用和预约
// 每种结果都在一个事务中完成,重复投递的回调不会产生第二次副作用。
package fulfillment

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/booking"
	"github.com/xiebiao/storefront/internal/domain/order"
	"github.com/xiebiao/storefront/internal/domain/payment"
	"github.com/xiebiao/storefront/internal/domain/uow"
	"github.com/xiebiao/storefront/internal/domain/webhook"
	"github.com/xiebiao/storefront/pkg/clock"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// Holds 履约用到的占用操作,由hold.Manager实现
type Holds interface {
	CommitStock(ctx context.Context, stockItemID string, qty int, holdID, orderID string) error
	ReleaseStock(ctx context.Context, stockItemID string, qty int, holdID, orderID string) error
	ConfirmSlot(ctx context.Context, reservationID string) error
	ReleaseSlot(ctx context.Context, reservationID string) error
}

// Service 履约服务
type Service struct {
	tx          uow.Transactor
	orders      order.Repository
	payments    payment.Repository
	jobs        webhook.JobRepository
	holds       Holds
	clock       clock.Clock
	maxAttempts int
	logger      *zap.Logger
}

// NewService 创建履约服务
// maxAttempts是投递的履约任务的最大尝试次数
func NewService(
	tx uow.Transactor,
	orders order.Repository,
	payments payment.Repository,
	jobs webhook.JobRepository,
	holds Holds,
	clk clock.Clock,
	maxAttempts int,
	logger *zap.Logger,
) *Service {
	return &Service{
		tx:          tx,
		orders:      orders,
		payments:    payments,
		jobs:        jobs,
		holds:       holds,
		clock:       clk,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// PaymentSucceeded 支付成功结果
type PaymentSucceeded struct {
	OrderID           string
	PaymentIntentID   string
	CheckoutSessionID string
	Amount            int64
	Currency          string
}

// CompletePayment 处理支付成功
// 订单已是PAID/FULFILLED时直接返回,不产生任何副作用;
// 订单不存在返回ErrOrderNotFound,由任务队列重试
func (s *Service) CompletePayment(ctx context.Context, in PaymentSucceeded) error {
	if in.OrderID == "" {
		return apperrors.WithDetail(webhook.ErrMalformedEvent, "缺少client_reference_id")
	}

	applied := false
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.FindByID(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if o.Status == order.StatusPaid || o.Status == order.StatusFulfilled {
			return nil
		}

		now := s.clock.Now()
		err = s.payments.Upsert(ctx, &payment.Payment{
			ID:                uuid.NewString(),
			OrderID:           o.ID,
			PaymentIntentID:   in.PaymentIntentID,
			CheckoutSessionID: in.CheckoutSessionID,
			Status:            payment.StatusSucceeded,
			Amount:            in.Amount,
			Currency:          in.Currency,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
		if err != nil {
			return err
		}

		from := o.Status
		if err := o.MarkPaid(now); err != nil {
			return err
		}
		if err := s.orders.UpdateStatus(ctx, o, from); err != nil {
			return err
		}

		for i := range o.Items {
			if err := s.fulfillItem(ctx, o, &o.Items[i]); err != nil {
				return err
			}
		}

		if err := o.MarkFulfilled(s.clock.Now()); err != nil {
			return err
		}
		if err := s.orders.UpdateStatus(ctx, o, order.StatusPaid); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return err
	}

	if applied {
		s.logger.Info("订单支付完成",
			zap.String("order_id", in.OrderID),
			zap.String("payment_intent_id", in.PaymentIntentID),
		)
	} else {
		s.logger.Info("订单已支付,忽略重复的支付结果", zap.String("order_id", in.OrderID))
	}
	return nil
}

// fulfillItem 扣减库存/确认预约,并投递对应的履约任务
func (s *Service) fulfillItem(ctx context.Context, o *order.Order, item *order.OrderItem) error {
	task := webhook.FulfillmentTask{
		OrderID:       o.ID,
		OrderItemID:   item.ID,
		CustomerID:    o.CustomerID,
		ProductID:     item.ProductID,
		Quantity:      item.Quantity,
		ReservationID: item.ReservationID,
	}

	if item.HasStockHold() {
		if err := s.holds.CommitStock(ctx, item.StockItemID, item.Quantity, item.HoldID, o.ID); err != nil {
			return err
		}
	}
	if item.FulfillmentType == order.FulfillmentDigital {
		if err := s.enqueue(ctx, webhook.FulfillDigitalJobID(item.ID), webhook.TaskFulfillDigital, task); err != nil {
			return err
		}
	}

	if item.HasReservation() {
		if err := s.holds.ConfirmSlot(ctx, item.ReservationID); err != nil {
			return err
		}
		if err := s.enqueue(ctx, webhook.ConfirmBookingJobID(item.ReservationID), webhook.TaskConfirmBooking, task); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, id, typ string, task webhook.FulfillmentTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return apperrors.Wrap(err, "序列化履约任务失败")
	}
	_, err = s.jobs.Enqueue(ctx, webhook.NewJob(id, typ, payload, s.maxAttempts, s.clock.Now()))
	return err
}

// FailPayment 处理支付失败
// 支付记录不存在、订单已取消或已支付时不做任何处理
func (s *Service) FailPayment(ctx context.Context, paymentIntentID string) error {
	p, err := s.payments.FindByIntentID(ctx, paymentIntentID)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			s.logger.Info("支付记录不存在,忽略支付失败事件", zap.String("payment_intent_id", paymentIntentID))
			return nil
		}
		return err
	}

	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.FindByID(ctx, p.OrderID)
		if err != nil {
			return err
		}
		if !o.CanTransitionTo(order.StatusCancelled) {
			s.logger.Info("订单状态不允许取消,忽略支付失败事件",
				zap.String("order_id", o.ID),
				zap.String("status", string(o.Status)),
			)
			return nil
		}

		if err := s.payments.UpdateStatus(ctx, p.ID, payment.StatusFailed); err != nil {
			return err
		}
		return s.cancel(ctx, o, "payment_failed")
	})
}

// CancelOrder 取消订单并释放全部占用
// 已取消的订单直接返回;已支付的订单返回ErrInvalidStatusTransition
func (s *Service) CancelOrder(ctx context.Context, orderID, reason string) error {
	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status == order.StatusCancelled {
			return nil
		}
		return s.cancel(ctx, o, reason)
	})
}

// cancel 订单→CANCELLED,释放库存占用(流水记订单ID)和预约
func (s *Service) cancel(ctx context.Context, o *order.Order, reason string) error {
	from := o.Status
	if err := o.Cancel(s.clock.Now()); err != nil {
		return err
	}
	if err := s.orders.UpdateStatus(ctx, o, from); err != nil {
		return err
	}

	for _, item := range o.Items {
		if item.HasStockHold() {
			if err := s.holds.ReleaseStock(ctx, item.StockItemID, item.Quantity, item.HoldID, o.ID); err != nil {
				return err
			}
		}
		if item.HasReservation() {
			err := s.holds.ReleaseSlot(ctx, item.ReservationID)
			if err != nil && !errors.Is(err, booking.ErrInvalidReservationStatus) {
				return err
			}
			if err != nil {
				s.logger.Warn("预约已不在HELD状态,跳过释放",
					zap.String("order_id", o.ID),
					zap.String("reservation_id", item.ReservationID),
				)
			}
		}
	}

	s.logger.Info("订单已取消",
		zap.String("order_id", o.ID),
		zap.String("reason", reason),
	)
	return nil
}
