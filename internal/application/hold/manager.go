// Package hold 管理库存占用和时段预约
//
// 库存计数器和时段名额的所有变更都经过Manager:
// 每个操作是一个事务,包含一条带条件的计数器UPDATE和对应的流水/预约记录。
// 调用方已在事务中时(ctx携带事务),操作加入调用方事务,与购物车、订单的写入一起提交或回滚。
package hold

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/booking"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/domain/uow"
	"github.com/xiebiao/storefront/pkg/clock"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/metrics"
	"github.com/xiebiao/storefront/pkg/tracing"
)

const (
	kindStock = "stock"
	kindSlot  = "slot"
)

// Manager 占用管理器
type Manager struct {
	tx           uow.Transactor
	stocks       inventory.StockRepository
	ledger       inventory.LedgerRepository
	slots        booking.SlotRepository
	reservations booking.ReservationRepository
	clock        clock.Clock
	logger       *zap.Logger
}

// NewManager 创建占用管理器
func NewManager(
	tx uow.Transactor,
	stocks inventory.StockRepository,
	ledger inventory.LedgerRepository,
	slots booking.SlotRepository,
	reservations booking.ReservationRepository,
	clk clock.Clock,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		tx:           tx,
		stocks:       stocks,
		ledger:       ledger,
		slots:        slots,
		reservations: reservations,
		clock:        clk,
		logger:       logger,
	}
}

// HoldStock 占用库存
// 不限量库存项直接返回空holdID,不修改计数器也不记流水
func (m *Manager) HoldStock(ctx context.Context, stockItemID string, qty int) (string, error) {
	if qty <= 0 {
		return "", inventory.ErrInvalidQuantity
	}

	var holdID string
	err := m.run(ctx, kindStock, "HoldStock", func(ctx context.Context) error {
		item, err := m.stocks.FindByID(ctx, stockItemID)
		if err != nil {
			return err
		}
		if !item.Managed {
			return nil
		}

		if err := m.stocks.Hold(ctx, stockItemID, qty); err != nil {
			return err
		}
		id := uuid.NewString()
		entry := inventory.NewLedgerEntry(stockItemID, -qty, inventory.ReasonHold, "", id, m.clock.Now())
		if err := m.ledger.Record(ctx, entry); err != nil {
			return err
		}
		holdID = id
		return nil
	}, attribute.String("stock_item_id", stockItemID), attribute.Int("qty", qty))
	if err != nil {
		return "", err
	}
	return holdID, nil
}

// ReleaseStock 释放占用
// 不做去重,调用方保证同一个holdID只释放一次
func (m *Manager) ReleaseStock(ctx context.Context, stockItemID string, qty int, holdID, orderID string) error {
	return m.moveStock(ctx, "ReleaseStock", stockItemID, qty, holdID, orderID, inventory.ReasonRelease,
		func(ctx context.Context) error { return m.stocks.Release(ctx, stockItemID, qty) })
}

// CommitStock 支付成功后扣减库存,同时消耗占用
func (m *Manager) CommitStock(ctx context.Context, stockItemID string, qty int, holdID, orderID string) error {
	return m.moveStock(ctx, "CommitStock", stockItemID, qty, holdID, orderID, inventory.ReasonCommit,
		func(ctx context.Context) error { return m.stocks.Commit(ctx, stockItemID, qty) })
}

// Restock 入库
func (m *Manager) Restock(ctx context.Context, stockItemID string, qty int) error {
	return m.moveStock(ctx, "Restock", stockItemID, qty, "", "", inventory.ReasonRestock,
		func(ctx context.Context) error { return m.stocks.AddQuantity(ctx, stockItemID, qty) })
}

// RefundStock 退款回补库存
// 锁定库存项后按订单流水校验,同一订单每个库存项累计回补不超过已扣减数量
func (m *Manager) RefundStock(ctx context.Context, stockItemID string, qty int, orderID string) error {
	return m.moveStock(ctx, "RefundStock", stockItemID, qty, "", orderID, inventory.ReasonRefund,
		func(ctx context.Context) error {
			if _, err := m.stocks.Lock(ctx, stockItemID); err != nil {
				return err
			}
			if err := m.checkRefundable(ctx, orderID, map[string]int{stockItemID: qty}); err != nil {
				return err
			}
			return m.stocks.AddQuantity(ctx, stockItemID, qty)
		})
}

// CheckRefundStock 校验回补数量,不限量库存项不参与校验
func (m *Manager) CheckRefundStock(ctx context.Context, orderID string, want map[string]int) error {
	managed := make(map[string]int, len(want))
	for id, qty := range want {
		item, err := m.stocks.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if item.Managed {
			managed[id] = qty
		}
	}
	if len(managed) == 0 {
		return nil
	}
	return m.checkRefundable(ctx, orderID, managed)
}

func (m *Manager) checkRefundable(ctx context.Context, orderID string, want map[string]int) error {
	entries, err := m.ledger.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	left := inventory.Refundable(entries)
	for id, qty := range want {
		if qty > left[id] {
			return apperrors.WithDetail(inventory.ErrRefundExceedsCommitted,
				"库存项%s回补%d,可回补%d", id, qty, left[id])
		}
	}
	return nil
}

// moveStock 执行一次计数器变更并记录流水
// HOLD以外的流水方向: RELEASE/REFUND/RESTOCK为正,COMMIT为负
func (m *Manager) moveStock(
	ctx context.Context,
	op string,
	stockItemID string,
	qty int,
	holdID, orderID string,
	reason inventory.Reason,
	mutate func(ctx context.Context) error,
) error {
	if qty <= 0 {
		return inventory.ErrInvalidQuantity
	}

	change := qty
	if reason == inventory.ReasonCommit {
		change = -qty
	}

	return m.run(ctx, kindStock, op, func(ctx context.Context) error {
		item, err := m.stocks.FindByID(ctx, stockItemID)
		if err != nil {
			return err
		}
		if !item.Managed {
			return nil
		}
		if err := mutate(ctx); err != nil {
			return err
		}
		entry := inventory.NewLedgerEntry(stockItemID, change, reason, orderID, holdID, m.clock.Now())
		return m.ledger.Record(ctx, entry)
	}, attribute.String("stock_item_id", stockItemID), attribute.Int("qty", qty), attribute.String("hold_id", holdID))
}

// HoldSlot 占用一个时段名额,创建HELD预约
func (m *Manager) HoldSlot(ctx context.Context, slotID, customerID string, ttl time.Duration) (*booking.Reservation, error) {
	var reservation *booking.Reservation
	err := m.run(ctx, kindSlot, "HoldSlot", func(ctx context.Context) error {
		if err := m.slots.IncrementReserved(ctx, slotID); err != nil {
			return err
		}
		r := booking.NewReservation(uuid.NewString(), slotID, customerID, m.clock.Now(), ttl)
		if err := m.reservations.Create(ctx, r); err != nil {
			return err
		}
		reservation = r
		return nil
	}, attribute.String("slot_id", slotID))
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

// ReleaseSlot 取消HELD预约并归还名额
func (m *Manager) ReleaseSlot(ctx context.Context, reservationID string) error {
	return m.run(ctx, kindSlot, "ReleaseSlot", func(ctx context.Context) error {
		r, err := m.reservations.FindByID(ctx, reservationID)
		if err != nil {
			return err
		}
		from := r.Status
		if err := r.Cancel(m.clock.Now()); err != nil {
			return err
		}
		if err := m.reservations.UpdateStatus(ctx, r, from); err != nil {
			return err
		}
		return m.slots.DecrementReserved(ctx, r.SlotID)
	}, attribute.String("reservation_id", reservationID))
}

// ConfirmSlot 确认预约,名额保持占用
func (m *Manager) ConfirmSlot(ctx context.Context, reservationID string) error {
	return m.run(ctx, kindSlot, "ConfirmSlot", func(ctx context.Context) error {
		r, err := m.reservations.FindByID(ctx, reservationID)
		if err != nil {
			return err
		}
		from := r.Status
		if err := r.Confirm(m.clock.Now()); err != nil {
			return err
		}
		return m.reservations.UpdateStatus(ctx, r, from)
	}, attribute.String("reservation_id", reservationID))
}

// ExtendSlot 预约转入订单时把占位延长到订单的支付期限
func (m *Manager) ExtendSlot(ctx context.Context, reservationID string, until time.Time) error {
	return m.run(ctx, kindSlot, "ExtendSlot", func(ctx context.Context) error {
		r, err := m.reservations.FindByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := r.ExtendTo(until, m.clock.Now()); err != nil {
			return err
		}
		return m.reservations.UpdateExpiry(ctx, r)
	}, attribute.String("reservation_id", reservationID))
}

// run 在事务中执行fn,记录Span和指标
func (m *Manager) run(ctx context.Context, kind, op string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := tracing.StartSpan(ctx, "hold", op)
	span.SetAttributes(attrs...)

	err := m.tx.Transaction(ctx, fn)
	tracing.End(span, err)
	metrics.RecordHold(kind, op, resultOf(err))

	if err != nil && !isBusinessError(err) {
		m.logger.Error("占用操作失败",
			zap.String("op", op),
			zap.String("trace_id", tracing.ExtractTraceID(ctx)),
			zap.Error(err),
		)
	}
	return err
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case isBusinessError(err):
		return "rejected"
	default:
		return "error"
	}
}

// isBusinessError 约束不满足、资源不存在等客户端错误
func isBusinessError(err error) bool {
	appErr := apperrors.GetAppError(err)
	return appErr.Code < apperrors.ErrCodeInternal
}
