package cart

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/booking"
	"github.com/xiebiao/storefront/internal/domain/cart"
	"github.com/xiebiao/storefront/internal/domain/order"
	"github.com/xiebiao/storefront/internal/domain/uow"
	"github.com/xiebiao/storefront/pkg/clock"
	"github.com/xiebiao/storefront/pkg/metrics"
)

// Locker 分布式锁,多实例部署时只有一个实例执行清理
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(ctx context.Context) error, ok bool, err error)
}

// OrderCanceller 取消订单并释放占用,由fulfillment.Service实现
type OrderCanceller interface {
	CancelOrder(ctx context.Context, orderID, reason string) error
}

// SweeperConfig 清理配置
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
	OrderTTL  time.Duration // DRAFT/PENDING订单超过该时长视为放弃
}

// Sweeper 回收过期购物车、放弃的订单和过期预约持有的占用
type Sweeper struct {
	tx           uow.Transactor
	carts        cart.Repository
	orders       order.Repository
	reservations booking.ReservationRepository
	holds        Holds
	canceller    OrderCanceller
	locker       Locker
	clock        clock.Clock
	cfg          SweeperConfig
	logger       *zap.Logger
}

// NewSweeper 创建清理器
func NewSweeper(
	tx uow.Transactor,
	carts cart.Repository,
	orders order.Repository,
	reservations booking.ReservationRepository,
	holds Holds,
	canceller OrderCanceller,
	locker Locker,
	clk clock.Clock,
	cfg SweeperConfig,
	logger *zap.Logger,
) *Sweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Sweeper{
		tx:           tx,
		carts:        carts,
		orders:       orders,
		reservations: reservations,
		holds:        holds,
		canceller:    canceller,
		locker:       locker,
		clock:        clk,
		cfg:          cfg,
		logger:       logger,
	}
}

const sweepLockName = "storefront:sweeper"

// Run 按Interval定时清理,直到ctx取消
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("过期清理已启动", zap.Duration("interval", s.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("过期清理已停止")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce 获取锁后执行一轮清理,返回是否执行
// 拿不到锁说明其他实例正在清理
func (s *Sweeper) RunOnce(ctx context.Context) bool {
	release, ok, err := s.locker.TryLock(ctx, sweepLockName, s.cfg.Interval)
	if err != nil {
		s.logger.Warn("获取清理锁失败", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("释放清理锁失败", zap.Error(err))
		}
	}()

	if _, err := s.SweepExpiredCarts(ctx); err != nil {
		s.logger.Error("清理过期购物车失败", zap.Error(err))
	}
	if _, err := s.SweepAbandonedOrders(ctx); err != nil {
		s.logger.Error("清理放弃订单失败", zap.Error(err))
	}
	if _, err := s.SweepExpiredReservations(ctx); err != nil {
		s.logger.Error("清理过期预约失败", zap.Error(err))
	}
	return true
}

// SweepExpiredCarts 释放过期购物车的全部占用并删除购物车,每个购物车一个事务
// 单个购物车失败只记录日志,不影响其他购物车
func (s *Sweeper) SweepExpiredCarts(ctx context.Context) (int, error) {
	ids, err := s.carts.ListExpired(ctx, s.clock.Now(), s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range ids {
		released, err := s.sweepCart(ctx, id)
		if err != nil {
			s.logger.Error("清理购物车失败", zap.String("cart_id", id), zap.Error(err))
			continue
		}
		swept++
		metrics.RecordSweep("cart", released)
	}
	if swept > 0 {
		s.logger.Info("已清理过期购物车", zap.Int("count", swept))
	}
	return swept, nil
}

func (s *Sweeper) sweepCart(ctx context.Context, cartID string) (int, error) {
	released := 0
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		released = 0
		c, err := s.carts.FindByID(ctx, cartID)
		if err != nil {
			if errors.Is(err, cart.ErrCartNotFound) {
				return nil
			}
			return err
		}
		// 事务内再次确认,避免与续期并发
		if !c.IsExpired(s.clock.Now()) {
			return nil
		}

		for i := range c.Items {
			item := &c.Items[i]
			if item.HasStockHold() {
				if err := s.holds.ReleaseStock(ctx, item.StockItemID, item.Quantity, item.HoldID, ""); err != nil {
					return err
				}
				released++
			}
			if item.HasReservation() {
				err := s.holds.ReleaseSlot(ctx, item.ReservationID)
				switch {
				case err == nil:
					released++
				case errors.Is(err, booking.ErrInvalidReservationStatus):
					// 预约已被取消或确认,名额不归购物车所有
				default:
					return err
				}
			}
		}
		return s.carts.Delete(ctx, c.ID)
	})
	return released, err
}

// SweepAbandonedOrders 取消超时未支付的DRAFT/PENDING订单,释放其占用
func (s *Sweeper) SweepAbandonedOrders(ctx context.Context) (int, error) {
	if s.cfg.OrderTTL <= 0 {
		return 0, nil
	}
	before := s.clock.Now().Add(-s.cfg.OrderTTL)
	ids, err := s.orders.ListStale(ctx, []order.Status{order.StatusDraft, order.StatusPending}, before, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, id := range ids {
		if err := s.canceller.CancelOrder(ctx, id, "abandoned"); err != nil {
			if errors.Is(err, order.ErrInvalidStatusTransition) {
				// 已被支付回调推进
				continue
			}
			s.logger.Error("取消放弃订单失败", zap.String("order_id", id), zap.Error(err))
			continue
		}
		cancelled++
	}
	if cancelled > 0 {
		metrics.RecordSweep("order", cancelled)
		s.logger.Info("已取消放弃订单", zap.Int("count", cancelled))
	}
	return cancelled, nil
}

// SweepExpiredReservations 回收过期的HELD预约
// 预约已转入订单时取消整个订单(同时释放订单的其他占用),否则直接归还名额
func (s *Sweeper) SweepExpiredReservations(ctx context.Context) (int, error) {
	expired, err := s.reservations.ListExpiredHeld(ctx, s.clock.Now(), s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, r := range expired {
		log := s.logger.With(zap.String("reservation_id", r.ID), zap.String("slot_id", r.SlotID))
		if err := s.reclaimReservation(ctx, r.ID); err != nil {
			log.Error("回收过期预约失败", zap.Error(err))
			continue
		}
		reclaimed++
	}
	if reclaimed > 0 {
		metrics.RecordSweep("reservation", reclaimed)
		s.logger.Info("已回收过期预约", zap.Int("count", reclaimed))
	}
	return reclaimed, nil
}

func (s *Sweeper) reclaimReservation(ctx context.Context, reservationID string) error {
	orderID, err := s.orders.FindIDByReservation(ctx, reservationID)
	switch {
	case err == nil:
		err = s.canceller.CancelOrder(ctx, orderID, "reservation_expired")
		if err == nil {
			return nil
		}
		if !errors.Is(err, order.ErrInvalidStatusTransition) {
			return err
		}
		// 订单已离开DRAFT/PENDING,预约仍为HELD时单独归还
	case errors.Is(err, order.ErrOrderNotFound):
		// 仍在购物车中,或购物车已不存在
	default:
		return err
	}

	err = s.holds.ReleaseSlot(ctx, reservationID)
	if errors.Is(err, booking.ErrInvalidReservationStatus) {
		return nil
	}
	return err
}
