package cart_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cartapp "github.com/xiebiao/storefront/internal/application/cart"
	"github.com/xiebiao/storefront/internal/domain/booking"
	"github.com/xiebiao/storefront/internal/domain/cart"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/domain/order"
	"github.com/xiebiao/storefront/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/storefront/internal/testutil"
)

func newSweeper(t *testing.T, s *testutil.Shop) (*cartapp.Sweeper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sw := cartapp.NewSweeper(s.Tx, s.Carts, s.Orders, s.Reservations, s.Holds, s.FulfillmentService, redis.NewLocker(client), s.Clock,
		cartapp.SweeperConfig{Interval: time.Minute, BatchSize: 10, OrderTTL: testutil.OrderHoldTTL}, zap.NewNop())
	return sw, mr
}

func TestSweeper_SweepExpiredCarts(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewShop(t)
	sw, _ := newSweeper(t, s)

	digital := s.SeedDigital(t, true, 5, 1500)
	svc, slotID := s.SeedBooking(t, 1, 20000)
	expired := s.FillCart(t, customer,
		testutil.Line{Product: digital, Quantity: 2},
		testutil.Line{Product: svc, SlotID: slotID},
	)
	c, err := s.Carts.FindByID(ctx, expired)
	require.NoError(t, err)

	// 未过期时不清理
	n, err := sw.SweepExpiredCarts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	s.Clock.Advance(20 * time.Minute)
	fresh := s.FillCart(t, "customer-2", testutil.Line{Product: digital, Quantity: 1})
	s.Clock.Advance(15 * time.Minute)

	n, err = sw.SweepExpiredCarts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Carts.FindByID(ctx, expired)
	assert.ErrorIs(t, err, cart.ErrCartNotFound)
	_, err = s.Carts.FindByID(ctx, fresh)
	assert.NoError(t, err)

	// 只释放过期购物车的占用
	stock, err := s.Stocks.FindByID(ctx, digital.StockItemID)
	require.NoError(t, err)
	assert.Equal(t, 1, stock.HoldQuantity)

	entries, err := s.Ledger.ListByStockItem(ctx, digital.StockItemID)
	require.NoError(t, err)
	assert.True(t, inventory.NewDrift(stock, entries).IsZero())

	slot, err := s.Slots.FindByID(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 0, slot.Reserved)

	for _, item := range c.Items {
		if item.ReservationID == "" {
			continue
		}
		r, err := s.Reservations.FindByID(ctx, item.ReservationID)
		require.NoError(t, err)
		assert.Equal(t, booking.ReservationCancelled, r.Status)
	}
}

func TestSweeper_SkipsReservationNoLongerHeld(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewShop(t)
	sw, _ := newSweeper(t, s)

	svc, slotID := s.SeedBooking(t, 1, 20000)
	cartID := s.FillCart(t, customer, testutil.Line{Product: svc, SlotID: slotID})
	c, err := s.Carts.FindByID(ctx, cartID)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)

	// 预约已被其他流程取消
	require.NoError(t, s.Holds.ReleaseSlot(ctx, c.Items[0].ReservationID))

	s.Clock.Advance(31 * time.Minute)
	n, err := sw.SweepExpiredCarts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Carts.FindByID(ctx, cartID)
	assert.ErrorIs(t, err, cart.ErrCartNotFound)

	slot, err := s.Slots.FindByID(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 0, slot.Reserved)
}

func TestSweeper_SweepAbandonedOrders(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewShop(t)
	sw, _ := newSweeper(t, s)

	digital := s.SeedDigital(t, true, 5, 1500)
	draft := s.DraftOrder(t, customer, testutil.Line{Product: digital, Quantity: 1})
	pending, _ := s.PendingOrder(t, customer, testutil.Line{Product: digital, Quantity: 2})
	paid, _ := s.PendingOrder(t, customer, testutil.Line{Product: digital, Quantity: 1})
	s.Pay(t, paid)

	n, err := sw.SweepAbandonedOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	s.Clock.Advance(2 * time.Hour)
	n, err = sw.SweepAbandonedOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for id, want := range map[string]order.Status{
		draft.ID:   order.StatusCancelled,
		pending.ID: order.StatusCancelled,
		paid.ID:    order.StatusFulfilled,
	} {
		o, err := s.Orders.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, o.Status, id)
	}

	// 已支付订单的一件已扣减,其余占用全部释放
	stock, err := s.Stocks.FindByID(ctx, digital.StockItemID)
	require.NoError(t, err)
	assert.Equal(t, 0, stock.HoldQuantity)
	assert.Equal(t, 4, stock.Quantity)
}

func TestSweeper_RunOnce(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewShop(t)
	sw, mr := newSweeper(t, s)

	digital := s.SeedDigital(t, true, 5, 1500)
	cartID := s.FillCart(t, customer, testutil.Line{Product: digital, Quantity: 1})
	s.Clock.Advance(31 * time.Minute)

	t.Run("其他实例持有锁时跳过", func(t *testing.T) {
		require.NoError(t, mr.Set("lock:storefront:sweeper", "other"))
		assert.False(t, sw.RunOnce(ctx))

		_, err := s.Carts.FindByID(ctx, cartID)
		assert.NoError(t, err)
		mr.Del("lock:storefront:sweeper")
	})

	t.Run("获取锁后清理并释放锁", func(t *testing.T) {
		assert.True(t, sw.RunOnce(ctx))

		_, err := s.Carts.FindByID(ctx, cartID)
		assert.ErrorIs(t, err, cart.ErrCartNotFound)
		assert.False(t, mr.Exists("lock:storefront:sweeper"))
	})
}

func TestSweeper_SweepExpiredReservations(t *testing.T) {
	ctx := context.Background()

	t.Run("订单持有的预约随订单期限过期并取消订单", func(t *testing.T) {
		s := testutil.NewShop(t)
		sw, _ := newSweeper(t, s)

		svc, slotID := s.SeedBooking(t, 1, 20000)
		o := s.DraftOrder(t, customer, testutil.Line{Product: svc, SlotID: slotID})
		require.Len(t, o.Items, 1)
		reservationID := o.Items[0].ReservationID

		r, err := s.Reservations.FindByID(ctx, reservationID)
		require.NoError(t, err)
		assert.Equal(t, testutil.Epoch.Add(testutil.OrderHoldTTL), r.ExpiresAt.UTC(), "下单后占位延长到订单期限")

		// 购物车期限已过,订单期限未到
		s.Clock.Advance(50 * time.Minute)
		n, err := sw.SweepExpiredReservations(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		s.Clock.Advance(20 * time.Minute)
		n, err = sw.SweepExpiredReservations(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		r, err = s.Reservations.FindByID(ctx, reservationID)
		require.NoError(t, err)
		assert.Equal(t, booking.ReservationCancelled, r.Status)

		got, err := s.Orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusCancelled, got.Status)

		slot, err := s.Slots.FindByID(ctx, slotID)
		require.NoError(t, err)
		assert.Equal(t, 0, slot.Reserved)

		// 已回收的预约不会重复处理
		n, err = sw.SweepExpiredReservations(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("不属于任何订单的预约直接归还名额", func(t *testing.T) {
		s := testutil.NewShop(t)
		sw, _ := newSweeper(t, s)

		_, slotID := s.SeedBooking(t, 1, 20000)
		r, err := s.Holds.HoldSlot(ctx, slotID, customer, 10*time.Minute)
		require.NoError(t, err)

		s.Clock.Advance(20 * time.Minute)
		assert.True(t, sw.RunOnce(ctx))

		stored, err := s.Reservations.FindByID(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, booking.ReservationCancelled, stored.Status)

		slot, err := s.Slots.FindByID(ctx, slotID)
		require.NoError(t, err)
		assert.Equal(t, 0, slot.Reserved)
	})

	t.Run("已支付订单的预约不受影响", func(t *testing.T) {
		s := testutil.NewShop(t)
		sw, _ := newSweeper(t, s)

		svc, slotID := s.SeedBooking(t, 1, 20000)
		o, _ := s.PendingOrder(t, customer, testutil.Line{Product: svc, SlotID: slotID})
		s.Pay(t, o)

		s.Clock.Advance(2 * testutil.OrderHoldTTL)
		n, err := sw.SweepExpiredReservations(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		slot, err := s.Slots.FindByID(ctx, slotID)
		require.NoError(t, err)
		assert.Equal(t, 1, slot.Reserved)
	})
}
