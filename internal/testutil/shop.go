package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cartapp "github.com/xiebiao/storefront/internal/application/cart"
	"github.com/xiebiao/storefront/internal/application/fulfillment"
	"github.com/xiebiao/storefront/internal/application/hold"
	orderapp "github.com/xiebiao/storefront/internal/application/order"
	"github.com/xiebiao/storefront/internal/domain/catalog"
	"github.com/xiebiao/storefront/internal/domain/order"
	"github.com/xiebiao/storefront/internal/infrastructure/gateway"
	"github.com/xiebiao/storefront/internal/infrastructure/persistence/mysql"
)

// WebhookSecret 测试网关的签名密钥
const WebhookSecret = "whsec_test"

// Shop 基于测试数据库装配好的全部应用服务
type Shop struct {
	*Repos
	Holds              *hold.Manager
	Gateway            *gateway.Mock
	CartService        *cartapp.Service
	OrderPipeline      *orderapp.PipelineService
	CheckoutService    *orderapp.CheckoutService
	RefundService      *orderapp.RefundService
	FulfillmentService *fulfillment.Service
}

// OrderHoldTTL 测试订单的支付期限
const OrderHoldTTL = time.Hour

// NewShop 创建测试商店
func NewShop(t *testing.T) *Shop {
	t.Helper()
	r := NewRepos(t)
	log := zap.NewNop()

	holds := hold.NewManager(r.Tx, r.Stocks, r.Ledger, r.Slots, r.Reservations, r.Clock, log)
	gw := gateway.NewMock(gateway.Config{Secret: WebhookSecret}, r.Clock, log)
	return &Shop{
		Repos:              r,
		Holds:              holds,
		Gateway:            gw,
		CartService:        cartapp.NewService(r.Tx, r.Carts, r.Catalog, holds, r.Clock, 30*time.Minute, log),
		OrderPipeline:      orderapp.NewPipelineService(r.Tx, r.Carts, r.Orders, r.Catalog, holds, r.Clock, OrderHoldTTL, log),
		CheckoutService:    orderapp.NewCheckoutService(r.Tx, r.Orders, r.Payments, gw, r.Clock, log),
		RefundService:      orderapp.NewRefundService(r.Tx, r.Orders, r.Payments, r.Refunds, gw, holds, r.Clock, 0, log),
		FulfillmentService: fulfillment.NewService(r.Tx, r.Orders, r.Payments, r.Jobs, holds, r.Clock, 3, log),
	}
}

// SeedDigital 写入数字商品
func (s *Shop) SeedDigital(t *testing.T, managed bool, qty int, unitAmount int64) *mysql.SeededProduct {
	t.Helper()
	seeded, err := s.Seeder.SeedProduct(context.Background(), mysql.ProductSeed{
		Type: catalog.ProductDigital, Title: "电子书", UnitAmount: unitAmount, Managed: managed, Quantity: qty,
	})
	require.NoError(t, err)
	return seeded
}

// SeedBooking 写入线下服务商品和一个时段,返回商品和时段ID
func (s *Shop) SeedBooking(t *testing.T, capacity int, unitAmount int64) (*mysql.SeededProduct, string) {
	t.Helper()
	ctx := context.Background()
	seeded, err := s.Seeder.SeedProduct(ctx, mysql.ProductSeed{
		Type: catalog.ProductOfflineService, Title: "线下咨询", UnitAmount: unitAmount,
	})
	require.NoError(t, err)
	slotID, err := s.Seeder.SeedSlot(ctx, mysql.SlotSeed{
		ResourceID: seeded.ResourceID, StartsAt: Epoch.Add(48 * time.Hour), Duration: time.Hour, Capacity: capacity,
	})
	require.NoError(t, err)
	return seeded, slotID
}

// Line 加购明细
type Line struct {
	Product  *mysql.SeededProduct
	Quantity int
	SlotID   string
}

// FillCart 创建购物车并加购
func (s *Shop) FillCart(t *testing.T, customerID string, lines ...Line) string {
	t.Helper()
	ctx := context.Background()
	c, err := s.CartService.CreateCart(ctx, customerID)
	require.NoError(t, err)
	for _, l := range lines {
		_, err := s.CartService.AddItem(ctx, cartapp.AddItemInput{
			CartID:     c.ID,
			CustomerID: customerID,
			ProductID:  l.Product.ProductID,
			PriceID:    l.Product.PriceID,
			Quantity:   l.Quantity,
			SlotID:     l.SlotID,
		})
		require.NoError(t, err)
	}
	return c.ID
}

// DraftOrder 加购并生成草稿订单
func (s *Shop) DraftOrder(t *testing.T, customerID string, lines ...Line) *order.Order {
	t.Helper()
	cartID := s.FillCart(t, customerID, lines...)
	o, err := s.OrderPipeline.CreateFromCart(context.Background(), cartID, customerID)
	require.NoError(t, err)
	return o
}

// PendingOrder 生成订单并发起支付,返回订单和支付会话
func (s *Shop) PendingOrder(t *testing.T, customerID string, lines ...Line) (*order.Order, *orderapp.CheckoutResult) {
	t.Helper()
	ctx := context.Background()
	o := s.DraftOrder(t, customerID, lines...)
	res, err := s.CheckoutService.Checkout(ctx, o.ID, customerID)
	require.NoError(t, err)
	o, err = s.Orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	return o, res
}

// PaymentIntentOf 订单支付会话对应的支付意图
func (s *Shop) PaymentIntentOf(t *testing.T, o *order.Order) string {
	t.Helper()
	intent, ok := s.Gateway.PaymentIntent(o.CheckoutSessionID)
	require.True(t, ok, "支付会话不存在")
	return intent
}

// Pay 模拟支付成功回调,完成订单履约
func (s *Shop) Pay(t *testing.T, o *order.Order) {
	t.Helper()
	err := s.FulfillmentService.CompletePayment(context.Background(), fulfillment.PaymentSucceeded{
		OrderID:           o.ID,
		PaymentIntentID:   s.PaymentIntentOf(t, o),
		CheckoutSessionID: o.CheckoutSessionID,
		Amount:            o.TotalAmount,
		Currency:          o.Currency,
	})
	require.NoError(t, err)
}
