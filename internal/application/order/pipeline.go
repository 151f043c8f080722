package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/cart"
	"github.com/xiebiao/storefront/internal/domain/catalog"
	"github.com/xiebiao/storefront/internal/domain/order"
	"github.com/xiebiao/storefront/internal/domain/uow"
	"github.com/xiebiao/storefront/pkg/clock"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/metrics"
)

// SlotExtender 延长预约占位,由hold.Manager实现
type SlotExtender interface {
	ExtendSlot(ctx context.Context, reservationID string, until time.Time) error
}

// PipelineService 购物车 → 草稿订单
type PipelineService struct {
	tx      uow.Transactor
	carts   cart.Repository
	orders  order.Repository
	catalog catalog.Reader
	slots   SlotExtender
	clock   clock.Clock
	holdTTL time.Duration
	logger  *zap.Logger
}

// NewPipelineService 创建下单服务
// holdTTL是订单的支付期限,预约占位随订单延长到该期限;0表示沿用购物车的期限
func NewPipelineService(
	tx uow.Transactor,
	carts cart.Repository,
	orders order.Repository,
	catalogReader catalog.Reader,
	slots SlotExtender,
	clk clock.Clock,
	holdTTL time.Duration,
	logger *zap.Logger,
) *PipelineService {
	return &PipelineService{
		tx:      tx,
		carts:   carts,
		orders:  orders,
		catalog: catalogReader,
		slots:   slots,
		clock:   clk,
		holdTTL: holdTTL,
		logger:  logger,
	}
}

// CreateFromCart 由购物车生成草稿订单
//
// 流程(同一事务):
//  1. 读取购物车,校验归属和有效期
//  2. 按当前价格生成明细快照,库存占用和预约原样转移到订单明细
//  3. 写入订单,清空购物车明细
//  4. 预约占位延长到订单的支付期限
//
// 占用不会在这里重新校验,也不会被释放;它们由支付结果决定扣减或释放
func (s *PipelineService) CreateFromCart(ctx context.Context, cartID, customerID string) (*order.Order, error) {
	var created *order.Order
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		c, err := s.carts.FindByID(ctx, cartID)
		if err != nil {
			return err
		}
		if !c.IsOwnedBy(customerID) {
			return apperrors.ErrAccessDenied
		}
		now := s.clock.Now()
		// 过期的购物车随时可能被清理任务释放占用
		if c.IsExpired(now) {
			return cart.ErrCartExpired
		}
		if len(c.Items) == 0 {
			return cart.ErrCartEmpty
		}

		orderID := uuid.NewString()
		items := make([]order.OrderItem, 0, len(c.Items))
		currency := ""
		for _, ci := range c.Items {
			item, itemCurrency, err := s.snapshot(ctx, &ci)
			if err != nil {
				return err
			}
			if currency == "" {
				currency = itemCurrency
			} else if itemCurrency != currency {
				return apperrors.WithDetail(order.ErrCurrencyMismatch, "%s != %s", itemCurrency, currency)
			}
			items = append(items, item)
		}

		o := order.NewOrder(orderID, order.GenerateOrderNo(now), c.CustomerID, c.ID, currency, items, now)
		if err := s.orders.Create(ctx, o); err != nil {
			return err
		}
		if err := s.carts.DeleteItems(ctx, c.ID); err != nil {
			return err
		}
		if s.holdTTL > 0 {
			for _, item := range o.Items {
				if !item.HasReservation() {
					continue
				}
				if err := s.slots.ExtendSlot(ctx, item.ReservationID, now.Add(s.holdTTL)); err != nil {
					return err
				}
			}
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordOrderCreated()
	s.logger.Info("订单创建成功",
		zap.String("order_id", created.ID),
		zap.String("order_no", created.OrderNo),
		zap.String("cart_id", cartID),
		zap.Int64("total", created.TotalAmount),
	)
	return created, nil
}

// snapshot 购物车明细 → 订单明细,金额取当前价格
func (s *PipelineService) snapshot(ctx context.Context, ci *cart.CartItem) (order.OrderItem, string, error) {
	product, err := s.catalog.GetProduct(ctx, ci.ProductID)
	if err != nil {
		return order.OrderItem{}, "", err
	}
	price, err := s.catalog.GetPrice(ctx, ci.PriceID)
	if err != nil {
		return order.OrderItem{}, "", err
	}
	fulfillment, err := order.FulfillmentFor(product.Type)
	if err != nil {
		return order.OrderItem{}, "", err
	}

	return order.OrderItem{
		ID:              uuid.NewString(),
		ProductID:       ci.ProductID,
		PriceID:         ci.PriceID,
		Quantity:        ci.Quantity,
		UnitAmount:      price.UnitAmount,
		TotalAmount:     price.UnitAmount * int64(ci.Quantity),
		FulfillmentType: fulfillment,
		StockItemID:     ci.StockItemID,
		HoldID:          ci.HoldID,
		ReservationID:   ci.ReservationID,
	}, price.Currency, nil
}

// GetOrder 查询订单详情
func (s *PipelineService) GetOrder(ctx context.Context, orderID, customerID string) (*order.Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.IsOwnedBy(customerID) {
		return nil, apperrors.ErrAccessDenied
	}
	return o, nil
}

// ListOrders 分页查询客户订单
func (s *PipelineService) ListOrders(ctx context.Context, customerID string, page, pageSize int) ([]*order.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.orders.ListByCustomer(ctx, customerID, page, pageSize)
}
