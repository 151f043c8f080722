package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/booking"
	"github.com/xiebiao/storefront/internal/domain/cart"
	"github.com/xiebiao/storefront/internal/domain/catalog"
	"github.com/xiebiao/storefront/internal/domain/uow"
	"github.com/xiebiao/storefront/pkg/clock"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// Holds 购物车用到的占用操作,由hold.Manager实现
type Holds interface {
	HoldStock(ctx context.Context, stockItemID string, qty int) (string, error)
	ReleaseStock(ctx context.Context, stockItemID string, qty int, holdID, orderID string) error
	HoldSlot(ctx context.Context, slotID, customerID string, ttl time.Duration) (*booking.Reservation, error)
	ReleaseSlot(ctx context.Context, reservationID string) error
}

// Service 购物车服务
type Service struct {
	tx      uow.Transactor
	carts   cart.Repository
	catalog catalog.Reader
	holds   Holds
	clock   clock.Clock
	ttl     time.Duration
	logger  *zap.Logger
}

// NewService 创建购物车服务
func NewService(
	tx uow.Transactor,
	carts cart.Repository,
	catalogReader catalog.Reader,
	holds Holds,
	clk clock.Clock,
	ttl time.Duration,
	logger *zap.Logger,
) *Service {
	if ttl <= 0 {
		ttl = cart.DefaultTTL
	}
	return &Service{
		tx:      tx,
		carts:   carts,
		catalog: catalogReader,
		holds:   holds,
		clock:   clk,
		ttl:     ttl,
		logger:  logger,
	}
}

// CreateCart 创建购物车
func (s *Service) CreateCart(ctx context.Context, customerID string) (*cart.Cart, error) {
	c := cart.NewCart(uuid.NewString(), customerID, s.clock.Now(), s.ttl)
	if err := s.carts.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetCart 查询购物车
func (s *Service) GetCart(ctx context.Context, cartID, customerID string) (*cart.Cart, error) {
	return s.loadOwned(ctx, cartID, customerID)
}

func (s *Service) loadOwned(ctx context.Context, cartID, customerID string) (*cart.Cart, error) {
	c, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if !c.IsOwnedBy(customerID) {
		return nil, apperrors.ErrAccessDenied
	}
	return c, nil
}

// AddItemInput 加购参数
type AddItemInput struct {
	CartID     string
	CustomerID string
	ProductID  string
	PriceID    string
	Quantity   int    // 0按1处理
	SlotID     string // 预约类商品必填
}

// AddItem 加入购物车
// 数字商品占用库存,预约类商品占用时段名额(占位时长与购物车剩余有效期一致),
// 占用和明细写入在同一事务中
func (s *Service) AddItem(ctx context.Context, in AddItemInput) (*cart.CartItem, error) {
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return nil, cart.ErrInvalidQuantity
	}

	var item *cart.CartItem
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		c, err := s.loadOwned(ctx, in.CartID, in.CustomerID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if c.IsExpired(now) {
			return cart.ErrCartExpired
		}

		product, err := s.catalog.GetProduct(ctx, in.ProductID)
		if err != nil {
			return err
		}
		price, err := s.catalog.GetPrice(ctx, in.PriceID)
		if err != nil {
			return err
		}
		if !price.BelongsTo(product.ID) {
			return catalog.ErrPriceNotFound
		}

		item = &cart.CartItem{
			ID:        uuid.NewString(),
			CartID:    c.ID,
			ProductID: product.ID,
			PriceID:   price.ID,
			Quantity:  qty,
			CreatedAt: now,
		}

		switch {
		case product.Type.RequiresSlot():
			if in.SlotID == "" {
				return cart.ErrSlotRequired
			}
			// 一条预约明细对应一个名额
			if qty != 1 {
				return apperrors.WithDetail(cart.ErrInvalidQuantity, "预约类商品数量只能为1")
			}
			reservation, err := s.holds.HoldSlot(ctx, in.SlotID, c.CustomerID, c.RemainingTTL(now))
			if err != nil {
				return err
			}
			item.SlotID = in.SlotID
			item.ReservationID = reservation.ID

		case product.Type == catalog.ProductDigital:
			ref, ok := product.PrimaryStockItem()
			if !ok {
				break
			}
			item.StockItemID = ref.ID
			if ref.Managed {
				holdID, err := s.holds.HoldStock(ctx, ref.ID, qty)
				if err != nil {
					return err
				}
				item.HoldID = holdID
			}
		}

		return s.carts.AddItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("加入购物车",
		zap.String("cart_id", in.CartID),
		zap.String("product_id", in.ProductID),
		zap.Int("quantity", qty),
	)
	return item, nil
}

// RemoveItem 删除明细并释放它创建的占用
func (s *Service) RemoveItem(ctx context.Context, cartID, customerID, itemID string) error {
	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		c, err := s.loadOwned(ctx, cartID, customerID)
		if err != nil {
			return err
		}
		item, ok := c.FindItem(itemID)
		if !ok {
			return cart.ErrCartItemNotFound
		}
		if err := releaseItem(ctx, s.holds, item); err != nil {
			return err
		}
		return s.carts.DeleteItem(ctx, cartID, itemID)
	})
}

// releaseItem 释放明细持有的库存占用和时段预约
func releaseItem(ctx context.Context, holds Holds, item *cart.CartItem) error {
	if item.HasStockHold() {
		if err := holds.ReleaseStock(ctx, item.StockItemID, item.Quantity, item.HoldID, ""); err != nil {
			return err
		}
	}
	if item.HasReservation() {
		if err := holds.ReleaseSlot(ctx, item.ReservationID); err != nil {
			return err
		}
	}
	return nil
}

// Total 购物车金额
type Total struct {
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

// CalculateTotal 按当前价格计算总额
func (s *Service) CalculateTotal(ctx context.Context, cartID, customerID string) (*Total, error) {
	c, err := s.loadOwned(ctx, cartID, customerID)
	if err != nil {
		return nil, err
	}

	total := &Total{Currency: "usd"}
	for i, item := range c.Items {
		price, err := s.catalog.GetPrice(ctx, item.PriceID)
		if err != nil {
			return nil, err
		}
		if i == 0 && price.Currency != "" {
			total.Currency = price.Currency
		}
		total.Total += price.UnitAmount * int64(item.Quantity)
	}
	return total, nil
}
