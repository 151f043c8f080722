package cart

import (
	"time"
)

// DefaultTTL 购物车默认有效期
const DefaultTTL = 30 * time.Minute

// Cart 购物车(聚合根)
// 购物车中的每一项都持有自己创建的库存占用或时段预约,
// 删除明细或购物车过期时必须释放这些占用
type Cart struct {
	ID         string
	CustomerID string
	ExpiresAt  time.Time
	Items      []CartItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CartItem 购物车明细
type CartItem struct {
	ID            string
	CartID        string
	ProductID     string
	PriceID       string
	Quantity      int
	SlotID        string // 预约类商品的时段
	StockItemID   string // 数字商品的库存项
	HoldID        string // 库存占用ID,不限量库存为空
	ReservationID string // 时段预约ID
	CreatedAt     time.Time
}

// NewCart 创建购物车
func NewCart(id, customerID string, now time.Time, ttl time.Duration) *Cart {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cart{
		ID:         id,
		CustomerID: customerID,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsOwnedBy 是否属于指定客户
func (c *Cart) IsOwnedBy(customerID string) bool {
	return c.CustomerID == customerID
}

// IsExpired 是否已过期
func (c *Cart) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// RemainingTTL 剩余有效期,预约的占位时长与之对齐
func (c *Cart) RemainingTTL(now time.Time) time.Duration {
	if c.IsExpired(now) {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

// FindItem 查找明细
func (c *Cart) FindItem(itemID string) (*CartItem, bool) {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i], true
		}
	}
	return nil, false
}

// HasStockHold 明细是否持有库存占用
func (i *CartItem) HasStockHold() bool {
	return i.StockItemID != "" && i.HoldID != ""
}

// HasReservation 明细是否持有时段预约
func (i *CartItem) HasReservation() bool {
	return i.ReservationID != ""
}
