package cart

import (
	"context"
	"time"
)

// Repository 购物车仓储接口
type Repository interface {
	Create(ctx context.Context, c *Cart) error

	// FindByID 查询购物车(包含明细)
	FindByID(ctx context.Context, id string) (*Cart, error)

	AddItem(ctx context.Context, item *CartItem) error
	DeleteItem(ctx context.Context, cartID, itemID string) error

	// DeleteItems 删除购物车的全部明细
	DeleteItems(ctx context.Context, cartID string) error

	// Delete 删除购物车及明细
	Delete(ctx context.Context, id string) error

	// ListExpired 查询已过期的购物车ID
	ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
}
