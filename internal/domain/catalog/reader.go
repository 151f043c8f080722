package catalog

import (
	"context"
	"time"

	"github.com/xiebiao/storefront/internal/domain/booking"
)

// Reader 商品目录只读接口
// 商品的增删改由独立的目录服务负责
type Reader interface {
	// GetProduct 查询商品(包含价格、库存项、资源)
	GetProduct(ctx context.Context, productID string) (*Product, error)

	// GetPrice 查询价格
	GetPrice(ctx context.Context, priceID string) (*Price, error)

	// ListAvailableSlots 查询资源在[from, to)内可预约的时段
	ListAvailableSlots(ctx context.Context, resourceID string, from, to time.Time) ([]*booking.TimeSlot, error)
}
