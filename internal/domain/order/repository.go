package order

import (
	"context"
	"time"
)

// Repository 订单仓储接口(依赖倒置原则)
// 由domain层定义接口,infrastructure层实现,事务通过context传递
type Repository interface {
	// Create 创建订单(包含订单明细),必须与删除购物车明细在同一事务
	Create(ctx context.Context, order *Order) error

	// FindByID 根据ID查找订单(包含订单明细)
	FindByID(ctx context.Context, id string) (*Order, error)

	// UpdateStatus 条件更新状态: WHERE id = ? AND status = from
	// 并发写入导致状态已变化时返回ErrInvalidStatusTransition
	UpdateStatus(ctx context.Context, o *Order, from Status) error

	// SetCheckoutSession 保存支付会话ID
	SetCheckoutSession(ctx context.Context, id, sessionID string) error

	// ListByCustomer 查询客户的订单列表(按创建时间倒序)
	ListByCustomer(ctx context.Context, customerID string, page, pageSize int) ([]*Order, int64, error)

	// ListStale 查询创建时间早于before且处于给定状态的订单ID
	ListStale(ctx context.Context, statuses []Status, before time.Time, limit int) ([]string, error)

	// FindIDByReservation 查询持有该预约的订单ID,不存在时返回ErrOrderNotFound
	FindIDByReservation(ctx context.Context, reservationID string) (string, error)

	// OrderIDsByHolds 库存占用ID → 订单ID,没有转入订单的占用不出现在结果中
	OrderIDsByHolds(ctx context.Context, holdIDs []string) (map[string]string, error)
}
