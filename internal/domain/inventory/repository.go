package inventory

import (
	"context"
	"time"
)

// StockRepository 库存项仓储
// 所有计数器变更都是带条件的UPDATE,通过RowsAffected判断是否满足约束
type StockRepository interface {
	Create(ctx context.Context, item *StockItem) error
	FindByID(ctx context.Context, id string) (*StockItem, error)

	// Hold hold_quantity += qty, 条件 quantity - hold_quantity >= qty
	Hold(ctx context.Context, id string, qty int) error

	// Release hold_quantity -= qty, 条件 hold_quantity >= qty
	Release(ctx context.Context, id string, qty int) error

	// Commit quantity -= qty, hold_quantity -= qty, 条件两者都 >= qty
	Commit(ctx context.Context, id string, qty int) error

	// Lock 在调用方事务中锁定库存项(SELECT ... FOR UPDATE)
	Lock(ctx context.Context, id string) (*StockItem, error)

	// AddQuantity quantity += qty (入库/退款回补)
	AddQuantity(ctx context.Context, id string, qty int) error
}

// LedgerRepository 库存流水仓储
// 只有追加和查询,不提供更新和删除
type LedgerRepository interface {
	// Record 追加流水,必须在调用方的事务中执行
	Record(ctx context.Context, entry *LedgerEntry) error

	ListByStockItem(ctx context.Context, stockItemID string) ([]*LedgerEntry, error)
	ListByOrder(ctx context.Context, orderID string) ([]*LedgerEntry, error)
	ListByHolds(ctx context.Context, holdIDs []string) ([]*LedgerEntry, error)

	// Scan 按(created_at, id)顺序分页读取
	Scan(ctx context.Context, filter ExportFilter, after *ExportCursor, limit int) ([]*LedgerEntry, error)

	// ListAfterID 读取id大于afterID且创建时间早于before的流水(用于中继)
	ListAfterID(ctx context.Context, afterID uint64, before time.Time, limit int) ([]*LedgerEntry, error)
}

// ExportFilter 导出过滤条件
type ExportFilter struct {
	StockItemID string
	OrderID     string
	Since       time.Time // 零值表示不限
	Until       time.Time // 零值表示不限
}

// ExportCursor 分页游标
type ExportCursor struct {
	CreatedAt time.Time
	ID        uint64
}

// CursorRepository 中继进度存储
type CursorRepository interface {
	Get(ctx context.Context, name string) (uint64, error)
	Save(ctx context.Context, name string, position uint64) error
}
