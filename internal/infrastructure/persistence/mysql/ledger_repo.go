package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/xiebiao/storefront/internal/domain/inventory"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// ledgerRepository 库存流水仓储
// 只有INSERT和SELECT,没有UPDATE/DELETE方法
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository 创建流水仓储
func NewLedgerRepository(db *gorm.DB) inventory.LedgerRepository {
	return &ledgerRepository{db: db}
}

// Record 追加流水
func (r *ledgerRepository) Record(ctx context.Context, e *inventory.LedgerEntry) error {
	model := &LedgerEntryModel{
		StockItemID: e.StockItemID,
		Change:      e.Change,
		Reason:      string(e.Reason),
		OrderID:     e.OrderID,
		HoldID:      e.HoldID,
		CreatedAt:   e.CreatedAt,
	}
	if err := dbFrom(ctx, r.db).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "记录库存流水失败")
	}
	e.ID = model.ID
	return nil
}

func (r *ledgerRepository) ListByStockItem(ctx context.Context, stockItemID string) ([]*inventory.LedgerEntry, error) {
	return r.find(dbFrom(ctx, r.db).Where("stock_item_id = ?", stockItemID))
}

// ListByOrder 按订单ID查询(只包含明确记录了订单ID的流水)
func (r *ledgerRepository) ListByOrder(ctx context.Context, orderID string) ([]*inventory.LedgerEntry, error) {
	return r.find(dbFrom(ctx, r.db).Where("order_id = ?", orderID))
}

// ListByHolds 按占用ID查询,订单的完整流水 = 其明细HoldID对应的全部流水
func (r *ledgerRepository) ListByHolds(ctx context.Context, holdIDs []string) ([]*inventory.LedgerEntry, error) {
	if len(holdIDs) == 0 {
		return nil, nil
	}
	return r.find(dbFrom(ctx, r.db).Where("hold_id IN ?", holdIDs))
}

// Scan 键集分页: (created_at, id) > (cursor.created_at, cursor.id)
func (r *ledgerRepository) Scan(ctx context.Context, filter inventory.ExportFilter, after *inventory.ExportCursor, limit int) ([]*inventory.LedgerEntry, error) {
	q := dbFrom(ctx, r.db).Model(&LedgerEntryModel{})
	if filter.StockItemID != "" {
		q = q.Where("stock_item_id = ?", filter.StockItemID)
	}
	if filter.OrderID != "" {
		// 订单的HOLD流水没有订单ID,按明细上的占用ID归属
		holds := dbFrom(ctx, r.db).Model(&OrderItemModel{}).
			Select("hold_id").
			Where("order_id = ? AND hold_id <> ''", filter.OrderID)
		q = q.Where("(order_id = ? OR hold_id IN (?))", filter.OrderID, holds)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at < ?", filter.Until)
	}
	if after != nil {
		q = q.Where("((created_at > ?) OR (created_at = ? AND id > ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}
	return r.find(q.Limit(limit))
}

// ListAfterID 中继读取
// 只读取创建时间早于before的流水,给仍未提交的事务留出时间窗口
func (r *ledgerRepository) ListAfterID(ctx context.Context, afterID uint64, before time.Time, limit int) ([]*inventory.LedgerEntry, error) {
	var models []LedgerEntryModel
	err := dbFrom(ctx, r.db).
		Where("id > ? AND created_at < ?", afterID, before).
		Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询库存流水失败")
	}
	return toLedgerEntities(models), nil
}

func (r *ledgerRepository) find(q *gorm.DB) ([]*inventory.LedgerEntry, error) {
	var models []LedgerEntryModel
	if err := q.Order("created_at ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询库存流水失败")
	}
	return toLedgerEntities(models), nil
}

func toLedgerEntities(models []LedgerEntryModel) []*inventory.LedgerEntry {
	entries := make([]*inventory.LedgerEntry, len(models))
	for i, m := range models {
		entries[i] = &inventory.LedgerEntry{
			ID:          m.ID,
			StockItemID: m.StockItemID,
			Change:      m.Change,
			Reason:      inventory.Reason(m.Reason),
			OrderID:     m.OrderID,
			HoldID:      m.HoldID,
			CreatedAt:   m.CreatedAt,
		}
	}
	return entries
}
