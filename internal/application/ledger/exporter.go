// Package ledger 库存流水的导出、对账与中继
package ledger

import (
	"context"
	"time"

	"github.com/xiebiao/storefront/internal/domain/inventory"
)

// DefaultPageSize 导出分页大小
const DefaultPageSize = 500

// Record 流水导出格式
type Record struct {
	ID          uint64    `json:"id"`
	StockItemID string    `json:"stock_item_id"`
	Change      int       `json:"change"`
	Reason      string    `json:"reason"`
	OrderID     string    `json:"order_id,omitempty"`
	HoldID      string    `json:"hold_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ToRecord 流水 → 导出格式
func ToRecord(e *inventory.LedgerEntry) Record {
	return Record{
		ID:          e.ID,
		StockItemID: e.StockItemID,
		Change:      e.Change,
		Reason:      string(e.Reason),
		OrderID:     e.OrderID,
		HoldID:      e.HoldID,
		Timestamp:   e.CreatedAt,
	}
}

// HoldOwners 查询库存占用所属的订单,由order.Repository实现
type HoldOwners interface {
	OrderIDsByHolds(ctx context.Context, holdIDs []string) (map[string]string, error)
}

// Exporter 按(created_at, id)顺序只读导出流水
// HOLD流水写入时占用还在购物车中,没有订单ID;导出时按占用ID补上所属订单
type Exporter struct {
	ledger   inventory.LedgerRepository
	owners   HoldOwners
	pageSize int
}

// NewExporter 创建导出器
func NewExporter(ledger inventory.LedgerRepository, owners HoldOwners, pageSize int) *Exporter {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Exporter{ledger: ledger, owners: owners, pageSize: pageSize}
}

// Export 分页读取流水交给fn,fn返回错误时停止
func (e *Exporter) Export(ctx context.Context, filter inventory.ExportFilter, fn func([]Record) error) error {
	var after *inventory.ExportCursor
	for {
		entries, err := e.ledger.Scan(ctx, filter, after, e.pageSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		page, err := e.attribute(ctx, entries)
		if err != nil {
			return err
		}
		if err := fn(page); err != nil {
			return err
		}

		if len(entries) < e.pageSize {
			return nil
		}
		last := entries[len(entries)-1]
		after = &inventory.ExportCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
}

// attribute 转换为导出格式,缺少订单ID的流水按占用ID补全
func (e *Exporter) attribute(ctx context.Context, entries []*inventory.LedgerEntry) ([]Record, error) {
	page := make([]Record, 0, len(entries))
	var holdIDs []string
	for _, entry := range entries {
		page = append(page, ToRecord(entry))
		if entry.OrderID == "" && entry.HoldID != "" {
			holdIDs = append(holdIDs, entry.HoldID)
		}
	}
	if len(holdIDs) == 0 {
		return page, nil
	}

	owners, err := e.owners.OrderIDsByHolds(ctx, holdIDs)
	if err != nil {
		return nil, err
	}
	for i := range page {
		if page[i].OrderID == "" {
			page[i].OrderID = owners[page[i].HoldID]
		}
	}
	return page, nil
}

// Reconciler 对账: 重放全部流水并与存储的计数器比较
type Reconciler struct {
	stocks inventory.StockRepository
	ledger inventory.LedgerRepository
}

// NewReconciler 创建对账器
func NewReconciler(stocks inventory.StockRepository, ledger inventory.LedgerRepository) *Reconciler {
	return &Reconciler{stocks: stocks, ledger: ledger}
}

// Reconcile 返回偏差报告,正常情况下偏差为零
func (r *Reconciler) Reconcile(ctx context.Context, stockItemID string) (*inventory.Drift, error) {
	item, err := r.stocks.FindByID(ctx, stockItemID)
	if err != nil {
		return nil, err
	}
	entries, err := r.ledger.ListByStockItem(ctx, stockItemID)
	if err != nil {
		return nil, err
	}
	return inventory.NewDrift(item, entries), nil
}
