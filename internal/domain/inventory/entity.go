package inventory

import (
	"time"
)

// StockItem 库存项
// 不变量: 0 <= HoldQuantity <= Quantity
// 可售数量 = Quantity - HoldQuantity
type StockItem struct {
	ID           string
	ProductID    string
	SKU          string
	Managed      bool // false表示不限量(不做库存管理)
	Quantity     int  // 实际库存
	HoldQuantity int  // 已被购物车/订单占用的数量
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Available 可售数量
func (s *StockItem) Available() int {
	return s.Quantity - s.HoldQuantity
}

// CanHold 是否可以占用qty个单位
func (s *StockItem) CanHold(qty int) bool {
	return !s.Managed || s.Available() >= qty
}

// Reason 库存流水原因
type Reason string

const (
	ReasonHold    Reason = "HOLD"    // 占用,change为负
	ReasonCommit  Reason = "COMMIT"  // 支付成功扣减,change为负
	ReasonRelease Reason = "RELEASE" // 释放占用,change为正
	ReasonRefund  Reason = "REFUND"  // 退款回补,change为正
	ReasonRestock Reason = "RESTOCK" // 入库,change为正
)

// Valid 是否为合法的流水原因
func (r Reason) Valid() bool {
	switch r {
	case ReasonHold, ReasonCommit, ReasonRelease, ReasonRefund, ReasonRestock:
		return true
	}
	return false
}

// LedgerEntry 库存流水(只追加,不修改不删除)
// HoldID把同一次占用的HOLD/RELEASE/COMMIT串起来,
// 购物车删除后仍可通过HoldID把占用归属到订单
type LedgerEntry struct {
	ID          uint64
	StockItemID string
	Change      int
	Reason      Reason
	OrderID     string // 可选
	HoldID      string // 可选
	CreatedAt   time.Time
}

// NewLedgerEntry 创建流水
func NewLedgerEntry(stockItemID string, change int, reason Reason, orderID, holdID string, now time.Time) *LedgerEntry {
	return &LedgerEntry{
		StockItemID: stockItemID,
		Change:      change,
		Reason:      reason,
		OrderID:     orderID,
		HoldID:      holdID,
		CreatedAt:   now,
	}
}

// Counters 库存计数器
type Counters struct {
	Quantity     int `json:"quantity"`
	HoldQuantity int `json:"hold_quantity"`
}

// Replay 从零开始重放流水,重建计数器
//
//	RESTOCK/REFUND: quantity += change
//	HOLD:           hold -= change      (change为负)
//	RELEASE:        hold -= change      (change为正)
//	COMMIT:         quantity += change, hold += change
func Replay(entries []*LedgerEntry) Counters {
	var c Counters
	for _, e := range entries {
		switch e.Reason {
		case ReasonRestock, ReasonRefund:
			c.Quantity += e.Change
		case ReasonHold, ReasonRelease:
			c.HoldQuantity -= e.Change
		case ReasonCommit:
			c.Quantity += e.Change
			c.HoldQuantity += e.Change
		}
	}
	return c
}

// Refundable 订单流水中每个库存项还可以回补的数量: COMMIT扣减量 - 已REFUND回补量
// entries应为同一订单的流水
func Refundable(entries []*LedgerEntry) map[string]int {
	left := make(map[string]int)
	for _, e := range entries {
		// COMMIT为负,REFUND为正
		if e.Reason == ReasonCommit || e.Reason == ReasonRefund {
			left[e.StockItemID] -= e.Change
		}
	}
	return left
}

// Net 流水净变化量
func Net(entries []*LedgerEntry) int {
	var n int
	for _, e := range entries {
		n += e.Change
	}
	return n
}

// Drift 对账结果
type Drift struct {
	StockItemID   string   `json:"stock_item_id"`
	Stored        Counters `json:"stored"`
	Replayed      Counters `json:"replayed"`
	QuantityDrift int      `json:"quantity_drift"`
	HoldDrift     int      `json:"hold_drift"`
	Entries       int      `json:"entries"`
}

// NewDrift 比较存储的计数器与重放结果
func NewDrift(item *StockItem, entries []*LedgerEntry) *Drift {
	replayed := Replay(entries)
	stored := Counters{Quantity: item.Quantity, HoldQuantity: item.HoldQuantity}
	return &Drift{
		StockItemID:   item.ID,
		Stored:        stored,
		Replayed:      replayed,
		QuantityDrift: stored.Quantity - replayed.Quantity,
		HoldDrift:     stored.HoldQuantity - replayed.HoldQuantity,
		Entries:       len(entries),
	}
}

// IsZero 是否无偏差
func (d *Drift) IsZero() bool {
	return d.QuantityDrift == 0 && d.HoldDrift == 0
}
