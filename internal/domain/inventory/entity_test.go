package inventory

import (
	"testing"
	"time"
)

func entry(reason Reason, change int) *LedgerEntry {
	return NewLedgerEntry("s1", change, reason, "", "", time.Time{})
}

func TestReplay(t *testing.T) {
	tests := []struct {
		name    string
		entries []*LedgerEntry
		want    Counters
	}{
		{"空流水", nil, Counters{}},
		{"入库", []*LedgerEntry{entry(ReasonRestock, 10)}, Counters{Quantity: 10}},
		{
			"占用后释放",
			[]*LedgerEntry{entry(ReasonRestock, 10), entry(ReasonHold, -4), entry(ReasonRelease, 4)},
			Counters{Quantity: 10, HoldQuantity: 0},
		},
		{
			"占用后扣减",
			[]*LedgerEntry{entry(ReasonRestock, 10), entry(ReasonHold, -2), entry(ReasonCommit, -2)},
			Counters{Quantity: 8, HoldQuantity: 0},
		},
		{
			"部分占用未结束",
			[]*LedgerEntry{entry(ReasonRestock, 10), entry(ReasonHold, -3)},
			Counters{Quantity: 10, HoldQuantity: 3},
		},
		{
			"退款回补",
			[]*LedgerEntry{entry(ReasonRestock, 5), entry(ReasonHold, -1), entry(ReasonCommit, -1), entry(ReasonRefund, 1)},
			Counters{Quantity: 5, HoldQuantity: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Replay(tt.entries); got != tt.want {
				t.Errorf("Replay() = %+v, 期望 %+v", got, tt.want)
			}
		})
	}
}

func TestNet(t *testing.T) {
	entries := []*LedgerEntry{entry(ReasonHold, -2), entry(ReasonRelease, 2)}
	if got := Net(entries); got != 0 {
		t.Errorf("Net() = %d, 期望 0", got)
	}
}

func TestRefundable(t *testing.T) {
	entries := []*LedgerEntry{
		{StockItemID: "s1", Reason: ReasonCommit, Change: -3},
		{StockItemID: "s1", Reason: ReasonRefund, Change: 1},
		{StockItemID: "s2", Reason: ReasonCommit, Change: -1},
		{StockItemID: "s2", Reason: ReasonRelease, Change: 4},
	}
	left := Refundable(entries)
	if left["s1"] != 2 || left["s2"] != 1 || left["s3"] != 0 {
		t.Errorf("Refundable() = %v", left)
	}
}

func TestDrift(t *testing.T) {
	entries := []*LedgerEntry{entry(ReasonRestock, 10), entry(ReasonHold, -2)}

	t.Run("无偏差", func(t *testing.T) {
		d := NewDrift(&StockItem{ID: "s1", Quantity: 10, HoldQuantity: 2}, entries)
		if !d.IsZero() {
			t.Errorf("期望无偏差, 实际 %+v", d)
		}
	})

	t.Run("存在偏差", func(t *testing.T) {
		d := NewDrift(&StockItem{ID: "s1", Quantity: 9, HoldQuantity: 2}, entries)
		if d.IsZero() || d.QuantityDrift != -1 {
			t.Errorf("期望quantity偏差-1, 实际 %+v", d)
		}
	})
}

func TestStockItem_CanHold(t *testing.T) {
	s := &StockItem{Managed: true, Quantity: 10, HoldQuantity: 8}
	if !s.CanHold(2) || s.CanHold(3) {
		t.Error("可售数量为2时判断错误")
	}
	s.Managed = false
	if !s.CanHold(100) {
		t.Error("不限量库存应总是可占用")
	}
}
