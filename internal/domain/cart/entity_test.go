package cart

import (
	"testing"
	"time"
)

func TestCart(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c := NewCart("c1", "cust", now, 0)

	t.Run("默认有效期30分钟", func(t *testing.T) {
		if got := c.ExpiresAt.Sub(now); got != DefaultTTL {
			t.Errorf("有效期 = %v, 期望 %v", got, DefaultTTL)
		}
	})

	t.Run("剩余有效期", func(t *testing.T) {
		if got := c.RemainingTTL(now.Add(10 * time.Minute)); got != 20*time.Minute {
			t.Errorf("RemainingTTL = %v", got)
		}
		if got := c.RemainingTTL(now.Add(time.Hour)); got != 0 {
			t.Errorf("过期后RemainingTTL应为0, 实际 %v", got)
		}
	})

	t.Run("过期判断", func(t *testing.T) {
		if c.IsExpired(now) {
			t.Error("刚创建不应过期")
		}
		if !c.IsExpired(c.ExpiresAt) {
			t.Error("到达过期时间即视为过期")
		}
	})

	t.Run("查找明细", func(t *testing.T) {
		c.Items = []CartItem{{ID: "i1", StockItemID: "s1", HoldID: "h1"}, {ID: "i2", ReservationID: "r1"}}
		item, ok := c.FindItem("i2")
		if !ok || !item.HasReservation() || item.HasStockHold() {
			t.Errorf("查找明细错误: %+v", item)
		}
		if _, ok := c.FindItem("missing"); ok {
			t.Error("不存在的明细应返回false")
		}
	})

	t.Run("归属校验", func(t *testing.T) {
		if !c.IsOwnedBy("cust") || c.IsOwnedBy("other") {
			t.Error("归属判断错误")
		}
	})
}
