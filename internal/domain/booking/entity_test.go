package booking

import (
	"errors"
	"testing"
	"time"
)

func TestReservation_Transitions(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("HELD可确认", func(t *testing.T) {
		r := NewReservation("r1", "slot", "c1", now, 30*time.Minute)
		if err := r.Confirm(now); err != nil {
			t.Fatalf("确认失败: %v", err)
		}
		if r.Status != ReservationConfirmed || r.ConfirmedAt == nil {
			t.Errorf("状态未更新: %+v", r)
		}
		if !r.IsTerminal() {
			t.Error("CONFIRMED应为终态")
		}
	})

	t.Run("HELD可取消", func(t *testing.T) {
		r := NewReservation("r2", "slot", "c1", now, 30*time.Minute)
		if err := r.Cancel(now); err != nil {
			t.Fatalf("取消失败: %v", err)
		}
		if r.CancelledAt == nil {
			t.Error("CancelledAt未设置")
		}
	})

	t.Run("终态不可再变更", func(t *testing.T) {
		r := NewReservation("r3", "slot", "c1", now, 30*time.Minute)
		_ = r.Cancel(now)
		if err := r.Confirm(now); !errors.Is(err, ErrInvalidReservationStatus) {
			t.Errorf("期望ErrInvalidReservationStatus, 实际 %v", err)
		}
	})

	t.Run("过期时间", func(t *testing.T) {
		r := NewReservation("r4", "slot", "c1", now, 30*time.Minute)
		if !r.ExpiresAt.Equal(now.Add(30 * time.Minute)) {
			t.Errorf("ExpiresAt错误: %v", r.ExpiresAt)
		}
	})
}

func TestReservation_Expiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("到期后不可确认", func(t *testing.T) {
		r := NewReservation("r1", "slot", "c1", now, 30*time.Minute)
		if r.IsExpired(now.Add(29 * time.Minute)) {
			t.Error("未到期")
		}
		if !r.IsExpired(now.Add(30 * time.Minute)) {
			t.Error("应已过期")
		}
		if err := r.Confirm(now.Add(31 * time.Minute)); !errors.Is(err, ErrReservationExpired) {
			t.Errorf("期望ErrReservationExpired, 实际 %v", err)
		}
		if r.Status != ReservationHeld {
			t.Errorf("状态不应变化: %s", r.Status)
		}
	})

	t.Run("终态不算过期", func(t *testing.T) {
		r := NewReservation("r2", "slot", "c1", now, time.Minute)
		_ = r.Cancel(now)
		if r.IsExpired(now.Add(time.Hour)) {
			t.Error("CANCELLED不应视为过期")
		}
	})

	t.Run("延长", func(t *testing.T) {
		r := NewReservation("r3", "slot", "c1", now, 30*time.Minute)
		if err := r.ExtendTo(now.Add(2*time.Hour), now.Add(time.Minute)); err != nil {
			t.Fatalf("延长失败: %v", err)
		}
		if !r.ExpiresAt.Equal(now.Add(2 * time.Hour)) {
			t.Errorf("ExpiresAt错误: %v", r.ExpiresAt)
		}
		// 不会缩短
		if err := r.ExtendTo(now.Add(time.Hour), now.Add(time.Minute)); err != nil {
			t.Fatalf("延长失败: %v", err)
		}
		if !r.ExpiresAt.Equal(now.Add(2 * time.Hour)) {
			t.Errorf("ExpiresAt被缩短: %v", r.ExpiresAt)
		}
	})

	t.Run("已过期或终态不可延长", func(t *testing.T) {
		r := NewReservation("r4", "slot", "c1", now, time.Minute)
		if err := r.ExtendTo(now.Add(time.Hour), now.Add(2*time.Minute)); !errors.Is(err, ErrReservationExpired) {
			t.Errorf("期望ErrReservationExpired, 实际 %v", err)
		}
		_ = r.Cancel(now)
		if err := r.ExtendTo(now.Add(time.Hour), now); !errors.Is(err, ErrInvalidReservationStatus) {
			t.Errorf("期望ErrInvalidReservationStatus, 实际 %v", err)
		}
	})
}

func TestTimeSlot_HasCapacity(t *testing.T) {
	s := &TimeSlot{Capacity: 1, Reserved: 0, IsActive: true}
	if !s.HasCapacity() {
		t.Error("应有名额")
	}
	s.Reserved = 1
	if s.HasCapacity() {
		t.Error("已约满")
	}
	s.Reserved, s.IsActive = 0, false
	if s.HasCapacity() {
		t.Error("停用时段不可预约")
	}
}
