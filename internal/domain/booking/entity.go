package booking

import (
	"time"
)

// TimeSlot 可预约时段
// 不变量: 0 <= Reserved <= Capacity
type TimeSlot struct {
	ID         string
	ResourceID string
	StartsAt   time.Time
	EndsAt     time.Time
	Capacity   int
	Reserved   int
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasCapacity 是否还有名额
func (s *TimeSlot) HasCapacity() bool {
	return s.IsActive && s.Reserved < s.Capacity
}

// ReservationStatus 预约状态
type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "HELD"      // 已占位(待支付)
	ReservationConfirmed ReservationStatus = "CONFIRMED" // 已确认(终态)
	ReservationCancelled ReservationStatus = "CANCELLED" // 已取消(终态)
)

// Reservation 时段预约
type Reservation struct {
	ID          string
	SlotID      string
	CustomerID  string
	Status      ReservationStatus
	ExpiresAt   time.Time
	ConfirmedAt *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewReservation 创建HELD状态的预约
func NewReservation(id, slotID, customerID string, now time.Time, ttl time.Duration) *Reservation {
	return &Reservation{
		ID:         id,
		SlotID:     slotID,
		CustomerID: customerID,
		Status:     ReservationHeld,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// reservationTransitions 合法的状态流转
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationHeld:      {ReservationConfirmed, ReservationCancelled},
	ReservationConfirmed: {},
	ReservationCancelled: {},
}

// CanTransitionTo 检查是否可以转换到目标状态
func (r *Reservation) CanTransitionTo(target ReservationStatus) bool {
	for _, allowed := range reservationTransitions[r.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionTo 状态转换
func (r *Reservation) TransitionTo(target ReservationStatus, now time.Time) error {
	if !r.CanTransitionTo(target) {
		return ErrInvalidReservationStatus
	}
	r.Status = target
	r.UpdatedAt = now
	switch target {
	case ReservationConfirmed:
		r.ConfirmedAt = &now
	case ReservationCancelled:
		r.CancelledAt = &now
	}
	return nil
}

// IsExpired HELD预约到达ExpiresAt即过期,等待清理任务回收名额
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.Status == ReservationHeld && !now.Before(r.ExpiresAt)
}

// Confirm 确认预约,已过期的占位不能再确认
func (r *Reservation) Confirm(now time.Time) error {
	if r.IsExpired(now) {
		return ErrReservationExpired
	}
	return r.TransitionTo(ReservationConfirmed, now)
}

// ExtendTo 把HELD预约的过期时间推迟到until,不会缩短
func (r *Reservation) ExtendTo(until, now time.Time) error {
	if r.Status != ReservationHeld {
		return ErrInvalidReservationStatus
	}
	if r.IsExpired(now) {
		return ErrReservationExpired
	}
	if until.After(r.ExpiresAt) {
		r.ExpiresAt = until
		r.UpdatedAt = now
	}
	return nil
}

// Cancel 取消预约
func (r *Reservation) Cancel(now time.Time) error {
	return r.TransitionTo(ReservationCancelled, now)
}

// IsTerminal 是否终态
func (r *Reservation) IsTerminal() bool {
	return len(reservationTransitions[r.Status]) == 0
}
