package booking

import (
	"context"
	"time"
)

// SlotRepository 时段仓储
type SlotRepository interface {
	Create(ctx context.Context, slot *TimeSlot) error
	FindByID(ctx context.Context, id string) (*TimeSlot, error)

	// IncrementReserved reserved += 1, 条件 reserved < capacity AND is_active
	IncrementReserved(ctx context.Context, id string) error

	// DecrementReserved reserved -= 1, 条件 reserved > 0
	DecrementReserved(ctx context.Context, id string) error

	// ListAvailable 查询资源在时间范围内仍有名额的时段
	ListAvailable(ctx context.Context, resourceID string, from, to time.Time) ([]*TimeSlot, error)
}

// ReservationRepository 预约仓储
type ReservationRepository interface {
	Create(ctx context.Context, r *Reservation) error
	FindByID(ctx context.Context, id string) (*Reservation, error)

	// UpdateStatus 条件更新: WHERE id = ? AND status = from
	// 其他写入者已改变状态时返回ErrInvalidReservationStatus
	UpdateStatus(ctx context.Context, r *Reservation, from ReservationStatus) error

	// UpdateExpiry 条件更新HELD预约的过期时间
	UpdateExpiry(ctx context.Context, r *Reservation) error

	// ListExpiredHeld 查询expires_at <= now的HELD预约(按过期时间升序)
	ListExpiredHeld(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)
}
