package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/xiebiao/storefront/internal/domain/booking"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// slotRepository 时段仓储
type slotRepository struct {
	db *gorm.DB
}

// NewSlotRepository 创建时段仓储
func NewSlotRepository(db *gorm.DB) booking.SlotRepository {
	return &slotRepository{db: db}
}

func (r *slotRepository) Create(ctx context.Context, s *booking.TimeSlot) error {
	if err := dbFrom(ctx, r.db).Create(toTimeSlotModel(s)).Error; err != nil {
		return apperrors.Wrap(err, "创建时段失败")
	}
	return nil
}

func (r *slotRepository) FindByID(ctx context.Context, id string) (*booking.TimeSlot, error) {
	var model TimeSlotModel
	if err := dbFrom(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if isNotFound(err) {
			return nil, booking.ErrSlotNotFound
		}
		return nil, apperrors.Wrap(err, "查询时段失败")
	}
	return toTimeSlotEntity(&model), nil
}

// IncrementReserved 原子的比较并自增
// UPDATE time_slots SET reserved = reserved + 1 WHERE id = ? AND reserved < capacity AND is_active
func (r *slotRepository) IncrementReserved(ctx context.Context, id string) error {
	result := dbFrom(ctx, r.db).Model(&TimeSlotModel{}).
		Where("id = ? AND reserved < capacity AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"reserved": gorm.Expr("reserved + 1"),
		})
	return r.checkResult(ctx, result, id, booking.ErrSlotUnavailable)
}

// DecrementReserved reserved -= 1,不会减到负数
func (r *slotRepository) DecrementReserved(ctx context.Context, id string) error {
	result := dbFrom(ctx, r.db).Model(&TimeSlotModel{}).
		Where("id = ? AND reserved > 0", id).
		Updates(map[string]interface{}{
			"reserved": gorm.Expr("reserved - 1"),
		})
	return r.checkResult(ctx, result, id, booking.ErrInvalidReservationStatus)
}

func (r *slotRepository) ListAvailable(ctx context.Context, resourceID string, from, to time.Time) ([]*booking.TimeSlot, error) {
	var models []TimeSlotModel
	err := dbFrom(ctx, r.db).
		Where("resource_id = ? AND starts_at >= ? AND starts_at < ?", resourceID, from, to).
		Where("is_active = ? AND reserved < capacity", true).
		Order("starts_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询可预约时段失败")
	}
	slots := make([]*booking.TimeSlot, len(models))
	for i := range models {
		slots[i] = toTimeSlotEntity(&models[i])
	}
	return slots, nil
}

func (r *slotRepository) checkResult(ctx context.Context, result *gorm.DB, id string, conflict error) error {
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新时段失败")
	}
	if result.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := dbFrom(ctx, r.db).Model(&TimeSlotModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return apperrors.Wrap(err, "查询时段失败")
	}
	if count == 0 {
		return booking.ErrSlotNotFound
	}
	return conflict
}

// reservationRepository 预约仓储
type reservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository 创建预约仓储
func NewReservationRepository(db *gorm.DB) booking.ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) Create(ctx context.Context, res *booking.Reservation) error {
	if err := dbFrom(ctx, r.db).Create(toReservationModel(res)).Error; err != nil {
		return apperrors.Wrap(err, "创建预约失败")
	}
	return nil
}

func (r *reservationRepository) FindByID(ctx context.Context, id string) (*booking.Reservation, error) {
	var model ReservationModel
	if err := dbFrom(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if isNotFound(err) {
			return nil, booking.ErrReservationNotFound
		}
		return nil, apperrors.Wrap(err, "查询预约失败")
	}
	return toReservationEntity(&model), nil
}

// UpdateStatus 条件更新状态,防止两个写入者同时推进同一预约
func (r *reservationRepository) UpdateStatus(ctx context.Context, res *booking.Reservation, from booking.ReservationStatus) error {
	result := dbFrom(ctx, r.db).Model(&ReservationModel{}).
		Where("id = ? AND status = ?", res.ID, string(from)).
		Updates(map[string]interface{}{
			"status":       string(res.Status),
			"confirmed_at": res.ConfirmedAt,
			"cancelled_at": res.CancelledAt,
			"updated_at":   res.UpdatedAt,
		})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新预约状态失败")
	}
	if result.RowsAffected == 0 {
		return booking.ErrInvalidReservationStatus
	}
	return nil
}

func (r *reservationRepository) UpdateExpiry(ctx context.Context, res *booking.Reservation) error {
	result := dbFrom(ctx, r.db).Model(&ReservationModel{}).
		Where("id = ? AND status = ?", res.ID, string(booking.ReservationHeld)).
		Updates(map[string]interface{}{
			"expires_at": res.ExpiresAt,
			"updated_at": res.UpdatedAt,
		})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新预约过期时间失败")
	}
	if result.RowsAffected == 0 {
		return booking.ErrInvalidReservationStatus
	}
	return nil
}

func (r *reservationRepository) ListExpiredHeld(ctx context.Context, now time.Time, limit int) ([]*booking.Reservation, error) {
	var models []ReservationModel
	err := dbFrom(ctx, r.db).
		Where("status = ? AND expires_at <= ?", string(booking.ReservationHeld), now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询过期预约失败")
	}
	reservations := make([]*booking.Reservation, len(models))
	for i := range models {
		reservations[i] = toReservationEntity(&models[i])
	}
	return reservations, nil
}

func toTimeSlotModel(s *booking.TimeSlot) *TimeSlotModel {
	return &TimeSlotModel{
		ID:         s.ID,
		ResourceID: s.ResourceID,
		StartsAt:   s.StartsAt,
		EndsAt:     s.EndsAt,
		Capacity:   s.Capacity,
		Reserved:   s.Reserved,
		IsActive:   s.IsActive,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

func toTimeSlotEntity(m *TimeSlotModel) *booking.TimeSlot {
	return &booking.TimeSlot{
		ID:         m.ID,
		ResourceID: m.ResourceID,
		StartsAt:   m.StartsAt,
		EndsAt:     m.EndsAt,
		Capacity:   m.Capacity,
		Reserved:   m.Reserved,
		IsActive:   m.IsActive,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func toReservationModel(r *booking.Reservation) *ReservationModel {
	return &ReservationModel{
		ID:          r.ID,
		SlotID:      r.SlotID,
		CustomerID:  r.CustomerID,
		Status:      string(r.Status),
		ExpiresAt:   r.ExpiresAt,
		ConfirmedAt: r.ConfirmedAt,
		CancelledAt: r.CancelledAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toReservationEntity(m *ReservationModel) *booking.Reservation {
	return &booking.Reservation{
		ID:          m.ID,
		SlotID:      m.SlotID,
		CustomerID:  m.CustomerID,
		Status:      booking.ReservationStatus(m.Status),
		ExpiresAt:   m.ExpiresAt,
		ConfirmedAt: m.ConfirmedAt,
		CancelledAt: m.CancelledAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
