package dto

import (
	"time"

	"github.com/xiebiao/storefront/internal/domain/booking"
)

// ListSlotsRequest 可预约时段查询
// from/to为RFC3339时间,缺省查询未来7天
type ListSlotsRequest struct {
	ResourceID string    `form:"resource_id" binding:"required"`
	From       time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// SlotResponse 可预约时段
type SlotResponse struct {
	ID         string `json:"id"`
	ResourceID string `json:"resource_id"`
	StartsAt   string `json:"starts_at"`
	EndsAt     string `json:"ends_at"`
	Capacity   int    `json:"capacity"`
	Remaining  int    `json:"remaining"`
}

// ToSlotResponses 时段列表 → 响应
func ToSlotResponses(slots []*booking.TimeSlot) []SlotResponse {
	out := make([]SlotResponse, len(slots))
	for i, s := range slots {
		out[i] = SlotResponse{
			ID:         s.ID,
			ResourceID: s.ResourceID,
			StartsAt:   s.StartsAt.UTC().Format(timeLayout),
			EndsAt:     s.EndsAt.UTC().Format(timeLayout),
			Capacity:   s.Capacity,
			Remaining:  s.Capacity - s.Reserved,
		}
	}
	return out
}
