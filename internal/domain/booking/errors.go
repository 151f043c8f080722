package booking

import (
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// 预约领域错误定义
var (
	ErrSlotNotFound             = apperrors.New(apperrors.ErrCodeSlotNotFound, "时段不存在")
	ErrSlotUnavailable          = apperrors.New(apperrors.ErrCodeSlotUnavailable, "该时段已约满或不可预约")
	ErrReservationNotFound      = apperrors.New(apperrors.ErrCodeReservationNotFound, "预约不存在")
	ErrInvalidReservationStatus = apperrors.New(apperrors.ErrCodeInvalidReservationStatus, "预约状态不允许此操作")
	ErrReservationExpired       = apperrors.New(apperrors.ErrCodeReservationExpired, "预约占位已过期")
)
