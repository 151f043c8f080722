package cart

import (
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// 购物车领域错误定义
var (
	ErrCartNotFound     = apperrors.New(apperrors.ErrCodeCartNotFound, "购物车不存在")
	ErrCartExpired      = apperrors.New(apperrors.ErrCodeCartExpired, "购物车已过期")
	ErrCartItemNotFound = apperrors.New(apperrors.ErrCodeCartItemNotFound, "购物车明细不存在")
	ErrCartEmpty        = apperrors.New(apperrors.ErrCodeCartEmpty, "购物车为空")

	// ErrSlotRequired 预约类商品必须选择时段
	ErrSlotRequired = apperrors.New(apperrors.ErrCodeInvalidParams, "该商品需要选择预约时段")

	// ErrInvalidQuantity 购买数量不合法
	ErrInvalidQuantity = apperrors.New(apperrors.ErrCodeInvalidParams, "购买数量必须大于0")
)
