package inventory

import (
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// 库存领域错误定义
var (
	// ErrStockItemNotFound 库存项不存在
	ErrStockItemNotFound = apperrors.New(apperrors.ErrCodeStockItemNotFound, "库存项不存在")

	// ErrInsufficientStock 可售库存不足
	ErrInsufficientStock = apperrors.New(apperrors.ErrCodeInsufficientStock, "库存不足")

	// ErrInvalidQuantity 数量不合法
	ErrInvalidQuantity = apperrors.New(apperrors.ErrCodeInvalidParams, "数量必须大于0")

	// ErrRefundExceedsCommitted 退款回补超过订单已扣减且未回补的数量
	ErrRefundExceedsCommitted = apperrors.New(apperrors.ErrCodeRefundExceedsCommitted, "回补数量超出订单已扣减数量")

	// ErrHoldUnderflow 释放/扣减数量超过占用数量
	ErrHoldUnderflow = apperrors.New(apperrors.ErrCodeInsufficientStock, "占用数量不足,无法释放或扣减")
)
