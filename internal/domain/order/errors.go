package order

import (
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// 订单领域错误定义
var (
	// ErrOrderNotFound 订单不存在
	ErrOrderNotFound = apperrors.New(apperrors.ErrCodeOrderNotFound, "订单不存在")

	// ErrInvalidStatusTransition 非法的状态转换
	ErrInvalidStatusTransition = apperrors.New(apperrors.ErrCodeInvalidOrderStatus, "订单状态不允许此操作")

	// ErrOrderNotInDraftState 只有草稿订单可以发起支付
	ErrOrderNotInDraftState = apperrors.New(apperrors.ErrCodeInvalidOrderStatus, "订单不是草稿状态")

	// ErrUnsupportedProductType 商品类型无法映射到履约方式
	ErrUnsupportedProductType = apperrors.New(apperrors.ErrCodeInvalidParams, "不支持的商品类型")

	// ErrCurrencyMismatch 一个订单只能使用一种币种
	ErrCurrencyMismatch = apperrors.New(apperrors.ErrCodeInvalidParams, "订单明细币种不一致")
)
