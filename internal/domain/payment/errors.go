package payment

import (
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

var (
	ErrPaymentNotFound      = apperrors.New(apperrors.ErrCodePaymentNotFound, "支付记录不存在")
	ErrRefundExceedsPayment = apperrors.New(apperrors.ErrCodeRefundExceedsPayment, "退款金额超出可退金额")
	ErrInvalidRefundAmount  = apperrors.New(apperrors.ErrCodeInvalidParams, "退款金额必须大于0")
	ErrGatewayUnavailable   = apperrors.New(apperrors.ErrCodeGatewayError, "支付网关暂不可用")
)
