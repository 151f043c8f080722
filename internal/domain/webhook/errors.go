package webhook

import (
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

var (
	ErrJobNotFound      = apperrors.New(apperrors.ErrCodeJobNotFound, "任务不存在")
	ErrJobNotFailed     = apperrors.New(apperrors.ErrCodeBusinessError, "只能重试失败的任务")
	ErrMalformedEvent   = apperrors.New(apperrors.ErrCodeInvalidParams, "事件格式错误")
	ErrInvalidSignature = apperrors.ErrInvalidSignature

	// ErrVisibilityTimeout 领取后超过可见性超时仍未写回结果
	ErrVisibilityTimeout = apperrors.New(apperrors.ErrCodeBusinessError, "任务处理超时")
)
