package catalog

import (
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

var (
	ErrProductNotFound = apperrors.New(apperrors.ErrCodeProductNotFound, "商品不存在")
	ErrPriceNotFound   = apperrors.New(apperrors.ErrCodePriceNotFound, "价格不存在或已停用")
)
