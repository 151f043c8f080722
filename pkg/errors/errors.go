package errors

import (
	"errors"
	"fmt"
)

// AppError 自定义应用错误
// 设计说明：
// 1. Code用于客户端判断错误类型（不直接暴露HTTP状态码）
// 2. Message是用户友好的提示信息
// 3. Err是内部错误，仅记录到日志，不返回给客户端
type AppError struct {
	Code    int    `json:"code"`    // 业务错误码
	Message string `json:"message"` // 用户友好的错误提示
	Err     error  `json:"-"`       // 内部错误（不序列化）
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Is和errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建新的AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装系统错误（数据库错误、网络错误等）
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// Wrapf 格式化包装错误
func Wrapf(err error, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// WithDetail 在预定义错误的基础上附加上下文
// 返回的错误仍然满足errors.Is(err, base)
func WithDetail(base *AppError, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    base.Code,
		Message: base.Message,
		Err:     fmt.Errorf("%w: "+format, append([]interface{}{base}, args...)...),
	}
}

// =========================================
// 错误码定义
// =========================================
// 规范：
// - 4xxxx: 客户端错误（参数错误、业务规则校验失败）
// - 5xxxx: 服务端错误（数据库异常、外部服务调用失败）

const (
	// 系统级错误码（50000-50099）
	ErrCodeInternal      = 50000 // 内部错误
	ErrCodeDatabaseError = 50001 // 数据库错误
	ErrCodeRedisError    = 50002 // Redis错误
	ErrCodeGatewayError  = 50003 // 支付网关错误

	// 认证授权错误（40100-40199）
	ErrCodeUnauthorized     = 40100 // 未登录
	ErrCodeInvalidToken     = 40101 // Token无效
	ErrCodeTokenExpired     = 40102 // Token过期
	ErrCodeForbidden        = 40104 // 无权限（资源不属于当前客户）
	ErrCodeInvalidSignature = 40105 // Webhook签名无效

	// 资源错误（40400-40499）
	ErrCodeNotFound            = 40400 // 资源不存在(通用)
	ErrCodeProductNotFound     = 40402 // 商品不存在
	ErrCodeOrderNotFound       = 40403 // 订单不存在
	ErrCodeCartNotFound        = 40404 // 购物车不存在
	ErrCodePaymentNotFound     = 40405 // 支付记录不存在
	ErrCodePriceNotFound       = 40406 // 价格不存在或已停用
	ErrCodeSlotNotFound        = 40407 // 时段不存在
	ErrCodeReservationNotFound = 40408 // 预约不存在
	ErrCodeStockItemNotFound   = 40409 // 库存项不存在
	ErrCodeCartItemNotFound    = 40410 // 购物车明细不存在
	ErrCodeJobNotFound         = 40411 // 任务不存在

	// 业务规则错误（40000-40099）
	ErrCodeBusinessError            = 40000 // 业务错误(通用)
	ErrCodeInsufficientStock        = 40001 // 库存不足
	ErrCodeInvalidOrderStatus       = 40002 // 订单状态非法
	ErrCodeSlotUnavailable          = 40010 // 时段已约满
	ErrCodeCartExpired              = 40011 // 购物车已过期
	ErrCodeInvalidReservationStatus = 40012 // 预约状态非法
	ErrCodeCartEmpty                = 40013 // 购物车为空
	ErrCodeRefundExceedsPayment     = 40014 // 退款金额超出实付
	ErrCodeRefundExceedsCommitted   = 40015 // 回补数量超出已扣减数量
	ErrCodeReservationExpired       = 40016 // 预约占位已过期
	ErrCodeDuplicateEntry           = 40009 // 重复记录(通用)

	// 参数错误（40900-40999）
	ErrCodeInvalidParams = 40900 // 参数错误
	ErrCodeBindError     = 40901 // 参数绑定失败
)

// =========================================
// 预定义错误（避免每次都New）
// =========================================

var (
	// 系统错误
	ErrInternal      = New(ErrCodeInternal, "系统内部错误")
	ErrDatabaseError = New(ErrCodeDatabaseError, "数据库错误")
	ErrRedisError    = New(ErrCodeRedisError, "缓存服务错误")

	// 认证授权
	ErrUnauthorized     = New(ErrCodeUnauthorized, "请先登录")
	ErrInvalidToken     = New(ErrCodeInvalidToken, "无效的Token")
	ErrTokenExpired     = New(ErrCodeTokenExpired, "Token已过期")
	ErrAccessDenied     = New(ErrCodeForbidden, "无权访问该资源")
	ErrInvalidSignature = New(ErrCodeInvalidSignature, "Webhook签名校验失败")

	// 参数错误
	ErrInvalidParams = New(ErrCodeInvalidParams, "参数错误")
	ErrBindError     = New(ErrCodeBindError, "参数格式错误")
)

// =========================================
// 辅助函数
// =========================================

// IsAppError 判断是否为AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError 提取AppError（如果不是AppError则包装成Internal错误）
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, "系统内部错误")
}

// HasCode 判断错误链中是否存在指定错误码
func HasCode(err error, code int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
