package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	webhookapp "github.com/xiebiao/storefront/internal/application/webhook"
	"github.com/xiebiao/storefront/internal/domain/webhook"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/response"
)

// SignatureHeader 网关回调的签名头
const SignatureHeader = "Stripe-Signature"

// maxWebhookBody 回调请求体上限
const maxWebhookBody = 1 << 20

// WebhookHandler 支付网关回调
type WebhookHandler struct {
	receiver *webhookapp.Receiver
}

// NewWebhookHandler 创建回调处理器
func NewWebhookHandler(receiver *webhookapp.Receiver) *WebhookHandler {
	return &WebhookHandler{receiver: receiver}
}

// Receive 接收支付回调
// 校验签名后入队即返回,业务处理由任务队列异步完成。
// 签名无效或格式错误返回400,网关不会重投;入队失败返回500,由网关重投
// @Summary      支付回调
// @Tags         支付
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature header string true "t=<unix>,v1=<hmac>"
// @Success      200 {object} response.Response{data=webhookapp.ReceiveResult}
// @Failure      400 {object} response.Response "签名无效或事件格式错误"
// @Failure      500 {object} response.Response "入队失败"
// @Router       /api/v1/payments/webhook [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	// 签名针对原始字节计算,必须在任何解析之前读取
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := c.GetRawData()
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, apperrors.WithDetail(webhook.ErrMalformedEvent, "读取请求体失败"))
		return
	}

	result, err := h.receiver.Receive(c.Request.Context(), payload, c.GetHeader(SignatureHeader))
	if err != nil {
		response.ErrorWithStatus(c, statusOf(err), err)
		return
	}
	response.Success(c, result)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, webhook.ErrInvalidSignature), errors.Is(err, webhook.ErrMalformedEvent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
