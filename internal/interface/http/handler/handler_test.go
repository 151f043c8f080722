package handler_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/application/ledger"
	webhookapp "github.com/xiebiao/storefront/internal/application/webhook"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/domain/webhook"
	"github.com/xiebiao/storefront/internal/infrastructure/gateway"
	"github.com/xiebiao/storefront/internal/infrastructure/queue"
	"github.com/xiebiao/storefront/internal/interface/http/dto"
	"github.com/xiebiao/storefront/internal/interface/http/handler"
	"github.com/xiebiao/storefront/internal/interface/http/middleware"
	"github.com/xiebiao/storefront/internal/interface/http/router"
	"github.com/xiebiao/storefront/internal/testutil"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/jwt"
)

const customer = "customer-1"

type apiEnv struct {
	*testutil.Shop
	engine *gin.Engine
	jwt    *jwt.Manager
	pool   *queue.Pool
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	s := testutil.NewShop(t)
	log := zap.NewNop()

	jwtManager := jwt.NewManager("test-secret", "storefront-auth", time.Hour).WithClock(s.Clock.Now)
	receiver := webhookapp.NewReceiver(gateway.NewSignatureVerifier(testutil.WebhookSecret, 0), s.Jobs, s.Clock, 3, log)
	processor := webhookapp.NewProcessor(s.FulfillmentService, webhookapp.NewLogPublisher(log), log)

	engine := router.New(router.Options{Mode: gin.TestMode, MetricsPath: "/metrics"}, router.Handlers{
		Cart:    handler.NewCartHandler(s.CartService),
		Order:   handler.NewOrderHandler(s.OrderPipeline, s.CheckoutService, s.RefundService),
		Slot:    handler.NewSlotHandler(s.Catalog, s.Clock),
		Webhook: handler.NewWebhookHandler(receiver),
		Admin: handler.NewAdminHandler(
			ledger.NewExporter(s.Ledger, s.Orders, 2),
			ledger.NewReconciler(s.Stocks, s.Ledger),
			webhookapp.NewJobAdmin(s.Jobs, s.Clock, log),
			log,
		),
	}, middleware.NewAuthMiddleware(jwtManager), log)

	return &apiEnv{
		Shop:   s,
		engine: engine,
		jwt:    jwtManager,
		pool:   queue.NewPool(s.Jobs, processor, s.Clock, queue.Config{}, log),
	}
}

func (e *apiEnv) token(t *testing.T, customerID, role string) string {
	t.Helper()
	token, err := e.jwt.GenerateToken(customerID, role)
	require.NoError(t, err)
	return token
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// decode 解析统一响应,out非nil时解析data
func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil && env.Code == 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

// drain 处理全部到期任务
func (e *apiEnv) drain(t *testing.T) {
	t.Helper()
	for i := 0; i < 10; i++ {
		n, err := e.pool.RunOnce(context.Background())
		require.NoError(t, err)
		if n == 0 {
			return
		}
	}
	t.Fatal("任务未能在10轮内处理完")
}

func TestAuth(t *testing.T) {
	e := newAPIEnv(t)

	t.Run("健康检查无需登录", func(t *testing.T) {
		w := e.do(t, http.MethodGet, "/ping", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0, decode(t, w, nil).Code)
	})

	t.Run("缺少Token", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/api/v1/carts", "", nil)
		assert.Equal(t, apperrors.ErrCodeUnauthorized, decode(t, w, nil).Code)
	})

	t.Run("Token格式错误", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/carts", nil)
		req.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		e.engine.ServeHTTP(w, req)
		assert.Equal(t, apperrors.ErrCodeInvalidToken, decode(t, w, nil).Code)
	})

	t.Run("Token过期", func(t *testing.T) {
		token := e.token(t, customer, jwt.RoleCustomer)
		e.Clock.Advance(2 * time.Hour)
		defer e.Clock.Advance(-2 * time.Hour)

		w := e.do(t, http.MethodPost, "/api/v1/carts", token, nil)
		assert.Equal(t, apperrors.ErrCodeTokenExpired, decode(t, w, nil).Code)
	})

	t.Run("客户访问运营接口", func(t *testing.T) {
		w := e.do(t, http.MethodGet, "/api/v1/admin/webhook-jobs/failed", e.token(t, customer, jwt.RoleCustomer), nil)
		assert.Equal(t, apperrors.ErrCodeForbidden, decode(t, w, nil).Code)
	})

	t.Run("指标端点", func(t *testing.T) {
		w := e.do(t, http.MethodGet, "/metrics", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "http_requests_total")
	})
}

func TestPurchaseFlow(t *testing.T) {
	e := newAPIEnv(t)
	token := e.token(t, customer, jwt.RoleCustomer)
	p := e.SeedDigital(t, true, 10, 1500)

	// 购物车
	var c dto.CartResponse
	w := e.do(t, http.MethodPost, "/api/v1/carts", token, nil)
	require.Equal(t, 0, decode(t, w, &c).Code)
	require.NotEmpty(t, c.ID)

	var item dto.CartItemResponse
	w = e.do(t, http.MethodPost, "/api/v1/carts/"+c.ID+"/items", token, dto.AddCartItemRequest{
		ProductID: p.ProductID, PriceID: p.PriceID, Quantity: 2,
	})
	require.Equal(t, 0, decode(t, w, &item).Code, w.Body.String())
	assert.NotEmpty(t, item.HoldID)

	var total struct {
		Total    int64  `json:"total"`
		Currency string `json:"currency"`
	}
	w = e.do(t, http.MethodGet, "/api/v1/carts/"+c.ID+"/total", token, nil)
	require.Equal(t, 0, decode(t, w, &total).Code)
	assert.Equal(t, int64(3000), total.Total)

	// 下单
	var o dto.OrderResponse
	w = e.do(t, http.MethodPost, "/api/v1/orders", token, dto.CreateOrderRequest{CartID: c.ID})
	require.Equal(t, 0, decode(t, w, &o).Code, w.Body.String())
	assert.Equal(t, "DRAFT", o.Status)
	assert.Equal(t, int64(3000), o.TotalAmount)
	assert.Equal(t, "30.00", o.TotalDisplay)

	// 支付
	var checkout struct {
		SessionID string `json:"session_id"`
		URL       string `json:"url"`
	}
	w = e.do(t, http.MethodPost, "/api/v1/orders/"+o.ID+"/checkout", token, nil)
	require.Equal(t, 0, decode(t, w, &checkout).Code, w.Body.String())
	require.NotEmpty(t, checkout.SessionID)

	// 同一订单不能重复发起支付
	w = e.do(t, http.MethodPost, "/api/v1/orders/"+o.ID+"/checkout", token, nil)
	assert.Equal(t, apperrors.ErrCodeInvalidOrderStatus, decode(t, w, nil).Code)

	// 网关回调,重复投递只入队一次
	payload, header, err := e.Gateway.CompletedEvent(checkout.SessionID)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(payload))
		req.Header.Set(handler.SignatureHeader, header)
		rec := httptest.NewRecorder()
		e.engine.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var result webhookapp.ReceiveResult
		require.Equal(t, 0, decode(t, rec, &result).Code)
		assert.True(t, result.Received)
		assert.Equal(t, i == 1, result.Duplicate)
	}
	e.drain(t)

	w = e.do(t, http.MethodGet, "/api/v1/orders/"+o.ID, token, nil)
	require.Equal(t, 0, decode(t, w, &o).Code)
	assert.Equal(t, "FULFILLED", o.Status)

	stock, err := e.Stocks.FindByID(context.Background(), p.StockItemID)
	require.NoError(t, err)
	assert.Equal(t, 8, stock.Quantity)
	assert.Equal(t, 0, stock.HoldQuantity)

	// 退款并回补库存
	var refund dto.RefundResponse
	w = e.do(t, http.MethodPost, "/api/v1/orders/"+o.ID+"/refunds", token, dto.RefundRequest{Restock: true, Reason: "requested_by_customer"})
	require.Equal(t, 0, decode(t, w, &refund).Code, w.Body.String())
	assert.Equal(t, "SUCCEEDED", refund.Status)
	assert.Equal(t, int64(3000), refund.Amount)
	assert.NotEmpty(t, refund.GatewayRefundID)

	stock, err = e.Stocks.FindByID(context.Background(), p.StockItemID)
	require.NoError(t, err)
	assert.Equal(t, 10, stock.Quantity)

	// 再退款超出实付
	w = e.do(t, http.MethodPost, "/api/v1/orders/"+o.ID+"/refunds", token, dto.RefundRequest{Amount: 100})
	assert.Equal(t, apperrors.ErrCodeRefundExceedsPayment, decode(t, w, nil).Code)

	// 订单列表
	var page struct {
		List  []dto.OrderResponse `json:"list"`
		Total int64               `json:"total"`
	}
	w = e.do(t, http.MethodGet, "/api/v1/orders?page=1&page_size=10", token, nil)
	require.Equal(t, 0, decode(t, w, &page).Code)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.List, 1)
	assert.Equal(t, o.ID, page.List[0].ID)

	// 其他客户看不到该订单
	w = e.do(t, http.MethodGet, "/api/v1/orders/"+o.ID, e.token(t, "customer-2", jwt.RoleCustomer), nil)
	assert.Equal(t, apperrors.ErrCodeForbidden, decode(t, w, nil).Code)
}

func TestCartHandler(t *testing.T) {
	e := newAPIEnv(t)
	token := e.token(t, customer, jwt.RoleCustomer)
	p := e.SeedDigital(t, true, 1, 1500)
	cartID := e.FillCart(t, customer, testutil.Line{Product: p, Quantity: 1})

	t.Run("参数缺失", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/api/v1/carts/"+cartID+"/items", token, map[string]string{"product_id": p.ProductID})
		assert.Equal(t, apperrors.ErrCodeBindError, decode(t, w, nil).Code)
	})

	t.Run("库存不足", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/api/v1/carts/"+cartID+"/items", token, dto.AddCartItemRequest{
			ProductID: p.ProductID, PriceID: p.PriceID, Quantity: 1,
		})
		assert.Equal(t, apperrors.ErrCodeInsufficientStock, decode(t, w, nil).Code)
	})

	t.Run("删除明细释放占用", func(t *testing.T) {
		var c dto.CartResponse
		w := e.do(t, http.MethodGet, "/api/v1/carts/"+cartID, token, nil)
		require.Equal(t, 0, decode(t, w, &c).Code)
		require.Len(t, c.Items, 1)

		w = e.do(t, http.MethodDelete, "/api/v1/carts/"+cartID+"/items/"+c.Items[0].ID, token, nil)
		require.Equal(t, 0, decode(t, w, nil).Code)

		stock, err := e.Stocks.FindByID(context.Background(), p.StockItemID)
		require.NoError(t, err)
		assert.Equal(t, 0, stock.HoldQuantity)
	})

	t.Run("购物车不存在", func(t *testing.T) {
		w := e.do(t, http.MethodGet, "/api/v1/carts/missing", token, nil)
		assert.Equal(t, apperrors.ErrCodeCartNotFound, decode(t, w, nil).Code)
	})
}

func TestSlotHandler(t *testing.T) {
	e := newAPIEnv(t)
	p, slotID := e.SeedBooking(t, 2, 20000)
	e.FillCart(t, customer, testutil.Line{Product: p, SlotID: slotID})

	var slots []dto.SlotResponse
	w := e.do(t, http.MethodGet, "/api/v1/slots?resource_id="+p.ResourceID, "", nil)
	require.Equal(t, 0, decode(t, w, &slots).Code, w.Body.String())
	require.Len(t, slots, 1)
	assert.Equal(t, slotID, slots[0].ID)
	assert.Equal(t, 1, slots[0].Remaining)

	t.Run("缺少资源ID", func(t *testing.T) {
		w := e.do(t, http.MethodGet, "/api/v1/slots", "", nil)
		assert.Equal(t, apperrors.ErrCodeBindError, decode(t, w, nil).Code)
	})

	t.Run("时间范围非法", func(t *testing.T) {
		w := e.do(t, http.MethodGet, "/api/v1/slots?resource_id="+p.ResourceID+
			"&from=2024-05-02T00:00:00Z&to=2024-05-01T00:00:00Z", "", nil)
		assert.Equal(t, apperrors.ErrCodeInvalidParams, decode(t, w, nil).Code)
	})
}

func TestWebhookHandler(t *testing.T) {
	e := newAPIEnv(t)

	post := func(payload []byte, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(payload))
		if header != "" {
			req.Header.Set(handler.SignatureHeader, header)
		}
		w := httptest.NewRecorder()
		e.engine.ServeHTTP(w, req)
		return w
	}

	t.Run("缺少签名", func(t *testing.T) {
		w := post([]byte(`{"id":"evt_1","type":"checkout.session.completed"}`), "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.ErrCodeInvalidSignature, decode(t, w, nil).Code)
	})

	t.Run("签名不匹配", func(t *testing.T) {
		payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
		header := gateway.SignPayload("wrong-secret", payload, e.Clock.Now())
		w := post(payload, header)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("事件格式错误", func(t *testing.T) {
		payload := []byte(`not json`)
		w := post(payload, gateway.SignPayload(testutil.WebhookSecret, payload, e.Clock.Now()))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAdminHandler(t *testing.T) {
	e := newAPIEnv(t)
	admin := e.token(t, "ops-1", jwt.RoleAdmin)
	p := e.SeedDigital(t, true, 5, 1500)
	e.FillCart(t, customer, testutil.Line{Product: p, Quantity: 2})
	e.FillCart(t, "customer-2", testutil.Line{Product: p, Quantity: 1})

	t.Run("导出NDJSON", func(t *testing.T) {
		w := e.do(t, http.MethodGet, "/api/v1/admin/ledger/export?stock_item_id="+p.StockItemID, admin, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

		var records []ledger.Record
		scanner := bufio.NewScanner(w.Body)
		for scanner.Scan() {
			var r ledger.Record
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
			records = append(records, r)
		}
		// RESTOCK + 两次HOLD,页大小为2需要两页
		require.Len(t, records, 3)
		assert.Equal(t, string(inventory.ReasonRestock), records[0].Reason)
		assert.Equal(t, string(inventory.ReasonHold), records[1].Reason)
		assert.Equal(t, -1, records[2].Change)
	})

	t.Run("导出结果为空", func(t *testing.T) {
		w := e.do(t, http.MethodGet, "/api/v1/admin/ledger/export?order_id=missing", admin, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("对账", func(t *testing.T) {
		var drift inventory.Drift
		w := e.do(t, http.MethodGet, "/api/v1/admin/ledger/reconcile/"+p.StockItemID, admin, nil)
		require.Equal(t, 0, decode(t, w, &drift).Code)
		assert.True(t, drift.IsZero())
		assert.Equal(t, 3, drift.Entries)
		assert.Equal(t, 3, drift.Stored.HoldQuantity)
	})

	t.Run("对账库存项不存在", func(t *testing.T) {
		w := e.do(t, http.MethodGet, "/api/v1/admin/ledger/reconcile/missing", admin, nil)
		assert.Equal(t, apperrors.ErrCodeStockItemNotFound, decode(t, w, nil).Code)
	})

	t.Run("失败任务为空", func(t *testing.T) {
		var jobs []dto.JobResponse
		w := e.do(t, http.MethodGet, "/api/v1/admin/webhook-jobs/failed", admin, nil)
		require.Equal(t, 0, decode(t, w, &jobs).Code)
		assert.Empty(t, jobs)
	})

	t.Run("重试不存在的任务", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/api/v1/admin/webhook-jobs/missing/retry", admin, nil)
		assert.Equal(t, apperrors.ErrCodeJobNotFound, decode(t, w, nil).Code)
	})
}

func TestAdminHandler_FailedJobs(t *testing.T) {
	e := newAPIEnv(t)
	admin := e.token(t, "ops-1", jwt.RoleAdmin)

	// 订单不存在的支付成功事件,重试耗尽后进入FAILED
	payload, header, err := e.Gateway.SignedEvent(webhook.EventCheckoutSessionCompleted, webhook.CheckoutSessionObject{
		ID: "cs_missing", ClientReferenceID: "missing-order", PaymentIntent: "pi_missing", AmountTotal: 100, Currency: "usd",
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(payload))
	req.Header.Set(handler.SignatureHeader, header)
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	for i := 0; i < 3; i++ {
		_, err := e.pool.RunOnce(context.Background())
		require.NoError(t, err)
		e.Clock.Advance(time.Hour)
	}

	var jobs []dto.JobResponse
	w = e.do(t, http.MethodGet, "/api/v1/admin/webhook-jobs/failed?limit=10", admin, nil)
	require.Equal(t, 0, decode(t, w, &jobs).Code)
	require.Len(t, jobs, 1)
	assert.Equal(t, "FAILED", jobs[0].Status)
	assert.Equal(t, 3, jobs[0].Attempts)
	assert.NotEmpty(t, jobs[0].LastError)

	w = e.do(t, http.MethodPost, "/api/v1/admin/webhook-jobs/"+jobs[0].ID+"/retry", admin, nil)
	require.Equal(t, 0, decode(t, w, nil).Code)

	w = e.do(t, http.MethodGet, "/api/v1/admin/webhook-jobs/failed", admin, nil)
	require.Equal(t, 0, decode(t, w, &jobs).Code)
	assert.Empty(t, jobs)
}
