package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/jwt"
	"github.com/xiebiao/storefront/pkg/response"
)

const (
	ctxCustomerID = "customer_id"
	ctxRole       = "role"
)

// AuthMiddleware JWT认证中间件
// Token由外部认证服务签发,这里只校验签名并把客户身份注入Context
type AuthMiddleware struct {
	jwtManager *jwt.Manager
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(jwtManager *jwt.Manager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

// RequireAuth 要求登录
// 使用方式：
//
//	authorized := r.Group("/api/v1")
//	authorized.Use(authMiddleware.RequireAuth())
//	authorized.GET("/orders", handler.ListOrders)
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 格式：Authorization: Bearer <token>
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Error(c, apperrors.WithDetail(apperrors.ErrInvalidToken, "Token格式错误"))
			c.Abort()
			return
		}

		claims, err := m.jwtManager.ParseToken(parts[1])
		if err != nil {
			response.Error(c, err) // ErrTokenExpired、ErrInvalidToken
			c.Abort()
			return
		}

		c.Set(ctxCustomerID, claims.CustomerID)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// RequireAdmin 要求运营角色,必须放在RequireAuth之后
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != jwt.RoleAdmin {
			response.Error(c, apperrors.ErrAccessDenied)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetCustomerID 从Context获取当前客户ID,未登录返回空串
func GetCustomerID(c *gin.Context) string {
	return c.GetString(ctxCustomerID)
}

// MustGetCustomerID 从Context获取客户ID（如果不存在则panic）
// 用于已经通过RequireAuth中间件的Handler
func MustGetCustomerID(c *gin.Context) string {
	customerID := GetCustomerID(c)
	if customerID == "" {
		panic("customer_id not found in context")
	}
	return customerID
}
