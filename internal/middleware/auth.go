// Package middleware 提供 HTTP 请求的中间件
// 包括 JWT 认证、CORS 跨域、日志记录、指标采集和发送频率限制
package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"soc-assistant/pkg/jwt"
	"soc-assistant/pkg/response"
	"soc-assistant/pkg/util"
)

// TokenBlacklist 检查 Token 是否已登出
type TokenBlacklist interface {
	IsTokenBlacklisted(ctx context.Context, tokenHash string) bool
}

// 认证错误
var (
	ErrTokenMissing     = errors.New("请先登录")
	ErrTokenMalformed   = errors.New("认证格式错误")
	ErrTokenInvalid     = errors.New("Token 无效或已过期")
	ErrTokenBlacklisted = errors.New("Token 已失效，请重新登录")
)

// Authenticate 验证 Access Token 并检查黑名单
// HTTP 中间件和 WebSocket 握手共用
// 参数:
//   - ctx: 上下文
//   - jwtService: JWT 服务
//   - blacklist: Token 黑名单
//   - token: 原始 Token
//
// 返回:
//   - *jwt.UserClaims: Token 中的用户信息
//   - error: 认证错误
func Authenticate(ctx context.Context, jwtService *jwt.JWTService, blacklist TokenBlacklist, token string) (*jwt.UserClaims, error) {
	if token == "" {
		return nil, ErrTokenMissing
	}

	claims, err := jwtService.ValidateToken(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	// 用户登出后，Token 的哈希会被加入黑名单
	if blacklist.IsTokenBlacklisted(ctx, util.HashToken(token)) {
		return nil, ErrTokenBlacklisted
	}
	return claims, nil
}

// AuthMiddleware 创建 JWT 认证中间件
// 验证请求头中的 Bearer Token，并将用户信息存入上下文
// 参数:
//   - jwtService: JWT 服务实例，用于解析和验证 Token
//   - blacklist: Token 黑名单（Redis）
//
// 返回:
//   - gin.HandlerFunc: Gin 中间件函数
func AuthMiddleware(jwtService *jwt.JWTService, blacklist TokenBlacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 从请求头获取 Authorization 字段
		// 格式: "Bearer <token>"
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, ErrTokenMissing.Error())
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, ErrTokenMalformed.Error())
			c.Abort()
			return
		}
		tokenString := parts[1]

		// 2. 验证 Token
		claims, err := Authenticate(c.Request.Context(), jwtService, blacklist, tokenString)
		if err != nil {
			response.Unauthorized(c, err.Error())
			c.Abort()
			return
		}

		// 3. 将用户信息存入上下文
		// 后续的 Handler 可以通过 GetUserID(c) 获取
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("token", tokenString)
		if claims.ExpiresAt != nil {
			c.Set("token_exp", claims.ExpiresAt.Time)
		}

		c.Next()
	}
}

// GetUserID 从上下文获取用户 ID
// 返回:
//   - int64: 用户 ID，如果未认证返回 0
func GetUserID(c *gin.Context) int64 {
	userID, exists := c.Get("user_id")
	if !exists {
		return 0
	}
	return userID.(int64)
}

// GetUsername 从上下文获取用户名
func GetUsername(c *gin.Context) string {
	return c.GetString("username")
}

// GetToken 从上下文获取原始 Token 及其过期时间
func GetToken(c *gin.Context) (string, time.Time, bool) {
	token := c.GetString("token")
	if token == "" {
		return "", time.Time{}, false
	}
	return token, c.GetTime("token_exp"), true
}
