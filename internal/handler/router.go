package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"soc-assistant/internal/middleware"
	"soc-assistant/internal/websocket"
	"soc-assistant/pkg/jwt"
)

// Router 路由依赖
type Router struct {
	JWT         *jwt.JWTService
	Blacklist   middleware.TokenBlacklist
	SendLimiter *middleware.UserRateLimiter // 为 nil 时不限流
	CORS        middleware.CORSConfig

	Auth    *AuthHandler
	User    *UserHandler
	Session *SessionHandler
	Chat    *ChatHandler
	Health  *HealthHandler
	WS      *websocket.Handler // 可选
}

// NewEngine 创建 Gin 引擎并注册所有路由
func NewEngine(r Router) *gin.Engine {
	engine := gin.New()
	if r.SendLimiter == nil {
		r.SendLimiter = middleware.NewUserRateLimiter(0, 0)
	}

	// 全局中间件
	engine.Use(middleware.RecoveryMiddleware()) // 恢复 panic
	engine.Use(middleware.LoggerMiddleware())   // 请求日志
	engine.Use(middleware.MetricsMiddleware())  // 请求指标
	engine.Use(middleware.CORSMiddleware(r.CORS))

	r.register(engine)
	return engine
}

// register 注册所有路由
func (r Router) register(engine *gin.Engine) {
	// 健康检查和指标
	engine.GET("/health", r.Health.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.AuthMiddleware(r.JWT, r.Blacklist)

	// API v1 路由组
	v1 := engine.Group("/api/v1")

	// 认证相关（无需登录）
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", r.Auth.Register)
		authGroup.POST("/login", r.Auth.Login)
		authGroup.POST("/refresh", r.Auth.RefreshToken)
		authGroup.POST("/logout", auth, r.Auth.Logout)
	}

	// 用户相关（需要登录）
	users := v1.Group("/users")
	users.Use(auth)
	{
		users.GET("/me", r.User.GetProfile)
		users.PUT("/me", r.User.UpdateProfile)
		users.PUT("/me/password", r.User.ChangePassword)
		users.DELETE("/me", r.User.DeleteAccount)
	}

	// 会话相关（需要登录）
	sessions := v1.Group("/sessions")
	sessions.Use(auth)
	{
		sessions.GET("", r.Session.ListSessions)
		sessions.POST("", r.Session.CreateSession)
		sessions.GET("/active", r.Session.GetActiveSession)
		sessions.GET("/:id", r.Session.GetSession)
		sessions.PUT("/:id/active", r.Session.SwitchSession)
		sessions.GET("/:id/timeline", r.Session.GetTimeline)
		sessions.POST("/:id/messages", middleware.RateLimitMiddleware(r.SendLimiter), r.Chat.SendMessage)
	}

	// WebSocket 路由
	if r.WS != nil {
		r.WS.RegisterRoutes(engine)
	}
}
