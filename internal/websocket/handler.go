package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"soc-assistant/internal/middleware"
	"soc-assistant/pkg/jwt"
	"soc-assistant/pkg/response"
)

// Handler 处理 WebSocket 连接
type Handler struct {
	hub        *Hub
	jwtService *jwt.JWTService
	blacklist  middleware.TokenBlacklist
	upgrader   websocket.Upgrader
}

// NewHandler 创建 WebSocket Handler
// 参数:
//   - hub: 连接管理器
//   - jwtService: 用于验证 query 中的 token
//   - blacklist: Token 黑名单
//   - allowedOrigins: 允许的 Origin，为空时不检查
func NewHandler(hub *Hub, jwtService *jwt.JWTService, blacklist middleware.TokenBlacklist, allowedOrigins []string) *Handler {
	return &Handler{
		hub:        hub,
		jwtService: jwtService,
		blacklist:  blacklist,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker 浏览器连接必须来自允许的 Origin；没有 Origin 头的非浏览器客户端直接放行
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// HandleWS 处理界面事件连接
// 路由: GET /ws?token=<access token>
func (h *Handler) HandleWS(c *gin.Context) {
	claims, err := middleware.Authenticate(c.Request.Context(), h.jwtService, h.blacklist, c.Query("token"))
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	// 升级 HTTP 连接为 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := NewClient(h.hub, conn, claims.UserID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// RegisterRoutes 注册 WebSocket 路由
// WebSocket 路由不走认证中间件（token 在 query 中验证）
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWS)
}
