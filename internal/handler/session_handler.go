package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"soc-assistant/internal/middleware"
	"soc-assistant/internal/model"
	"soc-assistant/internal/service"
	"soc-assistant/pkg/response"
)

// SessionHandler 会话请求处理器
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler 创建 SessionHandler 实例
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

// SessionListResponse 会话列表响应
type SessionListResponse struct {
	Sessions []model.Session `json:"sessions"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// ListSessions 获取会话列表
// @Summary 获取会话列表
// @Description 获取当前用户的会话，最新的在前
// @Tags 会话
// @Security Bearer
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=SessionListResponse}
// @Router /api/v1/sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	userID := middleware.GetUserID(c)

	// 解析分页参数
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	sessions, total, err := h.sessionService.ListSessions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.InternalError(c, "获取会话列表失败")
		return
	}

	response.Success(c, SessionListResponse{
		Sessions: sessions,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// CreateSession 创建新会话
// 新会话会成为当前会话
// @Summary 创建会话
// @Tags 会话
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body service.CreateSessionRequest false "会话标题"
// @Success 201 {object} response.Response{data=model.Session}
// @Router /api/v1/sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	userID := middleware.GetUserID(c)

	// 请求体可以为空，此时使用默认标题
	var req service.CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "无效的请求参数")
			return
		}
	}

	session, err := h.sessionService.CreateSession(c.Request.Context(), userID, &req)
	if err != nil {
		response.InternalError(c, "创建会话失败")
		return
	}

	response.Created(c, session)
}

// GetActiveSession 获取当前会话
// 没有选中会话时使用最近的会话，用户还没有会话时创建一个
// @Summary 获取当前会话
// @Tags 会话
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response{data=model.Session}
// @Router /api/v1/sessions/active [get]
func (h *SessionHandler) GetActiveSession(c *gin.Context) {
	session, err := h.sessionService.GetActiveSession(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.InternalError(c, "获取当前会话失败")
		return
	}

	response.Success(c, session)
}

// GetSession 获取会话详情
// @Summary 获取会话详情
// @Tags 会话
// @Security Bearer
// @Produce json
// @Param id path int true "会话ID"
// @Success 200 {object} response.Response{data=model.Session}
// @Router /api/v1/sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.GetOwnedSession(c.Request.Context(), middleware.GetUserID(c), sessionID)
	if err != nil {
		writeSessionError(c, err, "获取会话失败")
		return
	}

	response.Success(c, session)
}

// SwitchSession 切换当前会话
// 进行中的回复会被停止
// @Summary 切换当前会话
// @Tags 会话
// @Security Bearer
// @Produce json
// @Param id path int true "会话ID"
// @Success 200 {object} response.Response{data=model.Session}
// @Router /api/v1/sessions/{id}/active [put]
func (h *SessionHandler) SwitchSession(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.SwitchSession(c.Request.Context(), middleware.GetUserID(c), sessionID)
	if err != nil {
		writeSessionError(c, err, "切换会话失败")
		return
	}

	response.SuccessWithMessage(c, "已切换会话", session)
}

// GetTimeline 获取会话时间线
// 消息和附件按创建时间合并
// @Summary 获取会话时间线
// @Tags 会话
// @Security Bearer
// @Produce json
// @Param id path int true "会话ID"
// @Success 200 {object} response.Response{data=service.SessionTimeline}
// @Router /api/v1/sessions/{id}/timeline [get]
func (h *SessionHandler) GetTimeline(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	timeline, err := h.sessionService.GetTimeline(c.Request.Context(), middleware.GetUserID(c), sessionID)
	if err != nil {
		writeSessionError(c, err, "获取会话记录失败")
		return
	}

	response.Success(c, timeline)
}

// parseSessionID 解析路径中的会话ID，失败时直接写入 400 响应
func parseSessionID(c *gin.Context) (int64, bool) {
	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		response.BadRequest(c, "无效的会话ID")
		return 0, false
	}
	return sessionID, true
}

// writeSessionError 把会话相关的业务错误映射为响应
func writeSessionError(c *gin.Context, err error, fallback string) {
	switch err {
	case service.ErrSessionNotFound:
		response.SessionNotFound(c)
	case service.ErrNoPermission:
		response.Forbidden(c, err.Error())
	default:
		response.InternalError(c, fallback)
	}
}
