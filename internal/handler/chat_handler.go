package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"soc-assistant/internal/attachment"
	"soc-assistant/internal/middleware"
	"soc-assistant/internal/model"
	"soc-assistant/internal/service"
	"soc-assistant/internal/websocket"
	"soc-assistant/pkg/response"
)

// SSE 事件名，除了界面事件之外的两个
const (
	eventResult = "result"
	eventError  = "error"
)

// ChatHandler 发送消息处理器
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler 创建 ChatHandler 实例
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// SendMessageRequest JSON 方式发送（不带附件）
type SendMessageRequest struct {
	Message string `json:"message"`
}

// SendMessage 发送消息
// 支持 multipart（message + 可选 file）和 JSON 两种请求体
// 带 ?stream=1 时以 Server-Sent Events 返回本次发送的事件，最后是 result 事件
// @Summary 发送消息
// @Tags 聊天
// @Security Bearer
// @Accept json,mpfd
// @Produce json,text/event-stream
// @Param id path int true "会话ID"
// @Param message formData string false "消息内容"
// @Param file formData file false "附件（pdf / csv / xml）"
// @Param stream query bool false "是否以 SSE 返回"
// @Success 200 {object} response.Response{data=service.SendResult}
// @Router /api/v1/sessions/{id}/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	req, closeFile, err := bindSendRequest(c)
	if err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	defer closeFile()
	req.SessionID = sessionID

	if isTruthy(c.Query("stream")) {
		h.streamSend(c, req)
		return
	}

	result, err := h.chatService.Send(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		writeSendError(c, err)
		return
	}
	response.Success(c, result)
}

// bindSendRequest 解析请求体
// 返回的 closeFile 用于关闭上传文件，总是非 nil
func bindSendRequest(c *gin.Context) (*service.SendRequest, func(), error) {
	noop := func() {}

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var body SendMessageRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, noop, err
		}
		return &service.SendRequest{Text: body.Message}, noop, nil
	}

	req := &service.SendRequest{Text: c.PostForm("message")}
	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return req, noop, nil
		}
		return nil, noop, err
	}

	file, err := header.Open()
	if err != nil {
		return nil, noop, err
	}
	req.File = &attachment.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	return req, func() { file.Close() }, nil
}

// sseEvent 待写出的一个 SSE 事件
type sseEvent struct {
	name string
	data interface{}
	err  error
}

// sseObserver 把本次发送的事件转交给写响应的 goroutine
type sseObserver struct {
	ctx    context.Context
	events chan<- sseEvent
}

func (o *sseObserver) emit(ev sseEvent) {
	select {
	case o.events <- ev:
	case <-o.ctx.Done():
	}
}

func (o *sseObserver) ResponseStarted(_ int64, sessionID int64) {
	o.emit(sseEvent{name: websocket.TypeResponseStarted, data: &websocket.ResponsePayload{SessionID: sessionID}})
}

func (o *sseObserver) ResponseEnded(_ int64, sessionID int64) {
	o.emit(sseEvent{name: websocket.TypeResponseEnded, data: &websocket.ResponsePayload{SessionID: sessionID}})
}

func (o *sseObserver) MessageUpdated(_ int64, message *model.Message) {
	o.emit(sseEvent{name: websocket.TypeMessageUpdated, data: websocket.NewMessagePayload(message)})
}

// streamSend 以 SSE 返回一次发送
// 在第一个事件写出之前出现的错误（空消息、附件校验、会话不存在）仍然按普通 JSON 响应返回
func (h *ChatHandler) streamSend(c *gin.Context, req *service.SendRequest) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	events := make(chan sseEvent, 16)
	req.Observer = &sseObserver{ctx: ctx, events: events}

	go func() {
		defer close(events)
		result, err := h.chatService.Send(ctx, userID, req)
		final := sseEvent{name: eventResult, data: result, err: err}
		select {
		case events <- final:
		case <-ctx.Done():
		}
	}()

	streaming := false
	for ev := range events {
		if ev.err != nil {
			if !streaming {
				writeSendError(c, ev.err)
				continue
			}
			log.Warn().Err(ev.err).Int64("user_id", userID).Msg("send failed during stream")
			c.SSEvent(eventError, gin.H{"message": ev.err.Error()})
			c.Writer.Flush()
			continue
		}

		if !streaming {
			c.Header("Cache-Control", "no-cache")
			c.Header("X-Accel-Buffering", "no")
			streaming = true
		}
		c.SSEvent(ev.name, ev.data)
		c.Writer.Flush()
	}
}

// writeSendError 把发送失败映射为响应
func writeSendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		response.EmptyMessage(c)
	case errors.Is(err, attachment.ErrTypeNotAllowed):
		response.AttachmentInvalid(c, response.CodeAttachmentType, "仅支持 PDF、CSV、XML 文件")
	case errors.Is(err, attachment.ErrTooLarge):
		response.AttachmentInvalid(c, response.CodeAttachmentSize, "附件超过大小限制")
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrNoPermission):
		writeSessionError(c, err, "")
	default:
		log.Error().Err(err).Int64("user_id", middleware.GetUserID(c)).Msg("send message failed")
		response.InternalError(c, "消息处理失败")
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}
