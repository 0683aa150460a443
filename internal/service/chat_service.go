package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"soc-assistant/internal/attachment"
	"soc-assistant/internal/incident"
	"soc-assistant/internal/metrics"
	"soc-assistant/internal/model"
	"soc-assistant/internal/prompt"
	"soc-assistant/internal/relay"
	"soc-assistant/internal/repository"
)

// ChatService 聊天服务
// 完成一次发送：保存用户消息、附件入库、识别事件编号、组装提示词、流式获取 AI 回复
type ChatService struct {
	sessions    *SessionService               // 会话归属校验和事件通知
	sessionRepo *repository.SessionRepository // 追加事件编号
	messageRepo *repository.MessageRepository // 用户消息
	ingestor    *attachment.Ingestor          // 附件
	lookup      incident.Lookup               // 事件上下文查询
	relay       *relay.Relay                  // 流式推理中继
}

// NewChatService 创建 ChatService 实例
func NewChatService(
	sessions *SessionService,
	sessionRepo *repository.SessionRepository,
	messageRepo *repository.MessageRepository,
	ingestor *attachment.Ingestor,
	lookup incident.Lookup,
	streamRelay *relay.Relay,
) *ChatService {
	return &ChatService{
		sessions:    sessions,
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		ingestor:    ingestor,
		lookup:      lookup,
		relay:       streamRelay,
	}
}

// SendRequest 一次发送
type SendRequest struct {
	SessionID int64
	Text      string             // 用户输入，可以为空（此时必须有附件）
	File      *attachment.Upload // 可选附件
	Observer  relay.Notifier     // 可选，接收本次发送的事件
}

// SendResult 一次发送的结果
type SendResult struct {
	UserMessage *model.Message    `json:"user_message,omitempty"`
	Attachment  *model.Attachment `json:"attachment,omitempty"`
	IncidentID  string            `json:"incident_id,omitempty"`
	Reply       *model.Message    `json:"reply,omitempty"`
	Outcome     relay.Outcome     `json:"outcome"`
}

// Send 处理一次发送
// 附件校验失败时不写入任何数据；用户消息保存之后的任何失败都变成一条合成的
// AI 错误消息，此时 error 为 nil，会话可以继续使用
// 参数:
//   - ctx: 上下文，取消会停止流式读取
//   - userID: 用户ID
//   - req: 发送内容
//
// 返回:
//   - *SendResult: 结果
//   - error: ErrEmptyMessage / 会话错误 / 附件校验错误 / ErrSendFailed
func (s *ChatService) Send(ctx context.Context, userID int64, req *SendRequest) (*SendResult, error) {
	hasText := strings.TrimSpace(req.Text) != ""
	if !hasText && req.File == nil {
		return nil, ErrEmptyMessage
	}

	session, err := s.sessions.GetOwnedSession(ctx, userID, req.SessionID)
	if err != nil {
		return nil, err
	}

	// 先校验附件，校验失败不留下任何记录
	if req.File != nil {
		if err := s.ingestor.Validate(req.File); err != nil {
			return nil, err
		}
	}

	result := &SendResult{}
	logger := log.With().Int64("user_id", userID).Int64("session_id", session.ID).Logger()

	// 1. 保存用户消息
	if hasText {
		msg := &model.Message{SessionID: session.ID, Role: model.MessageRoleUser, Content: req.Text}
		if err := s.messageRepo.Create(ctx, msg); err != nil {
			return nil, fmt.Errorf("%w: save user message: %v", ErrSendFailed, err)
		}
		result.UserMessage = msg
	}

	// 2. 附件入库
	fileSummary := ""
	if req.File != nil {
		att, err := s.ingestor.Ingest(ctx, session.ID, *req.File)
		if err != nil {
			if errors.Is(err, attachment.ErrTooLarge) || errors.Is(err, attachment.ErrTypeNotAllowed) {
				return nil, err
			}
			return s.pipelineFailed(ctx, userID, req, result, err)
		}
		result.Attachment = att
		fileSummary = att.Summary
	}

	// 3. 识别事件编号并查询上下文
	var incidentData *incident.Context
	if id := incident.Extract(req.Text); id != "" {
		_, added, err := s.sessionRepo.AppendIncident(ctx, session.ID, id)
		if err != nil {
			return s.pipelineFailed(ctx, userID, req, result, fmt.Errorf("append incident: %w", err))
		}
		if added {
			metrics.IncidentsDetected.Inc()
			logger.Info().Str("incident_id", id).Msg("incident reference attached to session")
		}
		result.IncidentID = id

		incidentData, err = s.lookup.Lookup(ctx, id)
		if err != nil {
			return s.pipelineFailed(ctx, userID, req, result, fmt.Errorf("incident lookup: %w", err))
		}
	}

	// 4. 组装提示词并流式获取回复
	text := ""
	if hasText {
		text = req.Text
	}
	res := s.relay.Respond(ctx, relay.Request{
		UserID:    userID,
		SessionID: session.ID,
		Prompt:    prompt.Compose(text, incidentData, fileSummary),
		Observer:  req.Observer,
	})
	if res.Message == nil && res.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, res.Err)
	}
	result.Reply = res.Message
	result.Outcome = res.Outcome
	return result, nil
}

// pipelineFailed 推理之前的步骤出错时，写入一条 AI 错误消息作为本次回复
func (s *ChatService) pipelineFailed(ctx context.Context, userID int64, req *SendRequest, result *SendResult, cause error) (*SendResult, error) {
	log.Error().Err(cause).Int64("user_id", userID).Int64("session_id", req.SessionID).Msg("send pipeline failed")

	msg := &model.Message{
		SessionID: req.SessionID,
		Role:      model.MessageRoleAI,
		Content:   relay.ErrorMessagePrefix + cause.Error(),
	}
	if err := s.messageRepo.Create(context.WithoutCancel(ctx), msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, cause)
	}

	s.sessions.notifier.MessageUpdated(userID, msg)
	if req.Observer != nil {
		req.Observer.MessageUpdated(userID, msg)
	}

	result.Reply = msg
	result.Outcome = relay.OutcomeFailed
	return result, nil
}
