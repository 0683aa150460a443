package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"soc-assistant/internal/cache"
	"soc-assistant/internal/model"
	"soc-assistant/internal/relay"
	"soc-assistant/internal/repository"
)

// EventNotifier 界面事件通知接口
// 推理中继使用的三个事件之外，还包括会话切换
type EventNotifier interface {
	relay.Notifier
	SessionSwitched(userID int64, session *model.Session)
}

// SessionService 会话服务
// 管理用户的会话列表、当前会话和会话时间线
type SessionService struct {
	sessionRepo    *repository.SessionRepository    // 会话数据访问层
	messageRepo    *repository.MessageRepository    // 消息数据访问层
	attachmentRepo *repository.AttachmentRepository // 附件数据访问层
	cache          *cache.RedisCache                // Redis 缓存（当前会话）
	streams        *relay.Registry                  // 进行中的推理流
	notifier       EventNotifier                    // 界面事件
	now            func() time.Time
}

// NewSessionService 创建 SessionService 实例
func NewSessionService(
	sessionRepo *repository.SessionRepository,
	messageRepo *repository.MessageRepository,
	attachmentRepo *repository.AttachmentRepository,
	cache *cache.RedisCache,
	streams *relay.Registry,
	notifier EventNotifier,
) *SessionService {
	return &SessionService{
		sessionRepo:    sessionRepo,
		messageRepo:    messageRepo,
		attachmentRepo: attachmentRepo,
		cache:          cache,
		streams:        streams,
		notifier:       notifier,
		now:            time.Now,
	}
}

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	Title string `json:"title" binding:"max=255"` // 标题（可选，默认 "New Session <时间>"）
}

// CreateSession 创建新会话并设为当前会话
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - req: 创建请求，可以为 nil
//
// 返回:
//   - *model.Session: 新会话
//   - error: 数据库错误
func (s *SessionService) CreateSession(ctx context.Context, userID int64, req *CreateSessionRequest) (*model.Session, error) {
	title := ""
	if req != nil {
		title = strings.TrimSpace(req.Title)
	}
	if title == "" {
		title = model.DefaultSessionTitle(s.now())
	}

	session := &model.Session{
		UserID: userID,
		Title:  title,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.activate(ctx, userID, session)
	return session, nil
}

// ListSessions 分页获取用户的会话，最新的在前
func (s *SessionService) ListSessions(ctx context.Context, userID int64, page, pageSize int) ([]model.Session, int64, error) {
	return s.sessionRepo.GetByUserIDWithPagination(ctx, userID, page, pageSize)
}

// GetActiveSession 获取用户的当前会话
// 优先使用 Redis 中记录的会话；记录失效时退回到最近创建的会话；
// 用户还没有任何会话时创建一个
func (s *SessionService) GetActiveSession(ctx context.Context, userID int64) (*model.Session, error) {
	activeID, err := s.cache.GetActiveSession(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to read active session")
	}

	if activeID > 0 {
		session, err := s.sessionRepo.GetByID(ctx, activeID)
		if err != nil {
			return nil, err
		}
		if session != nil && session.UserID == userID {
			return session, nil
		}
	}

	session, err := s.sessionRepo.GetLatestByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return s.CreateSession(ctx, userID, nil)
	}

	if err := s.cache.SetActiveSession(ctx, userID, session.ID); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to store active session")
	}
	return session, nil
}

// SwitchSession 切换当前会话
// 进行中的推理流会被取消，界面收到 session.switched 事件
// 返回:
//   - *model.Session: 切换后的会话
//   - error: 会话不存在或不属于该用户
func (s *SessionService) SwitchSession(ctx context.Context, userID, sessionID int64) (*model.Session, error) {
	session, err := s.GetOwnedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	s.activate(ctx, userID, session)
	return session, nil
}

// activate 设为当前会话，停止旧的推理流并通知界面
func (s *SessionService) activate(ctx context.Context, userID int64, session *model.Session) {
	if s.streams.Cancel(userID) {
		log.Debug().Int64("user_id", userID).Msg("in-flight response cancelled by session switch")
	}

	if err := s.cache.SetActiveSession(ctx, userID, session.ID); err != nil {
		// 非致命错误，下次读取时退回到最近的会话
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to store active session")
	}

	s.notifier.SessionSwitched(userID, session)
}

// GetOwnedSession 获取属于该用户的会话
func (s *SessionService) GetOwnedSession(ctx context.Context, userID, sessionID int64) (*model.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, ErrNoPermission
	}
	return session, nil
}

// SessionTimeline 会话及其按时间合并的消息和附件
type SessionTimeline struct {
	Session  *model.Session `json:"session"`
	Timeline model.Timeline `json:"timeline"`
}

// GetTimeline 获取会话时间线
// 消息和附件按创建时间合并排序
func (s *SessionService) GetTimeline(ctx context.Context, userID, sessionID int64) (*SessionTimeline, error) {
	session, err := s.GetOwnedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	attachments, err := s.attachmentRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &SessionTimeline{
		Session:  session,
		Timeline: model.BuildTimeline(messages, attachments),
	}, nil
}
