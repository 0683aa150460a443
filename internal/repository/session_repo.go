package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"soc-assistant/internal/model"
)

// SessionRepository 会话数据访问层
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建 SessionRepository 实例
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create 创建新会话
// 参数:
//   - ctx: 上下文
//   - session: 会话对象，ID 和时间字段会被自动填充
//
// 返回:
//   - error: 数据库错误
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	if session.IncidentIDs == nil {
		session.IncidentIDs = model.StringList{}
	}
	return r.db.WithContext(ctx).Create(session).Error
}

// GetByID 根据 ID 获取会话
// 返回:
//   - *model.Session: 会话对象，未找到返回 nil
//   - error: 数据库错误
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).First(&session, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// GetLatestByUserID 获取用户最近创建的会话，没有会话返回 nil
func (r *SessionRepository) GetLatestByUserID(ctx context.Context, userID int64) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// GetByUserIDWithPagination 分页获取用户的会话，最新的在前
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - page: 页码（从 1 开始）
//   - pageSize: 每页数量
//
// 返回:
//   - []model.Session: 会话列表
//   - int64: 总数
//   - error: 数据库错误
func (r *SessionRepository) GetByUserIDWithPagination(ctx context.Context, userID int64, page, pageSize int) ([]model.Session, int64, error) {
	var sessions []model.Session
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Session{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&sessions).Error

	return sessions, total, err
}

// AppendIncident 向会话追加事件编号
// 在事务中加行锁重新读取会话，已存在的编号不会重复追加
// 同一会话的并发追加依次执行，不会丢失或重复
// 返回:
//   - *model.Session: 更新后的会话
//   - bool: 是否新增了编号
//   - error: 数据库错误；会话不存在时返回 gorm.ErrRecordNotFound
func (r *SessionRepository) AppendIncident(ctx context.Context, sessionID int64, incidentID string) (*model.Session, bool, error) {
	var session model.Session
	added := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&session, sessionID).Error; err != nil {
			return err
		}
		if !session.AddIncident(incidentID) {
			return nil
		}
		added = true
		return tx.Model(&session).Update("incident_ids", session.IncidentIDs).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &session, added, nil
}

// CountByUserID 统计用户的会话数量
func (r *SessionRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Session{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
