package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"soc-assistant/internal/model"
)

// MessageRepository 消息数据访问层
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建 MessageRepository 实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 创建新消息
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// GetByID 根据 ID 获取消息，未找到返回 nil
func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	var message model.Message
	err := r.db.WithContext(ctx).First(&message, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

// UpdateContent 覆盖消息内容
// 流式响应期间每收到一个片段调用一次，写入的是累计后的完整文本
func (r *MessageRepository) UpdateContent(ctx context.Context, id int64, content string) error {
	return r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ?", id).
		Update("content", content).Error
}

// GetBySessionID 获取会话的所有消息，按时间正序
func (r *MessageRepository) GetBySessionID(ctx context.Context, sessionID int64) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// CountBySessionID 统计会话的消息数量
func (r *MessageRepository) CountBySessionID(ctx context.Context, sessionID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).Where("session_id = ?", sessionID).Count(&count).Error
	return count, err
}
