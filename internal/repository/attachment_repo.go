package repository

import (
	"context"

	"gorm.io/gorm"

	"soc-assistant/internal/model"
)

// AttachmentRepository 附件数据访问层
// 附件创建后不可修改，因此只有创建和查询
type AttachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository 创建 AttachmentRepository 实例
func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create 创建附件记录
func (r *AttachmentRepository) Create(ctx context.Context, attachment *model.Attachment) error {
	return r.db.WithContext(ctx).Create(attachment).Error
}

// GetBySessionID 获取会话的所有附件，按时间正序
func (r *AttachmentRepository) GetBySessionID(ctx context.Context, sessionID int64) ([]model.Attachment, error) {
	var attachments []model.Attachment
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&attachments).Error
	return attachments, err
}

// CountBySessionID 统计会话的附件数量
func (r *AttachmentRepository) CountBySessionID(ctx context.Context, sessionID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Attachment{}).Where("session_id = ?", sessionID).Count(&count).Error
	return count, err
}
