package model

import (
	"time"
)

// 附件类型标签
const (
	FileTypePDF  = "pdf"
	FileTypeCSV  = "csv"
	FileTypeSTIX = "stix" // XML 上传视为 STIX 威胁情报
)

// Attachment 附件模型
// 对应数据库表 chat_attachments
// 创建后不可修改
type Attachment struct {
	// ID 附件唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// SessionID 所属会话ID
	SessionID int64 `gorm:"index;not null" json:"session_id"`

	// FilePath 存储路径（相对于上传根目录）
	FilePath string `gorm:"size:500;not null" json:"file_path"`

	// OriginalName 上传时的原始文件名
	OriginalName string `gorm:"size:255;not null" json:"original_name"`

	// FileType 类型标签：pdf / csv / stix
	FileType string `gorm:"size:20;not null" json:"file_type"`

	// Size 文件字节数
	Size int64 `json:"size"`

	// Summary 文件摘要
	Summary string `gorm:"type:text" json:"summary"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName 指定表名
func (Attachment) TableName() string {
	return "chat_attachments"
}

// Kind 实现 TimelineItem
func (a *Attachment) Kind() string { return TimelineKindAttachment }

// Timestamp 实现 TimelineItem
func (a *Attachment) Timestamp() time.Time { return a.CreatedAt }

func (a *Attachment) itemID() int64 { return a.ID }
