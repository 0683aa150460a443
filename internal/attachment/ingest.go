package attachment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"soc-assistant/internal/metrics"
	"soc-assistant/internal/model"
)

// Recorder 保存附件记录
type Recorder interface {
	Create(ctx context.Context, attachment *model.Attachment) error
}

// Ingestor 完成一次附件上传：校验、存储、摘要、写记录
type Ingestor struct {
	policy     Policy
	store      *Store
	summarizer Summarizer
	records    Recorder
}

// NewIngestor 创建 Ingestor
func NewIngestor(policy Policy, store *Store, summarizer Summarizer, records Recorder) *Ingestor {
	return &Ingestor{policy: policy, store: store, summarizer: summarizer, records: records}
}

// Validate 只做校验，供调用方在写入任何数据之前调用
// 先检查声明的类型和大小，再识别文件内容；u.Body 会被替换为可完整读取的 Reader
func (i *Ingestor) Validate(u *Upload) error {
	err := i.policy.Validate(*u)
	if err == nil {
		err = i.policy.CheckContent(u)
	}
	if err != nil {
		metrics.AttachmentUploads.WithLabelValues(rejectReason(err)).Inc()
		return err
	}
	return nil
}

// Ingest 存储文件并写入附件记录
// 任何一步失败都会删除已写入的文件，不留下部分状态
func (i *Ingestor) Ingest(ctx context.Context, sessionID int64, u Upload) (*model.Attachment, error) {
	if err := i.Validate(&u); err != nil {
		return nil, err
	}

	storedPath, size, err := i.store.Save(u)
	if err != nil {
		metrics.AttachmentUploads.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	fileType := TypeTag(u.ContentType)
	summary, err := i.summarizer.Summarize(ctx, File{
		StoredPath:   storedPath,
		OriginalName: u.Filename,
		FileType:     fileType,
	})
	if err != nil {
		i.discard(storedPath)
		metrics.AttachmentUploads.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("summarize attachment: %w", err)
	}

	att := &model.Attachment{
		SessionID:    sessionID,
		FilePath:     storedPath,
		OriginalName: u.Filename,
		FileType:     fileType,
		Size:         size,
		Summary:      summary,
	}
	if err := i.records.Create(ctx, att); err != nil {
		i.discard(storedPath)
		metrics.AttachmentUploads.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("save attachment record: %w", err)
	}

	metrics.AttachmentUploads.WithLabelValues("stored").Inc()
	return att, nil
}

// RemoveFiles 删除一组已存储的文件，失败只记录日志
func (i *Ingestor) RemoveFiles(paths []string) {
	for _, p := range paths {
		i.discard(p)
	}
}

func (i *Ingestor) discard(storedPath string) {
	if err := i.store.Remove(storedPath); err != nil {
		log.Warn().Err(err).Str("path", storedPath).Msg("remove attachment file failed")
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrTypeNotAllowed):
		return "rejected_type"
	case errors.Is(err, ErrTooLarge):
		return "rejected_size"
	default:
		return "failed"
	}
}
