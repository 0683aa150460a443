package attachment

import (
	"context"
	"fmt"
)

// File 已存储附件的描述，供摘要使用
type File struct {
	StoredPath   string
	OriginalName string
	FileType     string
}

// Summarizer 生成附件摘要
type Summarizer interface {
	Summarize(ctx context.Context, file File) (string, error)
}

// MockSummarizer 不读取内容，返回固定格式的占位摘要
type MockSummarizer struct{}

// Summarize 实现 Summarizer 接口
func (MockSummarizer) Summarize(_ context.Context, file File) (string, error) {
	return fmt.Sprintf("Mock summary for %s file '%s': Contains threat intelligence data.", file.FileType, file.OriginalName), nil
}
