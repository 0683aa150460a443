// Package attachment 处理附件上传：校验、存储、类型标签和摘要
package attachment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"soc-assistant/internal/model"
)

// KiB 字节数
const KiB = 1024

// sniffLen 内容识别读取的字节数，与 mimetype 默认的读取上限一致
const sniffLen = 3072

// 校验错误
var (
	ErrTypeNotAllowed = errors.New("attachment type not allowed")
	ErrTooLarge       = errors.New("attachment too large")
)

// Upload 一次上传的文件
type Upload struct {
	Filename    string    // 原始文件名
	ContentType string    // 客户端声明的 Content-Type，可以带参数
	Size        int64     // 字节数
	Body        io.Reader // 文件内容
}

// Policy 上传限制
type Policy struct {
	AllowedTypes []string // 允许的媒体类型
	MaxBytes     int64    // 最大字节数
}

// NewPolicy 根据 KiB 上限创建 Policy
func NewPolicy(allowed []string, maxSizeKB int64) Policy {
	normalized := make([]string, 0, len(allowed))
	for _, t := range allowed {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(t)))
	}
	return Policy{AllowedTypes: normalized, MaxBytes: maxSizeKB * KiB}
}

// Validate 校验类型和大小，不做任何写入
// 返回的错误可以用 errors.Is 匹配 ErrTypeNotAllowed / ErrTooLarge
func (p Policy) Validate(u Upload) error {
	mediaType := MediaType(u.ContentType)
	if !p.allows(mediaType) {
		return fmt.Errorf("%w: %q", ErrTypeNotAllowed, u.ContentType)
	}
	if u.Size > p.MaxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d KiB", ErrTooLarge, u.Size, p.MaxBytes/KiB)
	}
	return nil
}

// CheckContent 按文件头识别实际类型，和声明的类型不一致时拒绝
// 读取的文件头会重新拼回 u.Body，之后仍可完整读取
// CSV 和 XML 的识别依赖启发式规则，只要求内容是文本
func (p Policy) CheckContent(u *Upload) error {
	if u.Body == nil {
		return nil
	}
	head, err := io.ReadAll(io.LimitReader(u.Body, sniffLen))
	if err != nil {
		return fmt.Errorf("read attachment: %w", err)
	}
	u.Body = io.MultiReader(bytes.NewReader(head), u.Body)

	detected := mimetype.Detect(head)
	if !contentMatches(MediaType(u.ContentType), detected) {
		return fmt.Errorf("%w: declared %q but content is %s", ErrTypeNotAllowed, u.ContentType, detected.String())
	}
	return nil
}

func contentMatches(declared string, detected *mimetype.MIME) bool {
	textual := strings.HasPrefix(declared, "text/") || strings.HasSuffix(declared, "xml")
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(declared) {
			return true
		}
		if textual && m.Is("text/plain") {
			return true
		}
	}
	return false
}

func (p Policy) allows(mediaType string) bool {
	for _, t := range p.AllowedTypes {
		if t == mediaType {
			return true
		}
	}
	return false
}

// MediaType 去掉参数并转为小写，例如 "text/csv; charset=utf-8" -> "text/csv"
func MediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// TypeTag 把媒体类型转换为类型标签
// application/xml 视为 STIX，其余取 "/" 后面的子类型
func TypeTag(contentType string) string {
	mediaType := MediaType(contentType)
	if mediaType == "application/xml" {
		return model.FileTypeSTIX
	}
	if i := strings.IndexByte(mediaType, '/'); i >= 0 {
		return mediaType[i+1:]
	}
	return mediaType
}
