package attachment

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"soc-assistant/internal/model"
	"soc-assistant/pkg/util"
)

var defaultExtensions = map[string]string{
	model.FileTypePDF:  ".pdf",
	model.FileTypeCSV:  ".csv",
	model.FileTypeSTIX: ".xml",
}

// Store 把附件写入文件系统
// 存储路径形如 attachments/<uuid>.<ext>，相对于 Fs 的根目录
type Store struct {
	fs     afero.Fs
	subdir string
	limit  int64
}

// NewStore 创建 Store
// 参数:
//   - fs: 文件系统，生产环境为 afero.NewBasePathFs(afero.NewOsFs(), root)
//   - subdir: 附件子目录
//   - limit: 写入时的最大字节数，超过则删除已写入部分
func NewStore(fs afero.Fs, subdir string, limit int64) *Store {
	return &Store{fs: fs, subdir: subdir, limit: limit}
}

// NewDiskStore 在本地目录 root 下创建 Store
func NewDiskStore(root, subdir string, limit int64) *Store {
	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), root), subdir, limit)
}

// Save 写入文件并返回存储路径和实际字节数
func (s *Store) Save(u Upload) (string, int64, error) {
	if err := s.fs.MkdirAll(s.subdir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create attachment dir: %w", err)
	}

	name := util.GenerateUUID() + extensionFor(u)
	storedPath := path.Join(s.subdir, name)

	f, err := s.fs.Create(storedPath)
	if err != nil {
		return "", 0, fmt.Errorf("create attachment file: %w", err)
	}

	// 多读一个字节，用来发现实际内容超过声明大小的情况
	written, copyErr := io.Copy(f, io.LimitReader(u.Body, s.limit+1))
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		s.fs.Remove(storedPath)
		return "", 0, fmt.Errorf("write attachment: %w", copyErr)
	case closeErr != nil:
		s.fs.Remove(storedPath)
		return "", 0, fmt.Errorf("close attachment: %w", closeErr)
	case written > s.limit:
		s.fs.Remove(storedPath)
		return "", 0, fmt.Errorf("%w: content exceeds %d KiB", ErrTooLarge, s.limit/KiB)
	}

	return storedPath, written, nil
}

// Remove 删除已存储的文件，文件不存在不算错误
func (s *Store) Remove(storedPath string) error {
	err := s.fs.Remove(storedPath)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func extensionFor(u Upload) string {
	ext := strings.ToLower(filepath.Ext(u.Filename))
	if ext != "" && len(ext) <= 8 {
		return ext
	}
	return defaultExtensions[TypeTag(u.ContentType)]
}
