package ollama

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// Fragment 流中的一行 JSON
// Response 为 nil 表示这一行没有文本增量
type Fragment struct {
	Response *string `json:"response"`
	Done     bool    `json:"done"`
}

// Text 返回文本增量，没有时返回空字符串
func (f Fragment) Text() string {
	if f.Response == nil {
		return ""
	}
	return *f.Response
}

// HasText 判断这一行是否带有 response 字段
func (f Fragment) HasText() bool {
	return f.Response != nil
}

// Stream 逐行读取换行分隔的 JSON 片段
// 不完整的行会等待后续数据，格式错误的行直接跳过
type Stream struct {
	body   io.ReadCloser
	reader *bufio.Reader
}

func newStream(body io.ReadCloser) *Stream {
	return &Stream{body: body, reader: bufio.NewReader(body)}
}

// NewStream 从任意 io.ReadCloser 创建 Stream
func NewStream(body io.ReadCloser) *Stream {
	return newStream(body)
}

// Next 返回下一个格式正确的片段
// 连接关闭时返回 io.EOF；最后一行即使没有换行也会被解析
func (s *Stream) Next() (Fragment, error) {
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return Fragment{}, classify(err)
		}

		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var frag Fragment
			if jsonErr := json.Unmarshal(line, &frag); jsonErr == nil {
				return frag, nil
			}
		}

		if err == io.EOF {
			return Fragment{}, io.EOF
		}
	}
}

// Close 关闭响应体
func (s *Stream) Close() error {
	return s.body.Close()
}
