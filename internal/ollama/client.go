// Package ollama 是推理服务 /api/generate 流式接口的客户端
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"soc-assistant/internal/config"
)

// ErrorKind 错误分类
type ErrorKind string

const (
	KindConnection ErrorKind = "connection" // 无法连接
	KindStatus     ErrorKind = "status"     // 非 2xx 响应
	KindTimeout    ErrorKind = "timeout"    // 超过请求超时
	KindDecode     ErrorKind = "decode"     // 请求编码或流读取失败
)

// Error 推理客户端返回的错误
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int // 仅 KindStatus 有值
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// GenerateRequest /api/generate 的请求体
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// DefaultTimeout 未配置时的请求超时
const DefaultTimeout = 60 * time.Second

// Client 推理服务客户端
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient 根据配置创建客户端
// Timeout 作用于整个请求，包括读取流式响应体
func NewClient(cfg config.OllamaConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewClientWithHTTP(cfg, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP 使用指定的 http.Client 创建客户端
func NewClientWithHTTP(cfg config.OllamaConfig, httpClient *http.Client) *Client {
	model := cfg.Model
	if model == "" {
		model = "mistral"
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      model,
		httpClient: httpClient,
	}
}

// Model 返回使用的模型名
func (c *Client) Model() string {
	return c.model
}

// Generate 发起流式生成请求
// 非 2xx 状态直接返回 KindStatus 错误，不读取任何片段
// 成功时调用方必须关闭返回的 Stream
func (c *Client) Generate(ctx context.Context, prompt string) (*Stream, error) {
	body, err := json.Marshal(GenerateRequest{Model: c.model, Prompt: prompt, Stream: true})
	if err != nil {
		return nil, &Error{Kind: KindDecode, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &Error{
			Kind:       KindStatus,
			Message:    fmt.Sprintf("Ollama API request failed: %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	return newStream(resp.Body), nil
}

// classify 把传输层错误转换为 *Error
// context.Canceled 原样返回，调用方据此区分主动取消
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if isTimeout(err) {
		return &Error{Kind: KindTimeout, Message: "inference request timed out", Cause: err}
	}
	return &Error{Kind: KindConnection, Message: "inference endpoint unreachable", Cause: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
