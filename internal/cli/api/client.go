// Package api 封装与服务器的 HTTP API 交互
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"soc-assistant/internal/model"
)

// ErrUnauthorized Token 无效或已过期
var ErrUnauthorized = errors.New("登录已失效，请重新登录")

// codeUnauthorized 服务端未授权的业务状态码
const codeUnauthorized = 1001

// Client API 客户端
// baseURL: 例如 http://localhost:8080
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewClient 创建 API 客户端
// 发送消息需要等待完整的 AI 回复，所以超时比一般接口长
func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// APIResponse 通用响应
type APIResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError 业务错误
type APIError struct {
	Status  int    // HTTP 状态码
	Code    int    // 业务状态码
	Message string // 提示信息
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API 错误 (%d): %s", e.Code, e.Message)
}

// --- 认证 ---

// LoginResponse 登录/注册响应
type LoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	User         *model.User `json:"user"`
}

// Login 使用用户名密码登录
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var result LoginResponse
	body := map[string]string{"username": username, "password": password}
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/login", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Register 注册新用户，成功后直接返回 Token
func (c *Client) Register(ctx context.Context, username, password, email string) (*LoginResponse, error) {
	var result LoginResponse
	body := map[string]string{"username": username, "password": password}
	if email != "" {
		body["email"] = email
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/register", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Refresh 使用 Refresh Token 换取新的 Access Token
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var result struct {
		AccessToken string `json:"access_token"`
	}
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/refresh", body, &result); err != nil {
		return "", err
	}
	c.accessToken = result.AccessToken
	return result.AccessToken, nil
}

// Logout 让服务端的 Access Token 失效
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
}

// Profile 当前用户
func (c *Client) Profile(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.call(ctx, http.MethodGet, "/api/v1/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// --- 会话 ---

// SessionList 会话列表
type SessionList struct {
	Sessions []model.Session `json:"sessions"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// ListSessions 分页获取会话，最新的在前
func (c *Client) ListSessions(ctx context.Context, page, pageSize int) (*SessionList, error) {
	var result SessionList
	path := fmt.Sprintf("/api/v1/sessions?page=%d&page_size=%d", page, pageSize)
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateSession 创建会话，title 为空时使用默认标题
func (c *Client) CreateSession(ctx context.Context, title string) (*model.Session, error) {
	var session model.Session
	var body interface{}
	if title != "" {
		body = map[string]string{"title": title}
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/sessions", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ActiveSession 当前会话
func (c *Client) ActiveSession(ctx context.Context) (*model.Session, error) {
	var session model.Session
	if err := c.call(ctx, http.MethodGet, "/api/v1/sessions/active", nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SwitchSession 切换当前会话
func (c *Client) SwitchSession(ctx context.Context, sessionID int64) (*model.Session, error) {
	var session model.Session
	path := fmt.Sprintf("/api/v1/sessions/%d/active", sessionID)
	if err := c.call(ctx, http.MethodPut, path, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Timeline 会话及其时间线
type Timeline struct {
	Session *model.Session  `json:"session"`
	Items   []TimelineEntry `json:"timeline"`
}

// TimelineEntry 时间线条目，Message 和 Attachment 只有一个非 nil
type TimelineEntry struct {
	Message    *model.Message
	Attachment *model.Attachment
}

// UnmarshalJSON 按 type 字段解析 {"type": ..., "item": ...}
func (e *TimelineEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type string          `json:"type"`
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Type {
	case model.TimelineKindMessage:
		e.Message = &model.Message{}
		return json.Unmarshal(raw.Item, e.Message)
	case model.TimelineKindAttachment:
		e.Attachment = &model.Attachment{}
		return json.Unmarshal(raw.Item, e.Attachment)
	default:
		return fmt.Errorf("未知的时间线条目类型: %q", raw.Type)
	}
}

// GetTimeline 获取会话时间线
func (c *Client) GetTimeline(ctx context.Context, sessionID int64) (*Timeline, error) {
	var result Timeline
	path := fmt.Sprintf("/api/v1/sessions/%d/timeline", sessionID)
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// --- 发送 ---

// SendResult 一次发送的结果
type SendResult struct {
	UserMessage *model.Message    `json:"user_message"`
	Attachment  *model.Attachment `json:"attachment"`
	IncidentID  string            `json:"incident_id"`
	Reply       *model.Message    `json:"reply"`
	Outcome     string            `json:"outcome"`
}

// SendMessage 发送消息，filePath 非空时以 multipart 上传附件
// 请求在 AI 回复结束后才返回，过程中的变化通过 WebSocket 事件推送
func (c *Client) SendMessage(ctx context.Context, sessionID int64, text, filePath string) (*SendResult, error) {
	path := fmt.Sprintf("/api/v1/sessions/%d/messages", sessionID)

	var result SendResult
	if filePath == "" {
		if err := c.call(ctx, http.MethodPost, path, map[string]string{"message": text}, &result); err != nil {
			return nil, err
		}
		return &result, nil
	}

	body, contentType, err := multipartBody(text, filePath)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// contentTypes 按扩展名推断附件类型，服务端只接受这几种
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".csv":  "text/csv",
	".xml":  "application/xml",
	".stix": "application/xml",
}

// ContentTypeFor 根据文件扩展名返回上传使用的 Content-Type
func ContentTypeFor(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// multipartBody 构造 message + file 的 multipart 请求体
func multipartBody(text, filePath string) (io.Reader, string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("打开附件失败: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if text != "" {
		if err := mw.WriteField("message", text); err != nil {
			return nil, "", err
		}
	}

	name := filepath.Base(filePath)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", ContentTypeFor(name))
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("读取附件失败: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// --- 通用请求封装 ---

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return fmt.Errorf("解析响应失败 (HTTP %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && apiResp.Code == codeUnauthorized {
		return ErrUnauthorized
	}
	if apiResp.Code != 0 {
		return &APIError{Status: resp.StatusCode, Code: apiResp.Code, Message: apiResp.Message}
	}

	if out == nil || len(apiResp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(apiResp.Data, out); err != nil {
		return fmt.Errorf("解析响应数据失败: %w", err)
	}
	return nil
}
