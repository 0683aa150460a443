package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soc-assistant/internal/attachment"
	"soc-assistant/internal/config"
	"soc-assistant/internal/incident"
	"soc-assistant/internal/middleware"
	"soc-assistant/internal/ollama"
	"soc-assistant/internal/relay"
	"soc-assistant/internal/repository"
	"soc-assistant/internal/service"
	"soc-assistant/internal/testutil"
	"soc-assistant/pkg/jwt"
	"soc-assistant/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var helloStream = []string{
	`{"response":"Hel"}`,
	`{"response":"lo"}`,
	`{"done":true}`,
}

type testAPI struct {
	engine *gin.Engine
	events *testutil.EventRecorder
}

func newTestAPI(t *testing.T, ollamaURL string) *testAPI {
	t.Helper()
	db := testutil.OpenTestDB(t)
	redisCache, _ := testutil.NewRedisCache(t)
	jwtService := jwt.NewJWTService("0123456789abcdef0123456789abcdef", time.Hour, 24*time.Hour)
	events := &testutil.EventRecorder{}
	registry := relay.NewRegistry()

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)

	ingestor := attachment.NewIngestor(
		attachment.NewPolicy([]string{"application/pdf", "text/csv", "application/xml"}, 10240),
		attachment.NewStore(afero.NewMemMapFs(), "attachments", 10240*attachment.KiB),
		attachment.MockSummarizer{},
		attachmentRepo,
	)
	client := ollama.NewClient(config.OllamaConfig{BaseURL: ollamaURL, Model: "mistral", Timeout: 5 * time.Second})
	streamRelay := relay.New(client, messageRepo, events, registry, 0)

	sessions := service.NewSessionService(sessionRepo, messageRepo, attachmentRepo, redisCache, registry, events)
	chat := service.NewChatService(sessions, sessionRepo, messageRepo, ingestor, incident.NewMockSIEM(), streamRelay)

	engine := NewEngine(Router{
		JWT:       jwtService,
		Blacklist: redisCache,
		CORS:      middleware.DefaultCORSConfig(),
		Auth:      NewAuthHandler(service.NewAuthService(userRepo, redisCache, jwtService)),
		User:      NewUserHandler(service.NewUserService(userRepo, redisCache, ingestor, registry)),
		Session:   NewSessionHandler(sessions),
		Chat:      NewChatHandler(chat),
		Health:    NewHealthHandler(map[string]Pinger{"redis": redisCache}),
	})
	return &testAPI{engine: engine, events: events}
}

// do 发送 JSON 请求并解析统一响应
func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.serve(t, req, token)
}

func (a *testAPI) serve(t *testing.T, req *http.Request, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var out map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

// login 注册用户并返回 Access Token
func (a *testAPI) login(t *testing.T, username string) string {
	t.Helper()
	w, out := a.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": username, "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return out["data"].(map[string]interface{})["access_token"].(string)
}

// activeSession 返回当前会话ID
func (a *testAPI) activeSession(t *testing.T, token string) int64 {
	t.Helper()
	w, out := a.do(t, http.MethodGet, "/api/v1/sessions/active", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	return int64(out["data"].(map[string]interface{})["id"].(float64))
}

func data(out map[string]interface{}) map[string]interface{} {
	return out["data"].(map[string]interface{})
}

func multipartRequest(t *testing.T, path, message, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if message != "" {
		require.NoError(t, mw.WriteField("message", message))
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAuthEndpoints(t *testing.T) {
	api := newTestAPI(t, "http://127.0.0.1:1")

	token := api.login(t, "analyst")

	w, out := api.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": "analyst", "password": "secret123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(response.CodeUserExists), out["code"])

	w, _ = api.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out = api.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "analyst", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, float64(response.CodePasswordWrong), out["code"])

	w, out = api.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "analyst", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	refresh := data(out)["refresh_token"].(string)

	w, out = api.do(t, http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, data(out)["access_token"])

	w, out = api.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "analyst", data(out)["username"])

	w, _ = api.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionEndpoints(t *testing.T) {
	api := newTestAPI(t, "http://127.0.0.1:1")
	token := api.login(t, "analyst")
	otherToken := api.login(t, "other")

	first := api.activeSession(t, token)

	w, out := api.do(t, http.MethodPost, "/api/v1/sessions", token, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	created := data(out)
	assert.True(t, strings.HasPrefix(created["title"].(string), "New Session "))
	createdID := int64(created["id"].(float64))
	assert.Equal(t, createdID, api.activeSession(t, token))

	w, out = api.do(t, http.MethodPost, "/api/v1/sessions", token, gin.H{"title": "Phishing triage"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Phishing triage", data(out)["title"])

	w, out = api.do(t, http.MethodGet, "/api/v1/sessions?page=1&page_size=10", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), data(out)["total"])
	sessions := data(out)["sessions"].([]interface{})
	assert.Equal(t, "Phishing triage", sessions[0].(map[string]interface{})["title"])

	w, _ = api.do(t, http.MethodPut, fmt.Sprintf("/api/v1/sessions/%d/active", first), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first, api.activeSession(t, token))

	w, out = api.do(t, http.MethodPut, fmt.Sprintf("/api/v1/sessions/%d/active", first), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, float64(response.CodeForbidden), out["code"])

	w, out = api.do(t, http.MethodGet, "/api/v1/sessions/9999/timeline", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(response.CodeSessionNotFound), out["code"])

	w, _ = api.do(t, http.MethodGet, "/api/v1/sessions/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = api.do(t, http.MethodGet, "/api/v1/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSendMessageJSON(t *testing.T) {
	srv := testutil.NewOllamaServer(t, helloStream...)
	api := newTestAPI(t, srv.URL)
	token := api.login(t, "analyst")
	sessionID := api.activeSession(t, token)
	path := fmt.Sprintf("/api/v1/sessions/%d/messages", sessionID)

	w, out := api.do(t, http.MethodPost, path, token, gin.H{"message": "Check INC-123456 please"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := data(out)
	assert.Equal(t, "INC-123456", result["incident_id"])
	assert.Equal(t, "completed", result["outcome"])
	assert.Equal(t, "Hello", result["reply"].(map[string]interface{})["content"])
	assert.Equal(t, "Check INC-123456 please", result["user_message"].(map[string]interface{})["content"])

	w, out = api.do(t, http.MethodGet, path[:strings.LastIndex(path, "/")]+"/timeline", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	timeline := data(out)["timeline"].([]interface{})
	assert.Len(t, timeline, 2)
	assert.Equal(t, []interface{}{"INC-123456"}, data(out)["session"].(map[string]interface{})["incident_ids"])

	w, out = api.do(t, http.MethodPost, path, token, gin.H{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(response.CodeEmptyMessage), out["code"])
}

func TestSendMessageInferenceFailure(t *testing.T) {
	srv := testutil.NewFailingOllamaServer(t, http.StatusInternalServerError)
	api := newTestAPI(t, srv.URL)
	token := api.login(t, "analyst")
	sessionID := api.activeSession(t, token)

	w, out := api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%d/messages", sessionID), token, gin.H{"message": "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	result := data(out)
	assert.Equal(t, "failed", result["outcome"])
	assert.Equal(t, "Error: Failed to get AI response: Ollama API request failed: 500",
		result["reply"].(map[string]interface{})["content"])
	assert.Equal(t, 1, api.events.Count("response.ended"))
}

func TestSendMessageMultipart(t *testing.T) {
	srv := testutil.NewOllamaServer(t, helloStream...)
	api := newTestAPI(t, srv.URL)
	token := api.login(t, "analyst")
	path := fmt.Sprintf("/api/v1/sessions/%d/messages", api.activeSession(t, token))

	w, out := api.serve(t, multipartRequest(t, path, "", "iocs.csv", "text/csv", []byte("ip,score\n10.0.0.1,90\n")), token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := data(out)
	assert.Nil(t, result["user_message"])
	att := result["attachment"].(map[string]interface{})
	assert.Equal(t, "csv", att["file_type"])
	assert.Equal(t, "iocs.csv", att["original_name"])

	w, out = api.serve(t, multipartRequest(t, path, "see bundle", "bundle.xml", "application/xml", []byte("<stix/>")), token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stix", data(out)["attachment"].(map[string]interface{})["file_type"])

	w, out = api.serve(t, multipartRequest(t, path, "run this", "evil.exe", "application/x-msdownload", []byte("MZ")), token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(response.CodeAttachmentType), out["code"])

	w, out = api.serve(t, multipartRequest(t, path, "", "", "", nil), token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(response.CodeEmptyMessage), out["code"])
}

func TestSendMessageStream(t *testing.T) {
	srv := testutil.NewOllamaServer(t, helloStream...)
	api := newTestAPI(t, srv.URL)
	token := api.login(t, "analyst")
	path := fmt.Sprintf("/api/v1/sessions/%d/messages?stream=1", api.activeSession(t, token))

	w, _ := api.do(t, http.MethodPost, path, token, gin.H{"message": "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream"))

	body := w.Body.String()
	order := []string{
		"event:response.started",
		"event:message.updated",
		`"content":"Hel"`,
		`"content":"Hello"`,
		"event:response.ended",
		"event:result",
	}
	pos := 0
	for _, want := range order {
		idx := strings.Index(body[pos:], want)
		require.GreaterOrEqual(t, idx, 0, "missing %q after offset %d in %s", want, pos, body)
		pos += idx + len(want)
	}

	// 校验失败时还没有开始流式输出，返回普通 JSON
	w, out := api.do(t, http.MethodPost, path, token, gin.H{"message": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(response.CodeEmptyMessage), out["code"])
}

func TestDeleteAccountEndpoint(t *testing.T) {
	srv := testutil.NewOllamaServer(t, helloStream...)
	api := newTestAPI(t, srv.URL)
	token := api.login(t, "analyst")
	path := fmt.Sprintf("/api/v1/sessions/%d/messages", api.activeSession(t, token))

	w, _ := api.serve(t, multipartRequest(t, path, "report", "r.pdf", "application/pdf", []byte("%PDF-1.4")), token)
	require.Equal(t, http.StatusOK, w.Code)

	w, out := api.do(t, http.MethodDelete, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), data(out)["removed_files"])

	w, _ = api.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, "http://127.0.0.1:1")
	w, out := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", out["status"])

	h := NewHealthHandler(map[string]Pinger{
		"database": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	engine := gin.New()
	engine.GET("/health", h.Health)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
