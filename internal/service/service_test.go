package service

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"soc-assistant/internal/attachment"
	"soc-assistant/internal/cache"
	"soc-assistant/internal/config"
	"soc-assistant/internal/incident"
	"soc-assistant/internal/model"
	"soc-assistant/internal/ollama"
	"soc-assistant/internal/relay"
	"soc-assistant/internal/repository"
	"soc-assistant/internal/testutil"
	"soc-assistant/pkg/jwt"
)

type fixture struct {
	db          *gorm.DB
	cache       *cache.RedisCache
	mr          *miniredis.Miniredis
	fs          afero.Fs
	events      *testutil.EventRecorder
	registry    *relay.Registry
	userRepo    *repository.UserRepository
	sessionRepo *repository.SessionRepository
	messageRepo *repository.MessageRepository
	attRepo     *repository.AttachmentRepository
	ingestor    *attachment.Ingestor
	jwt         *jwt.JWTService
	auth        *AuthService
	users       *UserService
	sessions    *SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:       testutil.OpenTestDB(t),
		fs:       afero.NewMemMapFs(),
		events:   &testutil.EventRecorder{},
		registry: relay.NewRegistry(),
		jwt:      jwt.NewJWTService("0123456789abcdef0123456789abcdef", time.Hour, 24*time.Hour),
	}
	f.cache, f.mr = testutil.NewRedisCache(t)
	f.userRepo = repository.NewUserRepository(f.db)
	f.sessionRepo = repository.NewSessionRepository(f.db)
	f.messageRepo = repository.NewMessageRepository(f.db)
	f.attRepo = repository.NewAttachmentRepository(f.db)
	f.ingestor = attachment.NewIngestor(
		attachment.NewPolicy([]string{"application/pdf", "text/csv", "application/xml"}, 10240),
		attachment.NewStore(f.fs, "attachments", 10240*attachment.KiB),
		attachment.MockSummarizer{},
		f.attRepo,
	)
	f.auth = NewAuthService(f.userRepo, f.cache, f.jwt)
	f.users = NewUserService(f.userRepo, f.cache, f.ingestor, f.registry)
	f.sessions = NewSessionService(f.sessionRepo, f.messageRepo, f.attRepo, f.cache, f.registry, f.events)
	return f
}

// chat 创建指向给定推理服务地址的 ChatService
func (f *fixture) chat(baseURL string) *ChatService {
	client := ollama.NewClient(config.OllamaConfig{BaseURL: baseURL, Model: "mistral", Timeout: 5 * time.Second})
	r := relay.New(client, f.messageRepo, f.events, f.registry, 0)
	return NewChatService(f.sessions, f.sessionRepo, f.messageRepo, f.ingestor, incident.NewMockSIEM(), r)
}

func (f *fixture) register(t *testing.T, name string) int64 {
	t.Helper()
	res, err := f.auth.Register(context.Background(), &RegisterRequest{Username: name, Password: "secret123"})
	require.NoError(t, err)
	return res.User.ID
}

func (f *fixture) countRows(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

func TestAuthFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered, err := f.auth.Register(ctx, &RegisterRequest{Username: "analyst", Password: "secret123", Email: "a@soc.local"})
	require.NoError(t, err)
	assert.NotEmpty(t, registered.AccessToken)
	assert.NotEmpty(t, registered.RefreshToken)

	_, err = f.auth.Register(ctx, &RegisterRequest{Username: "analyst", Password: "secret123"})
	assert.ErrorIs(t, err, ErrUserExists)
	_, err = f.auth.Register(ctx, &RegisterRequest{Username: "other", Password: "secret123", Email: "a@soc.local"})
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = f.auth.Login(ctx, &LoginRequest{Username: "nobody", Password: "x"})
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = f.auth.Login(ctx, &LoginRequest{Username: "analyst", Password: "wrong"})
	assert.ErrorIs(t, err, ErrPasswordWrong)

	login, err := f.auth.Login(ctx, &LoginRequest{Username: "analyst", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), login.ExpiresIn)

	refreshed, err := f.auth.RefreshToken(ctx, login.RefreshToken)
	require.NoError(t, err)
	claims, err := f.jwt.ValidateToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, login.User.ID, claims.UserID)

	_, err = f.auth.RefreshToken(ctx, login.AccessToken)
	assert.Error(t, err)

	require.NoError(t, f.auth.Logout(ctx, login.AccessToken, time.Now().Add(time.Hour)))
	assert.Equal(t, 1, len(f.mr.Keys()))
}

func TestUserProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "analyst")
	other := f.register(t, "other")

	email := "me@soc.local"
	user, err := f.users.UpdateProfile(ctx, id, &UpdateProfileRequest{Email: &email})
	require.NoError(t, err)
	require.NotNil(t, user.Email)
	assert.Equal(t, email, *user.Email)

	_, err = f.users.UpdateProfile(ctx, other, &UpdateProfileRequest{Email: &email})
	assert.ErrorIs(t, err, ErrEmailExists)

	err = f.users.ChangePassword(ctx, id, &ChangePasswordRequest{OldPassword: "bad", NewPassword: "newsecret"})
	assert.ErrorIs(t, err, ErrPasswordWrong)
	require.NoError(t, f.users.ChangePassword(ctx, id, &ChangePasswordRequest{OldPassword: "secret123", NewPassword: "newsecret"}))

	_, err = f.auth.Login(ctx, &LoginRequest{Username: "analyst", Password: "newsecret"})
	assert.NoError(t, err)

	_, err = f.users.GetProfile(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	f.sessions.now = func() time.Time { return now }
	uid := f.register(t, "analyst")

	// 没有会话时自动创建
	first, err := f.sessions.GetActiveSession(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "New Session 2024-03-05 14:07:09", first.Title)
	assert.Empty(t, first.IncidentIDs)

	second, err := f.sessions.CreateSession(ctx, uid, &CreateSessionRequest{Title: "  Phishing triage "})
	require.NoError(t, err)
	assert.Equal(t, "Phishing triage", second.Title)

	active, err := f.sessions.GetActiveSession(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	switched, err := f.sessions.SwitchSession(ctx, uid, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, switched.ID)
	active, err = f.sessions.GetActiveSession(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)
	assert.Equal(t, 3, f.events.Count("session.switched"))

	list, total, err := f.sessions.ListSessions(ctx, uid, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, second.ID, list[0].ID)

	other := f.register(t, "other")
	_, err = f.sessions.SwitchSession(ctx, other, first.ID)
	assert.ErrorIs(t, err, ErrNoPermission)
	_, err = f.sessions.SwitchSession(ctx, uid, 12345)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestActiveSessionFallsBackWhenCacheIsStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.register(t, "analyst")

	s, err := f.sessions.CreateSession(ctx, uid, nil)
	require.NoError(t, err)
	require.NoError(t, f.cache.SetActiveSession(ctx, uid, 9999))

	active, err := f.sessions.GetActiveSession(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, s.ID, active.ID)
}

func TestSwitchCancelsInflightStream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.register(t, "analyst")
	s, err := f.sessions.CreateSession(ctx, uid, nil)
	require.NoError(t, err)

	streamCtx, finish := f.registry.Begin(ctx, uid)
	defer finish()

	_, err = f.sessions.SwitchSession(ctx, uid, s.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, streamCtx.Err(), context.Canceled)
}

func TestDeleteAccountCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	srv := testutil.NewOllamaServer(t, `{"response":"ok","done":true}`)
	chat := f.chat(srv.URL)

	victim := f.register(t, "victim")
	keeper := f.register(t, "keeper")

	send := func(uid int64) *SendResult {
		s, err := f.sessions.CreateSession(ctx, uid, nil)
		require.NoError(t, err)
		res, err := chat.Send(ctx, uid, &SendRequest{
			SessionID: s.ID,
			Text:      "look at INC123456",
			File:      &attachment.Upload{Filename: "iocs.csv", ContentType: "text/csv", Size: 3, Body: strings.NewReader("a,b")},
		})
		require.NoError(t, err)
		return res
	}
	victimRes := send(victim)
	send(keeper)

	removed, err := f.users.DeleteAccount(ctx, victim)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.Equal(t, int64(1), f.countRows(t, &model.User{}))
	assert.Equal(t, int64(1), f.countRows(t, &model.Session{}))
	assert.Equal(t, int64(2), f.countRows(t, &model.Message{}))
	assert.Equal(t, int64(1), f.countRows(t, &model.Attachment{}))

	exists, _ := afero.Exists(f.fs, victimRes.Attachment.FilePath)
	assert.False(t, exists)

	activeID, err := f.cache.GetActiveSession(ctx, victim)
	require.NoError(t, err)
	assert.Zero(t, activeID)

	_, err = f.users.DeleteAccount(ctx, victim)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = f.users.GetProfile(ctx, keeper)
	assert.NoError(t, err)
}

func TestSendStreamsReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	srv := testutil.NewOllamaServer(t, `{"response":"Hel"}`, `{"response":"lo"}`, `{"done":true}`)
	chat := f.chat(srv.URL)
	uid := f.register(t, "analyst")
	s, err := f.sessions.CreateSession(ctx, uid, nil)
	require.NoError(t, err)

	res, err := chat.Send(ctx, uid, &SendRequest{SessionID: s.ID, Text: "Check INC123456"})
	require.NoError(t, err)
	assert.Equal(t, "Check INC123456", res.UserMessage.Content)
	assert.Equal(t, "INC123456", res.IncidentID)
	assert.Equal(t, relay.OutcomeCompleted, res.Outcome)
	assert.Equal(t, "Hello", res.Reply.Content)

	stored, err := f.messageRepo.GetByID(ctx, res.Reply.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", stored.Content)
	assert.Equal(t, model.MessageRoleAI, stored.Role)

	// 同一编号再次出现不会重复追加
	_, err = chat.Send(ctx, uid, &SendRequest{SessionID: s.ID, Text: "INC123456 again, also INC-7654321"})
	require.NoError(t, err)
	session, err := f.sessionRepo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StringList{"INC123456"}, session.IncidentIDs)

	assert.Equal(t, 2, f.events.Count("response.started"))
	assert.Equal(t, 2, f.events.Count("response.ended"))
}

func TestSendInferenceFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	srv := testutil.NewFailingOllamaServer(t, http.StatusInternalServerError)
	chat := f.chat(srv.URL)
	uid := f.register(t, "analyst")
	s, err := f.sessions.CreateSession(ctx, uid, nil)
	require.NoError(t, err)

	res, err := chat.Send(ctx, uid, &SendRequest{SessionID: s.ID, Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, relay.OutcomeFailed, res.Outcome)
	assert.Equal(t, "Error: Failed to get AI response: Ollama API request failed: 500", res.Reply.Content)

	messages, err := f.messageRepo.GetBySessionID(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, model.MessageRoleUser, messages[0].Role)
	assert.Equal(t, res.Reply.Content, messages[1].Content)
	assert.Equal(t, 1, f.events.Count("response.ended"))
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.chat(testutil.NewOllamaServer(t, `{"done":true}`).URL)
	uid := f.register(t, "analyst")
	s, err := f.sessions.CreateSession(ctx, uid, nil)
	require.NoError(t, err)

	_, err = chat.Send(ctx, uid, &SendRequest{SessionID: s.ID, Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = chat.Send(ctx, uid, &SendRequest{
		SessionID: s.ID,
		Text:      "see attached",
		File:      &attachment.Upload{Filename: "x.exe", ContentType: "application/octet-stream", Size: 4, Body: bytes.NewReader([]byte("MZ.."))},
	})
	assert.ErrorIs(t, err, attachment.ErrTypeNotAllowed)

	_, err = chat.Send(ctx, uid, &SendRequest{
		SessionID: s.ID,
		File:      &attachment.Upload{Filename: "big.pdf", ContentType: "application/pdf", Size: 10240*1024 + 1, Body: strings.NewReader("")},
	})
	assert.ErrorIs(t, err, attachment.ErrTooLarge)

	assert.Zero(t, f.countRows(t, &model.Message{}))
	assert.Zero(t, f.countRows(t, &model.Attachment{}))
	assert.Zero(t, f.events.Count("response.started"))

	other := f.register(t, "other")
	_, err = chat.Send(ctx, other, &SendRequest{SessionID: s.ID, Text: "hi"})
	assert.ErrorIs(t, err, ErrNoPermission)
}

func TestSendFileOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.chat(testutil.NewOllamaServer(t, `{"response":"summary noted","done":true}`).URL)
	uid := f.register(t, "analyst")
	s, err := f.sessions.CreateSession(ctx, uid, nil)
	require.NoError(t, err)

	res, err := chat.Send(ctx, uid, &SendRequest{
		SessionID: s.ID,
		File:      &attachment.Upload{Filename: "bundle.xml", ContentType: "application/xml", Size: 6, Body: strings.NewReader("<a/>\n\n")},
	})
	require.NoError(t, err)
	assert.Nil(t, res.UserMessage)
	assert.Equal(t, model.FileTypeSTIX, res.Attachment.FileType)
	assert.Equal(t, "summary noted", res.Reply.Content)

	tl, err := f.sessions.GetTimeline(ctx, uid, s.ID)
	require.NoError(t, err)
	require.Len(t, tl.Timeline, 2)
	assert.Equal(t, model.TimelineKindAttachment, tl.Timeline[0].Kind())
	assert.Equal(t, model.TimelineKindMessage, tl.Timeline[1].Kind())
}

// failingLookup 模拟 SIEM 查询失败
type failingLookup struct{}

func (failingLookup) Lookup(context.Context, string) (*incident.Context, error) {
	return nil, errors.New("siem unavailable")
}

func TestSendPipelineFailureBecomesErrorMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	srv := testutil.NewOllamaServer(t, `{"response":"never","done":true}`)
	client := ollama.NewClient(config.OllamaConfig{BaseURL: srv.URL})
	r := relay.New(client, f.messageRepo, f.events, f.registry, 0)
	chat := NewChatService(f.sessions, f.sessionRepo, f.messageRepo, f.ingestor, failingLookup{}, r)

	uid := f.register(t, "analyst")
	s, err := f.sessions.CreateSession(ctx, uid, nil)
	require.NoError(t, err)

	observer := &testutil.EventRecorder{}
	res, err := chat.Send(ctx, uid, &SendRequest{SessionID: s.ID, Text: "INC-1234567 status?", Observer: observer})
	require.NoError(t, err)
	assert.Equal(t, relay.OutcomeFailed, res.Outcome)
	assert.Equal(t, "Error: Failed to get AI response: incident lookup: siem unavailable", res.Reply.Content)
	assert.Equal(t, 1, observer.Count("message.updated"))
	assert.Zero(t, f.events.Count("response.started"))

	messages, err := f.messageRepo.GetBySessionID(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}
