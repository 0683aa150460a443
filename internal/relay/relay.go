// Package relay 把推理服务的流式输出逐片段写入 AI 消息并通知界面
package relay

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"soc-assistant/internal/metrics"
	"soc-assistant/internal/model"
	"soc-assistant/internal/ollama"
)

// ErrorMessagePrefix 失败时合成的 AI 消息前缀
const ErrorMessagePrefix = "Error: Failed to get AI response: "

// Outcome 一次流的结局
type Outcome string

const (
	OutcomeCompleted Outcome = "completed" // 收到 done 或连接正常关闭
	OutcomeFailed    Outcome = "failed"    // 请求失败或读取中断
	OutcomeCancelled Outcome = "cancelled" // 被新的发送或会话切换取消
)

// Generator 发起流式生成
type Generator interface {
	Generate(ctx context.Context, prompt string) (*ollama.Stream, error)
}

// MessageStore AI 消息的持久化
type MessageStore interface {
	Create(ctx context.Context, message *model.Message) error
	UpdateContent(ctx context.Context, id int64, content string) error
}

// Notifier 界面事件
type Notifier interface {
	ResponseStarted(userID, sessionID int64)
	MessageUpdated(userID int64, message *model.Message)
	ResponseEnded(userID, sessionID int64)
}

// Request 一次生成请求
type Request struct {
	UserID    int64
	SessionID int64
	Prompt    string
	Observer  Notifier // 可选，除界面事件外额外接收本次请求的事件（SSE）
}

// Result 一次生成的结果
type Result struct {
	Message   *model.Message // 最终的 AI 消息（失败时为合成的错误消息，取消且未创建时为 nil）
	Outcome   Outcome
	Fragments int
	Err       error
}

// Relay 流式推理中继
type Relay struct {
	generator Generator
	messages  MessageStore
	notifier  Notifier
	registry  *Registry
	throttle  time.Duration
}

// New 创建 Relay
// 参数:
//   - generator: 推理客户端
//   - messages: 消息存储
//   - notifier: 界面事件通知
//   - registry: 进行中流的登记表
//   - throttle: 每个片段处理后的停顿，0 表示不停顿
func New(generator Generator, messages MessageStore, notifier Notifier, registry *Registry, throttle time.Duration) *Relay {
	return &Relay{
		generator: generator,
		messages:  messages,
		notifier:  notifier,
		registry:  registry,
		throttle:  throttle,
	}
}

// Respond 执行一次完整的流式生成
// 先发起请求，成功后才创建空的 AI 消息；之后每个带文本的片段覆盖一次消息内容
// response.started 和 response.ended 各发送一次
func (r *Relay) Respond(ctx context.Context, req Request) *Result {
	streamCtx, finish := r.registry.Begin(ctx, req.UserID)
	defer finish()

	// 取消只停止读取，已经收到的内容仍然要写完
	storeCtx := context.WithoutCancel(ctx)

	r.notify(req, func(n Notifier) { n.ResponseStarted(req.UserID, req.SessionID) })
	defer r.notify(req, func(n Notifier) { n.ResponseEnded(req.UserID, req.SessionID) })

	start := time.Now()
	result := r.run(streamCtx, storeCtx, req)
	metrics.StreamsTotal.WithLabelValues(string(result.Outcome)).Inc()
	metrics.StreamDuration.Observe(time.Since(start).Seconds())

	logger := log.With().
		Int64("user_id", req.UserID).
		Int64("session_id", req.SessionID).
		Str("outcome", string(result.Outcome)).
		Int("fragments", result.Fragments).
		Logger()
	if result.Err != nil {
		logger.Warn().Err(result.Err).Msg("inference stream finished with error")
	} else {
		logger.Debug().Dur("elapsed", time.Since(start)).Msg("inference stream finished")
	}
	return result
}

func (r *Relay) run(streamCtx, storeCtx context.Context, req Request) *Result {
	stream, err := r.generator.Generate(streamCtx, req.Prompt)
	if err != nil {
		if streamCtx.Err() != nil {
			return &Result{Outcome: OutcomeCancelled}
		}
		return r.fail(storeCtx, req, err)
	}
	defer stream.Close()

	msg := &model.Message{SessionID: req.SessionID, Role: model.MessageRoleAI, Content: ""}
	if err := r.messages.Create(storeCtx, msg); err != nil {
		return r.fail(storeCtx, req, err)
	}

	var acc strings.Builder
	fragments := 0
	for {
		if streamCtx.Err() != nil {
			return &Result{Message: msg, Outcome: OutcomeCancelled, Fragments: fragments}
		}

		frag, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if streamCtx.Err() != nil {
				return &Result{Message: msg, Outcome: OutcomeCancelled, Fragments: fragments}
			}
			return r.fail(storeCtx, req, err)
		}

		if frag.HasText() {
			acc.WriteString(frag.Text())
			content := acc.String()
			if err := r.messages.UpdateContent(storeCtx, msg.ID, content); err != nil {
				res := r.fail(storeCtx, req, err)
				res.Fragments = fragments
				return res
			}
			msg.Content = content
			fragments++
			metrics.StreamFragments.Inc()

			snapshot := *msg
			r.notify(req, func(n Notifier) { n.MessageUpdated(req.UserID, &snapshot) })

			if !frag.Done {
				r.pause(streamCtx)
			}
		}

		if frag.Done {
			break
		}
	}

	return &Result{Message: msg, Outcome: OutcomeCompleted, Fragments: fragments}
}

// notify 发送给界面和本次请求的观察者
func (r *Relay) notify(req Request, fn func(Notifier)) {
	fn(r.notifier)
	if req.Observer != nil {
		fn(req.Observer)
	}
}

// fail 写入一条合成的 AI 错误消息
func (r *Relay) fail(ctx context.Context, req Request, cause error) *Result {
	msg := &model.Message{
		SessionID: req.SessionID,
		Role:      model.MessageRoleAI,
		Content:   ErrorMessagePrefix + cause.Error(),
	}
	if err := r.messages.Create(ctx, msg); err != nil {
		log.Error().Err(err).Int64("session_id", req.SessionID).Msg("failed to store error message")
		return &Result{Outcome: OutcomeFailed, Err: cause}
	}
	r.notify(req, func(n Notifier) { n.MessageUpdated(req.UserID, msg) })
	return &Result{Message: msg, Outcome: OutcomeFailed, Err: cause}
}

// pause 片段之间的停顿，取消时立即返回
func (r *Relay) pause(ctx context.Context) {
	if r.throttle <= 0 {
		return
	}
	timer := time.NewTimer(r.throttle)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
