package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"soc-assistant/internal/cache"
	"soc-assistant/internal/metrics"
	"soc-assistant/internal/model"
)

// Broker 跨实例的事件广播
// 多个服务实例时，事件先发布到 Redis，再由每个实例投递给本地连接
type Broker interface {
	PublishUserEvent(ctx context.Context, userID int64, payload []byte) error
	SubscribeUserEvents(ctx context.Context) *redis.PubSub
}

const publishTimeout = 2 * time.Second

// Hub 是 WebSocket 连接的中心管理器
// 负责：
// 1. 管理每个用户的所有连接（同一用户可以开多个页面）
// 2. 把界面事件投递给对应用户
type Hub struct {
	// 客户端映射：userID -> 连接集合
	clients map[int64]map[*Client]struct{}

	// 互斥锁，保护并发访问
	mu sync.RWMutex

	// 为 nil 时只投递给本实例的连接
	broker Broker
}

// NewHub 创建 Hub 实例
// broker 可以为 nil
func NewHub(broker Broker) *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		broker:  broker,
	}
}

// Run 订阅 Redis 中的用户事件并投递给本地连接
// 阻塞直到 ctx 取消；没有 broker 时直接等待 ctx
func (h *Hub) Run(ctx context.Context) {
	if h.broker == nil {
		<-ctx.Done()
		h.closeAll()
		return
	}

	pubsub := h.broker.SubscribeUserEvents(ctx)
	defer pubsub.Close()

	// 等待订阅确认，确保之后发布的事件不会丢失
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Error().Err(err).Msg("failed to subscribe user events")
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			userID, ok := cache.ParseEventChannel(msg.Channel)
			if !ok {
				continue
			}
			h.deliver(userID, []byte(msg.Payload))
		}
	}
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[client.userID] = set
	}
	set[client] = struct{}{}
	metrics.WebsocketConnections.Inc()

	log.Info().Int64("user_id", client.userID).Int("connections", len(set)).Msg("websocket client registered")
}

// Unregister 注销客户端并关闭其发送通道
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
	metrics.WebsocketConnections.Dec()
	client.Close()

	log.Info().Int64("user_id", client.userID).Msg("websocket client unregistered")
}

// ConnectionCount 返回用户在本实例上的连接数
func (h *Hub) ConnectionCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// closeAll 关闭所有连接（服务退出时）
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, set := range h.clients {
		for c := range set {
			c.Close()
			metrics.WebsocketConnections.Dec()
		}
		delete(h.clients, userID)
	}
}

// deliver 把已序列化的事件发给用户在本实例上的所有连接
func (h *Hub) deliver(userID int64, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		c.sendRaw(data)
	}
}

// publish 发布一条用户事件
// 有 broker 时经 Redis 广播（包括本实例），发布失败退回到本地投递
func (h *Hub) publish(userID int64, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("failed to encode event")
		return
	}

	if h.broker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		err := h.broker.PublishUserEvent(ctx, userID, data)
		if err == nil {
			return
		}
		log.Warn().Err(err).Int64("user_id", userID).Msg("publish event failed, delivering locally")
	}
	h.deliver(userID, data)
}

// ==================== 界面事件 ====================

// ResponseStarted 通知开始等待 AI 回复
func (h *Hub) ResponseStarted(userID, sessionID int64) {
	h.publish(userID, NewMessage(TypeResponseStarted, &ResponsePayload{SessionID: sessionID}))
}

// ResponseEnded 通知 AI 回复结束
func (h *Hub) ResponseEnded(userID, sessionID int64) {
	h.publish(userID, NewMessage(TypeResponseEnded, &ResponsePayload{SessionID: sessionID}))
}

// MessageUpdated 通知消息内容变化
func (h *Hub) MessageUpdated(userID int64, message *model.Message) {
	h.publish(userID, NewMessage(TypeMessageUpdated, NewMessagePayload(message)))
}

// SessionSwitched 通知当前会话已切换
func (h *Hub) SessionSwitched(userID int64, session *model.Session) {
	h.publish(userID, NewMessage(TypeSessionSwitched, &SessionPayload{
		SessionID:   session.ID,
		Title:       session.Title,
		IncidentIDs: session.IncidentIDs,
	}))
}
