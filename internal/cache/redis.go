// Package cache 提供 Redis 缓存操作的封装
// 处理 JWT 黑名单、用户当前会话、界面事件的跨实例广播
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"soc-assistant/internal/config"
)

const (
	keyPrefix          = "soc:"
	eventChannelPrefix = keyPrefix + "user:"
	eventChannelSuffix = ":events"
)

// RedisCache 封装 Redis 客户端，提供业务相关的缓存操作
type RedisCache struct {
	client *redis.Client // Redis 客户端实例
}

// NewRedisCache 创建 RedisCache 实例
// 参数:
//   - cfg: Redis 连接配置
//
// 返回:
//   - *RedisCache: 缓存实例
//   - error: 连接错误
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient 使用已有客户端创建缓存实例
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close 关闭 Redis 连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping 检查 Redis 连接
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ==================== 当前会话 ====================

func activeSessionKey(userID int64) string {
	return fmt.Sprintf("%suser:%d:active_session", keyPrefix, userID)
}

// SetActiveSession 设置用户的当前会话
// 不设置过期时间，切换或删除用户时覆盖/清理
func (c *RedisCache) SetActiveSession(ctx context.Context, userID, sessionID int64) error {
	return c.client.Set(ctx, activeSessionKey(userID), sessionID, 0).Err()
}

// GetActiveSession 获取用户的当前会话
// 返回:
//   - int64: 会话ID，没有选中会话返回 0
//   - error: Redis 操作错误
func (c *RedisCache) GetActiveSession(ctx context.Context, userID int64) (int64, error) {
	result, err := c.client.Get(ctx, activeSessionKey(userID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return result, err
}

// ClearActiveSession 清除用户的当前会话
func (c *RedisCache) ClearActiveSession(ctx context.Context, userID int64) error {
	return c.client.Del(ctx, activeSessionKey(userID)).Err()
}

// ==================== JWT 黑名单 ====================

// BlacklistToken 将 Token 加入黑名单
// TTL 为 Token 的剩余有效期，过期后自动删除
// 参数:
//   - ctx: 上下文
//   - tokenHash: Token 的哈希值（不存储原始 Token）
//   - expireAt: Token 的原始过期时间
func (c *RedisCache) BlacklistToken(ctx context.Context, tokenHash string, expireAt time.Time) error {
	ttl := time.Until(expireAt)
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, keyPrefix+"jwt:blacklist:"+tokenHash, "1", ttl).Err()
}

// IsTokenBlacklisted 检查 Token 是否在黑名单中
func (c *RedisCache) IsTokenBlacklisted(ctx context.Context, tokenHash string) bool {
	return c.client.Exists(ctx, keyPrefix+"jwt:blacklist:"+tokenHash).Val() > 0
}

// ==================== 界面事件 Pub/Sub ====================
// 每个服务实例订阅所有用户的事件频道，再投递给本实例上的 WebSocket 连接

// EventChannel 返回用户事件频道名
func EventChannel(userID int64) string {
	return fmt.Sprintf("%s%d%s", eventChannelPrefix, userID, eventChannelSuffix)
}

// ParseEventChannel 从频道名解析用户ID
func ParseEventChannel(channel string) (int64, bool) {
	if !strings.HasPrefix(channel, eventChannelPrefix) || !strings.HasSuffix(channel, eventChannelSuffix) {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(channel, eventChannelPrefix), eventChannelSuffix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// PublishUserEvent 发布用户事件（已序列化的 JSON）
func (c *RedisCache) PublishUserEvent(ctx context.Context, userID int64, payload []byte) error {
	return c.client.Publish(ctx, EventChannel(userID), payload).Err()
}

// SubscribeUserEvents 订阅所有用户的事件频道
// 返回 PubSub 对象，调用方负责关闭
func (c *RedisCache) SubscribeUserEvents(ctx context.Context) *redis.PubSub {
	return c.client.PSubscribe(ctx, eventChannelPrefix+"*"+eventChannelSuffix)
}
