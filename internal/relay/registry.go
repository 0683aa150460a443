package relay

import (
	"context"
	"sync"
)

// inflight 一个进行中的流
type inflight struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry 记录每个用户进行中的流
// 同一用户同一时间最多一个流，新的发送或切换会话会先关闭旧流
type Registry struct {
	mu      sync.Mutex
	streams map[int64]*inflight
}

// NewRegistry 创建 Registry
func NewRegistry() *Registry {
	return &Registry{streams: make(map[int64]*inflight)}
}

// Begin 为用户开始一个新流
// 如果已有进行中的流，先取消并等待其结束
// 参数:
//   - ctx: 父上下文
//   - userID: 用户ID
//
// 返回:
//   - context.Context: 新流使用的上下文，被取消即表示需要停止
//   - func(): 流结束时必须调用
func (r *Registry) Begin(ctx context.Context, userID int64) (context.Context, func()) {
	streamCtx, cancel := context.WithCancel(ctx)
	cur := &inflight{cancel: cancel, done: make(chan struct{})}

	for {
		r.mu.Lock()
		prev, ok := r.streams[userID]
		if !ok {
			r.streams[userID] = cur
			r.mu.Unlock()
			break
		}
		r.mu.Unlock()

		prev.cancel()
		select {
		case <-prev.done:
		case <-ctx.Done():
			cancel()
			return streamCtx, func() {}
		}
	}

	var once sync.Once
	finish := func() {
		once.Do(func() {
			r.mu.Lock()
			if r.streams[userID] == cur {
				delete(r.streams, userID)
			}
			r.mu.Unlock()
			cancel()
			close(cur.done)
		})
	}
	return streamCtx, finish
}

// Cancel 取消用户进行中的流，不等待其结束
// 返回是否存在进行中的流
func (r *Registry) Cancel(userID int64) bool {
	r.mu.Lock()
	cur, ok := r.streams[userID]
	r.mu.Unlock()
	if ok {
		cur.cancel()
	}
	return ok
}

// Active 判断用户是否有进行中的流
func (r *Registry) Active(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.streams[userID]
	return ok
}
