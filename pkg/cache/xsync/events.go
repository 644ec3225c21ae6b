package xsync

import (
	"context"
	"encoding/json"
	"log/slog"
)

// 变更通知的操作类型。
const (
	opSet    = "set"
	opDelete = "delete"
	opClear  = "clear"
)

// event 是通过 Redis pub/sub 传播的变更通知。
// pub/sub 在这里只是同步原语：通知丢失不影响正确性，
// 周期清扫会兜底修复。
type event struct {
	Op      string `json:"op"`
	Key     string `json:"key,omitempty"`
	Version uint64 `json:"version,omitempty"`
	Origin  string `json:"origin"`
}

// publish 发布一条变更通知。
// 发布失败只记录日志：通知是加速器，不承担正确性。
func (m *Manager) publish(ctx context.Context, ev event) {
	if !m.opts.Notifications {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		m.logWarn(ctx, "marshal sync event failed", slog.Any("error", err))
		return
	}
	if err := m.remote.Client().Publish(ctx, m.opts.Channel, payload).Err(); err != nil {
		m.logWarn(ctx, "publish sync event failed",
			slog.String("key", ev.Key), slog.Any("error", err))
		return
	}
	m.eventsPublished.Add(1)
	m.metrics.AddEventPublished(ctx, 1)
}

// listen 订阅变更通知频道，直到 context 取消。
// go-redis 的 PubSub 在连接断开后自动重连，这里不做额外恢复。
func (m *Manager) listen(ctx context.Context) {
	defer m.wg.Done()

	sub := m.remote.Client().Subscribe(ctx, m.opts.Channel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			m.handleEvent(ctx, msg.Payload)
		}
	}
}

// handleEvent 处理一条外部变更通知。
// 自己发布的事件被忽略；其余事件立即失效受影响的本地副本，
// 把陈旧窗口从一个清扫周期缩短到一次网络传播。
func (m *Manager) handleEvent(ctx context.Context, payload string) {
	var ev event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		m.logWarn(ctx, "malformed sync event", slog.Any("error", err))
		return
	}
	if ev.Origin == m.id {
		return
	}

	m.eventsReceived.Add(1)
	m.metrics.AddEventReceived(ctx, 1)

	switch ev.Op {
	case opSet:
		m.invalidateLocal(ev.Key, ev.Version)
	case opDelete:
		m.local.Delete(ev.Key)
		m.forgetKey(ev.Key)
	case opClear:
		m.local.Clear()
		m.mu.Lock()
		m.states = make(map[string]*syncState)
		m.mu.Unlock()
	default:
		m.logWarn(ctx, "unknown sync event op", slog.String("op", ev.Op))
	}
}
