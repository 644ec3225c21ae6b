package xsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/omeyang/cachekit/pkg/cache/xlocal"
	"github.com/omeyang/cachekit/pkg/cache/xremote"
)

// Manager 协调本地热层与远端权威层的缓存同步。
// 必须通过 [New] 创建。所有方法都是并发安全的。
//
// 读写语义：
//   - Get 先走本地快路径（无网络调用），未命中回落远端并回填
//   - Set 先写远端，确认后才更新本地；远端失败则整个调用失败
//   - 冲突一律远端获胜，本地值被丢弃并回源
type Manager struct {
	local  *xlocal.Cache
	remote *xremote.Cache
	opts   *Options
	logger *slog.Logger

	// id 标识本实例，用于忽略自己发布的变更通知。
	id string

	mu     sync.RWMutex
	states map[string]*syncState

	metrics *Metrics

	conflicts       atomic.Uint64
	sweeps          atomic.Uint64
	degraded        atomic.Uint64
	staleServed     atomic.Uint64
	eventsPublished atomic.Uint64
	eventsReceived  atomic.Uint64

	running atomic.Bool
	stopped atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Stats 是同步管理器的统计信息快照。
type Stats struct {
	// Conflicts 检测并按"远端获胜"解决的版本冲突数。
	Conflicts uint64

	// Sweeps 已完成的清扫轮数。
	Sweeps uint64

	// Degraded 因后端不可达而降级的次数（读路径与清扫合计）。
	Degraded uint64

	// StaleServed 降级期间以本地陈旧副本响应的读取次数。
	StaleServed uint64

	// EventsPublished 已发布的变更通知数。
	EventsPublished uint64

	// EventsReceived 已处理的外部变更通知数。
	EventsReceived uint64

	// Tracked 当前被跟踪的 key 数。
	Tracked int
}

// New 创建同步管理器。
// local 和 remote 的生命周期由调用方管理，Stop 不会关闭它们。
func New(local *xlocal.Cache, remote *xremote.Cache, opts ...Option) (*Manager, error) {
	if local == nil || remote == nil {
		return nil, ErrNilCache
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(options.MeterProvider)
	if err != nil {
		return nil, err
	}

	return &Manager{
		local:   local,
		remote:  remote,
		opts:    options,
		logger:  options.Logger,
		id:      uuid.NewString(),
		states:  make(map[string]*syncState),
		metrics: metrics,
	}, nil
}

// Start 启动周期清扫和变更通知监听。
// 重复启动返回 ErrAlreadyStarted；Stop 之后不可重新启动。
func (m *Manager) Start(ctx context.Context) error {
	if m.stopped.Load() {
		return ErrClosed
	}
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.sweepLoop(runCtx)

	if m.opts.Notifications {
		m.wg.Add(1)
		go m.listen(runCtx)
	}
	return nil
}

// Stop 优雅停止：取消后台循环并等待其退出。幂等。
// 进行中的清扫在 key 间检查取消信号后退出，不会把任何
// SyncState 留在 Syncing 状态。
func (m *Manager) Stop() {
	if m.stopped.Swap(true) {
		return
	}
	if m.running.Load() && m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// Get 读取缓存值。
// 本地命中（且未标记冲突）直接返回，无网络调用；未命中时从远端
// 拉取并回填本地。远端不可达时，对曾经见过的 key 返回本地陈旧
// 副本并累计降级计数；从未见过的 key 返回 ErrBackendUnavailable。
func (m *Manager) Get(ctx context.Context, key string) (any, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	// 快路径：冲突 key 被排除，强制走远端对账。
	if m.fastPathAllowed(key) {
		if value, ok := m.local.Get(key); ok {
			return value, true, nil
		}
	}

	value, ok, version, err := m.remote.GetVersioned(ctx, key)
	if err != nil {
		if errors.Is(err, xremote.ErrBackendUnavailable) {
			return m.degradedGet(ctx, key, err)
		}
		return nil, false, err
	}
	if !ok {
		// 远端权威：远端没有的 key 本地不应保留。
		m.local.Delete(key)
		m.forgetKey(key)
		return nil, false, nil
	}

	m.populateLocal(key, value, version)
	return value, true, nil
}

// degradedGet 处理远端不可达的读取：可用性优先于强一致。
func (m *Manager) degradedGet(ctx context.Context, key string, cause error) (any, bool, error) {
	m.degraded.Add(1)
	m.metrics.AddDegraded(ctx, 1)

	if value, ok := m.local.GetStale(key); ok {
		m.staleServed.Add(1)
		m.metrics.AddStaleServed(ctx, 1)
		m.logWarn(ctx, "serving stale local copy, backend unavailable",
			slog.String("key", key))
		return value, true, nil
	}
	return nil, false, cause
}

// logWarn 记录警告日志，nil logger 时静默。
func (m *Manager) logWarn(ctx context.Context, msg string, attrs ...slog.Attr) {
	if m.logger == nil {
		return
	}
	m.logger.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
}

// Set 写入缓存值，使用远端的默认 TTL。
func (m *Manager) Set(ctx context.Context, key string, value any) error {
	return m.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL 写入缓存值并指定远端过期时间。
// ttl 为 0 时使用远端配置的默认 TTL。
// 先写远端（值与版本计数器同一 pipeline 提交），远端确认后才更新
// 本地副本和同步簿记；远端失败时本调用失败，本地保持原状——
// 本地缓存绝不持有未被权威层接受的值。
func (m *Manager) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl == 0 {
		ttl = m.remote.DefaultTTL()
	}

	version, err := m.remote.SetVersioned(ctx, key, value, ttl)
	if err != nil {
		if errors.Is(err, xremote.ErrBackendUnavailable) {
			m.degraded.Add(1)
			m.metrics.AddDegraded(ctx, 1)
		}
		return err
	}

	m.populateLocal(key, value, version)
	m.publish(ctx, event{Op: opSet, Key: key, Version: version, Origin: m.id})
	return nil
}

// Delete 删除缓存条目：先删远端（值与版本计数器），再删本地并停止跟踪。
// 远端不可达时本调用失败，本地保持原状。
func (m *Manager) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	removed, err := m.remote.DeleteVersioned(ctx, key)
	if err != nil {
		return false, err
	}

	m.local.Delete(key)
	m.forgetKey(key)
	m.publish(ctx, event{Op: opDelete, Key: key, Origin: m.id})
	return removed, nil
}

// Clear 清空两层缓存及全部同步簿记，并通知其他实例。
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.remote.Clear(ctx); err != nil {
		return err
	}

	m.local.Clear()
	m.mu.Lock()
	m.states = make(map[string]*syncState)
	m.mu.Unlock()

	m.publish(ctx, event{Op: opClear, Origin: m.id})
	return nil
}

// Track 开始跟踪一个 key，使其参与周期清扫。
// Get/Set 路径上接触过的 key 会被自动跟踪，显式调用用于
// 预注册尚未访问过的 key。幂等。
func (m *Manager) Track(key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[key]; !ok {
		m.states[key] = &syncState{key: key, state: StateUnsynced}
	}
	return nil
}

// Untrack 停止跟踪一个 key 并丢弃其本地副本。幂等。
func (m *Manager) Untrack(key string) {
	m.local.Delete(key)
	m.forgetKey(key)
}

// State 返回 key 的同步簿记快照。
func (m *Manager) State(key string) (SyncState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[key]
	if !ok {
		return SyncState{}, false
	}
	return st.snapshot(), true
}

// TrackedKeys 返回当前被跟踪的所有 key。
func (m *Manager) TrackedKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.states))
	for key := range m.states {
		keys = append(keys, key)
	}
	return keys
}

// Stats 返回统计信息快照。
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	tracked := len(m.states)
	m.mu.RUnlock()

	return Stats{
		Conflicts:       m.conflicts.Load(),
		Sweeps:          m.sweeps.Load(),
		Degraded:        m.degraded.Load(),
		StaleServed:     m.staleServed.Load(),
		EventsPublished: m.eventsPublished.Load(),
		EventsReceived:  m.eventsReceived.Load(),
		Tracked:         tracked,
	}
}

// fastPathAllowed 判断 key 是否可走本地快路径。
// 冲突状态的 key 被排除，强制下一次读取走远端对账。
func (m *Manager) fastPathAllowed(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[key]
	return !ok || st.state != StateConflicted
}

// populateLocal 以远端确认过的值回填本地副本并更新簿记。
func (m *Manager) populateLocal(key string, value any, version uint64) {
	if m.opts.LocalTTL > 0 {
		_ = m.local.SetWithTTL(key, value, m.opts.LocalTTL)
	} else {
		_ = m.local.Set(key, value)
	}
	entryVersion, _ := m.local.Version(key)

	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[key]
	if !ok {
		st = &syncState{key: key}
		m.states[key] = st
	}
	st.localVersion = version
	st.remoteVersion = version
	st.entryVersion = entryVersion
	st.lastSyncedAt = time.Now()
	st.state = StateSynced
}

// invalidateLocal 使本地副本失效并把簿记退回 Unsynced。
// 用于处理外部变更通知：下一次读取会重新回源。
func (m *Manager) invalidateLocal(key string, remoteVersion uint64) {
	m.local.Delete(key)

	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[key]
	if !ok {
		return
	}
	if remoteVersion > st.remoteVersion {
		st.remoteVersion = remoteVersion
	}
	st.state = StateUnsynced
}

// forgetKey 删除 key 的同步簿记。
func (m *Manager) forgetKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, key)
}
