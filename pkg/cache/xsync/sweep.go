package xsync

import (
	"context"
	"log/slog"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// sweepRetryDelay 清扫回源重试的基础间隔。
const sweepRetryDelay = 100 * time.Millisecond

// sweepLoop 周期执行清扫，直到 context 取消。
func (m *Manager) sweepLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep 执行一轮对账：以一次 MGET 批量探测所有跟踪 key 的远端版本，
// 逐 key 修复陈旧与冲突。通常由后台循环调用，导出以便调用方在
// 写入高峰后手动触发一轮。
//
// 后端不可达时整轮跳过，所有 SyncState 保持原状，留待下轮重试；
// context 取消时在 key 之间退出，未处理的 key 下轮重访。
func (m *Manager) Sweep(ctx context.Context) {
	keys := m.TrackedKeys()
	if len(keys) == 0 {
		m.finishSweep(ctx)
		return
	}

	versions, err := m.remote.Versions(ctx, keys)
	if err != nil {
		m.degraded.Add(1)
		m.metrics.AddDegraded(ctx, 1)
		m.logWarn(ctx, "sweep skipped, backend unavailable", slog.Any("error", err))
		return
	}

	for _, key := range keys {
		if ctx.Err() != nil {
			return
		}
		m.reconcile(ctx, key, versions)
	}
	m.finishSweep(ctx)
}

// finishSweep 记录一轮清扫完成。
func (m *Manager) finishSweep(ctx context.Context) {
	m.sweeps.Add(1)
	m.metrics.AddSweep(ctx, 1)
}

// reconcile 对账单个 key。
// 裁决规则只有一条：远端永远获胜。
func (m *Manager) reconcile(ctx context.Context, key string, versions map[string]uint64) {
	entryVersion, hasLocal := m.local.Version(key)

	m.mu.Lock()
	st, ok := m.states[key]
	if !ok {
		m.mu.Unlock()
		return
	}

	remoteVersion, exists := versions[key]
	if !exists {
		// 远端已删除：本地副本没有存在的理由，跟踪随之结束。
		m.mu.Unlock()
		m.local.Delete(key)
		m.forgetKey(key)
		return
	}

	// 本地分歧：有人绕过管理器直写了本地缓存（条目版本前移），
	// 或簿记声称本地比远端更新（崩溃/重启竞态）。
	diverged := (hasLocal && st.entryVersion != 0 && entryVersion != st.entryVersion) ||
		st.localVersion > remoteVersion

	switch {
	case diverged:
		st.state = StateConflicted
		localVersion := st.localVersion
		m.mu.Unlock()

		m.conflicts.Add(1)
		m.metrics.AddConflict(ctx, 1)
		m.logWarn(ctx, "version conflict, discarding local copy",
			slog.String("key", key),
			slog.Uint64("local_version", localVersion),
			slog.Uint64("remote_version", remoteVersion))

		m.local.Delete(key)
		m.refresh(ctx, key)

	case remoteVersion > st.remoteVersion:
		st.state = StateSyncing
		m.mu.Unlock()
		m.refresh(ctx, key)

	case hasLocal:
		st.state = StateSynced
		st.lastSyncedAt = time.Now()
		m.mu.Unlock()

	default:
		// 本地副本被淘汰或过期：不主动回填，下一次读取按需回源。
		st.state = StateUnsynced
		m.mu.Unlock()
	}
}

// refresh 从远端回源并回填本地。
// 失败时把状态退回（冲突保持 Conflicted，其余退回 Unsynced），
// 绝不把 key 留在 Syncing。
func (m *Manager) refresh(ctx context.Context, key string) {
	var (
		value   any
		found   bool
		version uint64
	)
	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(m.opts.SweepRetryAttempts),
		retry.Delay(sweepRetryDelay),
		retry.LastErrorOnly(true),
	).Do(func() error {
		v, ok, ver, err := m.remote.GetVersioned(ctx, key)
		if err != nil {
			return err
		}
		value, found, version = v, ok, ver
		return nil
	})

	if err != nil {
		m.degraded.Add(1)
		m.metrics.AddDegraded(ctx, 1)
		m.logWarn(ctx, "refresh failed, will retry next sweep",
			slog.String("key", key), slog.Any("error", err))
		m.demoteSyncing(key)
		return
	}
	if !found {
		m.local.Delete(key)
		m.forgetKey(key)
		return
	}
	m.populateLocal(key, value, version)
}

// demoteSyncing 把停留在 Syncing 的 key 退回 Unsynced。
// Conflicted 保持不变：分歧已确认，继续排除快路径才是安全的。
func (m *Manager) demoteSyncing(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[key]; ok && st.state == StateSyncing {
		st.state = StateUnsynced
	}
}
