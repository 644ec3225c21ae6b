package xsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 变更通知测试
// =============================================================================

// startedPair 构造两个已启动、共享同一 Redis 的管理器。
// 清扫间隔拉长到分钟级，保证测试观察到的失效只来自 pub/sub。
func startedPair(t *testing.T) (*Manager, *Manager) {
	t.Helper()
	mr := newTestRedis(t)

	a := newTestManager(t, mr, nil, WithSyncInterval(time.Minute))
	b := newTestManager(t, mr, nil, WithSyncInterval(time.Minute))

	ctx := context.Background()
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))

	// 订阅建立需要一个往返，先发一条探测事件确认通道就绪
	require.Eventually(t, func() bool {
		require.NoError(t, a.Set(ctx, "probe", "x"))
		return b.Stats().EventsReceived > 0
	}, 2*time.Second, 20*time.Millisecond)

	return a, b
}

func TestNotifications_SetInvalidatesPeerLocalCopy(t *testing.T) {
	a, b := startedPair(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "k", "v1"))
	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	// a 更新后，b 的本地副本通过通知被失效
	require.NoError(t, a.Set(ctx, "k", "v2"))

	assert.Eventually(t, func() bool {
		st, tracked := b.State("k")
		return tracked && st.State == StateUnsynced
	}, 2*time.Second, 10*time.Millisecond)

	// 下一次读取重新回源拿到新值
	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestNotifications_DeletePropagatesToPeer(t *testing.T) {
	a, b := startedPair(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "k", "v"))
	_, _, err := b.Get(ctx, "k")
	require.NoError(t, err)

	_, err = a.Delete(ctx, "k")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, tracked := b.State("k")
		return !tracked && !b.local.Exists("k")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotifications_ClearWipesPeer(t *testing.T) {
	a, b := startedPair(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "k1", 1))
	require.NoError(t, b.Set(ctx, "k2", 2))

	require.NoError(t, a.Clear(ctx))

	assert.Eventually(t, func() bool {
		return len(b.TrackedKeys()) == 0 && b.local.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotifications_OwnEventsAreIgnored(t *testing.T) {
	mr := newTestRedis(t)
	mgr := newTestManager(t, mr, nil, WithSyncInterval(time.Minute))
	ctx := context.Background()

	require.NoError(t, mgr.Start(ctx))

	require.NoError(t, mgr.Set(ctx, "k", "v"))

	// 自己发布的事件不应触发自我失效
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, uint64(0), mgr.Stats().EventsReceived)

	st, tracked := mgr.State("k")
	require.True(t, tracked)
	assert.Equal(t, StateSynced, st.State)
}

func TestNotifications_Disabled_NothingPublished(t *testing.T) {
	mr := newTestRedis(t)
	mgr := newTestManager(t, mr, nil, WithNotifications(false), WithSyncInterval(time.Minute))
	ctx := context.Background()

	require.NoError(t, mgr.Start(ctx))
	require.NoError(t, mgr.Set(ctx, "k", "v"))

	assert.Equal(t, uint64(0), mgr.Stats().EventsPublished)
}
