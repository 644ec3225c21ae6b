package xsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 清扫对账测试
// =============================================================================

func TestSweep_RemoteAdvanced_RefreshesLocalCopy(t *testing.T) {
	mr := newTestRedis(t)
	writer := newTestManager(t, mr, nil)
	reader := newTestManager(t, mr, nil)
	ctx := context.Background()

	require.NoError(t, writer.Set(ctx, "k", "v1"))
	_, ok, err := reader.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	// 远端前移一个版本
	require.NoError(t, writer.Set(ctx, "k", "v2"))

	reader.Sweep(ctx)

	st, tracked := reader.State("k")
	require.True(t, tracked)
	assert.Equal(t, StateSynced, st.State)
	assert.Equal(t, uint64(2), st.RemoteVersion)

	// 清扫后本地已是新值，读取走快路径
	v, ok, err := reader.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestSweep_RemoteDeleted_DropsLocalCopyAndTracking(t *testing.T) {
	mr := newTestRedis(t)
	writer := newTestManager(t, mr, nil)
	reader := newTestManager(t, mr, nil)
	ctx := context.Background()

	require.NoError(t, writer.Set(ctx, "k", "v"))
	_, _, err := reader.Get(ctx, "k")
	require.NoError(t, err)

	_, err = writer.Delete(ctx, "k")
	require.NoError(t, err)

	reader.Sweep(ctx)

	_, tracked := reader.State("k")
	assert.False(t, tracked)
	assert.False(t, reader.local.Exists("k"))
}

func TestSweep_LocalDivergence_RemoteWins(t *testing.T) {
	mr := newTestRedis(t)
	mgr := newTestManager(t, mr, nil)
	ctx := context.Background()

	require.NoError(t, mgr.Set(ctx, "k", "authoritative"))

	// 绕过管理器直写本地缓存，条目版本前移
	require.NoError(t, mgr.local.Set("k", "rogue"))

	mgr.Sweep(ctx)

	// 分歧被检测，本地副本被丢弃并用远端值重建
	assert.Equal(t, uint64(1), mgr.Stats().Conflicts)

	v, ok, err := mgr.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "authoritative", v)

	st, tracked := mgr.State("k")
	require.True(t, tracked)
	assert.Equal(t, StateSynced, st.State)
}

func TestSweep_BookkeepingAhead_RemoteWins(t *testing.T) {
	mr := newTestRedis(t)
	mgr := newTestManager(t, mr, nil)
	ctx := context.Background()

	require.NoError(t, mgr.Set(ctx, "k", "v"))

	// 模拟崩溃/重启竞态：簿记声称本地比远端更新
	mgr.mu.Lock()
	mgr.states["k"].localVersion = 99
	mgr.mu.Unlock()

	mgr.Sweep(ctx)

	assert.Equal(t, uint64(1), mgr.Stats().Conflicts)

	st, tracked := mgr.State("k")
	require.True(t, tracked)
	assert.Equal(t, StateSynced, st.State)
	assert.Equal(t, st.LocalVersion, st.RemoteVersion)
}

func TestSweep_ConflictedKey_SkipsFastPathUntilResolved(t *testing.T) {
	mr := newTestRedis(t)
	mgr := newTestManager(t, mr, nil)
	ctx := context.Background()

	require.NoError(t, mgr.Set(ctx, "k", "remote-val"))

	// 手动标记冲突，快路径应被排除
	mgr.mu.Lock()
	mgr.states["k"].state = StateConflicted
	mgr.mu.Unlock()

	// 即使本地有副本，读取也强制走远端对账
	v, ok, err := mgr.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "remote-val", v)

	st, _ := mgr.State("k")
	assert.Equal(t, StateSynced, st.State)
}

func TestSweep_BackendDown_LeavesStateUntouched(t *testing.T) {
	mr := newTestRedis(t)
	mgr := newTestManager(t, mr, nil)
	ctx := context.Background()

	require.NoError(t, mgr.Set(ctx, "k", "v"))
	before, _ := mgr.State("k")

	mr.Close()
	mgr.Sweep(ctx)

	// 整轮跳过：状态不动，降级计数增加
	after, tracked := mgr.State("k")
	require.True(t, tracked)
	assert.Equal(t, before.State, after.State)
	assert.Greater(t, mgr.Stats().Degraded, uint64(0))
}

func TestSweep_UntrackedManager_IsNoop(t *testing.T) {
	mr := newTestRedis(t)
	mgr := newTestManager(t, mr, nil)

	mgr.Sweep(context.Background())

	assert.Equal(t, uint64(1), mgr.Stats().Sweeps)
}

func TestSweep_PreRegisteredKey_PicksUpRemoteValue(t *testing.T) {
	mr := newTestRedis(t)
	writer := newTestManager(t, mr, nil)
	reader := newTestManager(t, mr, nil)
	ctx := context.Background()

	require.NoError(t, writer.Set(ctx, "k", "v"))

	// 预注册后，清扫把远端值拉入本地
	require.NoError(t, reader.Track("k"))
	reader.Sweep(ctx)

	st, tracked := reader.State("k")
	require.True(t, tracked)
	assert.Equal(t, StateSynced, st.State)
	assert.True(t, reader.local.Exists("k"))
}
