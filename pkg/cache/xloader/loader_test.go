package xloader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 测试辅助
// =============================================================================

// fakeStore 是带故障注入的内存 Store 实现。
type fakeStore struct {
	mu     sync.Mutex
	data   map[string]any
	getErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]any)}
}

func (s *fakeStore) Get(_ context.Context, key string) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fakeStore) SetWithTTL(_ context.Context, key string, value any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *fakeStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// =============================================================================
// 工厂函数测试
// =============================================================================

func TestNew_WithNilStore_ReturnsError(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilStore)
}

func TestNew_WithNegativeTimeout_ReturnsError(t *testing.T) {
	_, err := New(newFakeStore(), WithLoadTimeout(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidTimeout)
}

func TestNew_WithLockAndDisabledTimeout_ReturnsError(t *testing.T) {
	// 锁被他人永久持有时，等锁循环只能靠超时退出
	lock := func(context.Context, string) (func(context.Context) error, error) {
		return nil, nil
	}
	_, err := New(newFakeStore(), WithLock(lock), WithLoadTimeout(0))
	assert.ErrorIs(t, err, ErrInvalidTimeout)
}

// =============================================================================
// 基础加载测试
// =============================================================================

func TestLoader_Load_CacheHit_SkipsLoadFunc(t *testing.T) {
	store := newFakeStore()
	store.data["k"] = "cached"

	ld, err := New(store)
	require.NoError(t, err)

	called := false
	v, err := ld.Load(context.Background(), "k", func(context.Context) (any, error) {
		called = true
		return "fresh", nil
	}, 0)

	require.NoError(t, err)
	assert.Equal(t, "cached", v)
	assert.False(t, called)
}

func TestLoader_Load_CacheMiss_LoadsAndStores(t *testing.T) {
	store := newFakeStore()
	ld, err := New(store)
	require.NoError(t, err)

	v, err := ld.Load(context.Background(), "k", func(context.Context) (any, error) {
		return "fresh", nil
	}, time.Minute)

	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.True(t, store.has("k"))
}

func TestLoader_Load_EmptyKey_ReturnsError(t *testing.T) {
	ld, err := New(newFakeStore())
	require.NoError(t, err)

	_, err = ld.Load(context.Background(), "", func(context.Context) (any, error) {
		return nil, nil
	}, 0)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestLoader_Load_NilLoadFunc_ReturnsError(t *testing.T) {
	ld, err := New(newFakeStore())
	require.NoError(t, err)

	_, err = ld.Load(context.Background(), "k", nil, 0)
	assert.ErrorIs(t, err, ErrNilLoadFunc)
}

func TestLoader_Load_LoadFuncError_NothingStored(t *testing.T) {
	store := newFakeStore()
	ld, err := New(store)
	require.NoError(t, err)

	wantErr := errors.New("upstream down")
	_, err = ld.Load(context.Background(), "k", func(context.Context) (any, error) {
		return nil, wantErr
	}, 0)

	assert.ErrorIs(t, err, wantErr)
	assert.False(t, store.has("k"))
}

func TestLoader_Load_PanicInLoadFunc_RecoveredAsError(t *testing.T) {
	ld, err := New(newFakeStore())
	require.NoError(t, err)

	_, err = ld.Load(context.Background(), "k", func(context.Context) (any, error) {
		panic("boom")
	}, 0)

	assert.ErrorIs(t, err, ErrLoadPanic)
	assert.Contains(t, err.Error(), "boom")
}

func TestLoader_Load_CacheReadFailure_FallsBackToSource(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("backend unavailable")

	ld, err := New(store)
	require.NoError(t, err)

	v, err := ld.Load(context.Background(), "k", func(context.Context) (any, error) {
		return "fresh", nil
	}, 0)

	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

// =============================================================================
// 并发合并测试
// =============================================================================

func TestLoader_Load_ConcurrentCalls_SingleLoad(t *testing.T) {
	store := newFakeStore()
	ld, err := New(store)
	require.NoError(t, err)

	var calls atomic.Int64
	release := make(chan struct{})

	fn := func(context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const goroutines = 8
	var wg sync.WaitGroup
	results := make([]any, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			v, lerr := ld.Load(context.Background(), "k", fn, 0)
			assert.NoError(t, lerr)
			results[n] = v
		}(i)
	}

	// 等所有调用进入 singleflight 后放行
	assert.Eventually(t, func() bool {
		return calls.Load() == 1
	}, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, "shared", v)
	}
}

func TestLoader_Load_CallerCancel_LoadStillCompletes(t *testing.T) {
	store := newFakeStore()
	ld, err := New(store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	go func() {
		<-started
		cancel()
	}()

	_, err = ld.Load(ctx, "k", func(context.Context) (any, error) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		return "late", nil
	}, 0)
	assert.ErrorIs(t, err, context.Canceled)

	// 回源脱离调用者取消链，结果仍会写回缓存
	assert.Eventually(t, func() bool {
		return store.has("k")
	}, time.Second, 10*time.Millisecond)
}

func TestLoader_Forget_AllowsReload(t *testing.T) {
	store := newFakeStore()
	ld, err := New(store)
	require.NoError(t, err)

	var calls atomic.Int64
	fn := func(context.Context) (any, error) {
		calls.Add(1)
		return calls.Load(), nil
	}

	_, err = ld.Load(context.Background(), "k", fn, 0)
	require.NoError(t, err)

	// 缓存中有值时 Forget 不影响命中
	ld.Forget("k")
	v, err := ld.Load(context.Background(), "k", fn, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.Equal(t, int64(1), calls.Load())
}

// =============================================================================
// 分布式锁测试
// =============================================================================

func TestLoader_WithLock_AcquiredPath_LoadsOnce(t *testing.T) {
	store := newFakeStore()

	var acquired, released atomic.Int64
	lock := func(context.Context, string) (func(context.Context) error, error) {
		acquired.Add(1)
		return func(context.Context) error {
			released.Add(1)
			return nil
		}, nil
	}

	ld, err := New(store, WithLock(lock))
	require.NoError(t, err)

	v, err := ld.Load(context.Background(), "k", func(context.Context) (any, error) {
		return "fresh", nil
	}, 0)

	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.Equal(t, int64(1), acquired.Load())
	assert.Equal(t, int64(1), released.Load())
}

func TestLoader_WithLock_HeldElsewhere_WaitsForCacheFill(t *testing.T) {
	store := newFakeStore()

	// 第一次抢锁失败；退避期间"持锁方"写入缓存
	var attempts atomic.Int64
	lock := func(context.Context, string) (func(context.Context) error, error) {
		if attempts.Add(1) == 1 {
			go func() {
				time.Sleep(10 * time.Millisecond)
				_ = store.SetWithTTL(context.Background(), "k", "from-peer", 0)
			}()
			return nil, nil
		}
		return func(context.Context) error { return nil }, nil
	}

	ld, err := New(store, WithLock(lock))
	require.NoError(t, err)

	called := false
	v, err := ld.Load(context.Background(), "k", func(context.Context) (any, error) {
		called = true
		return "own-load", nil
	}, 0)

	require.NoError(t, err)
	assert.Equal(t, "from-peer", v)
	assert.False(t, called)
}

func TestLoader_WithLock_LockBackendError_DegradesToDirectLoad(t *testing.T) {
	store := newFakeStore()

	lock := func(context.Context, string) (func(context.Context) error, error) {
		return nil, errors.New("lock backend down")
	}

	ld, err := New(store, WithLock(lock))
	require.NoError(t, err)

	v, err := ld.Load(context.Background(), "k", func(context.Context) (any, error) {
		return "fresh", nil
	}, 0)

	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestLoader_WithLock_DoubleCheckAfterAcquire(t *testing.T) {
	store := newFakeStore()

	// 抢到锁的瞬间缓存已被填充（抢锁前的竞争窗口）
	lock := func(ctx context.Context, key string) (func(context.Context) error, error) {
		_ = store.SetWithTTL(ctx, key, "filled-during-race", 0)
		return func(context.Context) error { return nil }, nil
	}

	ld, err := New(store, WithLock(lock))
	require.NoError(t, err)

	called := false
	v, err := ld.Load(context.Background(), "k", func(context.Context) (any, error) {
		called = true
		return "own-load", nil
	}, 0)

	require.NoError(t, err)
	assert.Equal(t, "filled-during-race", v)
	assert.False(t, called)
}
