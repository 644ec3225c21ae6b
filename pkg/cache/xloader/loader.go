package xloader

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/singleflight"
)

// ==================== 存储抽象 ====================

// Store 是加载器读写缓存的最小接口，xsync.Manager 直接满足该接口。
// 其他存储（如 xlocal.Cache）可通过薄适配层接入。
type Store interface {
	// Get 返回键对应的值。第二个返回值为 false 表示未命中。
	Get(ctx context.Context, key string) (any, bool, error)

	// SetWithTTL 写入带过期时间的值。ttl 为 0 表示使用存储的默认策略。
	SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error
}

// ==================== 加载器 ====================

// Loader 实现 Cache-Aside 模式的带防击穿缓存加载。
type Loader struct {
	store Store
	opts  Options
	group singleflight.Group
}

// New 创建加载器。
func New(store Store, opts ...Option) (*Loader, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return &Loader{store: store, opts: o}, nil
}

// Load 返回键对应的值，未命中时调用 fn 回源并以 ttl 写回缓存。
//
// 进程内同一 key 的并发 Load 只触发一次回源，其余调用共享结果。
// 配置了 WithLock 时，跨进程的并发回源也会被合并：未抢到锁的一方
// 退避后重查缓存，等待持锁方写回。
//
// 缓存读取失败被当作未命中处理，回源路径不依赖缓存可用。
// 调用者的 ctx 取消只影响本次等待，不会中断进行中的回源，
// 其他等待同一结果的调用不受影响。
func (l *Loader) Load(ctx context.Context, key string, fn LoadFunc, ttl time.Duration) (any, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if fn == nil {
		return nil, ErrNilLoadFunc
	}

	if v, ok, err := l.store.Get(ctx, key); err == nil && ok {
		return v, nil
	}

	ch := l.group.DoChan(key, func() (any, error) {
		return l.loadAndStore(ctx, key, fn, ttl)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Forget 清除键的 singleflight 记录，下一次 Load 会重新回源。
// 用于回源结果已知失效但尚有在途请求的场景。
func (l *Loader) Forget(key string) {
	l.group.Forget(key)
}

// ==================== 内部实现 ====================

// loadAndStore 在脱离调用者取消链的 context 中执行回源并写回。
// 脱离取消链保证首个调用者离场后，共享结果的等待者仍能拿到值。
func (l *Loader) loadAndStore(caller context.Context, key string, fn LoadFunc, ttl time.Duration) (any, error) {
	ctx := context.WithoutCancel(caller)
	if l.opts.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.LoadTimeout)
		defer cancel()
	}

	if l.opts.Lock != nil {
		return l.loadWithLock(ctx, key, fn, ttl)
	}
	return l.doLoad(ctx, key, fn, ttl)
}

// loadWithLock 先抢分布式锁再回源。抢不到锁说明别的进程正在回源，
// 退避后重查缓存；锁后端异常时降级为无锁回源，可用性优先。
func (l *Loader) loadWithLock(ctx context.Context, key string, fn LoadFunc, ttl time.Duration) (any, error) {
	for attempt := 0; ; attempt++ {
		unlock, err := l.opts.Lock(ctx, key)
		if err != nil {
			return l.doLoad(ctx, key, fn, ttl)
		}
		if unlock != nil {
			defer func() {
				cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				_ = unlock(cleanup)
			}()
			// 持锁后再查一次，抢锁期间可能已有人写回。
			if v, ok, gerr := l.store.Get(ctx, key); gerr == nil && ok {
				return v, nil
			}
			return l.doLoad(ctx, key, fn, ttl)
		}

		if err := sleepBackoff(ctx, attempt); err != nil {
			return nil, err
		}
		if v, ok, gerr := l.store.Get(ctx, key); gerr == nil && ok {
			return v, nil
		}
	}
}

// doLoad 执行回源并把结果写回缓存。
// 写回失败不影响返回值，下一次未命中会重新回源。
func (l *Loader) doLoad(ctx context.Context, key string, fn LoadFunc, ttl time.Duration) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = nil
			err = fmt.Errorf("%w: %v", ErrLoadPanic, r)
		}
	}()

	v, err = fn(ctx)
	if err != nil {
		return nil, err
	}
	_ = l.store.SetWithTTL(ctx, key, v, ttl)
	return v, nil
}

// sleepBackoff 指数退避加抖动，避免多个等锁方同步醒来。
func sleepBackoff(ctx context.Context, attempt int) error {
	d := baseBackoff << attempt
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Float64() * jitterFraction * float64(d))
	timer := time.NewTimer(d + jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
