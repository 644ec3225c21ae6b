package xremote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
)

// unlockCleanupTimeout 调用方 context 已取消时，Unlock 使用的兜底超时。
// 保证临界区的每条退出路径（包括 panic 后的 defer）都尽力释放锁，
// 而不是留给 TTL 安全网。
const unlockCleanupTimeout = 5 * time.Second

// Lock 表示一次成功的分布式锁获取。
// 每次获取生成唯一标识，只有本句柄能释放或续期这把锁，
// 不同获取之间不会互相干扰。
type Lock struct {
	mutex *redsync.Mutex
	name  string
}

// TryLock 非阻塞式获取互斥锁。
// 锁被其他持有者占用时返回 (nil, nil)——这是正常结果，不是错误。
// 锁在 Redis 侧携带 LockTTL 安全网，持有者崩溃后自动过期。
func (c *Cache) TryLock(ctx context.Context, name string) (*Lock, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if name == "" {
		return nil, ErrEmptyKey
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	mutex := c.newMutex(name, 1)
	if err := mutex.TryLockContext(opCtx); err != nil {
		return nil, c.classifyLockErr(err)
	}
	return &Lock{mutex: mutex, name: name}, nil
}

// Lock 阻塞式获取互斥锁，最多等待 timeout。
// timeout 为 0 时退化为单次尝试。超时未获得锁返回 (nil, nil)——
// 这是"稍后再试"的正常结果，不是错误；只有后端不可达才返回错误。
//
// 调用方持有锁的时间不应超过 LockTTL；长任务应周期性调用
// [Lock.Extend] 续期。
func (c *Cache) Lock(ctx context.Context, name string, timeout time.Duration) (*Lock, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if name == "" {
		return nil, ErrEmptyKey
	}
	if timeout <= 0 {
		return c.TryLock(ctx, name)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tries := int(timeout/c.opts.LockRetryInterval) + 1
	mutex := c.newMutex(name, tries)
	if err := mutex.LockContext(waitCtx); err != nil {
		// redsync 不透传 context 错误，等待超时需要单独判定。
		if waitCtx.Err() != nil && ctx.Err() == nil {
			return nil, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, c.classifyLockErr(err)
	}
	return &Lock{mutex: mutex, name: name}, nil
}

// newMutex 创建锁对应的 redsync.Mutex。
// 锁 key 位于缓存命名空间内的锁子前缀下。
func (c *Cache) newMutex(name string, tries int) *redsync.Mutex {
	return c.rs.NewMutex(
		c.makeKey(c.opts.LockKeyPrefix+name),
		redsync.WithExpiry(c.opts.LockTTL),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(c.opts.LockRetryInterval),
	)
}

// classifyLockErr 归一化锁获取错误：
// 锁被占用/重试耗尽返回 nil（正常的"稍后再试"结果），其余视为后端不可达。
func (c *Cache) classifyLockErr(err error) error {
	var taken *redsync.ErrTaken
	if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
		return nil
	}
	c.backendFailures.Add(1)
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}

// Name 返回锁的名称（不含命名空间前缀）。
func (l *Lock) Name() string {
	return l.name
}

// Unlock 释放锁。
// 返回 ErrNotLocked 表示锁已过期或被其他持有者抢走。
// ctx 已取消时自动换用独立的清理 context，确保释放尽力完成。
func (l *Lock) Unlock(ctx context.Context) error {
	if ctx == nil || ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), unlockCleanupTimeout)
		defer cancel()
	}

	ok, err := l.mutex.UnlockContext(ctx)
	if err != nil {
		if errors.Is(err, redsync.ErrLockAlreadyExpired) {
			return ErrNotLocked
		}
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	if !ok {
		return ErrNotLocked
	}
	return nil
}

// Extend 将锁续期一个 LockTTL。
// 返回 ErrNotLocked 表示锁已失去（过期或被抢走），调用方应中止临界区。
func (l *Lock) Extend(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ok, err := l.mutex.ExtendContext(ctx)
	if err != nil {
		if errors.Is(err, redsync.ErrLockAlreadyExpired) {
			return ErrNotLocked
		}
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	if !ok {
		return ErrNotLocked
	}
	return nil
}
