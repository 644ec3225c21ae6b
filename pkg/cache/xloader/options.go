package xloader

import (
	"context"
	"time"
)

// ==================== 默认值 ====================

const (
	// defaultLoadTimeout 是回源操作的默认超时。
	// 回源 context 与首个调用者的取消链脱离，超时是唯一的退出保障。
	defaultLoadTimeout = 30 * time.Second

	// 锁未获取时重查缓存的退避参数。
	baseBackoff    = 50 * time.Millisecond
	maxBackoff     = 500 * time.Millisecond
	jitterFraction = 0.3
)

// ==================== 回调类型 ====================

// LoadFunc 是缓存未命中时的回源函数。
// 返回的值会以给定 TTL 写回缓存。
type LoadFunc func(ctx context.Context) (any, error)

// LockFunc 尝试获取一把跨进程的互斥锁。
//
// 返回 (unlock, nil) 表示获取成功，调用方负责调用 unlock 释放；
// 返回 (nil, nil) 表示锁被他人持有，属于正常竞争而非错误；
// 返回 (nil, err) 表示锁后端异常。
//
// xremote 的分布式锁可以直接适配：
//
//	lock := func(ctx context.Context, name string) (func(context.Context) error, error) {
//	    l, err := remote.TryLock(ctx, name)
//	    if err != nil || l == nil {
//	        return nil, err
//	    }
//	    return l.Unlock, nil
//	}
type LockFunc func(ctx context.Context, name string) (unlock func(context.Context) error, err error)

// ==================== 配置选项 ====================

// Options 定义加载器的配置。
type Options struct {
	// LoadTimeout 是单次回源的超时时间。
	// 0 表示不设超时（依赖回源函数自身的超时控制）。
	LoadTimeout time.Duration

	// Lock 提供可选的跨进程互斥。
	// 为 nil 时只做进程内 singleflight 合并。
	Lock LockFunc
}

// Option 修改加载器配置。
type Option func(*Options)

// WithLoadTimeout 设置回源超时。
// 0 表示禁用超时，但与 WithLock 组合时不允许禁用。
func WithLoadTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.LoadTimeout = d
	}
}

// WithLock 启用基于分布式锁的跨进程回源去重。
// 启用后 LoadTimeout 必须为正值，等锁的退避循环依赖超时退出。
func WithLock(fn LockFunc) Option {
	return func(o *Options) {
		o.Lock = fn
	}
}

func defaultOptions() Options {
	return Options{
		LoadTimeout: defaultLoadTimeout,
	}
}

func (o *Options) validate() error {
	if o.LoadTimeout < 0 {
		return ErrInvalidTimeout
	}
	// 等锁循环只靠回源 context 的 deadline 退出，
	// 启用分布式锁时必须有正的超时，否则他人持锁不放会永久等待。
	if o.Lock != nil && o.LoadTimeout == 0 {
		return ErrInvalidTimeout
	}
	return nil
}
