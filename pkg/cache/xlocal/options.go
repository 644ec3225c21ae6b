package xlocal

import "time"

// maxSizeLimit 缓存最大条目数上限。
const maxSizeLimit = 1 << 24 // 16,777,216

// Options 定义本地缓存的配置选项。
type Options struct {
	// MaxSize 缓存最大条目数。
	// 必须大于 0 且不超过 16,777,216。默认为 1000。
	MaxSize int

	// DefaultTTL 条目的默认过期时间。
	// 0 表示永不过期，不允许负值。默认为 0。
	DefaultTTL time.Duration

	// CleanupInterval 后台清扫过期条目的间隔。
	// 0 表示不启动后台清扫，仅依赖访问路径上的惰性过期。默认为 0。
	//
	// 惰性过期已保证过期条目不会被读到；后台清扫只用于约束
	// 那些过期后再也不被访问的条目所占用的内存。
	CleanupInterval time.Duration
}

// Option 定义配置本地缓存的函数类型。
type Option func(*Options)

// defaultOptions 返回默认的本地缓存配置。
func defaultOptions() *Options {
	return &Options{
		MaxSize:         1000,
		DefaultTTL:      0,
		CleanupInterval: 0,
	}
}

// validate 校验配置。构造期 fail-fast。
func (o *Options) validate() error {
	if o.MaxSize <= 0 || o.MaxSize > maxSizeLimit {
		return ErrInvalidSize
	}
	if o.DefaultTTL < 0 {
		return ErrInvalidTTL
	}
	if o.CleanupInterval < 0 {
		return ErrInvalidTTL
	}
	return nil
}

// WithMaxSize 设置缓存最大条目数。
func WithMaxSize(n int) Option {
	return func(o *Options) {
		o.MaxSize = n
	}
}

// WithDefaultTTL 设置条目的默认过期时间。
// 0 表示永不过期。
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.DefaultTTL = ttl
	}
}

// WithCleanupInterval 设置后台清扫间隔。
// 0 表示不启动后台清扫。
func WithCleanupInterval(interval time.Duration) Option {
	return func(o *Options) {
		o.CleanupInterval = interval
	}
}
