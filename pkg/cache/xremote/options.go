package xremote

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// Options 定义分布式缓存的配置选项。
type Options struct {
	// KeyPrefix 缓存 key 的命名空间前缀。
	// 所有操作（含 Clear）都被限制在此前缀下，避免与同一 Redis
	// 实例中的无关数据冲突。默认为 "cache:"。
	KeyPrefix string

	// DefaultTTL 条目的默认过期时间，由 Redis 原生过期机制执行。
	// 0 表示永不过期，不允许负值。默认为 0。
	DefaultTTL time.Duration

	// OpTimeout 每个网络操作的固定超时。
	// 超时后操作以 ErrBackendUnavailable 失败，而非无限阻塞。
	// Lock 是唯一由调用方指定超时的操作，不受此配置约束。
	// 默认为 3 秒。
	OpTimeout time.Duration

	// LockTTL 分布式锁在 Redis 侧的存活时间（安全网）。
	// 持有者崩溃后锁最多存活 LockTTL，不会永久死锁。默认为 30 秒。
	LockTTL time.Duration

	// LockRetryInterval 阻塞式 Lock 等待期间的轮询间隔。
	// 默认为 100 毫秒。
	LockRetryInterval time.Duration

	// LockKeyPrefix 锁 key 在命名空间内的子前缀。默认为 "lock:"。
	LockKeyPrefix string

	// Codec 值的编解码器。默认为 JSON。
	Codec Codec

	// BreakerSettings 非 nil 时启用熔断器包裹所有后端调用。
	// 熔断器打开期间操作直接以 ErrBackendUnavailable 失败，
	// 避免后端故障时每个调用都等满 OpTimeout。默认为 nil（不启用）。
	BreakerSettings *gobreaker.Settings
}

// Option 定义配置分布式缓存的函数类型。
type Option func(*Options)

// defaultOptions 返回默认的分布式缓存配置。
func defaultOptions() *Options {
	return &Options{
		KeyPrefix:         "cache:",
		DefaultTTL:        0,
		OpTimeout:         3 * time.Second,
		LockTTL:           30 * time.Second,
		LockRetryInterval: 100 * time.Millisecond,
		LockKeyPrefix:     "lock:",
		Codec:             JSONCodec{},
	}
}

// validate 校验配置。构造期 fail-fast。
func (o *Options) validate() error {
	if o.DefaultTTL < 0 {
		return ErrInvalidTTL
	}
	if o.OpTimeout <= 0 {
		return ErrInvalidTTL
	}
	if o.LockTTL <= 0 || o.LockRetryInterval <= 0 {
		return ErrInvalidLockTTL
	}
	return nil
}

// WithKeyPrefix 设置 key 命名空间前缀。
func WithKeyPrefix(prefix string) Option {
	return func(o *Options) {
		if prefix != "" {
			o.KeyPrefix = prefix
		}
	}
}

// WithDefaultTTL 设置默认过期时间。0 表示永不过期。
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.DefaultTTL = ttl
	}
}

// WithOpTimeout 设置每个网络操作的固定超时。
func WithOpTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout > 0 {
			o.OpTimeout = timeout
		}
	}
}

// WithLockTTL 设置分布式锁的存活时间。
func WithLockTTL(ttl time.Duration) Option {
	return func(o *Options) {
		if ttl > 0 {
			o.LockTTL = ttl
		}
	}
}

// WithLockRetryInterval 设置阻塞式 Lock 的轮询间隔。
func WithLockRetryInterval(interval time.Duration) Option {
	return func(o *Options) {
		if interval > 0 {
			o.LockRetryInterval = interval
		}
	}
}

// WithCodec 设置值的编解码器。传入 nil 时保持默认 JSON。
func WithCodec(codec Codec) Option {
	return func(o *Options) {
		if codec != nil {
			o.Codec = codec
		}
	}
}

// WithBreaker 启用熔断器并指定其配置。
// 传入 nil 等价于使用 DefaultBreakerSettings()。
func WithBreaker(settings *gobreaker.Settings) Option {
	return func(o *Options) {
		if settings == nil {
			settings = DefaultBreakerSettings()
		}
		o.BreakerSettings = settings
	}
}

// DefaultBreakerSettings 返回适合缓存后端的熔断器配置：
// 连续 5 次失败后打开，30 秒后进入半开探测。
func DefaultBreakerSettings() *gobreaker.Settings {
	return &gobreaker.Settings{
		Name:    "xremote",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}
