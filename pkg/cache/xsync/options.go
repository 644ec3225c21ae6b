package xsync

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Options 定义同步管理器的配置选项。
type Options struct {
	// SyncInterval 周期清扫的间隔。默认为 60 秒。
	SyncInterval time.Duration

	// LocalTTL 回填本地热层时使用的 TTL。
	// 0 表示使用本地缓存自身的默认 TTL。默认为 0。
	LocalTTL time.Duration

	// Notifications 是否启用 Redis pub/sub 变更通知加速器。
	// 通知只缩短陈旧窗口，正确性由清扫保证。默认为 true。
	Notifications bool

	// Channel 变更通知使用的 pub/sub 频道名。
	// 共享同一组 key 的管理器实例必须使用相同频道。
	// 默认为 "cachekit:sync:events"。
	Channel string

	// SweepRetryAttempts 清扫回源单个 key 时的最大尝试次数。
	// 默认为 3。
	SweepRetryAttempts uint

	// Logger 用于记录同步过程中的警告和降级事件。
	// 默认使用 slog.Default()，传入 nil 禁用日志。
	Logger *slog.Logger

	// MeterProvider 非 nil 时将同步指标同时发布为 OTel 计数器。
	// 默认为 nil（仅 Stats() 可读）。
	MeterProvider metric.MeterProvider
}

// Option 定义配置同步管理器的函数类型。
type Option func(*Options)

// defaultOptions 返回默认的同步管理器配置。
func defaultOptions() *Options {
	return &Options{
		SyncInterval:       60 * time.Second,
		Notifications:      true,
		Channel:            "cachekit:sync:events",
		SweepRetryAttempts: 3,
		Logger:             slog.Default(),
	}
}

// validate 校验配置。构造期 fail-fast。
func (o *Options) validate() error {
	if o.SyncInterval <= 0 || o.LocalTTL < 0 {
		return ErrInvalidInterval
	}
	if o.Channel == "" {
		o.Channel = "cachekit:sync:events"
	}
	if o.SweepRetryAttempts == 0 {
		o.SweepRetryAttempts = 1
	}
	return nil
}

// WithSyncInterval 设置周期清扫的间隔。
func WithSyncInterval(interval time.Duration) Option {
	return func(o *Options) {
		o.SyncInterval = interval
	}
}

// WithLocalTTL 设置回填本地热层时使用的 TTL。
func WithLocalTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.LocalTTL = ttl
	}
}

// WithNotifications 设置是否启用 pub/sub 变更通知。
func WithNotifications(enable bool) Option {
	return func(o *Options) {
		o.Notifications = enable
	}
}

// WithChannel 设置变更通知频道名。
func WithChannel(channel string) Option {
	return func(o *Options) {
		if channel != "" {
			o.Channel = channel
		}
	}
}

// WithSweepRetryAttempts 设置清扫回源的最大尝试次数。
func WithSweepRetryAttempts(n uint) Option {
	return func(o *Options) {
		if n > 0 {
			o.SweepRetryAttempts = n
		}
	}
}

// WithLogger 设置自定义 Logger。传入 nil 禁用日志输出。
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithMeterProvider 设置 OTel MeterProvider，启用指标发布。
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Options) {
		o.MeterProvider = mp
	}
}
