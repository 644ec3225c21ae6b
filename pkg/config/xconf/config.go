package xconf

import (
	"fmt"
	"time"
)

// Format 定义配置文件格式。
type Format string

// 支持的配置格式。
const (
	// FormatYAML YAML 格式（推荐用于 K8s ConfigMap）。
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

// Config 是缓存组件的完整配置。
// 各节分别对应 xlocal、xremote、xsync 的构造参数。
type Config struct {
	Local  LocalConfig  `koanf:"local"`
	Remote RemoteConfig `koanf:"remote"`
	Sync   SyncConfig   `koanf:"sync"`
}

// LocalConfig 是本地内存缓存的配置。
type LocalConfig struct {
	// MaxSize 缓存最大条目数，超出时按 LRU 淘汰。
	MaxSize int `koanf:"max_size"`

	// DefaultTTL 条目默认过期时间，0 表示永不过期。
	DefaultTTL time.Duration `koanf:"default_ttl"`

	// CleanupInterval 后台清理过期条目的间隔，0 表示只做惰性清理。
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// RemoteConfig 是 Redis 分布式缓存的配置。
type RemoteConfig struct {
	// Addrs Redis 节点地址列表。单个地址为单机模式，多个为集群模式。
	Addrs []string `koanf:"addrs"`

	// Password Redis 认证密码。
	Password string `koanf:"password"`

	// DB Redis 数据库编号，集群模式下忽略。
	DB int `koanf:"db"`

	// KeyPrefix 缓存 key 的命名空间前缀。
	KeyPrefix string `koanf:"key_prefix"`

	// DefaultTTL 条目默认过期时间，0 表示永不过期。
	DefaultTTL time.Duration `koanf:"default_ttl"`

	// OpTimeout 每个网络操作的固定超时。
	OpTimeout time.Duration `koanf:"op_timeout"`

	// LockTTL 分布式锁在 Redis 侧的存活时间。
	LockTTL time.Duration `koanf:"lock_ttl"`
}

// SyncConfig 是缓存同步管理器的配置。
type SyncConfig struct {
	// Interval 周期清扫的间隔。
	Interval time.Duration `koanf:"interval"`

	// LocalTTL 回填本地热层时使用的 TTL，0 表示继承远端剩余时间策略。
	LocalTTL time.Duration `koanf:"local_ttl"`

	// Notifications 是否启用 pub/sub 变更通知。
	Notifications bool `koanf:"notifications"`

	// Channel 变更通知使用的频道名。
	Channel string `koanf:"channel"`
}

// Default 返回与各包构造默认值一致的配置。
func Default() *Config {
	return &Config{
		Local: LocalConfig{
			MaxSize: 1000,
		},
		Remote: RemoteConfig{
			Addrs:     []string{"127.0.0.1:6379"},
			KeyPrefix: "cache:",
			OpTimeout: 3 * time.Second,
			LockTTL:   30 * time.Second,
		},
		Sync: SyncConfig{
			Interval:      60 * time.Second,
			Notifications: true,
			Channel:       "cachekit:sync:events",
		},
	}
}

// Validate 校验配置值的合法性。
// 校验规则与各包 Options 的 validate 保持一致，
// 让配置错误在加载时而非构造组件时暴露。
func (c *Config) Validate() error {
	if c.Local.MaxSize <= 0 {
		return fmt.Errorf("%w: local.max_size must be positive, got %d", ErrInvalidConfig, c.Local.MaxSize)
	}
	if c.Local.DefaultTTL < 0 || c.Local.CleanupInterval < 0 {
		return fmt.Errorf("%w: local ttl values must be non-negative", ErrInvalidConfig)
	}
	if len(c.Remote.Addrs) == 0 {
		return fmt.Errorf("%w: remote.addrs is empty", ErrInvalidConfig)
	}
	if c.Remote.DefaultTTL < 0 {
		return fmt.Errorf("%w: remote.default_ttl must be non-negative", ErrInvalidConfig)
	}
	if c.Remote.OpTimeout <= 0 {
		return fmt.Errorf("%w: remote.op_timeout must be positive", ErrInvalidConfig)
	}
	if c.Remote.LockTTL <= 0 {
		return fmt.Errorf("%w: remote.lock_ttl must be positive", ErrInvalidConfig)
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("%w: sync.interval must be positive", ErrInvalidConfig)
	}
	if c.Sync.LocalTTL < 0 {
		return fmt.Errorf("%w: sync.local_ttl must be non-negative", ErrInvalidConfig)
	}
	if c.Sync.Channel == "" {
		return fmt.Errorf("%w: sync.channel is empty", ErrInvalidConfig)
	}
	return nil
}
