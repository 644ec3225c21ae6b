package xremote

import "errors"

var (
	// ErrNilClient 表示传入的 Redis 客户端为 nil。
	ErrNilClient = errors.New("xremote: nil client")

	// ErrEmptyKey 表示传入的 key 为空字符串。
	ErrEmptyKey = errors.New("xremote: empty key")

	// ErrInvalidTTL 表示 TTL 配置无效。
	ErrInvalidTTL = errors.New("xremote: TTL must not be negative")

	// ErrClosed 表示缓存已关闭。
	ErrClosed = errors.New("xremote: cache closed")

	// ErrBackendUnavailable 表示在配置的超时内无法到达 Redis 后端。
	// 与未命中严格区分：未命中是 (value, false, nil)，不会返回此错误。
	ErrBackendUnavailable = errors.New("xremote: backend unavailable")

	// ErrSerialization 表示值无法被配置的编解码器编码或解码。
	// 只影响当前 key 的操作，批量操作中其他 key 不受影响。
	ErrSerialization = errors.New("xremote: serialization failed")

	// ErrNotLocked 表示锁已过期、被释放或被其他持有者抢走。
	ErrNotLocked = errors.New("xremote: lock not held")

	// ErrInvalidLockTTL 表示锁的 TTL 配置无效。
	ErrInvalidLockTTL = errors.New("xremote: lock TTL must be positive")
)
