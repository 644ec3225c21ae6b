package xloader

import "errors"

// 加载器错误定义。
var (
	// ErrNilStore 表示未提供缓存存储。
	ErrNilStore = errors.New("xloader: store is nil")

	// ErrEmptyKey 表示缓存键为空字符串。
	ErrEmptyKey = errors.New("xloader: empty key")

	// ErrNilLoadFunc 表示未提供回源函数。
	ErrNilLoadFunc = errors.New("xloader: load func is nil")

	// ErrLoadPanic 表示回源函数发生 panic，已被恢复并转换为错误。
	ErrLoadPanic = errors.New("xloader: load func panicked")

	// ErrInvalidTimeout 表示加载超时配置非法：
	// 负数，或启用分布式锁时禁用了超时。
	ErrInvalidTimeout = errors.New("xloader: invalid load timeout")
)
