package xlocal

import "errors"

var (
	// ErrInvalidSize 表示缓存容量配置无效。
	ErrInvalidSize = errors.New("xlocal: max size must be greater than 0")

	// ErrInvalidTTL 表示 TTL 配置无效。
	ErrInvalidTTL = errors.New("xlocal: TTL must not be negative")

	// ErrEmptyKey 表示传入的 key 为空字符串。
	// 空 key 几乎总是使用错误，应在入口处 fail-fast。
	ErrEmptyKey = errors.New("xlocal: empty key")

	// ErrClosed 表示缓存已关闭。
	ErrClosed = errors.New("xlocal: cache closed")
)
