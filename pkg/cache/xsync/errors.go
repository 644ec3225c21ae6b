package xsync

import "errors"

var (
	// ErrNilCache 表示传入的本地或远端缓存为 nil。
	ErrNilCache = errors.New("xsync: nil cache")

	// ErrEmptyKey 表示传入的 key 为空字符串。
	ErrEmptyKey = errors.New("xsync: empty key")

	// ErrInvalidInterval 表示同步间隔或 TTL 配置无效。
	ErrInvalidInterval = errors.New("xsync: interval must be positive")

	// ErrAlreadyStarted 表示同步管理器已在运行。
	ErrAlreadyStarted = errors.New("xsync: manager already started")

	// ErrClosed 表示同步管理器已停止。
	ErrClosed = errors.New("xsync: manager stopped")
)
