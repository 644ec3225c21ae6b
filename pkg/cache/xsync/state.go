package xsync

import (
	"strconv"
	"time"
)

// State 是单个跟踪 key 的同步状态。
type State int

const (
	// StateUnsynced 表示 key 被跟踪但本地尚无经确认的副本。
	StateUnsynced State = iota

	// StateSyncing 表示正在与远端对账（拉取或回填中）。
	StateSyncing

	// StateSynced 表示本地副本与远端版本一致。
	StateSynced

	// StateConflicted 表示本地与远端版本发生无法按"远端获胜"
	// 即时解决的分歧；该 key 被排除出本地快路径，直至清扫修复。
	StateConflicted
)

// String 返回状态的可读表示。
func (s State) String() string {
	switch s {
	case StateUnsynced:
		return "unsynced"
	case StateSyncing:
		return "syncing"
	case StateSynced:
		return "synced"
	case StateConflicted:
		return "conflicted"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// SyncState 是单个跟踪 key 的同步簿记快照。
// 同步成功后 LocalVersion == RemoteVersion。
type SyncState struct {
	// Key 被跟踪的缓存键。
	Key string

	// LocalVersion 本地副本对应的远端版本号。
	LocalVersion uint64

	// RemoteVersion 最近一次观察到的远端版本号。
	RemoteVersion uint64

	// LastSyncedAt 最近一次成功同步的时间；零值表示从未同步。
	LastSyncedAt time.Time

	// State 当前同步状态。
	State State
}

// syncState 是管理器内部的可变簿记，受管理器锁保护。
// entryVersion 记录回填时本地缓存条目的写入版本；清扫时若发现
// 条目版本前移，说明有人绕过管理器直写了本地缓存，按冲突处理。
type syncState struct {
	key           string
	localVersion  uint64
	remoteVersion uint64
	entryVersion  uint64
	lastSyncedAt  time.Time
	state         State
}

// snapshot 导出为只读的 SyncState。
func (s *syncState) snapshot() SyncState {
	return SyncState{
		Key:           s.key,
		LocalVersion:  s.localVersion,
		RemoteVersion: s.remoteVersion,
		LastSyncedAt:  s.lastSyncedAt,
		State:         s.state,
	}
}
