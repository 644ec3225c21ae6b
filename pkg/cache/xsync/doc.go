// Package xsync 提供本地热层与 Redis 权威层之间的缓存同步管理器。
//
// # 设计理念
//
// 同步管理器把一个 xlocal 实例和一个 xremote 实例组合成统一的读写面：
// 读走本地快路径，未命中时回落远端并回填；写先落远端，远端确认后才
// 更新本地——本地缓存绝不持有未被权威层接受的值。
//
// 冲突裁决规则只有一条：远端永远获胜。本地只是缓存，不是事实来源。
//
// # 同步协议
//
// 每个被跟踪的 key 维护一份 SyncState，状态机为
// Unsynced → Syncing → Synced，版本分歧无法按"远端获胜"即时解决时
// 进入 Conflicted，并被排除出本地快路径直至清扫修复。
//
// 一致性由两条路径保证：
//
//   - 周期清扫：一次 MGET 批量探测所有跟踪 key 的远端版本计数器，
//     远端更新则刷新本地，本地分歧则丢弃本地并回源（远端获胜）
//   - 变更通知（可选加速器）：通过 Redis pub/sub 在写入时立即失效
//     其他实例的本地副本，缩短陈旧窗口；正确性不依赖它
//
// # 降级行为
//
// 远端不可达时，读路径对曾经见过的 key 返回本地陈旧副本
// （可用性优先于强一致），并累计降级计数供监控读取；
// 清扫遇到后端故障不会投机性地清退任何 key，留待下轮重试。
//
// # 快速开始
//
//	local, _ := xlocal.New(xlocal.WithMaxSize(10_000))
//	remote, _ := xremote.New(client)
//	mgr, err := xsync.New(local, remote, xsync.WithSyncInterval(30*time.Second))
//	if err != nil {
//	    return err
//	}
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
//
//	_ = mgr.Set(ctx, "profile:42", profile)
//	v, ok, err := mgr.Get(ctx, "profile:42")
package xsync
