// Package xloader 提供 Cache-Aside 模式的加载器，防止缓存击穿。
//
// # 设计理念
//
// 加载器把"查缓存 → 未命中回源 → 写回缓存"收敛为一个显式调用点，
// 缓存未命中的代价在调用处一目了然，没有隐藏的控制流。
//
// 两级防击穿：
//   - singleflight：进程内同一 key 的并发请求只回源一次
//   - 分布式锁（可选）：跨进程的并发请求也只回源一次，
//     典型场景是多个爬虫实例避免重复抓取同一远端资源
//
// # Context 处理
//
// singleflight 合并并发请求时，回源使用脱离首个调用者取消链的
// 独立 context：首个调用者取消不影响其他等待者拿到结果。
// 独立 context 带默认 30 秒超时，防止回源挂起导致 goroutine 泄漏。
//
// # 快速开始
//
//	ld, err := xloader.New(mgr)
//	if err != nil {
//	    return err
//	}
//	note, err := ld.Load(ctx, "note:1024", func(ctx context.Context) (any, error) {
//	    return fetchNoteFromPlatform(ctx, 1024)
//	}, 10*time.Minute)
package xloader
