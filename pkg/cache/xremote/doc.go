// Package xremote 提供基于 Redis 的分布式缓存，是缓存体系的"权威层"。
//
// # 设计理念
//
// xremote 在共享的 Redis key 空间上提供与本地缓存一致的逻辑操作面，
// 并补充只有共享后端才有意义的原语：原子计数器和互斥锁。
// 所有 key 都在配置的前缀命名空间内，Clear 只清除本命名空间的 key。
//
// # 错误语义
//
// 调用方必须能区分"key 不存在"和"后端不可达"：
//   - 未命中是正常返回值 (value, false, nil)，不是错误
//   - 网络/后端故障返回 ErrBackendUnavailable（可 errors.Is 判断）
//   - 编解码失败返回 ErrSerialization，只影响当前 key
//   - 锁获取超时是正常结果，返回 (nil, nil) 而非错误
//
// 每个操作使用配置的固定超时（WithOpTimeout），不会无限阻塞。
// 可选的熔断器（WithBreaker）在后端持续故障时快速失败，
// 避免每个调用都等满超时。
//
// # 分布式锁
//
// Lock/TryLock 基于 redsync 实现，锁在 Redis 侧携带 TTL 安全网，
// 持有者崩溃后锁会自动过期，不会无限期阻塞其他竞争者。
// 返回的 Lock 句柄保证 Unlock 在 context 已取消时仍尽力完成释放。
//
// # 快速开始
//
//	client := redis.NewClient(&redis.Options{Addr: addr})
//	cache, err := xremote.New(client, xremote.WithKeyPrefix("crawler:"))
//	if err != nil {
//	    return err
//	}
//	defer cache.Close()
//
//	if err := cache.Set(ctx, "note:1024", note); err != nil {
//	    return err
//	}
package xremote
