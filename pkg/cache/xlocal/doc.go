// Package xlocal 提供进程内的有界 LRU 缓存，支持按条目 TTL 过期。
//
// # 设计理念
//
// xlocal 是缓存体系的"热层"：容量有界、严格 LRU 淘汰、惰性过期。
// 所有操作都在一把实例级互斥锁下完成，锁内只有内存 map 操作，没有 I/O。
//
// # 核心行为
//
//   - Get 命中时将条目提升为最近使用；过期条目视为不存在，
//     但不物理清除，GetStale 仍可取出用于降级读取
//   - Set 在容量已满且 key 为新 key 时，先淘汰最久未访问的条目再插入
//   - 每个条目携带单调递增的版本号，每次写入递增，供同步层检测陈旧
//   - 可选的后台清扫 goroutine 定期清除从未被再次访问的过期条目
//
// # 值的所有权
//
// xlocal 按引用持有值，不做序列化。调用方必须将返回值视为只读副本，
// 在缓存外部修改返回值属于未定义行为。
//
// # 快速开始
//
//	cache, err := xlocal.New(xlocal.WithMaxSize(1000))
//	if err != nil {
//	    return err
//	}
//	defer cache.Close()
//
//	_ = cache.SetWithTTL("k", "v", 5*time.Minute)
//	if v, ok := cache.Get("k"); ok {
//	    use(v)
//	}
package xlocal
