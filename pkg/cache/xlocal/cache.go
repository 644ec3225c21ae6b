package xlocal

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// entry 是缓存中的一个条目。
// expiresAt 为零值表示永不过期。
type entry struct {
	value     any
	expiresAt time.Time
	version   uint64
}

// expired 判断条目在 now 时刻是否已过期。
func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache 是带 TTL 的有界 LRU 缓存。
// 必须通过 [New] 创建，零值不可用。所有方法都是并发安全的。
//
// 淘汰顺序依赖底层 simplelru 的访问链表：Get 命中提升为最近使用，
// 容量溢出时淘汰链表尾部（最久未访问）的条目，插入顺序天然打破并列。
type Cache struct {
	mu   sync.Mutex
	lru  *simplelru.LRU[string, *entry]
	opts *Options

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64

	closed atomic.Bool
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Stats 是本地缓存的统计信息快照。
type Stats struct {
	// Hits 缓存命中次数。
	Hits uint64

	// Misses 缓存未命中次数（含因过期而未命中）。
	Misses uint64

	// Evictions 因容量溢出而淘汰的条目数。
	Evictions uint64

	// Expirations 因过期而被清除的条目数。
	Expirations uint64

	// Size 当前物理条目数。已过期的条目为 GetStale 保留，
	// 在后台清扫或容量淘汰移除前也计入其中，因此 Size 可能
	// 大于实际可命中的条目数。
	Size int
}

// New 创建本地缓存。
// 配置无效时返回 ErrInvalidSize / ErrInvalidTTL。
func New(opts ...Option) (*Cache, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}

	// 容量控制由 Cache 自己完成（见 evictFor），这里不限制 simplelru 的大小，
	// 避免 Add 的隐式淘汰把过期清除误计入 LRU 淘汰。
	lru, err := simplelru.NewLRU[string, *entry](maxSizeLimit, nil)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		lru:    lru,
		opts:   options,
		stopCh: make(chan struct{}),
	}

	if options.CleanupInterval > 0 {
		c.wg.Add(1)
		go c.janitor()
	}

	return c, nil
}

// Get 获取缓存值，命中时提升为最近使用。
// key 不存在、已过期或缓存已关闭时返回 (nil, false)。
// 过期条目不在读取路径上清除，留给 GetStale 做降级读取；
// 物理清除由后台清理和容量淘汰负责。
func (c *Cache) Get(key string) (any, bool) {
	if c.closed.Load() {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if e.expired(time.Now()) {
		c.misses.Add(1)
		return nil, false
	}

	c.lru.Get(key) // 提升为最近使用
	c.hits.Add(1)
	return e.value, true
}

// GetStale 获取缓存值，即使条目已过期也返回。
// 不提升 LRU 顺序、不清除过期条目、不计入命中统计。
// 用于后端不可用时的降级读取：陈旧数据优于不可用。
func (c *Cache) GetStale(key string) (any, bool) {
	if c.closed.Load() {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set 写入缓存值，使用配置的默认 TTL。
func (c *Cache) Set(key string, value any) error {
	return c.SetWithTTL(key, value, c.opts.DefaultTTL)
}

// SetWithTTL 写入缓存值并指定过期时间。
// ttl 为 0 表示永不过期，负值返回 ErrInvalidTTL。
// key 已存在时原地更新并递增版本号；key 为新 key 且容量已满时，
// 先淘汰最久未访问的一个条目再插入。
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if key == "" {
		return ErrEmptyKey
	}
	if ttl < 0 {
		return ErrInvalidTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, ttl, time.Now())
	return nil
}

// setLocked 在持锁状态下写入一个条目。
func (c *Cache) setLocked(key string, value any, ttl time.Duration, now time.Time) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	if e, ok := c.lru.Peek(key); ok {
		e.value = value
		e.expiresAt = expiresAt
		e.version++
		c.lru.Get(key) // 更新视为一次访问
		return
	}

	c.evictFor(1)
	c.lru.Add(key, &entry{
		value:     value,
		expiresAt: expiresAt,
		version:   1,
	})
}

// evictFor 为 n 个新条目腾出空间，按 LRU 顺序淘汰。
// 腾空间前先尝试清除已过期的最旧条目，过期清除不计入淘汰。
func (c *Cache) evictFor(n int) {
	for c.lru.Len()+n > c.opts.MaxSize {
		key, e, ok := c.lru.GetOldest()
		if !ok {
			return
		}
		c.lru.Remove(key)
		if e.expired(time.Now()) {
			c.expirations.Add(1)
		} else {
			c.evictions.Add(1)
		}
	}
}

// Delete 删除缓存条目。幂等：返回 true 表示条目存在并被删除。
func (c *Cache) Delete(key string) bool {
	if c.closed.Load() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// Exists 检查 key 是否存在且未过期，不改变 LRU 顺序。
func (c *Cache) Exists(key string) bool {
	if c.closed.Load() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		return false
	}
	return !e.expired(time.Now())
}

// Clear 清空所有缓存条目。
// 对并发读写是原子的：清空过程持有实例锁。
func (c *Cache) Clear() {
	if c.closed.Load() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// MultiGet 批量读取，在单个临界区内完成。
// 未命中或已过期的 key 不出现在结果中。
func (c *Cache) MultiGet(keys []string) map[string]any {
	results := make(map[string]any, len(keys))
	if c.closed.Load() {
		return results
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, key := range keys {
		e, ok := c.lru.Peek(key)
		if !ok {
			c.misses.Add(1)
			continue
		}
		if e.expired(now) {
			c.misses.Add(1)
			continue
		}
		c.lru.Get(key)
		c.hits.Add(1)
		results[key] = e.value
	}
	return results
}

// MultiSet 批量写入，使用配置的默认 TTL。
func (c *Cache) MultiSet(mapping map[string]any) error {
	return c.MultiSetWithTTL(mapping, c.opts.DefaultTTL)
}

// MultiSetWithTTL 批量写入并指定过期时间，在单个临界区内完成。
func (c *Cache) MultiSetWithTTL(mapping map[string]any, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if ttl < 0 {
		return ErrInvalidTTL
	}
	for key := range mapping {
		if key == "" {
			return ErrEmptyKey
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, value := range mapping {
		c.setLocked(key, value, ttl, now)
	}
	return nil
}

// TTL 返回条目的剩余过期时间。
// 第二个返回值为 false 表示 key 不存在或已过期；
// 永不过期的条目返回 (0, true)。
func (c *Cache) TTL(key string) (time.Duration, bool) {
	if c.closed.Load() {
		return 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		return 0, false
	}
	now := time.Now()
	if e.expired(now) {
		return 0, false
	}
	if e.expiresAt.IsZero() {
		return 0, true
	}
	return e.expiresAt.Sub(now), true
}

// Version 返回条目的当前版本号，不改变 LRU 顺序。
// 版本号从 1 开始，每次写入递增，供同步层检测陈旧。
func (c *Cache) Version(key string) (uint64, bool) {
	if c.closed.Load() {
		return 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		return 0, false
	}
	return e.version, true
}

// Len 返回当前物理条目数，包含为 GetStale 保留的已过期条目。
// 未配置后台清扫时，过期条目只在容量淘汰时才会被移除。
func (c *Cache) Len() int {
	if c.closed.Load() {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Keys 返回所有键，按从最旧到最新的访问顺序排列。
func (c *Cache) Keys() []string {
	if c.closed.Load() {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// Stats 返回统计信息快照。
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Size:        c.Len(),
	}
}

// Close 关闭缓存并停止后台清扫 goroutine。幂等。
// 关闭后读操作返回零值/false，写操作返回 ErrClosed。
func (c *Cache) Close() {
	if c.closed.Swap(true) {
		return
	}
	close(c.stopCh)
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// janitor 定期清除已过期的条目。
// 惰性过期已保证正确性，清扫只为回收不再被访问的条目的内存。
func (c *Cache) janitor() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired 清除所有已过期的条目。
func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, key := range c.lru.Keys() {
		if e, ok := c.lru.Peek(key); ok && e.expired(now) {
			c.lru.Remove(key)
			c.expirations.Add(1)
		}
	}
}
