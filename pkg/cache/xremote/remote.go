package xremote

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

// scanBatchSize Clear 时单次 SCAN/DEL 的 key 数量。
const scanBatchSize = 100

// Cache 是 Redis 后端的分布式缓存。
// 必须通过 [New] 创建。所有方法都是并发安全的，
// 网络操作是仅有的阻塞点，受 OpTimeout 约束。
type Cache struct {
	client  redis.UniversalClient
	opts    *Options
	rs      *redsync.Redsync
	breaker *gobreaker.CircuitBreaker[struct{}]
	closed  atomic.Bool

	hits            atomic.Uint64
	misses          atomic.Uint64
	backendFailures atomic.Uint64
	codecFailures   atomic.Uint64
}

// Stats 是分布式缓存的统计信息快照。
type Stats struct {
	// Hits 缓存命中次数。
	Hits uint64

	// Misses 缓存未命中次数。
	Misses uint64

	// BackendFailures 后端不可达的次数。
	BackendFailures uint64

	// CodecFailures 编解码失败的次数。
	CodecFailures uint64
}

// New 创建分布式缓存实例。
// client 必须是已初始化的 redis.UniversalClient，生命周期随本实例：
// Close 会关闭传入的客户端。
func New(client redis.UniversalClient, opts ...Option) (*Cache, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}

	c := &Cache{
		client: client,
		opts:   options,
		rs:     redsync.New(goredis.NewPool(client)),
	}

	if options.BreakerSettings != nil {
		settings := *options.BreakerSettings
		if settings.IsSuccessful == nil {
			// 未命中不是后端故障，不应计入熔断统计。
			settings.IsSuccessful = func(err error) bool {
				return err == nil || errors.Is(err, redis.Nil)
			}
		}
		c.breaker = gobreaker.NewCircuitBreaker[struct{}](settings)
	}

	return c, nil
}

// makeKey 生成命名空间内的完整 key。
func (c *Cache) makeKey(key string) string {
	return c.opts.KeyPrefix + key
}

// opCtx 为单个网络操作派生带固定超时的 context。
func (c *Cache) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.opts.OpTimeout)
}

// do 执行一次后端调用，必要时经过熔断器。
func (c *Cache) do(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// classify 归一化底层错误：redis.Nil 原样返回（由调用方判定未命中），
// 其余一律视为后端不可达，保留原始错误链。
func (c *Cache) classify(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	c.backendFailures.Add(1)
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}

// Get 获取缓存值。
// 未命中返回 (nil, false, nil)；后端不可达返回 ErrBackendUnavailable；
// 解码失败返回 ErrSerialization。
func (c *Cache) Get(ctx context.Context, key string) (any, bool, error) {
	if c.closed.Load() {
		return nil, false, ErrClosed
	}
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	var data []byte
	err := c.do(func() error {
		b, err := c.client.Get(opCtx, c.makeKey(key)).Bytes()
		data = b
		return err
	})
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, c.classify(err)
	}

	value, err := c.opts.Codec.Unmarshal(data)
	if err != nil {
		c.codecFailures.Add(1)
		return nil, false, fmt.Errorf("%w: key %q: %w", ErrSerialization, key, err)
	}
	c.hits.Add(1)
	return value, true, nil
}

// Set 写入缓存值，使用配置的默认 TTL。
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	return c.SetWithTTL(ctx, key, value, c.opts.DefaultTTL)
}

// SetWithTTL 写入缓存值并指定过期时间。
// ttl 为 0 表示永不过期，过期由 Redis 原生机制执行。
// 编码失败返回 ErrSerialization，不会产生任何后端写入。
func (c *Cache) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if key == "" {
		return ErrEmptyKey
	}
	if ttl < 0 {
		return ErrInvalidTTL
	}

	data, err := c.opts.Codec.Marshal(value)
	if err != nil {
		c.codecFailures.Add(1)
		return fmt.Errorf("%w: key %q: %w", ErrSerialization, key, err)
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	err = c.do(func() error {
		return c.client.Set(opCtx, c.makeKey(key), data, ttl).Err()
	})
	return c.classify(err)
}

// Delete 删除缓存条目。幂等：返回 true 表示条目存在并被删除。
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	if key == "" {
		return false, ErrEmptyKey
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	var removed int64
	err := c.do(func() error {
		n, err := c.client.Del(opCtx, c.makeKey(key)).Result()
		removed = n
		return err
	})
	if err != nil {
		return false, c.classify(err)
	}
	return removed > 0, nil
}

// Exists 检查 key 是否存在，过期由 Redis 原生机制保证。
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	if key == "" {
		return false, ErrEmptyKey
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	var n int64
	err := c.do(func() error {
		count, err := c.client.Exists(opCtx, c.makeKey(key)).Result()
		n = count
		return err
	})
	if err != nil {
		return false, c.classify(err)
	}
	return n > 0, nil
}

// Clear 清除本实例命名空间下的所有 key。
// 通过 SCAN 游标分批删除，绝不触碰前缀之外的数据。
// 整体不是原子的：清除过程中并发写入的 key 可能存活。
func (c *Cache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pattern := c.opts.KeyPrefix + "*"
	var cursor uint64
	for {
		opCtx, cancel := c.opCtx(ctx)
		var keys []string
		err := c.do(func() error {
			k, next, err := c.client.Scan(opCtx, cursor, pattern, scanBatchSize).Result()
			keys = k
			cursor = next
			return err
		})
		if err == nil && len(keys) > 0 {
			err = c.do(func() error {
				return c.client.Del(opCtx, keys...).Err()
			})
		}
		cancel()
		if err != nil {
			return c.classify(err)
		}
		if cursor == 0 {
			return nil
		}
	}
}

// MultiGet 批量读取，使用单次 MGET 往返。
// 未命中的 key 不出现在结果中。个别 key 解码失败时其余 key 不受影响：
// 失败的 key 被排除在结果外，错误以 ErrSerialization 汇总返回，
// 此时返回的映射仍然有效。
func (c *Cache) MultiGet(ctx context.Context, keys []string) (map[string]any, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	results := make(map[string]any, len(keys))
	if len(keys) == 0 {
		return results, nil
	}

	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		if key == "" {
			return nil, ErrEmptyKey
		}
		fullKeys[i] = c.makeKey(key)
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	var values []any
	err := c.do(func() error {
		v, err := c.client.MGet(opCtx, fullKeys...).Result()
		values = v
		return err
	})
	if err != nil {
		return nil, c.classify(err)
	}

	var codecErr error
	for i, raw := range values {
		if raw == nil {
			c.misses.Add(1)
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		value, err := c.opts.Codec.Unmarshal([]byte(s))
		if err != nil {
			c.codecFailures.Add(1)
			codecErr = errors.Join(codecErr,
				fmt.Errorf("%w: key %q: %w", ErrSerialization, keys[i], err))
			continue
		}
		c.hits.Add(1)
		results[keys[i]] = value
	}
	return results, codecErr
}

// MultiSet 批量写入，使用配置的默认 TTL。
func (c *Cache) MultiSet(ctx context.Context, mapping map[string]any) (map[string]error, error) {
	return c.MultiSetWithTTL(ctx, mapping, c.opts.DefaultTTL)
}

// MultiSetWithTTL 批量写入并指定过期时间，使用 pipeline 减少往返。
// 返回逐 key 的结果：编码失败的 key 带 ErrSerialization，
// 不影响其余 key 的写入；成功的 key 对应 nil。
// 第二个返回值仅在后端整体不可达时非 nil。
func (c *Cache) MultiSetWithTTL(ctx context.Context, mapping map[string]any, ttl time.Duration) (map[string]error, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if ttl < 0 {
		return nil, ErrInvalidTTL
	}

	outcomes := make(map[string]error, len(mapping))
	encoded := make(map[string][]byte, len(mapping))
	for key, value := range mapping {
		if key == "" {
			return nil, ErrEmptyKey
		}
		data, err := c.opts.Codec.Marshal(value)
		if err != nil {
			c.codecFailures.Add(1)
			outcomes[key] = fmt.Errorf("%w: key %q: %w", ErrSerialization, key, err)
			continue
		}
		encoded[key] = data
	}

	if len(encoded) == 0 {
		return outcomes, nil
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	err := c.do(func() error {
		pipe := c.client.Pipeline()
		for key, data := range encoded {
			pipe.Set(opCtx, c.makeKey(key), data, ttl)
		}
		_, err := pipe.Exec(opCtx)
		return err
	})
	if err != nil {
		return outcomes, c.classify(err)
	}
	for key := range encoded {
		outcomes[key] = nil
	}
	return outcomes, nil
}

// Increment 原子递增计数器，返回递增后的值。
// 计数器不存在时以 amount 为初值创建。计数器不经过编解码器，
// 以 Redis 原生整数存储。
func (c *Cache) Increment(ctx context.Context, key string, amount int64) (int64, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if key == "" {
		return 0, ErrEmptyKey
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	var value int64
	err := c.do(func() error {
		n, err := c.client.IncrBy(opCtx, c.makeKey(key), amount).Result()
		value = n
		return err
	})
	if err != nil {
		return 0, c.classify(err)
	}
	return value, nil
}

// Decrement 原子递减计数器，返回递减后的值。
func (c *Cache) Decrement(ctx context.Context, key string, amount int64) (int64, error) {
	return c.Increment(ctx, key, -amount)
}

// TTL 返回条目的剩余过期时间，不改变条目状态。
// 第二个返回值为 false 表示 key 不存在；
// 永不过期的条目返回 (0, true, nil)。
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	if c.closed.Load() {
		return 0, false, ErrClosed
	}
	if key == "" {
		return 0, false, ErrEmptyKey
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	var d time.Duration
	err := c.do(func() error {
		ttl, err := c.client.TTL(opCtx, c.makeKey(key)).Result()
		d = ttl
		return err
	})
	if err != nil {
		return 0, false, c.classify(err)
	}
	// go-redis 对 TTL 的哨兵值不做精度换算，直接返回原始纳秒值：
	// -2 表示 key 不存在，-1 表示存在但永不过期。
	switch {
	case d == -2:
		return 0, false, nil
	case d < 0:
		return 0, true, nil
	default:
		return d, true, nil
	}
}

// Client 返回底层的 redis.UniversalClient，用于本包未覆盖的操作。
func (c *Cache) Client() redis.UniversalClient {
	return c.client
}

// DefaultTTL 返回配置的默认过期时间。
func (c *Cache) DefaultTTL() time.Duration {
	return c.opts.DefaultTTL
}

// Stats 返回统计信息快照。
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		BackendFailures: c.backendFailures.Load(),
		CodecFailures:   c.codecFailures.Load(),
	}
}

// Close 关闭缓存及底层客户端。重复关闭返回 ErrClosed。
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return c.client.Close()
}
