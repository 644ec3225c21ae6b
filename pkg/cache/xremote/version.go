package xremote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// versionKeyPrefix 版本计数器在命名空间内的子前缀。
// 每个值 key 对应一个 "{prefix}ver:{key}" 计数器，每次写入 INCR，
// 供同步层以一次 MGET 廉价探测远端是否有更新，而无需拉取完整值。
const versionKeyPrefix = "ver:"

// versionKey 生成 key 对应的版本计数器完整 key。
func (c *Cache) versionKey(key string) string {
	return c.makeKey(versionKeyPrefix + key)
}

// SetVersioned 写入缓存值并在同一 pipeline 中递增其版本计数器，
// 返回写入后的版本号。版本计数器与值共享 TTL，同时过期。
// 这是同步管理器的写入路径：远端确认后调用方才应更新本地副本。
func (c *Cache) SetVersioned(ctx context.Context, key string, value any, ttl time.Duration) (uint64, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if key == "" {
		return 0, ErrEmptyKey
	}
	if ttl < 0 {
		return 0, ErrInvalidTTL
	}

	data, err := c.opts.Codec.Marshal(value)
	if err != nil {
		c.codecFailures.Add(1)
		return 0, fmt.Errorf("%w: key %q: %w", ErrSerialization, key, err)
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	var version int64
	err = c.do(func() error {
		pipe := c.client.TxPipeline()
		pipe.Set(opCtx, c.makeKey(key), data, ttl)
		incr := pipe.Incr(opCtx, c.versionKey(key))
		if ttl > 0 {
			pipe.Expire(opCtx, c.versionKey(key), ttl)
		}
		if _, err := pipe.Exec(opCtx); err != nil {
			return err
		}
		version = incr.Val()
		return nil
	})
	if err != nil {
		return 0, c.classify(err)
	}
	return uint64(version), nil
}

// GetVersioned 在单次往返中读取缓存值及其版本号。
// key 不存在时返回 (nil, false, 0, nil)。
// 值存在但版本计数器缺失（如值由非版本化路径写入）时版本为 0。
func (c *Cache) GetVersioned(ctx context.Context, key string) (any, bool, uint64, error) {
	if c.closed.Load() {
		return nil, false, 0, ErrClosed
	}
	if key == "" {
		return nil, false, 0, ErrEmptyKey
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	var raw []any
	err := c.do(func() error {
		v, err := c.client.MGet(opCtx, c.makeKey(key), c.versionKey(key)).Result()
		raw = v
		return err
	})
	if err != nil {
		return nil, false, 0, c.classify(err)
	}

	if raw[0] == nil {
		c.misses.Add(1)
		return nil, false, 0, nil
	}
	s, ok := raw[0].(string)
	if !ok {
		c.misses.Add(1)
		return nil, false, 0, nil
	}
	value, err := c.opts.Codec.Unmarshal([]byte(s))
	if err != nil {
		c.codecFailures.Add(1)
		return nil, false, 0, fmt.Errorf("%w: key %q: %w", ErrSerialization, key, err)
	}

	var version uint64
	if vs, ok := raw[1].(string); ok {
		if n, err := strconv.ParseUint(vs, 10, 64); err == nil {
			version = n
		}
	}
	c.hits.Add(1)
	return value, true, version, nil
}

// DeleteVersioned 删除缓存值及其版本计数器。
// 返回 true 表示值存在并被删除。
func (c *Cache) DeleteVersioned(ctx context.Context, key string) (bool, error) {
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
		n, err := c.client.Del(opCtx, c.makeKey(key), c.versionKey(key)).Result()
		removed = n
		return err
	})
	if err != nil {
		return false, c.classify(err)
	}
	return removed > 0, nil
}

// Versions 批量读取一组 key 的版本号，单次 MGET 往返。
// 这是同步清扫的廉价探测：比较版本号即可判断远端是否有更新，
// 不拉取任何值。远端不存在的 key 不出现在结果中。
func (c *Cache) Versions(ctx context.Context, keys []string) (map[string]uint64, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	results := make(map[string]uint64, len(keys))
	if len(keys) == 0 {
		return results, nil
	}

	verKeys := make([]string, len(keys))
	for i, key := range keys {
		if key == "" {
			return nil, ErrEmptyKey
		}
		verKeys[i] = c.versionKey(key)
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	var raw []any
	err := c.do(func() error {
		v, err := c.client.MGet(opCtx, verKeys...).Result()
		raw = v
		return err
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return results, nil
		}
		return nil, c.classify(err)
	}

	for i, v := range raw {
		vs, ok := v.(string)
		if !ok {
			continue
		}
		if n, err := strconv.ParseUint(vs, 10, 64); err == nil {
			results[keys[i]] = n
		}
	}
	return results, nil
}
