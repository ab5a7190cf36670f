// Package cache 提供推荐结果的 TTL 缓存：按 scope+subject 命名 key，JSON 编码 ID 列表。
package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/cinekit/cinekit/core"
)

// 缓存 key 前缀与 TTL。
// 用户推荐随交互变化快，1 小时；物品相似度只随训练变化，24 小时。
const (
	UserKeyPrefix = "rec:user:"
	ItemKeyPrefix = "rec:item:"

	UserTTL = time.Hour
	ItemTTL = 24 * time.Hour
)

// UserKey 返回用户推荐的缓存 key。
func UserKey(userID string) string {
	return UserKeyPrefix + userID
}

// ItemKey 返回物品相似推荐的缓存 key。
func ItemKey(itemID string) string {
	return ItemKeyPrefix + itemID
}

// RecCache 是推荐结果缓存。
//
// 写透且尽力而为：任何读写失败都降级为"重新计算"，绝不让缓存故障
// 影响推荐请求本身。坏 payload 视为 miss（记日志，不致命）。
type RecCache struct {
	Store  core.CacheStore
	Logger *zap.Logger
}

// NewRecCache 创建推荐缓存。logger 传 nil 则静默。
func NewRecCache(store core.CacheStore, logger *zap.Logger) *RecCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecCache{Store: store, Logger: logger}
}

func (c *RecCache) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Get 读取缓存的 ID 列表。第二个返回值表示是否命中；任何失败都按 miss 处理。
func (c *RecCache) Get(ctx context.Context, key string) ([]string, bool) {
	if c.Store == nil {
		return nil, false
	}

	raw, err := c.Store.Get(ctx, key)
	if err != nil {
		if err != core.ErrCacheMiss && !core.IsNotFound(err) {
			c.logger().Warn("cache read failed, recomputing",
				zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		c.logger().Warn("malformed cache payload, treating as miss",
			zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return ids, true
}

// Set 写入 ID 列表。失败只记日志，不返回错误。
func (c *RecCache) Set(ctx context.Context, key string, ids []string, ttl time.Duration) {
	if c.Store == nil {
		return
	}

	payload, err := json.Marshal(ids)
	if err != nil {
		c.logger().Warn("cache payload marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.Store.Set(ctx, key, string(payload), ttl); err != nil {
		c.logger().Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate 删除缓存 key。失败只记日志。
func (c *RecCache) Invalidate(ctx context.Context, key string) {
	if c.Store == nil {
		return
	}
	if err := c.Store.Delete(ctx, key); err != nil {
		c.logger().Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}
