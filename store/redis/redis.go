// Package redis 提供基于 go-redis 的 core.CacheStore 实现（生产缓存后端）。
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cinekit/cinekit/core"
)

// CacheStore 是 Redis 缓存实现。
//
// 使用方式：
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	cache := redisstore.NewCacheStore(client)
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore 使用已有的 *redis.Client 创建缓存。
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// New 按地址创建缓存连接。
func New(addr string, db int) *CacheStore {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return &CacheStore{client: client}
}

// GetClient 返回底层 *redis.Client（高级用法）。
func (s *CacheStore) GetClient() *redis.Client {
	return s.client
}

func (s *CacheStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", core.ErrCacheMiss
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *CacheStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *CacheStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Close 关闭连接。
func (s *CacheStore) Close() error {
	return s.client.Close()
}

// 确保 CacheStore 实现了 core.CacheStore 接口
var _ core.CacheStore = (*CacheStore)(nil)
