package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss key 不存在或已过期
var ErrCacheMiss = errors.New("cache miss")

// Cache 定义非持久化缓存接口
type Cache interface {
	// Set 设置缓存，ttl <= 0 表示不过期
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Get 获取缓存，并将结果 Unmarshal 到 target 中；未命中返回 ErrCacheMiss
	Get(ctx context.Context, key string, target any) error
	// Delete 删除缓存
	Delete(ctx context.Context, key string) error
}
