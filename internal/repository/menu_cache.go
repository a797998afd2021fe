package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tabletalk-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// MenuCache 接口定义了菜单上下文快照的缓存操作。
// 快照用于拼装助手的系统提示词，目录写操作后必须失效。
type MenuCache interface {
	Get(ctx context.Context, restaurantID string) (*model.MenuContext, error)
	Set(ctx context.Context, restaurantID string, menuContext *model.MenuContext) error
	Invalidate(ctx context.Context, restaurantID string) error
}

// menuCache 是基于 Redis 的 MenuCache 实现。
type menuCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMenuCache 创建一个新的 MenuCache 实例。
func NewMenuCache(rdb *redis.Client, ttlSeconds int) MenuCache {
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}
	return &menuCache{rdb: rdb, ttl: time.Duration(ttlSeconds) * time.Second}
}

func menuContextKey(restaurantID string) string {
	return fmt.Sprintf("menu_context:%s", restaurantID)
}

// Get 读取菜单上下文快照，缓存未命中时返回 (nil, nil)。
func (c *menuCache) Get(ctx context.Context, restaurantID string) (*model.MenuContext, error) {
	data, err := c.rdb.Get(ctx, menuContextKey(restaurantID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var menuContext model.MenuContext
	if err := json.Unmarshal(data, &menuContext); err != nil {
		// 缓存数据损坏时当作未命中，由上层重建
		_ = c.rdb.Del(ctx, menuContextKey(restaurantID)).Err()
		return nil, nil
	}
	return &menuContext, nil
}

// Set 写入菜单上下文快照。
func (c *menuCache) Set(ctx context.Context, restaurantID string, menuContext *model.MenuContext) error {
	data, err := json.Marshal(menuContext)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, menuContextKey(restaurantID), data, c.ttl).Err()
}

// Invalidate 使菜单上下文快照失效。
func (c *menuCache) Invalidate(ctx context.Context, restaurantID string) error {
	return c.rdb.Del(ctx, menuContextKey(restaurantID)).Err()
}
