package database

import (
	"context"

	"tabletalk-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// InitRedis 初始化 Redis 客户端连接并返回句柄。
func InitRedis(addr, password string, db int) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Info("Redis client connected successfully")
	return rdb
}
