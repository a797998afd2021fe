package middleware

import (
	"fmt"
	"net/http"
	"time"

	"tabletalk-go/internal/config"
	"tabletalk-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// RateLimiter 创建一个基于 Redis 固定窗口计数的限流中间件。
// 计数维度为 客户端IP+路径，超限返回 429。Redis 异常时放行，不让限流拖垮业务。
func RateLimiter(rdb *redis.Client, cfg config.RateLimitConfig) gin.HandlerFunc {
	window := time.Duration(cfg.WindowSeconds) * time.Second
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s:%s", c.ClientIP(), c.FullPath())
		ctx := c.Request.Context()

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			log.Errorf("限流计数失败: %v", err)
			c.Next()
			return
		}
		// 窗口内第一次计数时设置过期时间
		if count == 1 {
			if err := rdb.Expire(ctx, key, window).Err(); err != nil {
				log.Errorf("设置限流窗口过期失败: %v", err)
			}
		}

		if count > int64(cfg.PerWindow) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "请求过于频繁，请稍后再试",
			})
			return
		}

		c.Next()
	}
}
