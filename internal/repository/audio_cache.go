package repository

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// 合成音频缓存 7 天，同一段文本加音色只请求一次上游
const audioCacheTTL = 7 * 24 * time.Hour

// AudioCache 接口定义了语音合成结果的缓存与失败计数操作。
type AudioCache interface {
	Get(ctx context.Context, text, voice string) ([]byte, error)
	Set(ctx context.Context, text, voice string, audio []byte) error
	IncrSynthesisFailure(ctx context.Context, restaurantID string) error
}

// audioCache 是基于 Redis 的 AudioCache 实现。
type audioCache struct {
	rdb *redis.Client
}

// NewAudioCache 创建一个新的 AudioCache 实例。
func NewAudioCache(rdb *redis.Client) AudioCache {
	return &audioCache{rdb: rdb}
}

func audioKey(text, voice string) string {
	sum := md5.Sum([]byte(text))
	return fmt.Sprintf("audio:%s:%s", hex.EncodeToString(sum[:]), voice)
}

// Get 读取缓存的音频，未命中时返回 (nil, nil)。
func (c *audioCache) Get(ctx context.Context, text, voice string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, audioKey(text, voice)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set 缓存一段合成音频。
func (c *audioCache) Set(ctx context.Context, text, voice string, audio []byte) error {
	return c.rdb.Set(ctx, audioKey(text, voice), audio, audioCacheTTL).Err()
}

// IncrSynthesisFailure 按天累计餐厅的合成失败次数，供运维观察上游健康度。
func (c *audioCache) IncrSynthesisFailure(ctx context.Context, restaurantID string) error {
	key := fmt.Sprintf("speech:failures:%s:%s", restaurantID, time.Now().Format("2006-01-02"))
	if err := c.rdb.Incr(ctx, key).Err(); err != nil {
		return err
	}
	return c.rdb.Expire(ctx, key, 48*time.Hour).Err()
}
