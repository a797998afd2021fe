// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tabletalk-go/internal/config"
	"tabletalk-go/pkg/events"
	"tabletalk-go/pkg/log"

	"github.com/go-redis/redis/v8"
	kafkago "github.com/segmentio/kafka-go"
)

// EventProcessor defines the interface for any service that can process an
// interaction event. This decouples the Kafka consumer from the concrete
// analytics pipeline implementation.
type EventProcessor interface {
	Process(ctx context.Context, event events.InteractionEvent) error
}

// Producer 封装一个面向埋点主题的 Kafka 生产者。
type Producer struct {
	writer *kafkago.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	writer := &kafkago.Writer{
		Addr:     kafkago.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafkago.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: writer}
}

// PublishEvent 发送一个埋点事件到 Kafka。
func (p *Producer) PublishEvent(ctx context.Context, event events.InteractionEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx,
		kafkago.Message{
			Key:   []byte(event.RestaurantID),
			Value: eventBytes,
		},
	)
}

// Close 关闭生产者连接。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来处理埋点事件。
// 处理失败时用 Redis 计数重试次数，达到阈值后提交 offset 终止重试。
func StartConsumer(cfg config.KafkaConfig, rdb *redis.Client, processor EventProcessor) {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "tabletalk-analytics-consumer",
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("从 Kafka 读取消息失败", err)
			break // 退出循环，可能需要重启策略
		}

		var event events.InteractionEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		log.Infof("开始处理埋点事件: type=%s, restaurant=%s", event.EventType, event.RestaurantID)
		if err := processor.Process(context.Background(), event); err != nil {
			log.Errorf("处理埋点事件失败: event=%s, Error: %v", event.EventID, err)
			// 使用 Redis 计数失败次数，达到阈值后提交 offset 终止重试
			attemptsKey := fmt.Sprintf("kafka:attempts:%s", event.EventID)
			attempts, incErr := rdb.Incr(context.Background(), attemptsKey).Result()
			if incErr == nil {
				_ = rdb.Expire(context.Background(), attemptsKey, 24*time.Hour).Err()
			}
			if incErr != nil {
				// Redis 异常时保守处理：不提交 offset，让 Kafka 重试
				continue
			}
			if attempts >= 3 {
				log.Errorf("埋点事件多次失败(>=3)，提交 offset 终止重试: event=%s", event.EventID)
				if err := r.CommitMessages(context.Background(), m); err != nil {
					log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
				}
			}
			// attempts < 3 时，不提交 offset 让 Kafka 自动重试
		} else {
			// 清理失败计数
			_ = rdb.Del(context.Background(), fmt.Sprintf("kafka:attempts:%s", event.EventID)).Err()
			// 事件处理成功后，手动提交 offset
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("关闭 Kafka 消费者失败: %v", err)
	}
}
