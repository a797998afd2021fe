// Package model 包含了应用的数据模型定义。
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 埋点事件类型。
const (
	EventChatMessage  = "chat_message"
	EventChatFeedback = "chat_feedback"
	EventMenuChanged  = "menu_changed"
)

// InteractionAnalytics 对应于数据库中的 'interaction_analytics' 表。
// 事件由 Kafka 消费者异步落库，不在请求路径上写。
type InteractionAnalytics struct {
	ID             string    `gorm:"type:char(36);primaryKey" json:"id"`
	RestaurantID   string    `gorm:"type:char(36);index;not null" json:"restaurantId"`
	ConversationID *string   `gorm:"type:char(36)" json:"conversationId"`
	EventType      string    `gorm:"type:varchar(100);index;not null" json:"eventType"`
	EventData      JSONMap   `gorm:"type:json" json:"eventData"`
	UserAgent      string    `gorm:"type:varchar(500)" json:"userAgent"`
	IPAddress      string    `gorm:"type:varchar(45)" json:"ipAddress"`
	Timestamp      time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (InteractionAnalytics) TableName() string {
	return "interaction_analytics"
}

// BeforeCreate 在创建前生成 UUID 主键。
func (a *InteractionAnalytics) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
