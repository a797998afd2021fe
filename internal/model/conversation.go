// Package model 包含了应用的数据模型定义。
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 消息发送方角色。
const (
	SenderCustomer  = "customer"
	SenderAssistant = "assistant"
)

// ChatMessage 代表注入 prompt 的单条角色消息（不落库）。
type ChatMessage struct {
	Role    string `json:"role"` // "system"、"user" 或 "assistant"
	Content string `json:"content"`
}

// Conversation 对应于数据库中的 'conversations' 表。
// 每个 (restaurant_id, session_id) 组合唯一，首条消息到达时惰性创建，
// 只做软失活，从不物理删除。
type Conversation struct {
	ID           string    `gorm:"type:char(36);primaryKey" json:"id"`
	RestaurantID string    `gorm:"type:char(36);not null;uniqueIndex:uniq_restaurant_session,priority:1" json:"restaurantId"`
	SessionID    string    `gorm:"type:varchar(255);not null;uniqueIndex:uniq_restaurant_session,priority:2" json:"sessionId"`
	Context      JSONMap   `gorm:"type:json" json:"context"`
	Metadata     JSONMap   `gorm:"type:json" json:"metadata"`
	IsActive     bool      `gorm:"not null;default:true" json:"isActive"`
	StartedAt    time.Time `gorm:"autoCreateTime" json:"startedAt"`
	LastActivity time.Time `gorm:"autoUpdateTime" json:"lastActivity"`

	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Conversation) TableName() string {
	return "conversations"
}

// BeforeCreate 在创建前生成 UUID 主键。
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Message 对应于数据库中的 'messages' 表。
// 消息只追加、不修改、不重排，对话文本即按创建时间拼接的消息序列。
type Message struct {
	ID             string    `gorm:"type:char(36);primaryKey" json:"id"`
	ConversationID string    `gorm:"type:char(36);index;not null" json:"conversationId"`
	SenderType     string    `gorm:"type:varchar(20);not null" json:"senderType"` // customer 或 assistant
	Content        string    `gorm:"type:text;not null" json:"content"`
	MessageType    string    `gorm:"type:varchar(50);not null;default:'text'" json:"messageType"`
	Metadata       JSONMap   `gorm:"type:json" json:"metadata"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate 在创建前生成 UUID 主键。
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
