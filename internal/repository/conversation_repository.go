package repository

import (
	"errors"
	"time"

	"tabletalk-go/internal/model"

	"gorm.io/gorm"
)

// ConversationRepository 接口定义了会话与消息的持久化操作。
// 消息是只追加的：助手消息只有在生成完整结束后才会落库。
type ConversationRepository interface {
	GetOrCreate(restaurantID, sessionID string, context model.JSONMap) (*model.Conversation, error)
	UpdateContext(conversationID string, context model.JSONMap) error
	FindByID(id string) (*model.Conversation, error)
	FindWithMessages(id string) (*model.Conversation, error)
	AppendMessage(message *model.Message) error
	GetRecentMessages(conversationID string, limit int) ([]model.Message, error)
	CountMessages(conversationID string) (int64, error)
	ListByRestaurant(restaurantID string, offset, limit int) ([]model.Conversation, int64, error)
	TouchActivity(conversationID string) error
	Close(conversationID string) error
}

// conversationRepository 是 ConversationRepository 接口的 GORM 实现。
type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// GetOrCreate 根据餐厅与会话标识查找活跃会话，不存在则创建。
// (restaurant_id, session_id) 上有唯一索引，并发创建时重查一次兜底。
func (r *conversationRepository) GetOrCreate(restaurantID, sessionID string, context model.JSONMap) (*model.Conversation, error) {
	var conversation model.Conversation
	err := r.db.
		Where("restaurant_id = ? AND session_id = ? AND is_active = ?", restaurantID, sessionID, true).
		First(&conversation).Error
	if err == nil {
		return &conversation, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conversation = model.Conversation{
		RestaurantID: restaurantID,
		SessionID:    sessionID,
		Context:      context,
		IsActive:     true,
		StartedAt:    time.Now(),
		LastActivity: time.Now(),
	}
	if err := r.db.Create(&conversation).Error; err != nil {
		// 唯一索引冲突说明另一个请求刚创建了同一会话
		var existing model.Conversation
		findErr := r.db.
			Where("restaurant_id = ? AND session_id = ? AND is_active = ?", restaurantID, sessionID, true).
			First(&existing).Error
		if findErr != nil {
			return nil, err
		}
		return &existing, nil
	}
	return &conversation, nil
}

// UpdateContext 将本次请求携带的上下文按键浅合并进会话的 context 字段。
// 相同键以新值覆盖旧值。
func (r *conversationRepository) UpdateContext(conversationID string, context model.JSONMap) error {
	if len(context) == 0 {
		return nil
	}
	var conversation model.Conversation
	if err := r.db.First(&conversation, "id = ?", conversationID).Error; err != nil {
		return err
	}

	merged := make(model.JSONMap, len(conversation.Context)+len(context))
	for k, v := range conversation.Context {
		merged[k] = v
	}
	for k, v := range context {
		merged[k] = v
	}
	return r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("context", merged).Error
}

// FindByID 根据 ID 查找一个会话。
func (r *conversationRepository) FindByID(id string) (*model.Conversation, error) {
	var conversation model.Conversation
	if err := r.db.First(&conversation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

// FindWithMessages 查找会话并按时间顺序预加载全部消息。
func (r *conversationRepository) FindWithMessages(id string) (*model.Conversation, error) {
	var conversation model.Conversation
	err := r.db.
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&conversation, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// AppendMessage 追加一条消息并刷新会话的最后活跃时间。
func (r *conversationRepository) AppendMessage(message *model.Message) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).
			Where("id = ?", message.ConversationID).
			Update("last_activity", time.Now()).Error
	})
}

// GetRecentMessages 返回会话最近的 limit 条消息，按时间正序。
func (r *conversationRepository) GetRecentMessages(conversationID string, limit int) ([]model.Message, error) {
	var messages []model.Message
	// 先倒序取最近 N 条，再反转为时间正序
	err := r.db.
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CountMessages 返回会话的消息总数。
func (r *conversationRepository) CountMessages(conversationID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}

// ListByRestaurant 分页列出餐厅的会话，按最后活跃时间倒序。
func (r *conversationRepository) ListByRestaurant(restaurantID string, offset, limit int) ([]model.Conversation, int64, error) {
	var conversations []model.Conversation
	var total int64

	db := r.db.Model(&model.Conversation{}).Where("restaurant_id = ?", restaurantID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Offset(offset).Limit(limit).Order("last_activity DESC").Find(&conversations).Error; err != nil {
		return nil, 0, err
	}
	return conversations, total, nil
}

// TouchActivity 刷新会话的最后活跃时间。
func (r *conversationRepository) TouchActivity(conversationID string) error {
	return r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("last_activity", time.Now()).Error
}

// Close 关闭一个会话。
func (r *conversationRepository) Close(conversationID string) error {
	return r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("is_active", false).Error
}
