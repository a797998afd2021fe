package service

import (
	"tabletalk-go/internal/model"
	"tabletalk-go/internal/repository"
	"tabletalk-go/pkg/log"
)

// ConversationService 定义了管理端查看会话记录的业务操作。
type ConversationService interface {
	ListByRestaurant(restaurantID string, page, size int) ([]model.ConversationSummaryDTO, int64, error)
	GetTranscript(conversationID string) (*model.Conversation, error)
	CloseConversation(conversationID string) error
}

type conversationService struct {
	conversationRepo repository.ConversationRepository
}

// NewConversationService 创建一个新的 ConversationService 实例。
func NewConversationService(conversationRepo repository.ConversationRepository) ConversationService {
	return &conversationService{conversationRepo: conversationRepo}
}

// ListByRestaurant 分页列出餐厅的会话摘要，按最后活跃时间倒序。
func (s *conversationService) ListByRestaurant(restaurantID string, page, size int) ([]model.ConversationSummaryDTO, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	conversations, total, err := s.conversationRepo.ListByRestaurant(restaurantID, (page-1)*size, size)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]model.ConversationSummaryDTO, 0, len(conversations))
	for _, conv := range conversations {
		count, err := s.conversationRepo.CountMessages(conv.ID)
		if err != nil {
			log.Errorf("统计会话消息数失败: %v", err)
		}
		summaries = append(summaries, model.ConversationSummaryDTO{
			ID:           conv.ID,
			SessionID:    conv.SessionID,
			MessageCount: count,
			StartedAt:    model.LocalTime(conv.StartedAt),
			LastActivity: model.LocalTime(conv.LastActivity),
		})
	}
	return summaries, total, nil
}

// GetTranscript 返回会话的完整消息记录，按创建时间正序。
func (s *conversationService) GetTranscript(conversationID string) (*model.Conversation, error) {
	return s.conversationRepo.FindWithMessages(conversationID)
}

// CloseConversation 关闭一个会话（软失活）。
func (s *conversationService) CloseConversation(conversationID string) error {
	return s.conversationRepo.Close(conversationID)
}
