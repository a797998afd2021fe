package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tabletalk-go/internal/model"
	"tabletalk-go/internal/repository"
	"tabletalk-go/pkg/events"
	"tabletalk-go/pkg/llm"
	"tabletalk-go/pkg/log"

	"github.com/google/uuid"
)

// RequestMeta 携带随请求到达的客户端元信息，进入会话上下文与埋点。
type RequestMeta struct {
	UserAgent string
	IPAddress string
	Context   model.JSONMap
}

// ChatResult 是一次对话请求的结果。
// Fallback 为 true 时 Reply 是人设兜底话术，未落库。
type ChatResult struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id,omitempty"`
	Reply          string `json:"message"`
	Fallback       bool   `json:"fallback,omitempty"`
}

// MenuContextProvider 是对菜单快照读取的窄接口，由 MenuService 满足。
type MenuContextProvider interface {
	GetMenuContext(ctx context.Context, restaurantID string) (*model.MenuContext, error)
}

// ChatService 定义了对话编排的业务操作。
type ChatService interface {
	// SendMessage 一次性返回完整回复。供应商彻底失败时返回兜底结果而非错误。
	SendMessage(ctx context.Context, restaurant *model.Restaurant, sessionID, userInput string, meta RequestMeta) (*ChatResult, error)
	// StreamMessage 把回复分块写入 writer。供应商失败时返回错误，由调用方下发错误事件。
	StreamMessage(ctx context.Context, restaurant *model.Restaurant, sessionID, userInput string, meta RequestMeta, writer llm.ChunkWriter) (*ChatResult, error)
	// Suggestions 返回开场建议问题。
	Suggestions(restaurant *model.Restaurant) []string
	// RecordFeedback 上报一条对话反馈事件。
	RecordFeedback(ctx context.Context, restaurant *model.Restaurant, conversationID string, rating int, comment string, meta RequestMeta) error
}

type chatService struct {
	promptService    PromptService
	menuService      MenuContextProvider
	llmClient        llm.Client
	conversationRepo repository.ConversationRepository
	publisher        EventPublisher
	historyTurns     int
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	promptService PromptService,
	menuService MenuContextProvider,
	llmClient llm.Client,
	conversationRepo repository.ConversationRepository,
	publisher EventPublisher,
	historyTurns int,
) ChatService {
	if historyTurns <= 0 {
		historyTurns = 10
	}
	return &chatService{
		promptService:    promptService,
		menuService:      menuService,
		llmClient:        llmClient,
		conversationRepo: conversationRepo,
		publisher:        publisher,
		historyTurns:     historyTurns,
	}
}

// SendMessage 一次性对话。生成与持久化的路径和流式完全一致，只是没有分块下发。
func (s *chatService) SendMessage(ctx context.Context, restaurant *model.Restaurant, sessionID, userInput string, meta RequestMeta) (*ChatResult, error) {
	result, err := s.respond(ctx, restaurant, sessionID, userInput, meta, nil)
	if err == nil {
		return result, nil
	}
	if isProviderFailure(err) {
		// 用户消息已落库；助手侧不落库，返回兜底话术
		log.Errorf("LLM 生成失败，返回兜底话术: %v", err)
		return &ChatResult{
			ConversationID: result.ConversationID,
			Reply:          s.promptService.FallbackResponse(restaurant),
			Fallback:       true,
		}, nil
	}
	return nil, err
}

// StreamMessage 流式对话。中途失败（包括客户端断开）时不落助手消息。
func (s *chatService) StreamMessage(ctx context.Context, restaurant *model.Restaurant, sessionID, userInput string, meta RequestMeta, writer llm.ChunkWriter) (*ChatResult, error) {
	return s.respond(ctx, restaurant, sessionID, userInput, meta, writer)
}

// respond 是一次性与流式共用的编排路径：
//  1. 取或建会话，用户消息先落库；
//  2. 组装 prompt（人设 + 菜单快照 + 有限历史）；
//  3. 调用 LLM（writer 非空则流式）；
//  4. 只有生成完整结束才落助手消息，且用后台上下文保存。
//
// 失败时返回的 ChatResult 仍携带会话 ID，供兜底路径使用。
func (s *chatService) respond(ctx context.Context, restaurant *model.Restaurant, sessionID, userInput string, meta RequestMeta, writer llm.ChunkWriter) (*ChatResult, error) {
	userInput = strings.TrimSpace(userInput)
	if userInput == "" {
		return nil, fmt.Errorf("消息内容不能为空")
	}

	conversation, err := s.conversationRepo.GetOrCreate(restaurant.ID, sessionID, meta.Context)
	if err != nil {
		return nil, fmt.Errorf("获取会话失败: %w", err)
	}

	// 每次请求都把携带的上下文合并进会话，已有会话的 context 随之更新
	if len(meta.Context) > 0 {
		if err := s.conversationRepo.UpdateContext(conversation.ID, meta.Context); err != nil {
			log.Errorf("合并会话上下文失败: %v", err)
		}
	}

	// 历史在用户消息落库前读取，本轮输入单独作为最后一条注入
	history, err := s.conversationRepo.GetRecentMessages(conversation.ID, s.historyTurns)
	if err != nil {
		log.Errorf("加载会话历史失败: %v", err)
		history = nil
	}

	userMsg := &model.Message{
		ConversationID: conversation.ID,
		SenderType:     model.SenderCustomer,
		Content:        userInput,
		MessageType:    "text",
	}
	if err := s.conversationRepo.AppendMessage(userMsg); err != nil {
		return nil, fmt.Errorf("保存用户消息失败: %w", err)
	}

	result := &ChatResult{ConversationID: conversation.ID}

	// 常见寒暄即时回复，不经过模型；持久化语义与正常回复完全一致
	if reply, ok := s.promptService.InstantResponse(restaurant, userInput); ok {
		if writer != nil {
			if err := writer.WriteChunk(reply); err != nil {
				return result, err
			}
		}
		if err := s.persistAssistantReply(result, conversation.ID, reply, writer != nil); err != nil {
			return result, err
		}
		s.publishChatEvent(conversation.ID, restaurant.ID, userInput, meta)
		return result, nil
	}

	menuContext, err := s.menuService.GetMenuContext(ctx, restaurant.ID)
	if err != nil {
		log.Errorf("加载菜单快照失败: %v", err)
		menuContext = nil
	}

	messages := s.promptService.BuildMessages(restaurant, menuContext, history, userInput)
	llmMsgs := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		llmMsgs = append(llmMsgs, llm.Message{Role: m.Role, Content: m.Content})
	}

	var reply string
	if writer != nil {
		reply, err = s.llmClient.StreamChat(ctx, llmMsgs, nil, writer)
	} else {
		reply, err = s.llmClient.Complete(ctx, llmMsgs, nil)
	}
	if err != nil {
		return result, err
	}

	// 流式下发完成后即使客户端断开，完整回复也要落库
	if err := s.persistAssistantReply(result, conversation.ID, reply, writer != nil); err != nil {
		return result, err
	}

	s.publishChatEvent(conversation.ID, restaurant.ID, userInput, meta)
	return result, nil
}

// persistAssistantReply 落一条完整的助手消息并回填结果。
// 流式路径下回复已经送达客户端，落库失败只记日志；一次性路径必须上抛，由调用方返回 5xx。
func (s *chatService) persistAssistantReply(result *ChatResult, conversationID, reply string, streamed bool) error {
	assistantMsg := &model.Message{
		ConversationID: conversationID,
		SenderType:     model.SenderAssistant,
		Content:        reply,
		MessageType:    "text",
	}
	result.Reply = reply
	if err := s.conversationRepo.AppendMessage(assistantMsg); err != nil {
		if streamed {
			log.Errorf("保存助手消息失败: %v", err)
			return nil
		}
		return fmt.Errorf("保存助手消息失败: %w", err)
	}
	result.MessageID = assistantMsg.ID
	return nil
}

// publishChatEvent 发送对话埋点事件，失败只记日志，不影响主流程。
func (s *chatService) publishChatEvent(conversationID, restaurantID, userInput string, meta RequestMeta) {
	if s.publisher == nil {
		return
	}
	event := events.InteractionEvent{
		EventID:        uuid.NewString(),
		RestaurantID:   restaurantID,
		ConversationID: conversationID,
		EventType:      model.EventChatMessage,
		EventData:      map[string]interface{}{"message_length": len(userInput)},
		UserAgent:      meta.UserAgent,
		IPAddress:      meta.IPAddress,
	}
	if err := s.publisher.PublishEvent(context.Background(), event); err != nil {
		log.Errorf("发送对话埋点事件失败: %v", err)
	}
}

// isProviderFailure 判断错误是否属于 LLM 供应商侧失败（可走兜底话术）。
func isProviderFailure(err error) bool {
	for _, kind := range []error{llm.ErrRateLimited, llm.ErrUnauthorized, llm.ErrBadRequest, llm.ErrTimeout, llm.ErrUnavailable} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// Suggestions 返回通用开场问题加上菜系相关的推荐问法。
func (s *chatService) Suggestions(restaurant *model.Restaurant) []string {
	suggestions := []string{
		"What are your most popular dishes?",
		"Do you have vegetarian options?",
		"What do you recommend for someone with a nut allergy?",
		"What are today's signature dishes?",
	}
	switch strings.ToLower(restaurant.CuisineType) {
	case "italian":
		suggestions = append(suggestions, "Which pasta dishes do you have?")
	case "mexican":
		suggestions = append(suggestions, "How spicy are your tacos?")
	case "japanese":
		suggestions = append(suggestions, "What sushi rolls do you offer?")
	case "indian":
		suggestions = append(suggestions, "Which curries are mild enough for kids?")
	case "chinese":
		suggestions = append(suggestions, "What are your chef's specials?")
	}
	return suggestions
}

// RecordFeedback 发送对话反馈事件，由消费端落库。
func (s *chatService) RecordFeedback(ctx context.Context, restaurant *model.Restaurant, conversationID string, rating int, comment string, meta RequestMeta) error {
	if s.publisher == nil {
		return fmt.Errorf("事件通道未配置")
	}
	if rating < 1 || rating > 5 {
		return fmt.Errorf("评分必须在 1 到 5 之间")
	}
	event := events.InteractionEvent{
		EventID:        uuid.NewString(),
		RestaurantID:   restaurant.ID,
		ConversationID: conversationID,
		EventType:      model.EventChatFeedback,
		EventData:      map[string]interface{}{"rating": rating, "comment": comment},
		UserAgent:      meta.UserAgent,
		IPAddress:      meta.IPAddress,
	}
	return s.publisher.PublishEvent(ctx, event)
}
