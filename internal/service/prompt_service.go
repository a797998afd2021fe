// Package service 包含了应用的业务逻辑层。
package service

import (
	"fmt"
	"strings"

	"tabletalk-go/internal/model"
)

// 每个分类最多注入 prompt 的菜品条数，剩余条数只给一个计数提示。
const maxItemsPerCategory = 5

// PromptService 负责把餐厅人设、菜单快照与有限历史组装成模型输入。
// 它是纯函数式的：不读写任何存储，同样输入永远产出同样的消息序列。
type PromptService interface {
	BuildMessages(restaurant *model.Restaurant, menu *model.MenuContext, history []model.Message, userInput string) []model.ChatMessage
	BuildSystemPrompt(restaurant *model.Restaurant, menu *model.MenuContext) string
	// InstantResponse 对常见寒暄返回即时人设回复，命中时无需调用模型。
	InstantResponse(restaurant *model.Restaurant, userInput string) (string, bool)
	FallbackResponse(restaurant *model.Restaurant) string
}

type promptService struct {
	historyTurns  int
	historyBudget int
}

// NewPromptService 创建一个新的 PromptService 实例。
func NewPromptService(historyTurns, historyBudget int) PromptService {
	if historyTurns <= 0 {
		historyTurns = 10
	}
	if historyBudget <= 0 {
		historyBudget = 4000
	}
	return &promptService{historyTurns: historyTurns, historyBudget: historyBudget}
}

// BuildMessages 组装完整的消息序列：system + 有限历史 + 本轮用户输入。
func (s *promptService) BuildMessages(restaurant *model.Restaurant, menu *model.MenuContext, history []model.Message, userInput string) []model.ChatMessage {
	bounded := s.truncateHistory(history)

	msgs := make([]model.ChatMessage, 0, len(bounded)+2)
	msgs = append(msgs, model.ChatMessage{Role: "system", Content: s.BuildSystemPrompt(restaurant, menu)})
	for _, m := range bounded {
		role := "user"
		if m.SenderType == model.SenderAssistant {
			role = "assistant"
		}
		msgs = append(msgs, model.ChatMessage{Role: role, Content: m.Content})
	}
	msgs = append(msgs, model.ChatMessage{Role: "user", Content: userInput})
	return msgs
}

// truncateHistory 施加双重预算：最多 historyTurns 条，总字符不超过 historyBudget。
// 超出时从最旧的一条开始整条丢弃，结果是确定性的。
func (s *promptService) truncateHistory(history []model.Message) []model.Message {
	if len(history) > s.historyTurns {
		history = history[len(history)-s.historyTurns:]
	}

	total := 0
	for _, m := range history {
		total += len(m.Content)
	}
	for len(history) > 0 && total > s.historyBudget {
		total -= len(history[0].Content)
		history = history[1:]
	}
	return history
}

// BuildSystemPrompt 根据餐厅人设配置与菜单快照生成 system 提示词。
// 菜单部分只由快照中的真实行构建，不允许模型之外再引入菜品事实。
func (s *promptService) BuildSystemPrompt(restaurant *model.Restaurant, menu *model.MenuContext) string {
	avatar := restaurant.AvatarConfig

	name := stringFromJSON(avatar, "name", "the assistant")
	personality := stringFromJSON(avatar, "personality", "friendly and helpful")
	tone := stringFromJSON(avatar, "tone", "warm")
	special := stringFromJSON(avatar, "special_instructions", "")

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are %s, the virtual assistant for %s", name, restaurant.Name))
	if restaurant.CuisineType != "" {
		sb.WriteString(fmt.Sprintf(", a %s restaurant", restaurant.CuisineType))
	}
	sb.WriteString(".\n")
	sb.WriteString(fmt.Sprintf("Your personality: %s. Your tone: %s.\n", personality, tone))
	if restaurant.Description != "" {
		sb.WriteString(fmt.Sprintf("About the restaurant: %s\n", restaurant.Description))
	}
	if special != "" {
		sb.WriteString(fmt.Sprintf("Special instructions: %s\n", special))
	}
	sb.WriteString("\nAnswer customer questions about the menu using ONLY the menu information below. ")
	sb.WriteString("If a dish is not on the menu, say so honestly. Mention allergens when asked about dietary restrictions. ")
	sb.WriteString("Keep responses concise and conversational.\n")

	sb.WriteString("\n=== MENU ===\n")
	sb.WriteString(s.buildMenuSummary(menu))
	return sb.String()
}

// buildMenuSummary 把菜单快照压缩成分类分组的文本摘要。
func (s *promptService) buildMenuSummary(menu *model.MenuContext) string {
	if menu == nil || len(menu.Categories) == 0 {
		return "(the menu is currently empty)\n"
	}

	var sb strings.Builder
	for _, cat := range menu.Categories {
		if len(cat.Items) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n%s:\n", cat.Name))

		shown := cat.Items
		if len(shown) > maxItemsPerCategory {
			shown = shown[:maxItemsPerCategory]
		}
		for _, item := range shown {
			sb.WriteString(fmt.Sprintf("- %s ($%.2f)", item.Name, item.Price))
			if item.IsSignature {
				sb.WriteString(" [SIGNATURE]")
			}
			if item.SpiceLevel > 0 {
				sb.WriteString(fmt.Sprintf(" (spice level %d/5)", item.SpiceLevel))
			}
			if item.Description != "" {
				sb.WriteString(": " + item.Description)
			}
			if len(item.Allergens) > 0 {
				sb.WriteString(fmt.Sprintf(" | allergens: %s", strings.Join(item.Allergens, ", ")))
			}
			sb.WriteString("\n")
		}
		if rest := len(cat.Items) - len(shown); rest > 0 {
			sb.WriteString(fmt.Sprintf("... and %d more items in this category\n", rest))
		}
	}
	return sb.String()
}

// InstantResponse 对寒暄、道谢与道别给出即时回复。
// 只做整句匹配：带实际问题的长输入必须走完整的模型路径。
func (s *promptService) InstantResponse(restaurant *model.Restaurant, userInput string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(userInput))
	normalized = strings.TrimRight(normalized, "!.?, ")
	name := stringFromJSON(restaurant.AvatarConfig, "name", "our assistant")

	switch normalized {
	case "hello", "hi", "hey", "good morning", "good afternoon", "good evening":
		if greeting := stringFromJSON(restaurant.AvatarConfig, "greeting", ""); greeting != "" {
			return greeting, true
		}
		return fmt.Sprintf("Hello! Welcome to %s! I'm %s. What can I help you find on our menu today?", restaurant.Name, name), true
	case "thank you", "thanks":
		return fmt.Sprintf("You're very welcome! Enjoy your meal at %s!", restaurant.Name), true
	case "bye", "goodbye":
		return fmt.Sprintf("Goodbye! Thanks for visiting %s, come back soon!", restaurant.Name), true
	}
	return "", false
}

// FallbackResponse 是供应商彻底失败时的人设兜底话术，不落库。
func (s *promptService) FallbackResponse(restaurant *model.Restaurant) string {
	name := stringFromJSON(restaurant.AvatarConfig, "name", "our assistant")
	return fmt.Sprintf(
		"I'm sorry, %s is having trouble answering right now. Please try again in a moment, or ask our staff for help with the %s menu.",
		name, restaurant.Name,
	)
}

// stringFromJSON 从 JSON 配置中取字符串字段，缺失或类型不符时返回缺省值。
func stringFromJSON(m model.JSONMap, key, fallback string) string {
	if m == nil {
		return fallback
	}
	if v, ok := m[key]; ok {
		if str, ok := v.(string); ok && str != "" {
			return str
		}
	}
	return fallback
}
