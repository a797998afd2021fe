package service

import (
	"strings"
	"testing"

	"tabletalk-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRestaurant() *model.Restaurant {
	return &model.Restaurant{
		ID:          "r-1",
		Name:        "La Tavola",
		Slug:        "la-tavola",
		CuisineType: "Italian",
		AvatarConfig: model.JSONMap{
			"name":        "Sofia",
			"personality": "warm and knowledgeable",
			"tone":        "friendly",
		},
	}
}

func testMenuContext() *model.MenuContext {
	return &model.MenuContext{
		Categories: []model.MenuContextCategory{
			{
				ID:   "c-1",
				Name: "Pasta",
				Items: []model.MenuContextItem{
					{ID: "i-1", Name: "Carbonara", Price: 14.50, IsSignature: true, Allergens: []string{"egg", "dairy"}},
					{ID: "i-2", Name: "Arrabbiata", Price: 12.00, SpiceLevel: 3},
				},
			},
		},
	}
}

func TestBuildSystemPromptIncludesPersonaAndMenu(t *testing.T) {
	s := NewPromptService(10, 4000)

	prompt := s.BuildSystemPrompt(testRestaurant(), testMenuContext())

	assert.Contains(t, prompt, "Sofia")
	assert.Contains(t, prompt, "La Tavola")
	assert.Contains(t, prompt, "Italian")
	assert.Contains(t, prompt, "warm and knowledgeable")
	assert.Contains(t, prompt, "Carbonara ($14.50)")
	assert.Contains(t, prompt, "[SIGNATURE]")
	assert.Contains(t, prompt, "spice level 3/5")
	assert.Contains(t, prompt, "allergens: egg, dairy")
}

func TestBuildSystemPromptOnlyUsesSnapshotRows(t *testing.T) {
	s := NewPromptService(10, 4000)

	prompt := s.BuildSystemPrompt(testRestaurant(), &model.MenuContext{})
	assert.Contains(t, prompt, "menu is currently empty")
	assert.NotContains(t, prompt, "Carbonara")
}

func TestBuildSystemPromptCapsItemsPerCategory(t *testing.T) {
	s := NewPromptService(10, 4000)

	menu := &model.MenuContext{Categories: []model.MenuContextCategory{{Name: "Mains"}}}
	for i := 0; i < 8; i++ {
		menu.Categories[0].Items = append(menu.Categories[0].Items, model.MenuContextItem{
			Name:  "Dish " + string(rune('A'+i)),
			Price: 10,
		})
	}

	prompt := s.BuildSystemPrompt(testRestaurant(), menu)
	assert.Contains(t, prompt, "Dish E")
	assert.NotContains(t, prompt, "Dish F")
	assert.Contains(t, prompt, "and 3 more items")
}

func TestBuildMessagesRolesAndOrder(t *testing.T) {
	s := NewPromptService(10, 4000)
	history := []model.Message{
		{SenderType: model.SenderCustomer, Content: "hi"},
		{SenderType: model.SenderAssistant, Content: "hello"},
	}

	msgs := s.BuildMessages(testRestaurant(), testMenuContext(), history, "what pasta do you have?")

	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "hi", msgs[1].Content)
	assert.Equal(t, "assistant", msgs[2].Role)
	assert.Equal(t, "user", msgs[3].Role)
	assert.Equal(t, "what pasta do you have?", msgs[3].Content)
}

func TestTruncateHistoryByTurns(t *testing.T) {
	s := NewPromptService(4, 4000)
	var history []model.Message
	for i := 0; i < 10; i++ {
		history = append(history, model.Message{SenderType: model.SenderCustomer, Content: strings.Repeat("x", 10)})
	}
	history[9].Content = "newest"

	msgs := s.BuildMessages(testRestaurant(), nil, history, "q")

	// system + 4 条历史 + 本轮输入
	require.Len(t, msgs, 6)
	assert.Equal(t, "newest", msgs[4].Content)
}

func TestTruncateHistoryByCharBudgetDropsOldestFirst(t *testing.T) {
	s := NewPromptService(10, 100)
	history := []model.Message{
		{SenderType: model.SenderCustomer, Content: strings.Repeat("a", 80)},
		{SenderType: model.SenderAssistant, Content: strings.Repeat("b", 60)},
		{SenderType: model.SenderCustomer, Content: strings.Repeat("c", 30)},
	}

	msgs := s.BuildMessages(testRestaurant(), nil, history, "q")

	// 80+60+30 > 100：丢弃最旧一条后剩 90 字符，保留后两条
	require.Len(t, msgs, 4)
	assert.Equal(t, strings.Repeat("b", 60), msgs[1].Content)
	assert.Equal(t, strings.Repeat("c", 30), msgs[2].Content)
}

func TestTruncateHistoryIsDeterministic(t *testing.T) {
	s := NewPromptService(6, 500)
	var history []model.Message
	for i := 0; i < 20; i++ {
		history = append(history, model.Message{SenderType: model.SenderCustomer, Content: strings.Repeat("m", 50)})
	}

	first := s.BuildMessages(testRestaurant(), testMenuContext(), history, "q")
	second := s.BuildMessages(testRestaurant(), testMenuContext(), history, "q")
	assert.Equal(t, first, second)
}

func TestFallbackResponseUsesPersonaName(t *testing.T) {
	s := NewPromptService(10, 4000)
	reply := s.FallbackResponse(testRestaurant())
	assert.Contains(t, reply, "Sofia")
	assert.Contains(t, reply, "La Tavola")
}
