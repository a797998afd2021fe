package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tabletalk-go/internal/model"
	"tabletalk-go/internal/service"
	"tabletalk-go/pkg/llm"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeRestaurantService 只实现按 slug 查找，其余方法不会被聊天接口用到。
type fakeRestaurantService struct {
	restaurant *model.Restaurant
}

func (f *fakeRestaurantService) GetBySlug(slug string) (*model.Restaurant, error) {
	if f.restaurant != nil && f.restaurant.Slug == slug {
		return f.restaurant, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRestaurantService) Create(r *model.Restaurant) error { return nil }
func (f *fakeRestaurantService) GetByID(id string) (*model.Restaurant, error) {
	return f.restaurant, nil
}
func (f *fakeRestaurantService) List(page, size int) ([]model.Restaurant, int64, error) {
	return nil, 0, nil
}
func (f *fakeRestaurantService) Search(keyword string, limit int) ([]model.Restaurant, error) {
	return nil, nil
}
func (f *fakeRestaurantService) Update(r *model.Restaurant) error { return nil }
func (f *fakeRestaurantService) UpdateAvatarConfig(id string, avatar model.JSONMap) error {
	return nil
}
func (f *fakeRestaurantService) Deactivate(id string) error { return nil }

// fakeChatService 可配置的对话服务。
type fakeChatService struct {
	chunks []string
	result *service.ChatResult
	err    error
}

func (f *fakeChatService) SendMessage(ctx context.Context, r *model.Restaurant, sessionID, input string, meta service.RequestMeta) (*service.ChatResult, error) {
	return f.result, f.err
}

func (f *fakeChatService) StreamMessage(ctx context.Context, r *model.Restaurant, sessionID, input string, meta service.RequestMeta, writer llm.ChunkWriter) (*service.ChatResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, chunk := range f.chunks {
		if err := writer.WriteChunk(chunk); err != nil {
			return nil, err
		}
	}
	return f.result, nil
}

func (f *fakeChatService) Suggestions(r *model.Restaurant) []string {
	return []string{"What are your most popular dishes?"}
}

func (f *fakeChatService) RecordFeedback(ctx context.Context, r *model.Restaurant, conversationID string, rating int, comment string, meta service.RequestMeta) error {
	return f.err
}

func setupChatRouter(chat service.ChatService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	restaurantSvc := &fakeRestaurantService{restaurant: &model.Restaurant{ID: "r-1", Slug: "la-tavola", Name: "La Tavola"}}
	h := NewChatHandler(chat, restaurantSvc)

	r := gin.New()
	r.POST("/api/v1/restaurants/:slug/chat", h.Send)
	r.POST("/api/v1/restaurants/:slug/chat/stream", h.Stream)
	r.GET("/api/v1/restaurants/:slug/chat/suggestions", h.GetSuggestions)
	r.POST("/api/v1/restaurants/:slug/chat/feedback", h.Feedback)
	return r
}

func TestSendReturnsEnvelope(t *testing.T) {
	chat := &fakeChatService{result: &service.ChatResult{ConversationID: "conv-1", MessageID: "msg-1", Reply: "Hello!"}}
	r := setupChatRouter(chat)

	body := `{"message":"hi","session_id":"sess-1"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/restaurants/la-tavola/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Code int            `json:"code"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Hello!", resp.Data["message"])
	assert.Equal(t, "conv-1", resp.Data["conversation_id"])
	assert.Equal(t, "msg-1", resp.Data["message_id"])
	assert.NotEmpty(t, resp.Data["suggestions"])
}

func TestSendUnknownRestaurantReturns404(t *testing.T) {
	r := setupChatRouter(&fakeChatService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/restaurants/nope/chat", strings.NewReader(`{"message":"hi","session_id":"s"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendRejectsMissingFields(t *testing.T) {
	r := setupChatRouter(&fakeChatService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/restaurants/la-tavola/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamWhitespaceMessageRejectedBeforeStreaming(t *testing.T) {
	r := setupChatRouter(&fakeChatService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/restaurants/la-tavola/chat/stream", strings.NewReader(`{"message":"   ","session_id":"s"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	// 校验失败必须发生在切换到事件流之前，以 400 JSON 返回
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEqual(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.NotContains(t, w.Body.String(), "data: ")
}

func TestStreamEmitsTokenAndDoneEvents(t *testing.T) {
	chat := &fakeChatService{
		chunks: []string{"Hel", "lo"},
		result: &service.ChatResult{ConversationID: "conv-1", MessageID: "msg-9"},
	}
	r := setupChatRouter(chat)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/restaurants/la-tavola/chat/stream", strings.NewReader(`{"message":"hi","session_id":"s"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	var types []string
	var contents []string
	for _, line := range strings.Split(w.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		types = append(types, event["type"].(string))
		if c, ok := event["content"].(string); ok {
			contents = append(contents, c)
		}
		if event["type"] == "done" {
			assert.Equal(t, "conv-1", event["conversation_id"])
			assert.Equal(t, "msg-9", event["message_id"])
		}
	}
	assert.Equal(t, []string{"token", "token", "done"}, types)
	assert.Equal(t, "Hello", strings.Join(contents, ""))
}

func TestStreamProviderFailureEmitsErrorEvent(t *testing.T) {
	chat := &fakeChatService{err: llm.ErrUnavailable}
	r := setupChatRouter(chat)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/restaurants/la-tavola/chat/stream", strings.NewReader(`{"message":"hi","session_id":"s"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Contains(t, w.Body.String(), `"type":"error"`)
	assert.NotContains(t, w.Body.String(), `"type":"done"`)
}

func TestFeedbackValidatesPayload(t *testing.T) {
	r := setupChatRouter(&fakeChatService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/restaurants/la-tavola/chat/feedback", strings.NewReader(`{"rating":5}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
