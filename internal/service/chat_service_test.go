package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"tabletalk-go/internal/model"
	"tabletalk-go/pkg/events"
	"tabletalk-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConversationRepo 是内存版的会话仓库，用于验证落库行为。
type fakeConversationRepo struct {
	conversation        model.Conversation
	messages            []model.Message
	nextID              int
	failAssistantAppend bool
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		conversation: model.Conversation{ID: "conv-1", RestaurantID: "r-1", SessionID: "sess-1", IsActive: true},
	}
}

func (f *fakeConversationRepo) GetOrCreate(restaurantID, sessionID string, ctx model.JSONMap) (*model.Conversation, error) {
	c := f.conversation
	return &c, nil
}

func (f *fakeConversationRepo) UpdateContext(conversationID string, ctx model.JSONMap) error {
	merged := make(model.JSONMap, len(f.conversation.Context)+len(ctx))
	for k, v := range f.conversation.Context {
		merged[k] = v
	}
	for k, v := range ctx {
		merged[k] = v
	}
	f.conversation.Context = merged
	return nil
}

func (f *fakeConversationRepo) FindByID(id string) (*model.Conversation, error) {
	c := f.conversation
	return &c, nil
}

func (f *fakeConversationRepo) FindWithMessages(id string) (*model.Conversation, error) {
	c := f.conversation
	c.Messages = f.messages
	return &c, nil
}

func (f *fakeConversationRepo) AppendMessage(m *model.Message) error {
	if f.failAssistantAppend && m.SenderType == model.SenderAssistant {
		return fmt.Errorf("insert failed")
	}
	f.nextID++
	m.ID = fmt.Sprintf("msg-%d", f.nextID)
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeConversationRepo) GetRecentMessages(conversationID string, limit int) ([]model.Message, error) {
	if len(f.messages) > limit {
		return f.messages[len(f.messages)-limit:], nil
	}
	return f.messages, nil
}

func (f *fakeConversationRepo) CountMessages(conversationID string) (int64, error) {
	return int64(len(f.messages)), nil
}

func (f *fakeConversationRepo) ListByRestaurant(restaurantID string, offset, limit int) ([]model.Conversation, int64, error) {
	return []model.Conversation{f.conversation}, 1, nil
}

func (f *fakeConversationRepo) TouchActivity(conversationID string) error { return nil }
func (f *fakeConversationRepo) Close(conversationID string) error         { return nil }

func (f *fakeConversationRepo) bySender(sender string) []model.Message {
	var out []model.Message
	for _, m := range f.messages {
		if m.SenderType == sender {
			out = append(out, m)
		}
	}
	return out
}

// fakeMenuProvider 返回固定的菜单快照。
type fakeMenuProvider struct{}

func (fakeMenuProvider) GetMenuContext(ctx context.Context, restaurantID string) (*model.MenuContext, error) {
	return testMenuContext(), nil
}

// fakeLLM 可配置的 LLM 客户端：按 chunks 流式下发，或直接返回错误。
type fakeLLM struct {
	chunks []string
	err    error
	// errAfterChunks 表示先下发部分分块再失败（模拟中途断流）
	errAfterChunks int
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams) (string, error) {
	if f.err != nil && f.errAfterChunks == 0 {
		return "", f.err
	}
	return strings.Join(f.chunks, ""), nil
}

func (f *fakeLLM) StreamChat(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams, writer llm.ChunkWriter) (string, error) {
	if f.err != nil && f.errAfterChunks == 0 {
		return "", f.err
	}
	var full strings.Builder
	for i, chunk := range f.chunks {
		if f.err != nil && i == f.errAfterChunks {
			return "", f.err
		}
		full.WriteString(chunk)
		if err := writer.WriteChunk(chunk); err != nil {
			return "", err
		}
	}
	return full.String(), nil
}

// fakePublisher 记录发送过的事件。
type fakePublisher struct {
	published []events.InteractionEvent
}

func (f *fakePublisher) PublishEvent(ctx context.Context, event events.InteractionEvent) error {
	f.published = append(f.published, event)
	return nil
}

// collectWriter 按顺序收集流式分块。
type collectWriter struct {
	chunks []string
}

func (w *collectWriter) WriteChunk(content string) error {
	w.chunks = append(w.chunks, content)
	return nil
}

func newTestChatService(repo *fakeConversationRepo, client llm.Client, pub EventPublisher) ChatService {
	return NewChatService(NewPromptService(10, 4000), fakeMenuProvider{}, client, repo, pub, 10)
}

func TestSendMessagePersistsUserAndAssistantRows(t *testing.T) {
	repo := newFakeConversationRepo()
	pub := &fakePublisher{}
	svc := newTestChatService(repo, &fakeLLM{chunks: []string{"We have ", "Carbonara."}}, pub)

	result, err := svc.SendMessage(context.Background(), testRestaurant(), "sess-1", "what pasta?", RequestMeta{})

	require.NoError(t, err)
	assert.Equal(t, "We have Carbonara.", result.Reply)
	assert.Equal(t, "conv-1", result.ConversationID)
	assert.NotEmpty(t, result.MessageID)
	assert.False(t, result.Fallback)

	require.Len(t, repo.bySender(model.SenderCustomer), 1)
	require.Len(t, repo.bySender(model.SenderAssistant), 1)
	assert.Equal(t, "what pasta?", repo.bySender(model.SenderCustomer)[0].Content)
	assert.Equal(t, "We have Carbonara.", repo.bySender(model.SenderAssistant)[0].Content)

	require.Len(t, pub.published, 1)
	assert.Equal(t, model.EventChatMessage, pub.published[0].EventType)
}

func TestSendMessageProviderFailureKeepsUserRowOnly(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := newTestChatService(repo, &fakeLLM{err: llm.ErrUnavailable}, &fakePublisher{})

	result, err := svc.SendMessage(context.Background(), testRestaurant(), "sess-1", "what soup do you have?", RequestMeta{})

	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Empty(t, result.MessageID)
	assert.Contains(t, result.Reply, "Sofia")

	assert.Len(t, repo.bySender(model.SenderCustomer), 1)
	assert.Empty(t, repo.bySender(model.SenderAssistant))
}

func TestStreamMessageChunksArriveInOrder(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := newTestChatService(repo, &fakeLLM{chunks: []string{"a", "b", "c"}}, &fakePublisher{})
	writer := &collectWriter{}

	result, err := svc.StreamMessage(context.Background(), testRestaurant(), "sess-1", "any specials?", RequestMeta{}, writer)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, writer.chunks)
	assert.Equal(t, "abc", result.Reply)

	assistant := repo.bySender(model.SenderAssistant)
	require.Len(t, assistant, 1)
	assert.Equal(t, strings.Join(writer.chunks, ""), assistant[0].Content)
}

func TestStreamMessageMidStreamFailureLeavesNoAssistantRow(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := newTestChatService(repo, &fakeLLM{chunks: []string{"par", "tial"}, err: context.Canceled, errAfterChunks: 1}, &fakePublisher{})
	writer := &collectWriter{}

	_, err := svc.StreamMessage(context.Background(), testRestaurant(), "sess-1", "tell me more", RequestMeta{}, writer)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	// 已下发的部分分块被丢弃，不落助手消息；用户消息保留
	assert.Len(t, repo.bySender(model.SenderCustomer), 1)
	assert.Empty(t, repo.bySender(model.SenderAssistant))
}

func TestStreamAndOneShotPersistIdenticalText(t *testing.T) {
	chunks := []string{"Th", "e sp", "ecial is ", "risotto."}

	streamRepo := newFakeConversationRepo()
	streamSvc := newTestChatService(streamRepo, &fakeLLM{chunks: chunks}, &fakePublisher{})
	_, err := streamSvc.StreamMessage(context.Background(), testRestaurant(), "sess-1", "special?", RequestMeta{}, &collectWriter{})
	require.NoError(t, err)

	oneShotRepo := newFakeConversationRepo()
	oneShotSvc := newTestChatService(oneShotRepo, &fakeLLM{chunks: chunks}, &fakePublisher{})
	_, err = oneShotSvc.SendMessage(context.Background(), testRestaurant(), "sess-1", "special?", RequestMeta{})
	require.NoError(t, err)

	streamed := streamRepo.bySender(model.SenderAssistant)
	oneShot := oneShotRepo.bySender(model.SenderAssistant)
	require.Len(t, streamed, 1)
	require.Len(t, oneShot, 1)
	assert.Equal(t, streamed[0].Content, oneShot[0].Content)
}

func TestRequestContextMergedOnEveryRequest(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := newTestChatService(repo, &fakeLLM{chunks: []string{"ok"}}, &fakePublisher{})

	_, err := svc.SendMessage(context.Background(), testRestaurant(), "sess-1", "first question",
		RequestMeta{Context: model.JSONMap{"table": "12", "language": "en"}})
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), testRestaurant(), "sess-1", "second question",
		RequestMeta{Context: model.JSONMap{"language": "it", "last_item": "Carbonara"}})
	require.NoError(t, err)

	// 已有会话的 context 逐键合并，相同键以新值覆盖
	assert.Equal(t, model.JSONMap{
		"table":     "12",
		"language":  "it",
		"last_item": "Carbonara",
	}, repo.conversation.Context)
}

func TestAssistantWriteFailureSurfacesOnOneShotOnly(t *testing.T) {
	repo := newFakeConversationRepo()
	repo.failAssistantAppend = true
	svc := newTestChatService(repo, &fakeLLM{chunks: []string{"reply"}}, &fakePublisher{})

	_, err := svc.SendMessage(context.Background(), testRestaurant(), "sess-1", "what pasta?", RequestMeta{})
	require.Error(t, err)

	// 流式路径下回复已经送达，落库失败降级为日志
	writer := &collectWriter{}
	result, err := svc.StreamMessage(context.Background(), testRestaurant(), "sess-1", "what pasta?", RequestMeta{}, writer)
	require.NoError(t, err)
	assert.Equal(t, "reply", result.Reply)
	assert.Empty(t, result.MessageID)
}

func TestGreetingAnsweredWithoutProviderCall(t *testing.T) {
	repo := newFakeConversationRepo()
	client := &fakeLLM{err: llm.ErrUnavailable} // 任何模型调用都会失败
	svc := newTestChatService(repo, client, &fakePublisher{})

	result, err := svc.SendMessage(context.Background(), testRestaurant(), "sess-1", "Hello!", RequestMeta{})

	require.NoError(t, err)
	assert.False(t, result.Fallback)
	assert.Contains(t, result.Reply, "La Tavola")
	// 寒暄回复与正常回复的持久化语义一致
	require.Len(t, repo.bySender(model.SenderCustomer), 1)
	require.Len(t, repo.bySender(model.SenderAssistant), 1)
}

func TestQuestionWithGreetingWordStillUsesProvider(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := newTestChatService(repo, &fakeLLM{chunks: []string{"We have Carbonara."}}, &fakePublisher{})

	result, err := svc.SendMessage(context.Background(), testRestaurant(), "sess-1", "hi, do you have pasta?", RequestMeta{})

	require.NoError(t, err)
	assert.Equal(t, "We have Carbonara.", result.Reply)
}

func TestSendMessageRejectsEmptyInput(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := newTestChatService(repo, &fakeLLM{chunks: []string{"x"}}, &fakePublisher{})

	_, err := svc.SendMessage(context.Background(), testRestaurant(), "sess-1", "   ", RequestMeta{})

	require.Error(t, err)
	assert.Empty(t, repo.messages)
}

func TestRecordFeedbackValidatesRating(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestChatService(newFakeConversationRepo(), &fakeLLM{}, pub)

	err := svc.RecordFeedback(context.Background(), testRestaurant(), "conv-1", 0, "", RequestMeta{})
	require.Error(t, err)
	assert.Empty(t, pub.published)

	err = svc.RecordFeedback(context.Background(), testRestaurant(), "conv-1", 5, "great", RequestMeta{})
	require.NoError(t, err)
	require.Len(t, pub.published, 1)
	assert.Equal(t, model.EventChatFeedback, pub.published[0].EventType)
}

func TestSuggestionsIncludeCuisineSpecific(t *testing.T) {
	svc := newTestChatService(newFakeConversationRepo(), &fakeLLM{}, &fakePublisher{})

	suggestions := svc.Suggestions(testRestaurant())

	assert.GreaterOrEqual(t, len(suggestions), 5)
	assert.Contains(t, suggestions, "Which pasta dishes do you have?")
}
