// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"tabletalk-go/internal/model"
	"tabletalk-go/internal/service"
	"tabletalk-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理对话相关的 HTTP、SSE 与 WebSocket 请求。
type ChatHandler struct {
	chatService       service.ChatService
	restaurantService service.RestaurantService
	// 每连接停止标志
	stopFlags sync.Map // key: session pointer string, value: bool
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, restaurantService service.RestaurantService) *ChatHandler {
	return &ChatHandler{
		chatService:       chatService,
		restaurantService: restaurantService,
	}
}

// ChatRequest 定义了对话 API 的请求体结构。
type ChatRequest struct {
	Message   string        `json:"message" binding:"required"`
	SessionID string        `json:"session_id" binding:"required"`
	Context   model.JSONMap `json:"context"`
}

// requestMeta 从请求中提取客户端元信息。
func requestMeta(c *gin.Context, ctx model.JSONMap) service.RequestMeta {
	return service.RequestMeta{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
		Context:   ctx,
	}
}

// bindChatRequest 绑定并校验对话请求体。校验失败时已写出 400 响应。
// 流式接口也走这里：校验必须发生在切换到事件流之前。
func bindChatRequest(c *gin.Context) (ChatRequest, bool) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：message 和 session_id 不能为空",
		})
		return req, false
	}
	return req, true
}

// loadRestaurant 根据路径中的 slug 解析餐厅，找不到时写出 404 并返回 nil。
func (h *ChatHandler) loadRestaurant(c *gin.Context) *model.Restaurant {
	slug := c.Param("slug")
	restaurant, err := h.restaurantService.GetBySlug(slug)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "餐厅不存在",
		})
		return nil
	}
	return restaurant
}

// Send 处理一次性对话请求。
func (h *ChatHandler) Send(c *gin.Context) {
	restaurant := h.loadRestaurant(c)
	if restaurant == nil {
		return
	}

	req, ok := bindChatRequest(c)
	if !ok {
		return
	}

	result, err := h.chatService.SendMessage(c.Request.Context(), restaurant, req.SessionID, req.Message, requestMeta(c, req.Context))
	if err != nil {
		log.Errorf("处理对话请求失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "对话服务暂时不可用",
		})
		return
	}

	data := gin.H{
		"message":         result.Reply,
		"conversation_id": result.ConversationID,
		"suggestions":     h.chatService.Suggestions(restaurant),
	}
	if result.MessageID != "" {
		data["message_id"] = result.MessageID
	}
	if result.Fallback {
		data["message_type"] = "fallback"
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

// sseChunkWriter 把流式分块包装成 SSE 事件写出。实现 llm.ChunkWriter 接口。
type sseChunkWriter struct {
	c *gin.Context
}

// WriteChunk 下发一个 token 事件并立即刷出。
func (w *sseChunkWriter) WriteChunk(content string) error {
	payload, err := json.Marshal(gin.H{"type": "token", "content": content})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.c.Writer, "data: %s\n\n", payload); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}

// writeSSEEvent 写出一个终止事件（done 或 error）。
func writeSSEEvent(c *gin.Context, payload gin.H) {
	b, _ := json.Marshal(payload)
	fmt.Fprintf(c.Writer, "data: %s\n\n", b)
	c.Writer.Flush()
}

// Stream 处理流式对话请求，以 SSE 逐 token 下发。
// 客户端断开时请求上下文被取消，生成中止且不落助手消息。
func (h *ChatHandler) Stream(c *gin.Context) {
	restaurant := h.loadRestaurant(c)
	if restaurant == nil {
		return
	}

	req, ok := bindChatRequest(c)
	if !ok {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	writer := &sseChunkWriter{c: c}
	result, err := h.chatService.StreamMessage(c.Request.Context(), restaurant, req.SessionID, req.Message, requestMeta(c, req.Context), writer)
	if err != nil {
		log.Errorf("流式对话失败: %v", err)
		writeSSEEvent(c, gin.H{"type": "error", "error": "对话服务暂时不可用，请稍后重试"})
		return
	}

	writeSSEEvent(c, gin.H{
		"type":            "done",
		"conversation_id": result.ConversationID,
		"message_id":      result.MessageID,
	})
}

// GetSuggestions 返回开场建议问题。
func (h *ChatHandler) GetSuggestions(c *gin.Context) {
	restaurant := h.loadRestaurant(c)
	if restaurant == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"suggestions": h.chatService.Suggestions(restaurant)},
	})
}

// FeedbackRequest 定义了对话反馈 API 的请求体结构。
type FeedbackRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	Rating         int    `json:"rating" binding:"required"`
	Comment        string `json:"comment"`
}

// Feedback 处理对话反馈上报。
func (h *ChatHandler) Feedback(c *gin.Context) {
	restaurant := h.loadRestaurant(c)
	if restaurant == nil {
		return
	}

	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：conversation_id 和 rating 不能为空",
		})
		return
	}

	err := h.chatService.RecordFeedback(c.Request.Context(), restaurant, req.ConversationID, req.Rating, req.Comment, requestMeta(c, nil))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "反馈已记录"})
}

// wsChunkWriter 把流式分块包装成 {"type":"token"} JSON 写入 WebSocket。
// 停止标志置位后跳过下发，但不打断生成收集。
type wsChunkWriter struct {
	conn       *websocket.Conn
	shouldStop func() bool
}

// WriteChunk 满足 llm.ChunkWriter 接口。
func (w *wsChunkWriter) WriteChunk(content string) error {
	if w.shouldStop != nil && w.shouldStop() {
		// 停止标志生效：跳过下发
		return nil
	}
	payload := gin.H{"type": "token", "content": content}
	b, _ := json.Marshal(payload)
	return w.conn.WriteMessage(websocket.TextMessage, b)
}

// wsMessage 是 WebSocket 入站消息的结构。
type wsMessage struct {
	Type      string        `json:"type"` // "message" 或 "stop"
	Message   string        `json:"message"`
	SessionID string        `json:"session_id"`
	Context   model.JSONMap `json:"context"`
}

// sendWSCompletion 发送完成通知 JSON。
func sendWSCompletion(conn *websocket.Conn, result *service.ChatResult) {
	notif := gin.H{
		"type":      "completion",
		"status":    "finished",
		"timestamp": time.Now().UnixMilli(),
	}
	if result != nil {
		notif["conversation_id"] = result.ConversationID
		notif["message_id"] = result.MessageID
	}
	b, _ := json.Marshal(notif)
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

// HandleWS 处理一个传入的 WebSocket 聊天连接。
func (h *ChatHandler) HandleWS(c *gin.Context) {
	slug := c.Param("slug")
	restaurant, err := h.restaurantService.GetBySlug(slug)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "餐厅不存在"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，餐厅: %s", restaurant.Slug)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			errResp := gin.H{"type": "error", "error": "无法解析消息"}
			b, _ := json.Marshal(errResp)
			_ = conn.WriteMessage(websocket.TextMessage, b)
			continue
		}

		// 停止指令：置位停止标志，后续分块不再下发
		if msg.Type == "stop" {
			h.stopFlags.Store(sessionKey(conn), true)
			resp := gin.H{"type": "stop", "message": "响应已停止", "timestamp": time.Now().UnixMilli()}
			b, _ := json.Marshal(resp)
			_ = conn.WriteMessage(websocket.TextMessage, b)
			continue
		}

		if msg.Message == "" || msg.SessionID == "" {
			errResp := gin.H{"type": "error", "error": "message 和 session_id 不能为空"}
			b, _ := json.Marshal(errResp)
			_ = conn.WriteMessage(websocket.TextMessage, b)
			continue
		}

		// 清除旧标志
		h.stopFlags.Delete(sessionKey(conn))
		shouldStop := func() bool {
			v, ok := h.stopFlags.Load(sessionKey(conn))
			return ok && v.(bool)
		}

		writer := &wsChunkWriter{conn: conn, shouldStop: shouldStop}
		meta := service.RequestMeta{UserAgent: c.Request.UserAgent(), IPAddress: c.ClientIP(), Context: msg.Context}
		result, err := h.chatService.StreamMessage(c.Request.Context(), restaurant, msg.SessionID, msg.Message, meta, writer)
		if err != nil {
			log.Errorf("处理流式响应失败: %v", err)
			errResp := gin.H{"type": "error", "error": "对话服务暂时不可用，请稍后重试"}
			b, _ := json.Marshal(errResp)
			_ = conn.WriteMessage(websocket.TextMessage, b)
			sendWSCompletion(conn, nil)
			continue
		}
		sendWSCompletion(conn, result)
	}

	h.stopFlags.Delete(sessionKey(conn))
}

func sessionKey(conn *websocket.Conn) string {
	return fmt.Sprintf("%p", conn)
}
