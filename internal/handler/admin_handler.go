package handler

import (
	"net/http"
	"strconv"

	"tabletalk-go/internal/service"
	"tabletalk-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理后台账号认证与管理端统计查询。
type AdminHandler struct {
	adminService        service.AdminService
	conversationService service.ConversationService
	analyticsService    service.AnalyticsService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(
	adminService service.AdminService,
	conversationService service.ConversationService,
	analyticsService service.AnalyticsService,
) *AdminHandler {
	return &AdminHandler{
		adminService:        adminService,
		conversationService: conversationService,
		analyticsService:    analyticsService,
	}
}

// LoginRequest 定义了管理员登录 API 的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理管理员登录请求。
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：用户名和密码不能为空",
		})
		return
	}

	result, err := h.adminService.Login(req.Username, req.Password)
	if err != nil {
		log.Warnf("管理员登录失败: username=%s, error: %v", req.Username, err)
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "无效的凭证",
		})
		return
	}

	log.Infof("管理员 '%s' 登录成功", req.Username)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}

// RefreshTokenRequest 定义了刷新 token API 的请求体结构。
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken 用 refresh token 换发新的一对 token。
func (h *AdminHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：refreshToken 不能为空",
		})
		return
	}

	result, err := h.adminService.RefreshToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}

// ListConversations 管理端接口：分页列出餐厅的会话摘要。
func (h *AdminHandler) ListConversations(c *gin.Context) {
	restaurantID := c.Param("id")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	summaries, total, err := h.conversationService.ListByRestaurant(restaurantID, page, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "加载会话列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"list": summaries, "total": total, "page": page, "size": size},
	})
}

// GetTranscript 管理端接口：返回会话的完整消息记录。
func (h *AdminHandler) GetTranscript(c *gin.Context) {
	conversation, err := h.conversationService.GetTranscript(c.Param("conversationId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "会话不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": conversation})
}

// GetAnalyticsSummary 管理端接口：返回餐厅的埋点汇总。
func (h *AdminHandler) GetAnalyticsSummary(c *gin.Context) {
	summary, err := h.analyticsService.GetSummary(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "加载埋点汇总失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": summary})
}

// GetRecentEvents 管理端接口：返回餐厅最近的埋点事件明细。
func (h *AdminHandler) GetRecentEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := h.analyticsService.GetRecentEvents(c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "加载埋点明细失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": records})
}
