package handler

import (
	"net/http"
	"strconv"

	"tabletalk-go/internal/model"
	"tabletalk-go/internal/service"
	"tabletalk-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// RestaurantHandler 负责处理餐厅相关的 API 请求（公开读 + 管理端写）。
type RestaurantHandler struct {
	restaurantService service.RestaurantService
	menuService       service.MenuService
	searchService     service.SearchService
}

// NewRestaurantHandler 创建一个新的 RestaurantHandler 实例。
func NewRestaurantHandler(
	restaurantService service.RestaurantService,
	menuService service.MenuService,
	searchService service.SearchService,
) *RestaurantHandler {
	return &RestaurantHandler{
		restaurantService: restaurantService,
		menuService:       menuService,
		searchService:     searchService,
	}
}

// GetBySlug 公开接口：按 slug 返回餐厅信息。
func (h *RestaurantHandler) GetBySlug(c *gin.Context) {
	restaurant, err := h.restaurantService.GetBySlug(c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "餐厅不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": restaurant})
}

// GetAvatarConfig 公开接口：返回餐厅的助手人设配置。
func (h *RestaurantHandler) GetAvatarConfig(c *gin.Context) {
	restaurant, err := h.restaurantService.GetBySlug(c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "餐厅不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": restaurant.AvatarConfig})
}

// GetMenu 公开接口：返回餐厅的完整菜单。
func (h *RestaurantHandler) GetMenu(c *gin.Context) {
	restaurant, err := h.restaurantService.GetBySlug(c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "餐厅不存在"})
		return
	}

	menu, err := h.menuService.GetFullMenu(restaurant)
	if err != nil {
		log.Errorf("加载菜单失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "加载菜单失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": menu})
}

// GetMenuItem 公开接口：返回菜品详情（含配料与合并后的过敏原）。
func (h *RestaurantHandler) GetMenuItem(c *gin.Context) {
	detail, err := h.menuService.GetItemDetail(c.Request.Context(), c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "菜品不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": detail})
}

// SearchMenuItems 公开接口：在餐厅范围内检索菜品。
func (h *RestaurantHandler) SearchMenuItems(c *gin.Context) {
	slug := c.Query("restaurant")
	query := c.Query("q")
	if slug == "" || query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "restaurant 和 q 参数不能为空"})
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	restaurant, err := h.restaurantService.GetBySlug(slug)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "餐厅不存在"})
		return
	}

	docs, err := h.searchService.SearchMenuItems(c.Request.Context(), restaurant, query, size)
	if err != nil {
		log.Errorf("菜品检索失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "检索失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"items": docs, "total": len(docs)}})
}

// SearchRestaurants 公开接口：按名称或菜系检索餐厅。
func (h *RestaurantHandler) SearchRestaurants(c *gin.Context) {
	keyword := c.Query("q")
	if keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "q 参数不能为空"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	restaurants, err := h.restaurantService.Search(keyword, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "检索失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": restaurants})
}

// CreateRestaurantRequest 定义了创建餐厅 API 的请求体结构。
type CreateRestaurantRequest struct {
	Name         string        `json:"name" binding:"required"`
	Slug         string        `json:"slug" binding:"required"`
	CuisineType  string        `json:"cuisineType"`
	Description  string        `json:"description"`
	AvatarConfig model.JSONMap `json:"avatarConfig"`
	ContactInfo  model.JSONMap `json:"contactInfo"`
	Settings     model.JSONMap `json:"settings"`
}

// Create 管理端接口：创建餐厅。
func (h *RestaurantHandler) Create(c *gin.Context) {
	var req CreateRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载：name 和 slug 不能为空"})
		return
	}

	restaurant := &model.Restaurant{
		Name:         req.Name,
		Slug:         req.Slug,
		CuisineType:  req.CuisineType,
		Description:  req.Description,
		AvatarConfig: req.AvatarConfig,
		ContactInfo:  req.ContactInfo,
		Settings:     req.Settings,
		IsActive:     true,
	}
	if err := h.restaurantService.Create(restaurant); err != nil {
		c.JSON(http.StatusConflict, gin.H{"code": http.StatusConflict, "message": err.Error()})
		return
	}

	log.Infof("餐厅 '%s' 创建成功", restaurant.Slug)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": restaurant})
}

// List 管理端接口：分页列出餐厅。
func (h *RestaurantHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	restaurants, total, err := h.restaurantService.List(page, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "加载餐厅列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"list": restaurants, "total": total, "page": page, "size": size},
	})
}

// UpdateRestaurantRequest 定义了更新餐厅 API 的请求体结构。
type UpdateRestaurantRequest struct {
	Name        string        `json:"name"`
	CuisineType string        `json:"cuisineType"`
	Description string        `json:"description"`
	ContactInfo model.JSONMap `json:"contactInfo"`
	Settings    model.JSONMap `json:"settings"`
}

// Update 管理端接口：更新餐厅信息。
func (h *RestaurantHandler) Update(c *gin.Context) {
	restaurant, err := h.restaurantService.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "餐厅不存在"})
		return
	}

	var req UpdateRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载"})
		return
	}

	if req.Name != "" {
		restaurant.Name = req.Name
	}
	if req.CuisineType != "" {
		restaurant.CuisineType = req.CuisineType
	}
	if req.Description != "" {
		restaurant.Description = req.Description
	}
	if req.ContactInfo != nil {
		restaurant.ContactInfo = req.ContactInfo
	}
	if req.Settings != nil {
		restaurant.Settings = req.Settings
	}

	if err := h.restaurantService.Update(restaurant); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "更新餐厅失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": restaurant})
}

// UpdateAvatarConfig 管理端接口：更新助手人设配置。
func (h *RestaurantHandler) UpdateAvatarConfig(c *gin.Context) {
	var avatar model.JSONMap
	if err := c.ShouldBindJSON(&avatar); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载"})
		return
	}

	if err := h.restaurantService.UpdateAvatarConfig(c.Param("id"), avatar); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "更新人设配置失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "人设配置更新成功"})
}

// Delete 管理端接口：停用餐厅（软删除）。
func (h *RestaurantHandler) Delete(c *gin.Context) {
	if err := h.restaurantService.Deactivate(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "停用餐厅失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "餐厅已停用"})
}
