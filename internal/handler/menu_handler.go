package handler

import (
	"net/http"

	"tabletalk-go/internal/model"
	"tabletalk-go/internal/service"
	"tabletalk-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// MenuHandler 负责处理管理端的菜单目录 CRUD 请求。
type MenuHandler struct {
	menuService service.MenuService
}

// NewMenuHandler 创建一个新的 MenuHandler 实例。
func NewMenuHandler(menuService service.MenuService) *MenuHandler {
	return &MenuHandler{menuService: menuService}
}

// CategoryRequest 定义了分类创建/更新 API 的请求体结构。
type CategoryRequest struct {
	RestaurantID string `json:"restaurantId" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"displayOrder"`
}

// CreateCategory 创建菜单分类。
func (h *MenuHandler) CreateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载：restaurantId 和 name 不能为空"})
		return
	}

	category := &model.MenuCategory{
		RestaurantID: req.RestaurantID,
		Name:         req.Name,
		Description:  req.Description,
		DisplayOrder: req.DisplayOrder,
		IsActive:     true,
	}
	if err := h.menuService.CreateCategory(c.Request.Context(), category); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": category})
}

// UpdateCategory 更新菜单分类。
func (h *MenuHandler) UpdateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载"})
		return
	}

	category := &model.MenuCategory{
		ID:           c.Param("categoryId"),
		RestaurantID: req.RestaurantID,
		Name:         req.Name,
		Description:  req.Description,
		DisplayOrder: req.DisplayOrder,
		IsActive:     true,
	}
	if err := h.menuService.UpdateCategory(c.Request.Context(), category); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": category})
}

// DeleteCategory 停用菜单分类。
func (h *MenuHandler) DeleteCategory(c *gin.Context) {
	restaurantID := c.Query("restaurantId")
	if err := h.menuService.DeleteCategory(c.Request.Context(), restaurantID, c.Param("categoryId")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "停用分类失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "分类已停用"})
}

// ItemRequest 定义了菜品创建/更新 API 的请求体结构。
type ItemRequest struct {
	RestaurantID    string           `json:"restaurantId" binding:"required"`
	CategoryID      *string          `json:"categoryId"`
	Name            string           `json:"name" binding:"required"`
	Description     string           `json:"description"`
	Price           float64          `json:"price"`
	IsAvailable     *bool            `json:"isAvailable"`
	IsSignature     bool             `json:"isSignature"`
	SpiceLevel      int              `json:"spiceLevel"`
	PreparationTime int              `json:"preparationTime"`
	NutritionalInfo model.JSONMap    `json:"nutritionalInfo"`
	AllergenInfo    model.StringList `json:"allergenInfo"`
	Tags            model.StringList `json:"tags"`
	DisplayOrder    int              `json:"displayOrder"`
}

// CreateItem 创建菜品。
func (h *MenuHandler) CreateItem(c *gin.Context) {
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载：restaurantId 和 name 不能为空"})
		return
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}
	item := &model.MenuItem{
		RestaurantID:    req.RestaurantID,
		CategoryID:      req.CategoryID,
		Name:            req.Name,
		Description:     req.Description,
		Price:           req.Price,
		IsAvailable:     available,
		IsSignature:     req.IsSignature,
		SpiceLevel:      req.SpiceLevel,
		PreparationTime: req.PreparationTime,
		NutritionalInfo: req.NutritionalInfo,
		AllergenInfo:    req.AllergenInfo,
		Tags:            req.Tags,
		DisplayOrder:    req.DisplayOrder,
	}
	if err := h.menuService.CreateItem(c.Request.Context(), item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": err.Error()})
		return
	}
	log.Infof("菜品 '%s' 创建成功", item.Name)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": item})
}

// UpdateItem 更新菜品。
func (h *MenuHandler) UpdateItem(c *gin.Context) {
	detail, err := h.menuService.GetItemDetail(c.Request.Context(), c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "菜品不存在"})
		return
	}
	item := detail.Item

	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载"})
		return
	}

	item.CategoryID = req.CategoryID
	item.Name = req.Name
	item.Description = req.Description
	item.Price = req.Price
	if req.IsAvailable != nil {
		item.IsAvailable = *req.IsAvailable
	}
	item.IsSignature = req.IsSignature
	item.SpiceLevel = req.SpiceLevel
	item.PreparationTime = req.PreparationTime
	item.NutritionalInfo = req.NutritionalInfo
	item.AllergenInfo = req.AllergenInfo
	item.Tags = req.Tags
	item.DisplayOrder = req.DisplayOrder
	// 关联行不随 Save 级联写
	item.Ingredients = nil

	if err := h.menuService.UpdateItem(c.Request.Context(), item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": item})
}

// DeleteItem 删除菜品。
func (h *MenuHandler) DeleteItem(c *gin.Context) {
	itemID := c.Param("itemId")
	detail, err := h.menuService.GetItemDetail(c.Request.Context(), itemID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "菜品不存在"})
		return
	}

	if err := h.menuService.DeleteItem(c.Request.Context(), detail.Item.RestaurantID, itemID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "删除菜品失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "菜品已删除"})
}

// UploadItemImage 上传菜品图片。
func (h *MenuHandler) UploadItemImage(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少图片文件"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "读取图片文件失败"})
		return
	}
	defer file.Close()

	url, err := h.menuService.UploadItemImage(
		c.Request.Context(),
		c.Param("itemId"),
		file,
		fileHeader.Size,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Filename,
	)
	if err != nil {
		log.Errorf("上传菜品图片失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "上传图片失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"imageUrl": url}})
}

// IngredientRequest 定义了配料创建 API 的请求体结构。
type IngredientRequest struct {
	Name         string           `json:"name" binding:"required"`
	Category     string           `json:"category"`
	AllergenInfo model.StringList `json:"allergenInfo"`
}

// CreateIngredient 创建配料。
func (h *MenuHandler) CreateIngredient(c *gin.Context) {
	var req IngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载：name 不能为空"})
		return
	}

	ingredient := &model.Ingredient{
		Name:         req.Name,
		Category:     req.Category,
		AllergenInfo: req.AllergenInfo,
		IsActive:     true,
	}
	if err := h.menuService.CreateIngredient(ingredient); err != nil {
		c.JSON(http.StatusConflict, gin.H{"code": http.StatusConflict, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": ingredient})
}

// ListIngredients 列出全部启用配料。
func (h *MenuHandler) ListIngredients(c *gin.Context) {
	ingredients, err := h.menuService.ListIngredients()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "加载配料列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": ingredients})
}

// LinkIngredientRequest 定义了菜品配料关联 API 的请求体结构。
type LinkIngredientRequest struct {
	IngredientID string `json:"ingredientId" binding:"required"`
	Quantity     string `json:"quantity"`
	Unit         string `json:"unit"`
	IsOptional   bool   `json:"isOptional"`
	IsPrimary    bool   `json:"isPrimary"`
}

// LinkIngredient 建立菜品与配料的关联。
func (h *MenuHandler) LinkIngredient(c *gin.Context) {
	var req LinkIngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载：ingredientId 不能为空"})
		return
	}

	link := &model.MenuItemIngredient{
		MenuItemID:   c.Param("itemId"),
		IngredientID: req.IngredientID,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		IsOptional:   req.IsOptional,
		IsPrimary:    req.IsPrimary,
	}
	if err := h.menuService.LinkIngredient(c.Request.Context(), link); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": link})
}

// UnlinkIngredient 解除菜品与配料的关联。
func (h *MenuHandler) UnlinkIngredient(c *gin.Context) {
	itemID := c.Param("itemId")
	detail, err := h.menuService.GetItemDetail(c.Request.Context(), itemID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "菜品不存在"})
		return
	}

	err = h.menuService.UnlinkIngredient(c.Request.Context(), detail.Item.RestaurantID, itemID, c.Param("ingredientId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "解除关联失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "关联已解除"})
}
