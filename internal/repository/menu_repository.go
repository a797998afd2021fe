// Package repository 提供了数据访问层的实现。
package repository

import (
	"tabletalk-go/internal/model"

	"gorm.io/gorm"
)

// MenuRepository 接口定义了菜单目录（分类、菜品、配料）的持久化操作。
type MenuRepository interface {
	// 分类
	CreateCategory(category *model.MenuCategory) error
	FindActiveCategories(restaurantID string) ([]model.MenuCategory, error)
	FindCategoryByID(id string) (*model.MenuCategory, error)
	UpdateCategory(category *model.MenuCategory) error
	DeactivateCategory(id string) error

	// 菜品
	CreateItem(item *model.MenuItem) error
	FindItemByID(id string) (*model.MenuItem, error)
	FindItemWithIngredients(id string) (*model.MenuItem, error)
	FindAvailableItems(restaurantID string) ([]model.MenuItem, error)
	FindAvailableItemsByCategory(restaurantID, categoryID string) ([]model.MenuItem, error)
	UpdateItem(item *model.MenuItem) error
	DeleteItem(id string) error
	SearchItems(restaurantID, keyword string, limit int) ([]model.MenuItem, error)

	// 配料
	CreateIngredient(ingredient *model.Ingredient) error
	FindIngredientByID(id string) (*model.Ingredient, error)
	FindActiveIngredients() ([]model.Ingredient, error)
	LinkIngredient(link *model.MenuItemIngredient) error
	UnlinkIngredient(menuItemID, ingredientID string) error
	FindItemIngredients(menuItemID string) ([]model.MenuItemIngredient, error)
}

// menuRepository 是 MenuRepository 接口的 GORM 实现。
type menuRepository struct {
	db *gorm.DB
}

// NewMenuRepository 创建一个新的 MenuRepository 实例。
func NewMenuRepository(db *gorm.DB) MenuRepository {
	return &menuRepository{db: db}
}

// CreateCategory 创建一个菜单分类。
func (r *menuRepository) CreateCategory(category *model.MenuCategory) error {
	return r.db.Create(category).Error
}

// FindActiveCategories 按显示顺序返回餐厅的全部启用分类。
func (r *menuRepository) FindActiveCategories(restaurantID string) ([]model.MenuCategory, error) {
	var categories []model.MenuCategory
	err := r.db.
		Where("restaurant_id = ? AND is_active = ?", restaurantID, true).
		Order("display_order ASC").
		Find(&categories).Error
	return categories, err
}

// FindCategoryByID 根据 ID 查找一个分类。
func (r *menuRepository) FindCategoryByID(id string) (*model.MenuCategory, error) {
	var category model.MenuCategory
	if err := r.db.First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// UpdateCategory 更新一个分类。
func (r *menuRepository) UpdateCategory(category *model.MenuCategory) error {
	return r.db.Save(category).Error
}

// DeactivateCategory 软删除一个分类。
func (r *menuRepository) DeactivateCategory(id string) error {
	return r.db.Model(&model.MenuCategory{}).Where("id = ?", id).Update("is_active", false).Error
}

// CreateItem 创建一个菜品。
func (r *menuRepository) CreateItem(item *model.MenuItem) error {
	return r.db.Create(item).Error
}

// FindItemByID 根据 ID 查找一个菜品。
func (r *menuRepository) FindItemByID(id string) (*model.MenuItem, error) {
	var item model.MenuItem
	if err := r.db.First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemWithIngredients 查找菜品并预加载配料关联。
func (r *menuRepository) FindItemWithIngredients(id string) (*model.MenuItem, error) {
	var item model.MenuItem
	err := r.db.
		Preload("Ingredients").
		Preload("Ingredients.Ingredient").
		First(&item, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindAvailableItems 返回餐厅的全部可售菜品。
func (r *menuRepository) FindAvailableItems(restaurantID string) ([]model.MenuItem, error) {
	var items []model.MenuItem
	err := r.db.
		Where("restaurant_id = ? AND is_available = ?", restaurantID, true).
		Order("display_order ASC").
		Find(&items).Error
	return items, err
}

// FindAvailableItemsByCategory 返回某分类下的可售菜品。
func (r *menuRepository) FindAvailableItemsByCategory(restaurantID, categoryID string) ([]model.MenuItem, error) {
	var items []model.MenuItem
	err := r.db.
		Where("restaurant_id = ? AND category_id = ? AND is_available = ?", restaurantID, categoryID, true).
		Order("display_order ASC").
		Find(&items).Error
	return items, err
}

// UpdateItem 更新一个菜品。
func (r *menuRepository) UpdateItem(item *model.MenuItem) error {
	return r.db.Save(item).Error
}

// DeleteItem 删除一个菜品及其配料关联。
func (r *menuRepository) DeleteItem(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("menu_item_id = ?", id).Delete(&model.MenuItemIngredient{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.MenuItem{}, "id = ?", id).Error
	})
}

// SearchItems 用 LIKE 在菜名与描述上做模糊检索，作为 Elasticsearch 不可用时的回退。
func (r *menuRepository) SearchItems(restaurantID, keyword string, limit int) ([]model.MenuItem, error) {
	var items []model.MenuItem
	pattern := "%" + keyword + "%"
	err := r.db.
		Where("restaurant_id = ? AND is_available = ?", restaurantID, true).
		Where("name LIKE ? OR description LIKE ?", pattern, pattern).
		Limit(limit).
		Find(&items).Error
	return items, err
}

// CreateIngredient 创建一个配料。
func (r *menuRepository) CreateIngredient(ingredient *model.Ingredient) error {
	return r.db.Create(ingredient).Error
}

// FindIngredientByID 根据 ID 查找一个配料。
func (r *menuRepository) FindIngredientByID(id string) (*model.Ingredient, error) {
	var ingredient model.Ingredient
	if err := r.db.First(&ingredient, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ingredient, nil
}

// FindActiveIngredients 返回全部启用配料。
func (r *menuRepository) FindActiveIngredients() ([]model.Ingredient, error) {
	var ingredients []model.Ingredient
	err := r.db.Where("is_active = ?", true).Order("name ASC").Find(&ingredients).Error
	return ingredients, err
}

// LinkIngredient 建立菜品与配料的关联。
func (r *menuRepository) LinkIngredient(link *model.MenuItemIngredient) error {
	return r.db.Create(link).Error
}

// UnlinkIngredient 解除菜品与配料的关联。
func (r *menuRepository) UnlinkIngredient(menuItemID, ingredientID string) error {
	return r.db.
		Where("menu_item_id = ? AND ingredient_id = ?", menuItemID, ingredientID).
		Delete(&model.MenuItemIngredient{}).Error
}

// FindItemIngredients 返回菜品的配料关联并预加载配料本体。
func (r *menuRepository) FindItemIngredients(menuItemID string) ([]model.MenuItemIngredient, error) {
	var links []model.MenuItemIngredient
	err := r.db.
		Preload("Ingredient").
		Where("menu_item_id = ?", menuItemID).
		Find(&links).Error
	return links, err
}
