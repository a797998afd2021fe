// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"tabletalk-go/internal/model"

	"gorm.io/gorm"
)

// RestaurantRepository 接口定义了餐厅数据的持久化操作。
type RestaurantRepository interface {
	Create(restaurant *model.Restaurant) error
	FindBySlug(slug string) (*model.Restaurant, error)
	FindByID(id string) (*model.Restaurant, error)
	FindWithPagination(offset, limit int) ([]model.Restaurant, int64, error)
	Search(keyword string, limit int) ([]model.Restaurant, error)
	Update(restaurant *model.Restaurant) error
	UpdateAvatarConfig(id string, avatar model.JSONMap) error
	Deactivate(id string) error
}

// restaurantRepository 是 RestaurantRepository 接口的 GORM 实现。
type restaurantRepository struct {
	db *gorm.DB
}

// NewRestaurantRepository 创建一个新的 RestaurantRepository 实例。
func NewRestaurantRepository(db *gorm.DB) RestaurantRepository {
	return &restaurantRepository{db: db}
}

// Create 在数据库中创建一个新的餐厅记录。
func (r *restaurantRepository) Create(restaurant *model.Restaurant) error {
	return r.db.Create(restaurant).Error
}

// FindBySlug 根据 slug 查找一个启用中的餐厅。
func (r *restaurantRepository) FindBySlug(slug string) (*model.Restaurant, error) {
	var restaurant model.Restaurant
	err := r.db.Where("slug = ? AND is_active = ?", slug, true).First(&restaurant).Error
	if err != nil {
		return nil, err
	}
	return &restaurant, nil
}

// FindByID 根据 ID 查找一个餐厅。
func (r *restaurantRepository) FindByID(id string) (*model.Restaurant, error) {
	var restaurant model.Restaurant
	err := r.db.First(&restaurant, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &restaurant, nil
}

// FindWithPagination 分页检索餐厅记录，返回列表、总记录数和可能发生的错误。
func (r *restaurantRepository) FindWithPagination(offset, limit int) ([]model.Restaurant, int64, error) {
	var restaurants []model.Restaurant
	var total int64

	db := r.db.Model(&model.Restaurant{})

	// 首先计算总记录数
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 然后根据偏移量和限制获取当前页的数据
	if err := db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&restaurants).Error; err != nil {
		return nil, 0, err
	}

	return restaurants, total, nil
}

// Search 按名称或菜系模糊检索启用中的餐厅。
func (r *restaurantRepository) Search(keyword string, limit int) ([]model.Restaurant, error) {
	var restaurants []model.Restaurant
	pattern := "%" + keyword + "%"
	err := r.db.
		Where("is_active = ?", true).
		Where("name LIKE ? OR cuisine_type LIKE ?", pattern, pattern).
		Limit(limit).
		Find(&restaurants).Error
	return restaurants, err
}

// Update 更新数据库中一个已存在的餐厅记录。
func (r *restaurantRepository) Update(restaurant *model.Restaurant) error {
	return r.db.Save(restaurant).Error
}

// UpdateAvatarConfig 只更新餐厅的助手人设配置。
func (r *restaurantRepository) UpdateAvatarConfig(id string, avatar model.JSONMap) error {
	return r.db.Model(&model.Restaurant{}).Where("id = ?", id).Update("avatar_config", avatar).Error
}

// Deactivate 软删除一个餐厅（置 is_active=false，不物理删除）。
func (r *restaurantRepository) Deactivate(id string) error {
	return r.db.Model(&model.Restaurant{}).Where("id = ?", id).Update("is_active", false).Error
}
