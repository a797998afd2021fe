package service

import (
	"fmt"

	"tabletalk-go/internal/model"
	"tabletalk-go/internal/repository"
)

// RestaurantService 定义了餐厅管理的业务操作。
type RestaurantService interface {
	Create(restaurant *model.Restaurant) error
	GetBySlug(slug string) (*model.Restaurant, error)
	GetByID(id string) (*model.Restaurant, error)
	List(page, size int) ([]model.Restaurant, int64, error)
	Search(keyword string, limit int) ([]model.Restaurant, error)
	Update(restaurant *model.Restaurant) error
	UpdateAvatarConfig(id string, avatar model.JSONMap) error
	Deactivate(id string) error
}

type restaurantService struct {
	restaurantRepo repository.RestaurantRepository
}

// NewRestaurantService 创建一个新的 RestaurantService 实例。
func NewRestaurantService(restaurantRepo repository.RestaurantRepository) RestaurantService {
	return &restaurantService{restaurantRepo: restaurantRepo}
}

// Create 创建一个新餐厅，slug 必须全局唯一。
func (s *restaurantService) Create(restaurant *model.Restaurant) error {
	if restaurant.Name == "" || restaurant.Slug == "" {
		return fmt.Errorf("餐厅名称和 slug 不能为空")
	}
	if existing, _ := s.restaurantRepo.FindBySlug(restaurant.Slug); existing != nil {
		return fmt.Errorf("slug '%s' 已被占用", restaurant.Slug)
	}
	return s.restaurantRepo.Create(restaurant)
}

// GetBySlug 根据 slug 查找启用中的餐厅。
func (s *restaurantService) GetBySlug(slug string) (*model.Restaurant, error) {
	return s.restaurantRepo.FindBySlug(slug)
}

// GetByID 根据 ID 查找餐厅。
func (s *restaurantService) GetByID(id string) (*model.Restaurant, error) {
	return s.restaurantRepo.FindByID(id)
}

// List 分页列出餐厅。
func (s *restaurantService) List(page, size int) ([]model.Restaurant, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return s.restaurantRepo.FindWithPagination((page-1)*size, size)
}

// Search 按名称或菜系检索餐厅。
func (s *restaurantService) Search(keyword string, limit int) ([]model.Restaurant, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.restaurantRepo.Search(keyword, limit)
}

// Update 更新餐厅信息。
func (s *restaurantService) Update(restaurant *model.Restaurant) error {
	return s.restaurantRepo.Update(restaurant)
}

// UpdateAvatarConfig 更新助手人设配置。
func (s *restaurantService) UpdateAvatarConfig(id string, avatar model.JSONMap) error {
	return s.restaurantRepo.UpdateAvatarConfig(id, avatar)
}

// Deactivate 停用一个餐厅。
func (s *restaurantService) Deactivate(id string) error {
	return s.restaurantRepo.Deactivate(id)
}
