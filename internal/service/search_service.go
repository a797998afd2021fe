package service

import (
	"context"

	"tabletalk-go/internal/model"
	"tabletalk-go/internal/repository"
	"tabletalk-go/pkg/es"
	"tabletalk-go/pkg/log"
)

// SearchService 定义了菜品检索的业务操作。
// 首选 Elasticsearch，检索失败时回退到数据库 LIKE 查询。
type SearchService interface {
	SearchMenuItems(ctx context.Context, restaurant *model.Restaurant, query string, size int) ([]model.MenuItemDoc, error)
}

type searchService struct {
	esClient *es.Client
	menuRepo repository.MenuRepository
}

// NewSearchService 创建一个新的 SearchService 实例。esClient 可以为 nil（纯数据库模式）。
func NewSearchService(esClient *es.Client, menuRepo repository.MenuRepository) SearchService {
	return &searchService{esClient: esClient, menuRepo: menuRepo}
}

// SearchMenuItems 在餐厅范围内检索菜品。
func (s *searchService) SearchMenuItems(ctx context.Context, restaurant *model.Restaurant, query string, size int) ([]model.MenuItemDoc, error) {
	if size <= 0 || size > 50 {
		size = 10
	}

	if s.esClient != nil {
		docs, err := s.esClient.SearchMenuItems(ctx, restaurant.Slug, query, size)
		if err == nil {
			return docs, nil
		}
		log.Errorf("Elasticsearch 检索失败，回退到数据库查询: %v", err)
	}

	items, err := s.menuRepo.SearchItems(restaurant.ID, query, size)
	if err != nil {
		return nil, err
	}

	docs := make([]model.MenuItemDoc, 0, len(items))
	for _, item := range items {
		docs = append(docs, model.MenuItemDoc{
			ItemID:         item.ID,
			RestaurantID:   item.RestaurantID,
			RestaurantSlug: restaurant.Slug,
			Name:           item.Name,
			Description:    item.Description,
			Price:          item.Price,
			Tags:           item.Tags,
			Allergens:      item.AllergenInfo,
			IsAvailable:    item.IsAvailable,
		})
	}
	return docs, nil
}
