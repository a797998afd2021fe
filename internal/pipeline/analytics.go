// Package pipeline 实现 Kafka 埋点事件的消费侧处理。
package pipeline

import (
	"context"
	"fmt"

	"tabletalk-go/internal/model"
	"tabletalk-go/internal/repository"
	"tabletalk-go/pkg/es"
	"tabletalk-go/pkg/events"
	"tabletalk-go/pkg/log"
)

// AnalyticsProcessor 消费埋点事件：全部事件落库，菜单变更事件同时刷新检索索引。
// 它实现了 kafka.EventProcessor 接口。
type AnalyticsProcessor struct {
	analyticsRepo  repository.AnalyticsRepository
	restaurantRepo repository.RestaurantRepository
	menuRepo       repository.MenuRepository
	esClient       *es.Client
}

// NewAnalyticsProcessor 创建一个新的 AnalyticsProcessor 实例。esClient 可以为 nil。
func NewAnalyticsProcessor(
	analyticsRepo repository.AnalyticsRepository,
	restaurantRepo repository.RestaurantRepository,
	menuRepo repository.MenuRepository,
	esClient *es.Client,
) *AnalyticsProcessor {
	return &AnalyticsProcessor{
		analyticsRepo:  analyticsRepo,
		restaurantRepo: restaurantRepo,
		menuRepo:       menuRepo,
		esClient:       esClient,
	}
}

// Process 处理一条埋点事件。返回错误会触发消费端的有限重投。
func (p *AnalyticsProcessor) Process(ctx context.Context, event events.InteractionEvent) error {
	record := &model.InteractionAnalytics{
		ID:           event.EventID,
		RestaurantID: event.RestaurantID,
		EventType:    event.EventType,
		EventData:    model.JSONMap(event.EventData),
		UserAgent:    event.UserAgent,
		IPAddress:    event.IPAddress,
	}
	if event.ConversationID != "" {
		convID := event.ConversationID
		record.ConversationID = &convID
	}
	if err := p.analyticsRepo.Create(record); err != nil {
		return fmt.Errorf("保存埋点记录失败: %w", err)
	}

	if event.EventType == model.EventMenuChanged {
		if err := p.syncSearchIndex(ctx, event); err != nil {
			// 索引刷新失败只记日志：埋点已落库，重投会造成重复主键
			log.Errorf("刷新检索索引失败: %v", err)
		}
	}
	return nil
}

// syncSearchIndex 根据菜单变更事件同步 Elasticsearch 索引。
func (p *AnalyticsProcessor) syncSearchIndex(ctx context.Context, event events.InteractionEvent) error {
	if p.esClient == nil {
		return nil
	}
	itemID, _ := event.EventData["item_id"].(string)
	action, _ := event.EventData["action"].(string)
	if itemID == "" {
		return nil
	}

	if action == "item_deleted" {
		return p.esClient.DeleteMenuItem(ctx, itemID)
	}

	item, err := p.menuRepo.FindItemByID(itemID)
	if err != nil {
		return fmt.Errorf("加载菜品失败: %w", err)
	}
	restaurant, err := p.restaurantRepo.FindByID(item.RestaurantID)
	if err != nil {
		return fmt.Errorf("加载餐厅失败: %w", err)
	}

	categoryName := ""
	if item.CategoryID != nil {
		if category, err := p.menuRepo.FindCategoryByID(*item.CategoryID); err == nil {
			categoryName = category.Name
		}
	}

	doc := model.MenuItemDoc{
		ItemID:         item.ID,
		RestaurantID:   item.RestaurantID,
		RestaurantSlug: restaurant.Slug,
		Name:           item.Name,
		Description:    item.Description,
		CategoryName:   categoryName,
		Price:          item.Price,
		Tags:           item.Tags,
		Allergens:      item.AllergenInfo,
		IsAvailable:    item.IsAvailable,
	}
	return p.esClient.IndexMenuItem(ctx, doc)
}
