package service

import (
	"tabletalk-go/internal/model"
	"tabletalk-go/internal/repository"
)

// AnalyticsSummary 是管理端埋点汇总的展示结构。
type AnalyticsSummary struct {
	RestaurantID string           `json:"restaurantId"`
	Totals       map[string]int64 `json:"totals"`
}

// AnalyticsService 定义了埋点数据的读侧业务操作。
// 写侧走 Kafka：生产者在对话与目录路径上，消费者在 pipeline 包里落库。
type AnalyticsService interface {
	GetSummary(restaurantID string) (*AnalyticsSummary, error)
	GetRecentEvents(restaurantID string, limit int) ([]model.InteractionAnalytics, error)
}

type analyticsService struct {
	analyticsRepo repository.AnalyticsRepository
}

// NewAnalyticsService 创建一个新的 AnalyticsService 实例。
func NewAnalyticsService(analyticsRepo repository.AnalyticsRepository) AnalyticsService {
	return &analyticsService{analyticsRepo: analyticsRepo}
}

// GetSummary 返回餐厅按事件类型汇总的埋点计数。
func (s *analyticsService) GetSummary(restaurantID string) (*AnalyticsSummary, error) {
	totals, err := s.analyticsRepo.CountByEventType(restaurantID)
	if err != nil {
		return nil, err
	}
	return &AnalyticsSummary{RestaurantID: restaurantID, Totals: totals}, nil
}

// GetRecentEvents 返回餐厅最近的埋点事件明细。
func (s *analyticsService) GetRecentEvents(restaurantID string, limit int) ([]model.InteractionAnalytics, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.analyticsRepo.FindRecent(restaurantID, limit)
}
