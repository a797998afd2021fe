package repository

import (
	"tabletalk-go/internal/model"

	"gorm.io/gorm"
)

// AnalyticsRepository 接口定义了交互埋点数据的持久化操作。
type AnalyticsRepository interface {
	Create(record *model.InteractionAnalytics) error
	CountByEventType(restaurantID string) (map[string]int64, error)
	FindRecent(restaurantID string, limit int) ([]model.InteractionAnalytics, error)
}

// analyticsRepository 是 AnalyticsRepository 接口的 GORM 实现。
type analyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository 创建一个新的 AnalyticsRepository 实例。
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

// Create 写入一条埋点记录。
func (r *analyticsRepository) Create(record *model.InteractionAnalytics) error {
	return r.db.Create(record).Error
}

// CountByEventType 按事件类型统计餐厅的埋点数量。
func (r *analyticsRepository) CountByEventType(restaurantID string) (map[string]int64, error) {
	type row struct {
		EventType string
		Count     int64
	}
	var rows []row
	err := r.db.Model(&model.InteractionAnalytics{}).
		Select("event_type, COUNT(*) as count").
		Where("restaurant_id = ?", restaurantID).
		Group("event_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.EventType] = r.Count
	}
	return counts, nil
}

// FindRecent 返回餐厅最近的埋点记录。
func (r *analyticsRepository) FindRecent(restaurantID string, limit int) ([]model.InteractionAnalytics, error) {
	var records []model.InteractionAnalytics
	err := r.db.
		Where("restaurant_id = ?", restaurantID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
