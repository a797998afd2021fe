// Package model 包含了应用的数据模型定义。
package model

// MenuContext 是供 prompt 组装使用的菜单快照，按分类组织。
// 它只由目录表中的真实行构建，整体以 JSON 形式缓存在 Redis 中。
type MenuContext struct {
	Categories []MenuContextCategory `json:"categories"`
}

// MenuContextCategory 是快照中的一个菜单分类。
type MenuContextCategory struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Items       []MenuContextItem `json:"items"`
}

// MenuContextItem 是快照中的一个菜品条目。
// Allergens 已经并入了配料携带的过敏原标注。
type MenuContextItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	IsSignature bool     `json:"isSignature"`
	SpiceLevel  int      `json:"spiceLevel"`
	Allergens   []string `json:"allergens"`
	Tags        []string `json:"tags"`
	Ingredients []string `json:"ingredients"`
}

// MenuItemDoc 是写入 Elasticsearch 菜品索引的文档结构。
type MenuItemDoc struct {
	ItemID         string   `json:"item_id"`
	RestaurantID   string   `json:"restaurant_id"`
	RestaurantSlug string   `json:"restaurant_slug"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	CategoryName   string   `json:"category_name"`
	Price          float64  `json:"price"`
	Tags           []string `json:"tags"`
	Allergens      []string `json:"allergens"`
	IsAvailable    bool     `json:"is_available"`
}

// ConversationSummaryDTO 是管理端对话列表的展示结构。
type ConversationSummaryDTO struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	MessageCount int64     `json:"messageCount"`
	StartedAt    LocalTime `json:"startedAt"`
	LastActivity LocalTime `json:"lastActivity"`
}
