// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Restaurant 对应于数据库中的 'restaurants' 表。
// AvatarConfig 保存助手人设（名字、问候语、语气等），会被注入 prompt。
type Restaurant struct {
	ID           string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Slug         string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	CuisineType  string    `gorm:"type:varchar(100)" json:"cuisineType"`
	Description  string    `gorm:"type:text" json:"description"`
	AvatarConfig JSONMap   `gorm:"type:json" json:"avatarConfig"`
	ContactInfo  JSONMap   `gorm:"type:json" json:"contactInfo"`
	Settings     JSONMap   `gorm:"type:json" json:"settings"`
	IsActive     bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Restaurant) TableName() string {
	return "restaurants"
}

// BeforeCreate 在创建前生成 UUID 主键。
func (r *Restaurant) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// MenuCategory 对应于数据库中的 'menu_categories' 表。
type MenuCategory struct {
	ID           string    `gorm:"type:char(36);primaryKey" json:"id"`
	RestaurantID string    `gorm:"type:char(36);index;not null" json:"restaurantId"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	DisplayOrder int       `gorm:"not null;default:0" json:"displayOrder"`
	IsActive     bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (MenuCategory) TableName() string {
	return "menu_categories"
}

// BeforeCreate 在创建前生成 UUID 主键。
func (c *MenuCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// MenuItem 对应于数据库中的 'menu_items' 表。
// AllergenInfo 存储该菜品自身标注的过敏原；完整过敏原列表还要并上配料的标注。
type MenuItem struct {
	ID              string     `gorm:"type:char(36);primaryKey" json:"id"`
	RestaurantID    string     `gorm:"type:char(36);index;not null" json:"restaurantId"`
	CategoryID      *string    `gorm:"type:char(36);index" json:"categoryId"`
	Name            string     `gorm:"type:varchar(255);not null" json:"name"`
	Description     string     `gorm:"type:text" json:"description"`
	Price           float64    `gorm:"type:decimal(10,2);not null" json:"price"`
	ImageURL        string     `gorm:"type:varchar(500)" json:"imageUrl"`
	IsAvailable     bool       `gorm:"not null;default:true" json:"isAvailable"`
	IsSignature     bool       `gorm:"not null;default:false" json:"isSignature"`
	SpiceLevel      int        `gorm:"not null;default:0" json:"spiceLevel"`
	PreparationTime int        `gorm:"default:0" json:"preparationTime"` // 分钟
	NutritionalInfo JSONMap    `gorm:"type:json" json:"nutritionalInfo"`
	AllergenInfo    StringList `gorm:"type:json" json:"allergenInfo"`
	Tags            StringList `gorm:"type:json" json:"tags"` // 如 "vegan"、"gluten-free"
	DisplayOrder    int        `gorm:"not null;default:0" json:"displayOrder"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`

	Ingredients []MenuItemIngredient `gorm:"foreignKey:MenuItemID" json:"ingredients,omitempty"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (MenuItem) TableName() string {
	return "menu_items"
}

// BeforeCreate 在创建前生成 UUID 主键。
func (i *MenuItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Ingredient 对应于数据库中的 'ingredients' 表。配料在全平台内按名称唯一。
type Ingredient struct {
	ID           string     `gorm:"type:char(36);primaryKey" json:"id"`
	Name         string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Category     string     `gorm:"type:varchar(100)" json:"category"`
	AllergenInfo StringList `gorm:"type:json" json:"allergenInfo"`
	IsActive     bool       `gorm:"not null;default:true" json:"isActive"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Ingredient) TableName() string {
	return "ingredients"
}

// BeforeCreate 在创建前生成 UUID 主键。
func (i *Ingredient) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// MenuItemIngredient 对应于 'menu_item_ingredients' 关联表。
// IsPrimary 区分主料与点缀，IsOptional 表示可去掉的配料。
type MenuItemIngredient struct {
	MenuItemID   string `gorm:"type:char(36);primaryKey" json:"menuItemId"`
	IngredientID string `gorm:"type:char(36);primaryKey" json:"ingredientId"`
	Quantity     string `gorm:"type:varchar(50)" json:"quantity"`
	Unit         string `gorm:"type:varchar(20)" json:"unit"`
	IsOptional   bool   `gorm:"not null;default:false" json:"isOptional"`
	IsPrimary    bool   `gorm:"not null;default:false" json:"isPrimary"`

	Ingredient *Ingredient `gorm:"foreignKey:IngredientID" json:"ingredient,omitempty"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (MenuItemIngredient) TableName() string {
	return "menu_item_ingredients"
}
