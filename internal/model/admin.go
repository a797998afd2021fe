// Package model 包含了应用的数据模型定义。
package model

import "time"

// AdminUser 对应于数据库中的 'admin_users' 表。
// 平台管理员账号，只用于保护管理端 CRUD 接口；顾客聊天不需要账号。
type AdminUser struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"` // bcrypt hash
	Role      string    `gorm:"type:varchar(20);not null;default:'admin'" json:"role"`
	IsActive  bool      `gorm:"default:true" json:"isActive"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (AdminUser) TableName() string {
	return "admin_users"
}
