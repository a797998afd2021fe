package repository

import (
	"tabletalk-go/internal/model"

	"gorm.io/gorm"
)

// AdminUserRepository 接口定义了后台账号的持久化操作。
type AdminUserRepository interface {
	Create(user *model.AdminUser) error
	FindByUsername(username string) (*model.AdminUser, error)
	FindByID(id uint) (*model.AdminUser, error)
	Update(user *model.AdminUser) error
}

// adminUserRepository 是 AdminUserRepository 接口的 GORM 实现。
type adminUserRepository struct {
	db *gorm.DB
}

// NewAdminUserRepository 创建一个新的 AdminUserRepository 实例。
func NewAdminUserRepository(db *gorm.DB) AdminUserRepository {
	return &adminUserRepository{db: db}
}

// Create 在数据库中创建一个新的后台账号。
func (r *adminUserRepository) Create(user *model.AdminUser) error {
	return r.db.Create(user).Error
}

// FindByUsername 根据用户名查找后台账号。
func (r *adminUserRepository) FindByUsername(username string) (*model.AdminUser, error) {
	var user model.AdminUser
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID 根据 ID 查找后台账号。
func (r *adminUserRepository) FindByID(id uint) (*model.AdminUser, error) {
	var user model.AdminUser
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Update 更新后台账号。
func (r *adminUserRepository) Update(user *model.AdminUser) error {
	return r.db.Save(user).Error
}
