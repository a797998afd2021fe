package service

import (
	"errors"
	"fmt"

	"tabletalk-go/internal/model"
	"tabletalk-go/internal/repository"
	"tabletalk-go/pkg/log"
	"tabletalk-go/pkg/token"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// LoginResult 是管理员登录成功后的返回结构。
type LoginResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Username     string `json:"username"`
	Role         string `json:"role"`
}

// AdminService 定义了后台账号的业务操作。
type AdminService interface {
	Login(username, password string) (*LoginResult, error)
	RefreshToken(refreshToken string) (*LoginResult, error)
	CreateAdmin(username, password, role string) error
	EnsureDefaultAdmin(username, password string)
}

type adminService struct {
	adminRepo  repository.AdminUserRepository
	jwtManager *token.JWTManager
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(adminRepo repository.AdminUserRepository, jwtManager *token.JWTManager) AdminService {
	return &adminService{adminRepo: adminRepo, jwtManager: jwtManager}
}

// Login 校验账号密码，成功后签发 access 与 refresh token。
func (s *adminService) Login(username, password string) (*LoginResult, error) {
	admin, err := s.adminRepo.FindByUsername(username)
	if err != nil {
		// 不区分“账号不存在”与“密码错误”，避免账号枚举
		return nil, fmt.Errorf("用户名或密码错误")
	}
	if !admin.IsActive {
		return nil, fmt.Errorf("账号已停用")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("用户名或密码错误")
	}

	accessToken, err := s.jwtManager.GenerateToken(admin.ID, admin.Username, admin.Role)
	if err != nil {
		return nil, fmt.Errorf("生成 token 失败: %w", err)
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(admin.ID, admin.Username, admin.Role)
	if err != nil {
		return nil, fmt.Errorf("生成 refresh token 失败: %w", err)
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Username:     admin.Username,
		Role:         admin.Role,
	}, nil
}

// RefreshToken 用有效的 refresh token 换发新的一对 token。
func (s *adminService) RefreshToken(refreshToken string) (*LoginResult, error) {
	claims, err := s.jwtManager.VerifyToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("无效或已过期的 refresh token")
	}

	admin, err := s.adminRepo.FindByID(claims.AdminID)
	if err != nil || !admin.IsActive {
		return nil, fmt.Errorf("账号不存在或已停用")
	}

	accessToken, err := s.jwtManager.GenerateToken(admin.ID, admin.Username, admin.Role)
	if err != nil {
		return nil, fmt.Errorf("生成 token 失败: %w", err)
	}
	newRefreshToken, err := s.jwtManager.GenerateRefreshToken(admin.ID, admin.Username, admin.Role)
	if err != nil {
		return nil, fmt.Errorf("生成 refresh token 失败: %w", err)
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		Username:     admin.Username,
		Role:         admin.Role,
	}, nil
}

// CreateAdmin 创建一个后台账号，密码以 bcrypt 哈希存储。
func (s *adminService) CreateAdmin(username, password, role string) error {
	if username == "" || len(password) < 8 {
		return fmt.Errorf("用户名不能为空且密码至少 8 位")
	}
	if role == "" {
		role = "admin"
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}
	return s.adminRepo.Create(&model.AdminUser{
		Username: username,
		Password: string(hashed),
		Role:     role,
		IsActive: true,
	})
}

// EnsureDefaultAdmin 在启动时确保存在一个初始管理员账号，已存在则跳过。
func (s *adminService) EnsureDefaultAdmin(username, password string) {
	if username == "" || password == "" {
		return
	}
	_, err := s.adminRepo.FindByUsername(username)
	if err == nil {
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("检查初始管理员账号失败: %v", err)
		return
	}
	if err := s.CreateAdmin(username, password, "admin"); err != nil {
		log.Errorf("创建初始管理员账号失败: %v", err)
		return
	}
	log.Infof("初始管理员账号 '%s' 创建成功", username)
}
