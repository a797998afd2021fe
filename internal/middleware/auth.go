// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"tabletalk-go/internal/model"
	"tabletalk-go/internal/repository"
	"tabletalk-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 创建一个 Gin 中间件，用于后台接口的 JWT 认证。
// 它会从请求头中提取 token，验证其有效性，并将完整的 AdminUser 对象存入 Gin 的上下文中。
func AuthMiddleware(jwtManager *token.JWTManager, adminRepo repository.AdminUserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从 Authorization 请求头中获取 token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			// 如果请求头为空，则中止请求，返回未授权状态
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请求未包含授权头"})
			return
		}

		// Token 通常以 "Bearer <token>" 的形式提供，我们需要提取出 token 本身
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			// 如果 token 格式不正确，则返回错误
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效的授权头格式"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效或已过期的 token"})
			return
		}

		// 使用 claims 中的账号 ID 从数据库获取完整的账号信息
		admin, err := adminRepo.FindByID(claims.AdminID)
		if err != nil || !admin.IsActive {
			// 如果根据 token 中的账号信息无法找到账号，说明该账号可能已被删除或停用
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "账号不存在或已停用"})
			return
		}

		// 将完整的 AdminUser 对象存储在 context 中，供后续处理函数使用
		c.Set("admin", admin)
		c.Set("claims", claims)

		// 继续处理请求链中的下一个处理器
		c.Next()
	}
}

// CurrentAdmin 从 Gin 上下文中取出认证后的账号。
func CurrentAdmin(c *gin.Context) (*model.AdminUser, bool) {
	v, ok := c.Get("admin")
	if !ok {
		return nil, false
	}
	admin, ok := v.(*model.AdminUser)
	return admin, ok
}
