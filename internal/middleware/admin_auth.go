// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/service"
	"github.com/gin-gonic/gin"
)

// AdminCookieName 是保存管理员会话 token 的 cookie 名称。
const AdminCookieName = "schoolAdmin"

// AdminSessionMiddleware 检查请求是否携带有效的管理员会话 cookie。
func AdminSessionMiddleware(adminService service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionToken, err := c.Cookie(AdminCookieName)
		if err != nil || sessionToken == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		// 签名无效、已过期或用户名不匹配
		if !adminService.IsAuthenticated(sessionToken) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Next()
	}
}
