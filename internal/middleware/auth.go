// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/repository"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/log"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SchoolContextKey 是租户中间件在 gin 上下文中存放学校授权记录的键。
const SchoolContextKey = "school"

// SchoolAPIKeyMiddleware 创建一个 Gin 中间件，通过 X-API-Key 请求头识别租户。
// 它会查找持有该 Key 且状态为 active 的学校，并将授权记录存入 Gin 的上下文中。
func SchoolAPIKeyMiddleware(schoolRepo repository.SchoolRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}

		school, err := schoolRepo.FindActiveAuthByAPIKey(apiKey)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
				return
			}
			log.Error("SchoolAPIKeyMiddleware: 查询 API Key 失败", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.Set(SchoolContextKey, school)
		c.Next()
	}
}
