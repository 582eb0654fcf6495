// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/service"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/log"
	"github.com/gin-gonic/gin"
)

// respondError 把 service 层错误映射为 HTTP 状态码并写出 {"error": ...}。
// 4xx 只记 Warn，5xx 记 Error 并隐藏内部细节。
func respondError(c *gin.Context, op string, err error) {
	status, message := http.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, service.ErrSchoolNotFound):
		status, message = http.StatusNotFound, "School not found"
	case errors.Is(err, service.ErrImageNotFound):
		status, message = http.StatusNotFound, "Image not found"
	case errors.Is(err, service.ErrSchoolCodeExists):
		status, message = http.StatusConflict, "School code already exists"
	case errors.Is(err, service.ErrUsernameTaken):
		status, message = http.StatusConflict, "Username already exists"
	case errors.Is(err, service.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, service.ErrInvalidMode),
		errors.Is(err, service.ErrNoFields),
		errors.Is(err, service.ErrInvalidTimeframe),
		errors.Is(err, service.ErrInvalidInput):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrStorageDisabled):
		status, message = http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, service.ErrKeyNotConfigured), errors.Is(err, service.ErrNoValidJSON):
		message = err.Error()
	}

	if status >= http.StatusInternalServerError {
		log.Error(op, err)
	} else {
		log.Warnf("%s: %v", op, err)
	}
	c.JSON(status, gin.H{"error": message})
}

// schoolCodeParam 读取并校验路径中的学校代码，非法时直接写出 400。
func schoolCodeParam(c *gin.Context) (string, bool) {
	code := c.Param("schoolCode")
	if !service.ValidSchoolCode(code) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid school code"})
		return "", false
	}
	return code, true
}
