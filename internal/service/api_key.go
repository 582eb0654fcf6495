package service

import (
	"errors"
	"fmt"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/repository"
	"gorm.io/gorm"
)

// keyResolver 为知识库编辑类操作选择 Gemini Key：优先学校自己的 Key，其次配置中的兜底 Key。
type keyResolver struct {
	schoolRepo repository.SchoolRepository
	fallback   string
}

func (k keyResolver) resolve(schoolCode string) (string, error) {
	auth, err := k.schoolRepo.FindAuth(schoolCode)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to load school auth: %w", err)
	}
	if err == nil && auth.IsActive() && auth.GeminiAPIKey != "" {
		return auth.GeminiAPIKey, nil
	}
	if k.fallback != "" {
		return k.fallback, nil
	}
	return "", ErrKeyNotConfigured
}
