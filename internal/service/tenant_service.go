package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/repository"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/hash"
	"gorm.io/gorm"
)

// TenantMetrics 是租户 API 的仪表盘统计。
type TenantMetrics struct {
	TotalUsers    int64 `json:"totalUsers"`
	TotalSessions int64 `json:"totalSessions"`
	TotalMessages int64 `json:"totalMessages"`
}

// TenantService 处理通过 X-API-Key 访问的租户接口，所有操作都限定在该学校内。
type TenantService interface {
	Dashboard(school *model.SchoolAuth) (*TenantMetrics, error)
	ListUsers(school *model.SchoolAuth) ([]model.SchoolUser, error)
	CreateUser(school *model.SchoolAuth, username, password string) (*model.SchoolUser, error)
}

type tenantService struct {
	userRepo repository.SchoolUserRepository
	chatRepo repository.ChatRepository
}

// NewTenantService 创建一个新的 TenantService 实例。
func NewTenantService(userRepo repository.SchoolUserRepository, chatRepo repository.ChatRepository) TenantService {
	return &tenantService{userRepo: userRepo, chatRepo: chatRepo}
}

func (s *tenantService) Dashboard(school *model.SchoolAuth) (*TenantMetrics, error) {
	users, err := s.userRepo.CountBySchool(school.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	sessions, err := s.chatRepo.CountSessions(school.SchoolCode)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}
	messages, err := s.chatRepo.CountUserMessages(school.SchoolCode)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	return &TenantMetrics{TotalUsers: users, TotalSessions: sessions, TotalMessages: messages}, nil
}

func (s *tenantService) ListUsers(school *model.SchoolAuth) ([]model.SchoolUser, error) {
	users, err := s.userRepo.FindBySchool(school.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// CreateUser 在学校内创建用户，密码以 bcrypt 哈希保存。
func (s *tenantService) CreateUser(school *model.SchoolAuth, username, password string) (*model.SchoolUser, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	_, err := s.userRepo.FindByUsername(school.ID, username)
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hashed, err := hash.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &model.SchoolUser{SchoolID: school.ID, Username: username, Password: hashed}
	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}
