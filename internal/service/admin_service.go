package service

import (
	"crypto/subtle"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/config"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/hash"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/log"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/token"
)

const adminRole = "SCHOOL_ADMIN"

// AdminService 校验唯一的后台管理员凭据并签发会话 token。
type AdminService interface {
	Login(username, password string) (string, error)
	IsAuthenticated(sessionToken string) bool
}

type adminService struct {
	username     string
	passwordHash string
	jwtManager   *token.JWTManager
}

// NewAdminService 创建一个新的 AdminService。凭据来自配置，未配置时登录永远失败。
func NewAdminService(cfg config.AdminConfig, jwtManager *token.JWTManager) AdminService {
	return &adminService{
		username:     cfg.Username,
		passwordHash: cfg.PasswordHash,
		jwtManager:   jwtManager,
	}
}

func (s *adminService) Login(username, password string) (string, error) {
	if s.username == "" || s.passwordHash == "" {
		log.Warnf("Login: 管理员凭据未配置")
		return "", ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := hash.CheckPasswordHash(password, s.passwordHash)
	if !userOK || !passOK {
		return "", ErrInvalidCredentials
	}
	return s.jwtManager.GenerateToken(username, adminRole)
}

// IsAuthenticated 校验会话 token，任何错误都视为未登录。
func (s *adminService) IsAuthenticated(sessionToken string) bool {
	claims, err := s.jwtManager.VerifyToken(sessionToken)
	if err != nil {
		return false
	}
	return claims.Role == adminRole && claims.Subject == s.username
}
