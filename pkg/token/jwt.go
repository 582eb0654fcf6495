// Package token 提供了管理员会话 JWT 的签发与校验，以及随机密钥的生成。
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken 表示 token 签名不匹配、已过期或格式错误。
var ErrInvalidToken = errors.New("invalid token")

// JWTManager 负责管理 JWT 的生成和验证。
type JWTManager struct {
	secretKey []byte        // secretKey 用于签名和验证 token 的密钥
	ttl       time.Duration // ttl 定义了会话 token 的有效期
	now       func() time.Time
}

// AdminClaims 是管理员会话 cookie 中保存的声明。
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWTManager 创建一个新的 JWTManager 实例。
func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secret),
		ttl:       ttl,
		now:       time.Now,
	}
}

// TTL 返回 token 有效期，用于设置 cookie 的 MaxAge。
func (m *JWTManager) TTL() time.Duration {
	return m.ttl
}

// GenerateToken 为指定用户名签发一个会话 token。
func (m *JWTManager) GenerateToken(username, role string) (string, error) {
	if len(m.secretKey) == 0 {
		return "", errors.New("session secret is not configured")
	}
	now := m.now()
	claims := AdminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secretKey)
}

// VerifyToken 验证 token 字符串，成功时返回其中的声明。
func (m *JWTManager) VerifyToken(tokenString string) (*AdminClaims, error) {
	if len(m.secretKey) == 0 || tokenString == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(t *jwt.Token) (interface{}, error) {
		// 只接受 HMAC 签名
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims, ok := parsed.Claims.(*AdminClaims); ok && parsed.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// RandomHex 生成 n 个随机字节并以十六进制字符串返回（长度为 2n）。
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
