// Package service 包含了应用的业务逻辑层。
package service

import "errors"

// 业务错误，由 handler 映射为 HTTP 状态码。
var (
	ErrSchoolNotFound     = errors.New("school not found")
	ErrSchoolCodeExists   = errors.New("school code already exists")
	ErrKeyNotConfigured   = errors.New("gemini api key is not configured for this school")
	ErrInvalidMode        = errors.New("invalid knowledge base update mode")
	ErrNoFields           = errors.New("no knowledge base fields supplied")
	ErrNoValidJSON        = errors.New("No valid JSON in Gemini response")
	ErrInvalidTimeframe   = errors.New("invalid timeframe")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already exists for this school")
	ErrImageNotFound      = errors.New("image not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrStorageDisabled    = errors.New("object storage is not configured")
)
