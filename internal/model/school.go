// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"time"

	"gorm.io/datatypes"
)

// 学校授权状态
const (
	SchoolStatusActive    = "active"
	SchoolStatusInactive  = "inactive"
	SchoolStatusSuspended = "suspended"
)

// 订阅等级
const (
	TierBasic      = "basic"
	TierPremium    = "premium"
	TierEnterprise = "enterprise"
)

// SchoolImage 是学校资料中的一张图片。
type SchoolImage struct {
	URL     string `json:"url"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
	Keyword string `json:"keyword,omitempty"`
}

// SchoolInfo 是学校资料中嵌套的 school 对象，各个分区都是自由文本。
type SchoolInfo struct {
	Name                  string        `json:"name"`
	GeneralInfo           string        `json:"generalInfo"`
	Infrastructure        string        `json:"infrastructure"`
	Fees                  string        `json:"fees"`
	AdmissionAndDocuments string        `json:"admissionAndDocuments"`
	ImportantNotes        string        `json:"importantNotes"`
	Bus                   string        `json:"bus"`
	Links                 string        `json:"links"`
	Miscellaneous         string        `json:"miscellaneous"`
	Images                []SchoolImage `json:"images,omitempty"`
}

// IsEmpty 判断资料是否没有任何可展示的内容。
func (s SchoolInfo) IsEmpty() bool {
	return s.Name == "" && s.GeneralInfo == "" && s.Infrastructure == "" && s.Fees == "" &&
		s.AdmissionAndDocuments == "" && s.ImportantNotes == "" && s.Bus == "" &&
		s.Links == "" && s.Miscellaneous == "" && len(s.Images) == 0
}

// SchoolProfile 对应 'school_data' 表，是一个租户的知识库文档。
type SchoolProfile struct {
	ID         uint                            `gorm:"primaryKey" json:"id"`
	SchoolCode string                          `gorm:"type:varchar(32);uniqueIndex;not null" json:"schoolCode"`
	School     datatypes.JSONType[SchoolInfo] `json:"school"`
	// KnowledgeBase 是旧版的自由 JSON 知识库，由 LLM 合并路径写入。
	KnowledgeBase datatypes.JSON `json:"knowledgeBase,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (SchoolProfile) TableName() string {
	return "school_data"
}

// HasKnowledgeBase 判断旧版知识库字段是否有内容。
func (p *SchoolProfile) HasKnowledgeBase() bool {
	kb := string(p.KnowledgeBase)
	return kb != "" && kb != "null" && kb != "{}"
}

// SchoolAuth 对应 'schools' 表，保存租户的 Gemini Key、状态和 API 凭据。
type SchoolAuth struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	SchoolCode       string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"schoolCode"`
	Name             string    `gorm:"type:varchar(255);not null" json:"name"`
	GeminiAPIKey     string    `gorm:"type:varchar(255)" json:"-"`
	Status           string    `gorm:"type:varchar(16);not null;default:active" json:"status"`
	SubscriptionTier string    `gorm:"type:varchar(16);not null;default:basic" json:"subscriptionTier"`
	Domain           string    `gorm:"type:varchar(255)" json:"domain,omitempty"`
	APIKey           *string   `gorm:"column:api_key;type:varchar(128);uniqueIndex" json:"-"`
	APISecret        string    `gorm:"column:api_secret;type:varchar(128)" json:"-"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (SchoolAuth) TableName() string {
	return "schools"
}

// IsActive 判断学校是否可以使用 AI 能力。
func (a *SchoolAuth) IsActive() bool {
	return a.Status == SchoolStatusActive
}

// SchoolUser 对应 'school_users' 表，是租户自己的用户。
type SchoolUser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SchoolID  uint      `gorm:"not null;uniqueIndex:idx_school_username" json:"schoolId"`
	Username  string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_school_username" json:"username"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (SchoolUser) TableName() string {
	return "school_users"
}
