package model

import (
	"time"

	"gorm.io/datatypes"
)

// ChatSession 对应 'chat_sessions' 表，一次用户对话。
type ChatSession struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	SessionID  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"sessionId"`
	SchoolCode string    `gorm:"type:varchar(32);index;not null" json:"schoolCode"`
	IP         string    `gorm:"type:varchar(64)" json:"ip,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ChatSession) TableName() string {
	return "chat_sessions"
}

// ChatMessage 对应 'chat_messages' 表。消息只追加，按 Timestamp 升序排列。
type ChatMessage struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	SessionID  string         `gorm:"type:varchar(64);index:idx_session_ts,priority:1;not null" json:"sessionId"`
	SchoolCode string         `gorm:"type:varchar(32);index:idx_school_user_ts,priority:1;not null" json:"schoolCode"`
	Content    string         `gorm:"type:text;not null" json:"content"`
	IsUser     bool           `gorm:"index:idx_school_user_ts,priority:2" json:"isUser"`
	Timestamp  time.Time      `gorm:"index:idx_session_ts,priority:2;index:idx_school_user_ts,priority:3" json:"timestamp"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// SessionSummary 是会话列表中的一行，附带消息数。
type SessionSummary struct {
	SessionID     string    `json:"sessionId"`
	SchoolCode    string    `json:"schoolCode"`
	IP            string    `json:"ip,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	TotalMessages int64     `json:"totalMessages"`
}
