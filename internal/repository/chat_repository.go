package repository

import (
	"time"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"gorm.io/gorm"
)

// ChatRepository 定义了聊天会话和消息的持久化操作。
type ChatRepository interface {
	CreateSession(session *model.ChatSession) error
	FindSession(sessionID string) (*model.ChatSession, error)
	ListSessionSummaries(schoolCode string) ([]model.SessionSummary, error)

	CreateMessage(message *model.ChatMessage) error
	FindMessagesBySession(sessionID string) ([]model.ChatMessage, error)
	FindSchoolSessionMessages(schoolCode, sessionID string) ([]model.ChatMessage, error)
	FindBotMessages(schoolCode string) ([]model.ChatMessage, error)
	FindLastUserMessageBefore(sessionID string, before time.Time) (*model.ChatMessage, error)
	FindRecentMessages(schoolCode string, limit int) ([]model.ChatMessage, error)
	// FindUserMessageTimes 返回 since 之后的用户消息时间戳，schoolCode 为空时统计全部学校。
	FindUserMessageTimes(schoolCode string, since time.Time) ([]time.Time, error)

	CountSessions(schoolCode string) (int64, error)
	CountUserMessages(schoolCode string) (int64, error)
	CountActiveUsers(schoolCode string) (int64, error)
	CountSessionsBySchool() (map[string]int64, error)
	CountUserMessagesBySchool() (map[string]int64, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建一个新的 ChatRepository 实例。
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) CreateSession(session *model.ChatSession) error {
	return r.db.Create(session).Error
}

// FindSession 根据会话 ID 查找会话，不存在时返回 gorm.ErrRecordNotFound。
func (r *chatRepository) FindSession(sessionID string) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := r.db.Where("session_id = ?", sessionID).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessionSummaries 返回学校的全部会话（新的在前）及每个会话的消息数。
func (r *chatRepository) ListSessionSummaries(schoolCode string) ([]model.SessionSummary, error) {
	var sessions []model.ChatSession
	if err := r.db.Where("school_code = ?", schoolCode).Order("created_at DESC").Find(&sessions).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		SessionID string
		Total     int64
	}
	err := r.db.Model(&model.ChatMessage{}).
		Select("session_id, COUNT(*) AS total").
		Where("school_code = ?", schoolCode).
		Group("session_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.SessionID] = row.Total
	}

	summaries := make([]model.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, model.SessionSummary{
			SessionID:     s.SessionID,
			SchoolCode:    s.SchoolCode,
			IP:            s.IP,
			CreatedAt:     s.CreatedAt,
			TotalMessages: totals[s.SessionID],
		})
	}
	return summaries, nil
}

func (r *chatRepository) CreateMessage(message *model.ChatMessage) error {
	return r.db.Create(message).Error
}

// FindMessagesBySession 按时间升序返回会话中的全部消息。
func (r *chatRepository) FindMessagesBySession(sessionID string) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.Where("session_id = ?", sessionID).Order("timestamp ASC, id ASC").Find(&messages).Error
	return messages, err
}

func (r *chatRepository) FindSchoolSessionMessages(schoolCode, sessionID string) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.Where("school_code = ? AND session_id = ?", schoolCode, sessionID).
		Order("timestamp ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// FindBotMessages 按时间倒序返回学校的全部机器人消息。
func (r *chatRepository) FindBotMessages(schoolCode string) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.Where("school_code = ? AND is_user = ?", schoolCode, false).
		Order("timestamp DESC, id DESC").
		Find(&messages).Error
	return messages, err
}

// FindLastUserMessageBefore 查找同一会话中时间严格早于 before 的最近一条用户消息。
func (r *chatRepository) FindLastUserMessageBefore(sessionID string, before time.Time) (*model.ChatMessage, error) {
	var message model.ChatMessage
	err := r.db.Where("session_id = ? AND is_user = ? AND timestamp < ?", sessionID, true, before).
		Order("timestamp DESC, id DESC").
		First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *chatRepository) FindRecentMessages(schoolCode string, limit int) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.Where("school_code = ?", schoolCode).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *chatRepository) FindUserMessageTimes(schoolCode string, since time.Time) ([]time.Time, error) {
	var times []time.Time
	q := r.db.Model(&model.ChatMessage{}).Where("is_user = ? AND timestamp >= ?", true, since)
	if schoolCode != "" {
		q = q.Where("school_code = ?", schoolCode)
	}
	err := q.Pluck("timestamp", &times).Error
	return times, err
}

func (r *chatRepository) CountSessions(schoolCode string) (int64, error) {
	var n int64
	err := r.db.Model(&model.ChatSession{}).Where("school_code = ?", schoolCode).Count(&n).Error
	return n, err
}

func (r *chatRepository) CountUserMessages(schoolCode string) (int64, error) {
	var n int64
	err := r.db.Model(&model.ChatMessage{}).Where("school_code = ? AND is_user = ?", schoolCode, true).Count(&n).Error
	return n, err
}

// CountActiveUsers 统计至少发送过一条用户消息的会话数。
func (r *chatRepository) CountActiveUsers(schoolCode string) (int64, error) {
	var n int64
	err := r.db.Model(&model.ChatMessage{}).
		Where("school_code = ? AND is_user = ?", schoolCode, true).
		Distinct("session_id").
		Count(&n).Error
	return n, err
}

type schoolCount struct {
	SchoolCode string
	Total      int64
}

func countBySchool(q *gorm.DB) (map[string]int64, error) {
	var rows []schoolCount
	if err := q.Select("school_code, COUNT(*) AS total").Group("school_code").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.SchoolCode] = row.Total
	}
	return out, nil
}

func (r *chatRepository) CountSessionsBySchool() (map[string]int64, error) {
	return countBySchool(r.db.Model(&model.ChatSession{}))
}

func (r *chatRepository) CountUserMessagesBySchool() (map[string]int64, error) {
	return countBySchool(r.db.Model(&model.ChatMessage{}).Where("is_user = ?", true))
}
