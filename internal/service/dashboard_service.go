package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/repository"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/log"
)

const recentActivityLimit = 10

// SchoolMetrics 是单个学校仪表盘的汇总数据。
type SchoolMetrics struct {
	TotalMessages int64 `json:"totalMessages"`
	TotalSessions int64 `json:"totalSessions"`
	TotalUsers    int64 `json:"totalUsers"`
	Views         int64 `json:"views"`
	ActiveViewers int64 `json:"activeViewers"`
}

// PlatformMetrics 是超级管理员看到的全平台汇总。
type PlatformMetrics struct {
	TotalSchools  int64 `json:"totalSchools"`
	ActiveSchools int64 `json:"activeSchools"`
	TotalSessions int64 `json:"totalSessions"`
	TotalMessages int64 `json:"totalMessages"`
}

// AnalyticsPoint 是时间分桶统计中的一个桶。
type AnalyticsPoint struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// DailyUsage 是某一天的用户消息数。
type DailyUsage struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// DashboardService 提供仪表盘所需的统计与历史浏览。
type DashboardService interface {
	Metrics(ctx context.Context, schoolCode, viewerID string) (*SchoolMetrics, error)
	Analytics(schoolCode, timeframe string) ([]AnalyticsPoint, error)
	RecentActivity(schoolCode string) ([]model.ChatMessage, error)
	Sessions(schoolCode string) ([]model.SessionSummary, error)
	SessionMessages(schoolCode, sessionID string) ([]model.ChatMessage, error)
	PlatformMetrics() (*PlatformMetrics, error)
	DailyUsage(days int) ([]DailyUsage, error)
}

type dashboardService struct {
	chatRepo   repository.ChatRepository
	schoolRepo repository.SchoolRepository
	tracker    ViewTracker
	now        func() time.Time
}

// NewDashboardService 创建一个新的 DashboardService 实例。
func NewDashboardService(chatRepo repository.ChatRepository, schoolRepo repository.SchoolRepository, tracker ViewTracker) DashboardService {
	return &dashboardService{chatRepo: chatRepo, schoolRepo: schoolRepo, tracker: tracker, now: time.Now}
}

// Metrics 记录一次访问并返回学校的会话、消息与访问统计。
func (s *dashboardService) Metrics(ctx context.Context, schoolCode, viewerID string) (*SchoolMetrics, error) {
	// 访问统计不是关键数据，记录失败只打日志
	if err := s.tracker.RecordView(ctx, schoolCode, viewerID); err != nil {
		log.Warnf("Metrics: 记录访问失败, school=%s, err=%v", schoolCode, err)
	}

	totalMessages, err := s.chatRepo.CountUserMessages(schoolCode)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	totalSessions, err := s.chatRepo.CountSessions(schoolCode)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}
	totalUsers, err := s.chatRepo.CountActiveUsers(schoolCode)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	counts, err := s.tracker.GetCounts(ctx, schoolCode)
	if err != nil {
		log.Warnf("Metrics: 读取访问统计失败, school=%s, err=%v", schoolCode, err)
	}

	return &SchoolMetrics{
		TotalMessages: totalMessages,
		TotalSessions: totalSessions,
		TotalUsers:    totalUsers,
		Views:         counts.Views,
		ActiveViewers: counts.ActiveViewers,
	}, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// bucketPlan 描述一种时间粒度：起始时间、桶数、标签和时间到桶下标的映射。
type bucketPlan struct {
	start  time.Time
	labels []string
	index  func(t time.Time) int
}

func planFor(timeframe string, now time.Time) (*bucketPlan, error) {
	today := midnight(now)
	var p bucketPlan
	switch timeframe {
	case "hourly":
		p.start = today
		for i := 0; i < 24; i++ {
			p.labels = append(p.labels, fmt.Sprintf("%d:00", i))
		}
		p.index = func(t time.Time) int { return t.Hour() }
	case "daily":
		p.start = today.AddDate(0, 0, -6)
		for i := 1; i <= 7; i++ {
			p.labels = append(p.labels, fmt.Sprintf("Day %d", i))
		}
		p.index = func(t time.Time) int { return daysBetween(p.start, midnight(t)) }
	case "weekly":
		p.start = today.AddDate(0, 0, -27)
		for i := 1; i <= 4; i++ {
			p.labels = append(p.labels, fmt.Sprintf("Week %d", i))
		}
		p.index = func(t time.Time) int { return daysBetween(p.start, midnight(t)) / 7 }
	case "monthly":
		p.start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		for i := 1; i <= 12; i++ {
			p.labels = append(p.labels, fmt.Sprintf("Month %d", i))
		}
		p.index = func(t time.Time) int { return int(t.Month()) - 1 }
	case "yearly":
		first := now.Year() - 4
		p.start = time.Date(first, time.January, 1, 0, 0, 0, 0, now.Location())
		for y := first; y <= now.Year(); y++ {
			p.labels = append(p.labels, strconv.Itoa(y))
		}
		p.index = func(t time.Time) int { return t.Year() - first }
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeframe, timeframe)
	}
	return &p, nil
}

// Analytics 把用户消息按时间粒度分桶计数。
func (s *dashboardService) Analytics(schoolCode, timeframe string) ([]AnalyticsPoint, error) {
	if timeframe == "" {
		timeframe = "hourly"
	}
	now := s.now()
	plan, err := planFor(timeframe, now)
	if err != nil {
		return nil, err
	}

	times, err := s.chatRepo.FindUserMessageTimes(schoolCode, plan.start)
	if err != nil {
		return nil, fmt.Errorf("failed to load message times: %w", err)
	}

	points := make([]AnalyticsPoint, len(plan.labels))
	for i, label := range plan.labels {
		points[i].Label = label
	}
	for _, t := range times {
		t = t.In(now.Location())
		if t.Before(plan.start) || t.After(now) {
			continue
		}
		if i := plan.index(t); i >= 0 && i < len(points) {
			points[i].Value++
		}
	}
	return points, nil
}

func (s *dashboardService) RecentActivity(schoolCode string) ([]model.ChatMessage, error) {
	messages, err := s.chatRepo.FindRecentMessages(schoolCode, recentActivityLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent activity: %w", err)
	}
	return messages, nil
}

func (s *dashboardService) Sessions(schoolCode string) ([]model.SessionSummary, error) {
	sessions, err := s.chatRepo.ListSessionSummaries(schoolCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *dashboardService) SessionMessages(schoolCode, sessionID string) ([]model.ChatMessage, error) {
	messages, err := s.chatRepo.FindSchoolSessionMessages(schoolCode, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session messages: %w", err)
	}
	return messages, nil
}

// PlatformMetrics 汇总所有学校的数据。
func (s *dashboardService) PlatformMetrics() (*PlatformMetrics, error) {
	auths, err := s.schoolRepo.ListAuths()
	if err != nil {
		return nil, fmt.Errorf("failed to list schools: %w", err)
	}
	sessions, err := s.chatRepo.CountSessionsBySchool()
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}
	messages, err := s.chatRepo.CountUserMessagesBySchool()
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	m := &PlatformMetrics{TotalSchools: int64(len(auths))}
	for i := range auths {
		if auths[i].IsActive() {
			m.ActiveSchools++
		}
	}
	for _, n := range sessions {
		m.TotalSessions += n
	}
	for _, n := range messages {
		m.TotalMessages += n
	}
	return m, nil
}

// DailyUsage 返回最近 days 天（含今天）全平台每天的用户消息数，旧的在前。
func (s *dashboardService) DailyUsage(days int) ([]DailyUsage, error) {
	if days <= 0 {
		days = 7
	}
	now := s.now()
	start := midnight(now).AddDate(0, 0, -(days - 1))
	times, err := s.chatRepo.FindUserMessageTimes("", start)
	if err != nil {
		return nil, fmt.Errorf("failed to load message times: %w", err)
	}

	usage := make([]DailyUsage, days)
	for i := range usage {
		usage[i].Date = start.AddDate(0, 0, i).Format("2006-01-02")
	}
	for _, t := range times {
		t = t.In(now.Location())
		if i := daysBetween(start, midnight(t)); i >= 0 && i < days {
			usage[i].Count++
		}
	}
	return usage, nil
}
