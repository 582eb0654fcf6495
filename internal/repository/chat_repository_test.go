package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var base = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }

func seedMessage(t *testing.T, repo ChatRepository, session, school, content string, isUser bool, ts time.Time) {
	t.Helper()
	require.NoError(t, repo.CreateMessage(&model.ChatMessage{
		SessionID: session, SchoolCode: school, Content: content, IsUser: isUser, Timestamp: ts,
	}))
}

func TestFindLastUserMessageBefore(t *testing.T) {
	repo := NewChatRepository(testutil.NewTestDB(t))
	seedMessage(t, repo, "s1", "SXSBT", "first", true, at(10))
	seedMessage(t, repo, "s1", "SXSBT", "second", true, at(90))
	seedMessage(t, repo, "s1", "SXSBT", "reply", false, at(100))
	seedMessage(t, repo, "s1", "SXSBT", "same time", true, at(100))
	seedMessage(t, repo, "s2", "SXSBT", "other session", true, at(95))

	msg, err := repo.FindLastUserMessageBefore("s1", at(100))
	require.NoError(t, err)
	assert.Equal(t, "second", msg.Content)

	_, err = repo.FindLastUserMessageBefore("s1", at(10))
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestMessagesOrdering(t *testing.T) {
	repo := NewChatRepository(testutil.NewTestDB(t))
	seedMessage(t, repo, "s1", "SXSBT", "b", false, at(20))
	seedMessage(t, repo, "s1", "SXSBT", "a", true, at(10))
	seedMessage(t, repo, "s2", "OTHER", "x", false, at(30))

	history, err := repo.FindMessagesBySession("s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "a", history[0].Content)
	assert.Equal(t, "b", history[1].Content)

	bots, err := repo.FindBotMessages("SXSBT")
	require.NoError(t, err)
	require.Len(t, bots, 1)
	assert.Equal(t, "b", bots[0].Content)

	recent, err := repo.FindRecentMessages("SXSBT", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "b", recent[0].Content)
}

func TestCounts(t *testing.T) {
	repo := NewChatRepository(testutil.NewTestDB(t))
	require.NoError(t, repo.CreateSession(&model.ChatSession{SessionID: "s1", SchoolCode: "SXSBT"}))
	require.NoError(t, repo.CreateSession(&model.ChatSession{SessionID: "s2", SchoolCode: "SXSBT"}))
	require.NoError(t, repo.CreateSession(&model.ChatSession{SessionID: "s3", SchoolCode: "OTHER"}))
	seedMessage(t, repo, "s1", "SXSBT", "q1", true, at(1))
	seedMessage(t, repo, "s1", "SXSBT", "a1", false, at(2))
	seedMessage(t, repo, "s1", "SXSBT", "q2", true, at(3))
	seedMessage(t, repo, "s3", "OTHER", "q", true, at(4))

	sessions, err := repo.CountSessions("SXSBT")
	require.NoError(t, err)
	assert.EqualValues(t, 2, sessions)

	userMsgs, err := repo.CountUserMessages("SXSBT")
	require.NoError(t, err)
	assert.EqualValues(t, 2, userMsgs)

	users, err := repo.CountActiveUsers("SXSBT")
	require.NoError(t, err)
	assert.EqualValues(t, 1, users)

	bySchool, err := repo.CountSessionsBySchool()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"SXSBT": 2, "OTHER": 1}, bySchool)

	msgsBySchool, err := repo.CountUserMessagesBySchool()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"SXSBT": 2, "OTHER": 1}, msgsBySchool)

	summaries, err := repo.ListSessionSummaries("SXSBT")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	totals := map[string]int64{}
	for _, s := range summaries {
		totals[s.SessionID] = s.TotalMessages
	}
	assert.Equal(t, map[string]int64{"s1": 3, "s2": 0}, totals)
}

func TestFindUserMessageTimes(t *testing.T) {
	repo := NewChatRepository(testutil.NewTestDB(t))
	seedMessage(t, repo, "s1", "SXSBT", "old", true, at(-3600))
	seedMessage(t, repo, "s1", "SXSBT", "new", true, at(60))
	seedMessage(t, repo, "s1", "SXSBT", "bot", false, at(61))
	seedMessage(t, repo, "s2", "OTHER", "other", true, at(120))

	times, err := repo.FindUserMessageTimes("SXSBT", base)
	require.NoError(t, err)
	require.Len(t, times, 1)
	assert.True(t, times[0].Equal(at(60)))

	all, err := repo.FindUserMessageTimes("", base)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
