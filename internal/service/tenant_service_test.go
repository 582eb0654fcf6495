package service

import (
	"testing"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/repository"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/testutil"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantUsers(t *testing.T) {
	db := testutil.NewTestDB(t)
	school := seedAuth(t, db, "ABC", "k", model.SchoolStatusActive)
	other := seedAuth(t, db, "XYZ", "k", model.SchoolStatusActive)
	svc := NewTenantService(repository.NewSchoolUserRepository(db), repository.NewChatRepository(db))

	user, err := svc.CreateUser(school, "staff1", "pw")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "pw", user.Password)
	assert.True(t, hash.CheckPasswordHash("pw", user.Password))

	_, err = svc.CreateUser(school, "staff1", "pw2")
	assert.ErrorIs(t, err, ErrUsernameTaken)
	_, err = svc.CreateUser(school, "", "pw")
	assert.ErrorIs(t, err, ErrInvalidInput)

	// 用户名只在学校内唯一
	_, err = svc.CreateUser(other, "staff1", "pw")
	require.NoError(t, err)

	users, err := svc.ListUsers(school)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "staff1", users[0].Username)
}

func TestTenantDashboard(t *testing.T) {
	db := testutil.NewTestDB(t)
	school := seedAuth(t, db, "ABC", "k", model.SchoolStatusActive)
	chatRepo := repository.NewChatRepository(db)
	svc := NewTenantService(repository.NewSchoolUserRepository(db), chatRepo)

	require.NoError(t, chatRepo.CreateSession(&model.ChatSession{SessionID: "s1", SchoolCode: "ABC"}))
	require.NoError(t, chatRepo.CreateMessage(&model.ChatMessage{SessionID: "s1", SchoolCode: "ABC", Content: "q", IsUser: true}))
	require.NoError(t, chatRepo.CreateMessage(&model.ChatMessage{SessionID: "s1", SchoolCode: "ABC", Content: "a"}))
	_, err := svc.CreateUser(school, "u", "p")
	require.NoError(t, err)

	m, err := svc.Dashboard(school)
	require.NoError(t, err)
	assert.Equal(t, &TenantMetrics{TotalUsers: 1, TotalSessions: 1, TotalMessages: 1}, m)
}
