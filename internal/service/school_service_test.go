package service

import (
	"context"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/repository"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memoryStore 是测试用的对象存储。
type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Put(_ context.Context, objectName string, r io.Reader, _ int64, _ string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[objectName] = b
	return "https://files.example.com/" + objectName, nil
}

func newSchoolService(t *testing.T, store *memoryStore) (SchoolService, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	var svc SchoolService
	if store != nil {
		svc = NewSchoolService(repository.NewSchoolRepository(db), repository.NewChatRepository(db), store, "https://chat.example.com/")
	} else {
		svc = NewSchoolService(repository.NewSchoolRepository(db), repository.NewChatRepository(db), nil, "https://chat.example.com/")
	}
	return svc, db
}

var apiKeyPattern = regexp.MustCompile(`^sk_\d+_[0-9a-f]{32}$`)

func TestCreateSchool(t *testing.T) {
	svc, db := newSchoolService(t, nil)

	res, err := svc.CreateSchool("ABC", "ABC School", "gemini-key")
	require.NoError(t, err)
	assert.NotZero(t, res.SchoolID)
	assert.Regexp(t, apiKeyPattern, res.APIKey)
	assert.True(t, strings.HasPrefix(res.APIKey, "sk_"))
	assert.Equal(t, `<script src="https://chat.example.com/ABC/inject.js"></script>`, res.EmbedCode)

	auth, err := repository.NewSchoolRepository(db).FindActiveAuthByAPIKey(res.APIKey)
	require.NoError(t, err)
	assert.Equal(t, "ABC", auth.SchoolCode)
	assert.Len(t, auth.APISecret, 96)
	assert.Equal(t, model.TierBasic, auth.SubscriptionTier)

	view, err := svc.GetProfile("ABC")
	require.NoError(t, err)
	assert.Equal(t, "ABC School", view.School.Data().Name)
	assert.Equal(t, "gemini-key", view.GeminiAPIKey)

	_, err = svc.CreateSchool("ABC", "Again", "k")
	assert.ErrorIs(t, err, ErrSchoolCodeExists)
}

func TestCreateSchoolValidation(t *testing.T) {
	svc, _ := newSchoolService(t, nil)

	_, err := svc.CreateSchool("", "Name", "k")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreateSchool("AB-C", "Name", "k")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreateSchool("ABC", "Name", " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateSchoolKeepsExistingProfile(t *testing.T) {
	svc, db := newSchoolService(t, nil)
	seedProfile(t, db, "SXSBT", model.SchoolInfo{Name: "Seeded", Fees: "Rs 10"})

	_, err := svc.CreateSchool("SXSBT", "Renamed", "k")
	require.NoError(t, err)

	view, err := svc.GetProfile("SXSBT")
	require.NoError(t, err)
	assert.Equal(t, "Seeded", view.School.Data().Name)
	assert.Equal(t, "Rs 10", view.School.Data().Fees)
}

func TestRotateAPIKey(t *testing.T) {
	svc, db := newSchoolService(t, nil)
	res, err := svc.CreateSchool("ABC", "ABC School", "k")
	require.NoError(t, err)

	newKey, err := svc.RotateAPIKey("ABC")
	require.NoError(t, err)
	assert.Regexp(t, apiKeyPattern, newKey)
	assert.NotEqual(t, res.APIKey, newKey)

	repo := repository.NewSchoolRepository(db)
	_, err = repo.FindActiveAuthByAPIKey(res.APIKey)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = repo.FindActiveAuthByAPIKey(newKey)
	assert.NoError(t, err)

	_, err = svc.RotateAPIKey("NOPE")
	assert.ErrorIs(t, err, ErrSchoolNotFound)
}

func TestImages(t *testing.T) {
	svc, db := newSchoolService(t, nil)
	seedProfile(t, db, "ABC", model.SchoolInfo{Name: "ABC School", Images: []model.SchoolImage{
		{URL: "https://cdn/a.jpg", Alt: "Main Campus", Keyword: "campus"},
		{URL: "https://cdn/b.jpg", Caption: "School Bus"},
		{URL: "https://cdn/c.jpg"},
	}})

	images, err := svc.ListImages("ABC")
	require.NoError(t, err)
	assert.Equal(t, []ImageView{
		{URL: "https://cdn/a.jpg", Alt: "Main Campus"},
		{URL: "https://cdn/b.jpg", Alt: "School Bus"},
		{URL: "https://cdn/c.jpg", Alt: "School image"},
	}, images)

	img, err := svc.FindImage("ABC", "BUS")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/b.jpg", img.URL)

	_, err = svc.FindImage("ABC", "library")
	assert.ErrorIs(t, err, ErrImageNotFound)

	keywords, err := svc.ImageKeywords("ABC")
	require.NoError(t, err)
	assert.Equal(t, []string{"campus", "School Bus"}, keywords)

	_, err = svc.ListImages("NOPE")
	assert.ErrorIs(t, err, ErrSchoolNotFound)
}

func TestUploadImage(t *testing.T) {
	store := &memoryStore{}
	svc, db := newSchoolService(t, store)
	seedProfile(t, db, "ABC", model.SchoolInfo{Name: "ABC School"})

	img, err := svc.UploadImage(context.Background(), "ABC", UploadImageInput{
		FileName:    "Lab.PNG",
		ContentType: "image/png",
		Size:        4,
		Body:        strings.NewReader("\x89PNG"),
		Alt:         "Science lab",
		Keyword:     "lab",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(img.URL, "https://files.example.com/ABC/"))
	assert.True(t, strings.HasSuffix(img.URL, ".png"))
	require.Len(t, store.objects, 1)

	found, err := svc.FindImage("ABC", "lab")
	require.NoError(t, err)
	assert.Equal(t, img.URL, found.URL)
}

func TestUploadImageWithoutStore(t *testing.T) {
	svc, db := newSchoolService(t, nil)
	seedProfile(t, db, "ABC", model.SchoolInfo{Name: "ABC School"})

	_, err := svc.UploadImage(context.Background(), "ABC", UploadImageInput{FileName: "a.png", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrStorageDisabled)
}

func TestUpdateGeminiKey(t *testing.T) {
	svc, db := newSchoolService(t, nil)
	seedProfile(t, db, "ABC", model.SchoolInfo{Name: "ABC School"})
	seedAuth(t, db, "ABC", "old", model.SchoolStatusActive)

	require.NoError(t, svc.UpdateGeminiKey("ABC", "  new-key "))
	view, err := svc.GetProfile("ABC")
	require.NoError(t, err)
	assert.Equal(t, "new-key", view.GeminiAPIKey)

	assert.ErrorIs(t, svc.UpdateGeminiKey("ABC", ""), ErrInvalidInput)
	assert.ErrorIs(t, svc.UpdateGeminiKey("NOPE", "k"), ErrSchoolNotFound)
}

func TestListSchools(t *testing.T) {
	svc, db := newSchoolService(t, nil)
	_, err := svc.CreateSchool("ABC", "ABC School", "k")
	require.NoError(t, err)
	_, err = svc.CreateSchool("XYZ", "XYZ School", "k")
	require.NoError(t, err)

	chatRepo := repository.NewChatRepository(db)
	require.NoError(t, chatRepo.CreateSession(&model.ChatSession{SessionID: "s1", SchoolCode: "ABC"}))
	require.NoError(t, chatRepo.CreateMessage(&model.ChatMessage{SessionID: "s1", SchoolCode: "ABC", Content: "hi", IsUser: true}))

	schools, err := svc.ListSchools()
	require.NoError(t, err)
	require.Len(t, schools, 2)
	byCode := map[string]SchoolSummary{}
	for _, s := range schools {
		byCode[s.SchoolCode] = s
	}
	assert.Equal(t, int64(1), byCode["ABC"].TotalSessions)
	assert.Equal(t, int64(1), byCode["ABC"].TotalMessages)
	assert.Equal(t, int64(0), byCode["XYZ"].TotalSessions)

	data, err := svc.ListSchoolData()
	require.NoError(t, err)
	assert.Len(t, data, 2)
}
