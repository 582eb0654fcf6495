package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/config"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/repository"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/service"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/testutil"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/hash"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/token"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchoolAPIKeyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewTestDB(t)
	active, suspended := "sk_1_active", "sk_2_suspended"
	require.NoError(t, db.Create(&model.SchoolAuth{SchoolCode: "ABC", Name: "ABC", Status: model.SchoolStatusActive, APIKey: &active}).Error)
	require.NoError(t, db.Create(&model.SchoolAuth{SchoolCode: "OFF", Name: "OFF", Status: model.SchoolStatusSuspended, APIKey: &suspended}).Error)

	r := gin.New()
	r.GET("/t", SchoolAPIKeyMiddleware(repository.NewSchoolRepository(db)), func(c *gin.Context) {
		c.String(http.StatusOK, c.MustGet(SchoolContextKey).(*model.SchoolAuth).SchoolCode)
	})

	tests := []struct {
		key    string
		status int
		body   string
	}{
		{"", http.StatusUnauthorized, "API key required"},
		{"sk_9_unknown", http.StatusUnauthorized, "Invalid API key"},
		{suspended, http.StatusUnauthorized, "Invalid API key"},
		{active, http.StatusOK, "ABC"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/t", nil)
		if tt.key != "" {
			req.Header.Set("X-API-Key", tt.key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tt.status, w.Code, tt.key)
		assert.Contains(t, w.Body.String(), tt.body)
	}
}

func TestAdminSessionMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hashed, err := hash.HashPassword("pw")
	require.NoError(t, err)
	admin := service.NewAdminService(config.AdminConfig{Username: "admin", PasswordHash: hashed}, token.NewJWTManager("secret", time.Hour))
	sessionToken, err := admin.Login("admin", "pw")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/t", AdminSessionMiddleware(admin), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.AddCookie(&http.Cookie{Name: AdminCookieName, Value: sessionToken})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
