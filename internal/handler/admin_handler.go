package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/middleware"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/service"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/log"
	"github.com/gin-gonic/gin"
)

// AdminHandler 负责超级管理员的登录、学校开通和平台统计。
type AdminHandler struct {
	adminService     service.AdminService
	schoolService    service.SchoolService
	dashboardService service.DashboardService
	sessionTTL       time.Duration
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。sessionTTL 决定会话 cookie 的 MaxAge。
func NewAdminHandler(adminService service.AdminService, schoolService service.SchoolService, dashboardService service.DashboardService, sessionTTL time.Duration) *AdminHandler {
	return &AdminHandler{
		adminService:     adminService,
		schoolService:    schoolService,
		dashboardService: dashboardService,
		sessionTTL:       sessionTTL,
	}
}

// AdminLoginRequest 定义了管理员登录 API 的请求体结构。
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 校验管理员凭据，成功时写入 HttpOnly 的会话 cookie。
func (h *AdminHandler) Login(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("AdminLogin: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	sessionToken, err := h.adminService.Login(req.Username, req.Password)
	if err != nil {
		respondError(c, "AdminLogin: 登录失败", err)
		return
	}

	h.setSessionCookie(c, sessionToken, int(h.sessionTTL.Seconds()))
	log.Infof("管理员 '%s' 登录成功", req.Username)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Logout 清除会话 cookie。
func (h *AdminHandler) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CheckAuth 返回当前请求是否已登录，从不返回错误。
func (h *AdminHandler) CheckAuth(c *gin.Context) {
	sessionToken, _ := c.Cookie(middleware.AdminCookieName)
	c.JSON(http.StatusOK, gin.H{"authenticated": sessionToken != "" && h.adminService.IsAuthenticated(sessionToken)})
}

func (h *AdminHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AdminCookieName, value, maxAge, "/", "", c.Request.TLS != nil, true)
}

func (h *AdminHandler) ListSchools(c *gin.Context) {
	schools, err := h.schoolService.ListSchools()
	if err != nil {
		respondError(c, "ListSchools: 获取学校列表失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schools": schools})
}

func (h *AdminHandler) ListSchoolData(c *gin.Context) {
	profiles, err := h.schoolService.ListSchoolData()
	if err != nil {
		respondError(c, "ListSchoolData: 获取学校资料失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schools": profiles})
}

// PlatformAnalytics 返回全平台汇总数据。
func (h *AdminHandler) PlatformAnalytics(c *gin.Context) {
	metrics, err := h.dashboardService.PlatformMetrics()
	if err != nil {
		respondError(c, "PlatformAnalytics: 获取平台统计失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": metrics})
}

// DailyUsage 返回最近 days 天（默认 7 天）每天的用户消息数。
func (h *AdminHandler) DailyUsage(c *gin.Context) {
	days := 7
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 366 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 366"})
			return
		}
		days = n
	}
	usage, err := h.dashboardService.DailyUsage(days)
	if err != nil {
		respondError(c, "DailyUsage: 获取每日用量失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": usage})
}

// CreateSchoolRequest 定义了开通学校的请求体。字段的必填校验在 service 层完成。
type CreateSchoolRequest struct {
	SchoolCode   string `json:"schoolCode"`
	Name         string `json:"name"`
	GeminiAPIKey string `json:"geminiApiKey"`
}

// CreateSchool 开通一个学校，返回一次性可见的 API Key 与嵌入代码。
func (h *AdminHandler) CreateSchool(c *gin.Context) {
	var req CreateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("CreateSchool: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	result, err := h.schoolService.CreateSchool(req.SchoolCode, req.Name, req.GeminiAPIKey)
	if err != nil {
		respondError(c, "CreateSchool: 开通学校失败", err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// RotateAPIKey 为学校签发新的 API Key。
func (h *AdminHandler) RotateAPIKey(c *gin.Context) {
	code, ok := schoolCodeParam(c)
	if !ok {
		return
	}
	apiKey, err := h.schoolService.RotateAPIKey(code)
	if err != nil {
		respondError(c, "RotateAPIKey: 轮换 API Key 失败", err)
		return
	}
	log.Infof("学校 %s 的 API Key 已轮换", code)
	c.JSON(http.StatusOK, gin.H{"apiKey": apiKey})
}
