package handler

import (
	"net/http"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/middleware"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/service"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/log"
	"github.com/gin-gonic/gin"
)

// TenantHandler 处理以 X-API-Key 认证的租户接口。
// 必须在 SchoolAPIKeyMiddleware 之后使用。
type TenantHandler struct {
	tenantService service.TenantService
}

// NewTenantHandler 创建一个新的 TenantHandler 实例。
func NewTenantHandler(tenantService service.TenantService) *TenantHandler {
	return &TenantHandler{tenantService: tenantService}
}

func currentSchool(c *gin.Context) *model.SchoolAuth {
	return c.MustGet(middleware.SchoolContextKey).(*model.SchoolAuth)
}

// Dashboard 返回租户自己的学校信息与统计。
func (h *TenantHandler) Dashboard(c *gin.Context) {
	school := currentSchool(c)
	metrics, err := h.tenantService.Dashboard(school)
	if err != nil {
		respondError(c, "TenantDashboard: 获取统计失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"school": school, "metrics": metrics})
}

func (h *TenantHandler) ListUsers(c *gin.Context) {
	users, err := h.tenantService.ListUsers(currentSchool(c))
	if err != nil {
		respondError(c, "TenantListUsers: 获取用户列表失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// CreateUserRequest 定义了租户创建用户的请求体。
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *TenantHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("TenantCreateUser: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	school := currentSchool(c)
	user, err := h.tenantService.CreateUser(school, req.Username, req.Password)
	if err != nil {
		respondError(c, "TenantCreateUser: 创建用户失败", err)
		return
	}
	log.Infof("学校 %s 创建用户 '%s'", school.SchoolCode, user.Username)
	c.JSON(http.StatusCreated, gin.H{"userId": user.ID})
}
