package handler

import (
	"net/http"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/service"
	"github.com/gin-gonic/gin"
)

// DashboardHandler 提供学校仪表盘的统计与聊天记录浏览。
type DashboardHandler struct {
	dashboardService service.DashboardService
	detector         service.UnansweredDetector
}

// NewDashboardHandler 创建一个新的 DashboardHandler 实例。
func NewDashboardHandler(dashboardService service.DashboardService, detector service.UnansweredDetector) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService, detector: detector}
}

// Metrics 记录一次仪表盘访问并返回汇总统计。访客由 IP 与 User-Agent 识别。
func (h *DashboardHandler) Metrics(c *gin.Context) {
	code, ok := schoolCodeParam(c)
	if !ok {
		return
	}
	viewerID := service.ViewerID(c.ClientIP(), c.Request.UserAgent())
	metrics, err := h.dashboardService.Metrics(c.Request.Context(), code, viewerID)
	if err != nil {
		respondError(c, "Metrics: 获取统计失败", err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// Analytics 返回按 timeframe 分桶的用户消息数。
func (h *DashboardHandler) Analytics(c *gin.Context) {
	code, ok := schoolCodeParam(c)
	if !ok {
		return
	}
	points, err := h.dashboardService.Analytics(code, c.Query("timeframe"))
	if err != nil {
		respondError(c, "Analytics: 获取分析数据失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": points})
}

func (h *DashboardHandler) RecentActivity(c *gin.Context) {
	code, ok := schoolCodeParam(c)
	if !ok {
		return
	}
	messages, err := h.dashboardService.RecentActivity(code)
	if err != nil {
		respondError(c, "RecentActivity: 获取最近活动失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recent": messages})
}

func (h *DashboardHandler) Sessions(c *gin.Context) {
	code, ok := schoolCodeParam(c)
	if !ok {
		return
	}
	sessions, err := h.dashboardService.Sessions(code)
	if err != nil {
		respondError(c, "Sessions: 获取会话列表失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *DashboardHandler) SessionMessages(c *gin.Context) {
	code, ok := schoolCodeParam(c)
	if !ok {
		return
	}
	messages, err := h.dashboardService.SessionMessages(code, c.Param("sessionId"))
	if err != nil {
		respondError(c, "SessionMessages: 获取会话消息失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// Unanswered 返回机器人以道歉或拒绝回复的提问。
func (h *DashboardHandler) Unanswered(c *gin.Context) {
	code, ok := schoolCodeParam(c)
	if !ok {
		return
	}
	messages, err := h.detector.Detect(code)
	if err != nil {
		respondError(c, "Unanswered: 检测未回答问题失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
