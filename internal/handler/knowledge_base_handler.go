package handler

import (
	"net/http"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/service"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/log"
	"github.com/gin-gonic/gin"
)

// KnowledgeBaseHandler 负责知识库的编辑与格式化展示。
type KnowledgeBaseHandler struct {
	updater   service.KnowledgeBaseUpdater
	formatter service.KnowledgeBaseFormatter
}

// NewKnowledgeBaseHandler 创建一个新的 KnowledgeBaseHandler 实例。
func NewKnowledgeBaseHandler(updater service.KnowledgeBaseUpdater, formatter service.KnowledgeBaseFormatter) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{updater: updater, formatter: formatter}
}

// UpdateKnowledgeBaseRequest 是知识库更新请求。
// direct 模式使用顶层的资料字段，merge 模式使用 text 与 image。
type UpdateKnowledgeBaseRequest struct {
	Mode  string `json:"mode"`
	Text  string `json:"text"`
	Image string `json:"image"`
	service.KnowledgeBaseFields
}

// Update 处理知识库更新。mode 也可以通过查询参数传入。
func (h *KnowledgeBaseHandler) Update(c *gin.Context) {
	code, ok := schoolCodeParam(c)
	if !ok {
		return
	}
	var req UpdateKnowledgeBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("UpdateKnowledgeBase: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if req.Mode == "" {
		req.Mode = c.Query("mode")
	}

	result, err := h.updater.Update(c.Request.Context(), code, service.UpdateRequest{
		Mode:   req.Mode,
		Text:   req.Text,
		Image:  req.Image,
		Fields: req.KnowledgeBaseFields,
	})
	if err != nil {
		respondError(c, "UpdateKnowledgeBase: 更新知识库失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// Formatted 返回格式化后的知识库 HTML。
func (h *KnowledgeBaseHandler) Formatted(c *gin.Context) {
	code, ok := schoolCodeParam(c)
	if !ok {
		return
	}
	html, err := h.formatter.Format(c.Request.Context(), code)
	if err != nil {
		respondError(c, "FormattedKnowledgeBase: 格式化知识库失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"formatted": html})
}
