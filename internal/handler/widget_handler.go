package handler

import (
	"bytes"
	"embed"
	"net/http"
	"net/url"
	"strings"
	"text/template"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/service"
	"github.com/gin-gonic/gin"
)

//go:embed templates/inject.js.tmpl
var templateFS embed.FS

var injectTemplate = template.Must(template.ParseFS(templateFS, "templates/inject.js.tmpl"))

// WidgetHandler 输出学校网站引用的嵌入脚本。
type WidgetHandler struct {
	publicBaseURL string
}

// NewWidgetHandler 创建一个新的 WidgetHandler 实例。
func NewWidgetHandler(publicBaseURL string) *WidgetHandler {
	return &WidgetHandler{publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

type injectData struct {
	SchoolCode string
	WidgetURL  string
}

// InjectScript 返回 /:schoolCode/inject.js。非法学校代码返回 404。
func (h *WidgetHandler) InjectScript(c *gin.Context) {
	code := c.Param("schoolCode")
	if !service.ValidSchoolCode(code) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	var buf bytes.Buffer
	err := injectTemplate.Execute(&buf, injectData{
		SchoolCode: code,
		WidgetURL:  h.publicBaseURL + "/widget.html?schoolCode=" + url.QueryEscape(code),
	})
	if err != nil {
		respondError(c, "InjectScript: 渲染脚本失败", err)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", buf.Bytes())
}
