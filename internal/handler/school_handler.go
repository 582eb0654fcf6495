package handler

import (
	"net/http"
	"strings"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/service"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/log"
	"github.com/gin-gonic/gin"
)

// maxImageSize 是单张图片上传的大小上限。
const maxImageSize = 10 << 20

// SchoolHandler 负责学校资料、图片与 Gemini Key 的接口。
type SchoolHandler struct {
	schoolService service.SchoolService
}

// NewSchoolHandler 创建一个新的 SchoolHandler 实例。
func NewSchoolHandler(schoolService service.SchoolService) *SchoolHandler {
	return &SchoolHandler{schoolService: schoolService}
}

// GetProfile 返回学校资料，附带授权记录中的 Gemini Key。
func (h *SchoolHandler) GetProfile(c *gin.Context) {
	code, ok := schoolCodeParam(c)
	if !ok {
		return
	}
	profile, err := h.schoolService.GetProfile(code)
	if err != nil {
		respondError(c, "GetProfile: 获取学校资料失败", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ListImages 返回图片列表；带 keyword 查询参数时只返回第一张匹配的图片。
func (h *SchoolHandler) ListImages(c *gin.Context) {
	code, ok := schoolCodeParam(c)
	if !ok {
		return
	}

	if keyword := strings.TrimSpace(c.Query("keyword")); keyword != "" {
		image, err := h.schoolService.FindImage(code, keyword)
		if err != nil {
			respondError(c, "ListImages: 按关键字查找图片失败", err)
			return
		}
		c.JSON(http.StatusOK, image)
		return
	}

	images, err := h.schoolService.ListImages(code)
	if err != nil {
		respondError(c, "ListImages: 获取图片列表失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

// ImageKeywords 返回所有图片的关键字。
func (h *SchoolHandler) ImageKeywords(c *gin.Context) {
	code, ok := schoolCodeParam(c)
	if !ok {
		return
	}
	keywords, err := h.schoolService.ImageKeywords(code)
	if err != nil {
		respondError(c, "ImageKeywords: 获取图片关键字失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keywords": keywords})
}

// UploadImage 处理 multipart 图片上传，字段 file 为必填，alt、caption、keyword 可选。
func (h *SchoolHandler) UploadImage(c *gin.Context) {
	code, ok := schoolCodeParam(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.Warnf("UploadImage: 缺少文件, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > maxImageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is too large"})
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file must be an image"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, "UploadImage: 打开上传文件失败", err)
		return
	}
	defer file.Close()

	image, err := h.schoolService.UploadImage(c.Request.Context(), code, service.UploadImageInput{
		FileName:    fileHeader.Filename,
		ContentType: contentType,
		Size:        fileHeader.Size,
		Body:        file,
		Alt:         c.PostForm("alt"),
		Caption:     c.PostForm("caption"),
		Keyword:     c.PostForm("keyword"),
	})
	if err != nil {
		respondError(c, "UploadImage: 上传图片失败", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"image": image})
}

// UpdateGeminiKeyRequest 定义了更新 Gemini Key 的请求体。
type UpdateGeminiKeyRequest struct {
	GeminiAPIKey string `json:"geminiApiKey"`
}

// UpdateGeminiKey 替换学校的 Gemini Key。
func (h *SchoolHandler) UpdateGeminiKey(c *gin.Context) {
	code, ok := schoolCodeParam(c)
	if !ok {
		return
	}
	var req UpdateGeminiKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("UpdateGeminiKey: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "geminiApiKey is required"})
		return
	}
	if err := h.schoolService.UpdateGeminiKey(code, req.GeminiAPIKey); err != nil {
		respondError(c, "UpdateGeminiKey: 更新 Gemini Key 失败", err)
		return
	}
	log.Infof("学校 %s 的 Gemini Key 已更新", code)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
