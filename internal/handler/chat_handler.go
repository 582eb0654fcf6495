package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/service"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 聊天窗口嵌在学校网站的 iframe 里，允许所有来源
		},
	}
)

// ChatHandler 负责处理访客聊天的 HTTP 与 WebSocket 请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// CreateSessionRequest 定义了创建会话的请求体，请求体可以为空。
type CreateSessionRequest struct {
	SchoolCode string `json:"schoolCode" binding:"omitempty,alphanum"`
}

// PostMessageRequest 定义了发送消息的请求体。
type PostMessageRequest struct {
	SessionID  string `json:"sessionId" binding:"required"`
	Content    string `json:"content" binding:"required"`
	SchoolCode string `json:"schoolCode" binding:"omitempty,alphanum"`
}

// messageExchange 是一次问答的响应体。
type messageExchange struct {
	UserMessage *model.ChatMessage `json:"userMessage"`
	AIMessage   *model.ChatMessage `json:"aiMessage"`
}

// CreateSession 处理创建会话的请求。
func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Warnf("CreateSession: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid school code"})
		return
	}

	session, err := h.chatService.CreateSession(req.SchoolCode, c.ClientIP())
	if err != nil {
		respondError(c, "CreateSession: 创建会话失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": session.SessionID})
}

// PostMessage 保存用户消息并返回机器人回复。生成失败时仍返回 200 和道歉文案。
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("PostMessage: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId and content are required; schoolCode must be alphanumeric"})
		return
	}

	userMessage, aiMessage, err := h.chatService.PostMessage(c.Request.Context(), req.SessionID, req.Content, req.SchoolCode)
	if err != nil {
		respondError(c, "PostMessage: 保存消息失败", err)
		return
	}
	c.JSON(http.StatusOK, messageExchange{UserMessage: userMessage, AIMessage: aiMessage})
}

// History 返回会话的全部消息，按时间升序。
func (h *ChatHandler) History(c *gin.Context) {
	messages, err := h.chatService.History(c.Param("sessionId"))
	if err != nil {
		respondError(c, "History: 获取聊天记录失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// Stream 处理一个 WebSocket 聊天连接，每个文本帧都是一条用户消息。
func (h *ChatHandler) Stream(c *gin.Context) {
	sessionID := c.Param("sessionId")
	schoolCode := c.Query("schoolCode")
	if schoolCode != "" && !service.ValidSchoolCode(schoolCode) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid school code"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，会话: %s", sessionID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			return
		}

		content := strings.TrimSpace(string(message))
		if content == "" {
			if err := conn.WriteJSON(gin.H{"error": "content is required"}); err != nil {
				return
			}
			continue
		}

		userMessage, aiMessage, err := h.chatService.PostMessage(c.Request.Context(), sessionID, content, schoolCode)
		if err != nil {
			log.Error("Stream: 保存消息失败", err)
			if err := conn.WriteJSON(gin.H{"error": "Internal server error"}); err != nil {
				return
			}
			continue
		}
		if err := conn.WriteJSON(messageExchange{UserMessage: userMessage, AIMessage: aiMessage}); err != nil {
			log.Warnf("向 WebSocket 写入消息失败: %v", err)
			return
		}
	}
}
