package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/config"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/repository"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/llm"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/log"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 回复生成失败时返回给用户的固定文案。
const (
	ReplyKeyNotConfigured = "Sorry, this school's Gemini API key is not configured."
	ReplyGenerationError  = "Sorry, there was an error generating a response."
)

const systemPromptTemplate = "You are an AI assistant for a School. You help students and parents with enquiries about the school.\n\n" +
	"School context:\n%s\n\n" +
	"Be concise, accurate, and helpful.Use proper formatting with emojis and bullet points for better readability." +
	"Be clear and concise but compelling in your responses. never use table to give output\n"

// ResponseGenerator 根据学校资料生成回复。它从不返回错误，失败时给出固定的道歉文案。
type ResponseGenerator interface {
	GenerateResponse(ctx context.Context, userMessage, schoolCode string) string
}

// ChatService 负责会话与消息的业务逻辑。
type ChatService interface {
	CreateSession(schoolCode, ip string) (*model.ChatSession, error)
	PostMessage(ctx context.Context, sessionID, content, schoolCode string) (userMessage, aiMessage *model.ChatMessage, err error)
	History(sessionID string) ([]model.ChatMessage, error)
}

type responseGenerator struct {
	schoolRepo        repository.SchoolRepository
	llmClient         llm.Client
	defaultSchoolCode string
	maxOutputTokens   int
}

// NewResponseGenerator 创建一个新的 ResponseGenerator。
func NewResponseGenerator(schoolRepo repository.SchoolRepository, llmClient llm.Client, llmCfg config.LLMConfig, chatCfg config.ChatConfig) ResponseGenerator {
	return &responseGenerator{
		schoolRepo:        schoolRepo,
		llmClient:         llmClient,
		defaultSchoolCode: chatCfg.DefaultSchoolCode,
		maxOutputTokens:   llmCfg.MaxOutputTokens,
	}
}

func (g *responseGenerator) GenerateResponse(ctx context.Context, userMessage, schoolCode string) string {
	if schoolCode == "" {
		schoolCode = g.defaultSchoolCode
	}

	// 1. 加载学校资料，资料缺失时以空对象作为上下文
	profile, err := g.schoolRepo.FindProfile(schoolCode)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Error("GenerateResponse: 加载学校资料失败", err)
		return ReplyGenerationError
	}

	// 2. 授权记录必须存在、处于 active 且带有 Key
	auth, err := g.schoolRepo.FindAuth(schoolCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("GenerateResponse: 学校 %s 没有授权记录", schoolCode)
			return ReplyKeyNotConfigured
		}
		log.Error("GenerateResponse: 加载授权记录失败", err)
		return ReplyGenerationError
	}
	if auth.GeminiAPIKey == "" || !auth.IsActive() {
		log.Warnf("GenerateResponse: 学校 %s 的 Key 未配置或状态为 %s", schoolCode, auth.Status)
		return ReplyKeyNotConfigured
	}

	// 3. 构建系统提示词，作为先前的一轮 user 历史发送
	systemPrompt, err := buildSystemPrompt(profile)
	if err != nil {
		log.Error("GenerateResponse: 序列化学校资料失败", err)
		return ReplyGenerationError
	}
	history := []llm.Message{{Role: "user", Content: systemPrompt}}

	maxTokens := g.maxOutputTokens
	reply, err := g.llmClient.Chat(ctx, auth.GeminiAPIKey, history, userMessage, &llm.GenerationParams{MaxOutputTokens: &maxTokens})
	if err != nil {
		log.Error("GenerateResponse: 调用 Gemini 失败", err)
		return ReplyGenerationError
	}
	return reply
}

// profileContext 是嵌入提示词的学校资料视图。
func profileContext(profile *model.SchoolProfile) map[string]interface{} {
	if profile == nil {
		return map[string]interface{}{}
	}
	ctx := map[string]interface{}{
		"schoolCode": profile.SchoolCode,
		"school":     profile.School.Data(),
	}
	if profile.HasKnowledgeBase() {
		ctx["knowledgeBase"] = json.RawMessage(profile.KnowledgeBase)
	}
	return ctx
}

func buildSystemPrompt(profile *model.SchoolProfile) (string, error) {
	b, err := json.MarshalIndent(profileContext(profile), "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(systemPromptTemplate, string(b)), nil
}

type chatService struct {
	chatRepo          repository.ChatRepository
	generator         ResponseGenerator
	defaultSchoolCode string
	model             string
	now               func() time.Time
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(chatRepo repository.ChatRepository, generator ResponseGenerator, llmCfg config.LLMConfig, chatCfg config.ChatConfig) ChatService {
	return &chatService{
		chatRepo:          chatRepo,
		generator:         generator,
		defaultSchoolCode: chatCfg.DefaultSchoolCode,
		model:             llmCfg.Model,
		now:               time.Now,
	}
}

// CreateSession 创建一个新的会话，会话 ID 为随机 UUID。
func (s *chatService) CreateSession(schoolCode, ip string) (*model.ChatSession, error) {
	if schoolCode == "" {
		schoolCode = s.defaultSchoolCode
	}
	session := &model.ChatSession{
		SessionID:  uuid.NewString(),
		SchoolCode: schoolCode,
		IP:         ip,
	}
	if err := s.chatRepo.CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}
	return session, nil
}

// PostMessage 保存用户消息、生成回复并保存机器人消息。
// 生成失败不会返回错误，只有存储失败才会。
func (s *chatService) PostMessage(ctx context.Context, sessionID, content, schoolCode string) (*model.ChatMessage, *model.ChatMessage, error) {
	// 已存在的会话决定学校代码，保证消息与会话属于同一个学校
	session, err := s.chatRepo.FindSession(sessionID)
	switch {
	case err == nil:
		schoolCode = session.SchoolCode
	case errors.Is(err, gorm.ErrRecordNotFound):
		if schoolCode == "" {
			schoolCode = s.defaultSchoolCode
		}
	default:
		return nil, nil, fmt.Errorf("failed to load chat session: %w", err)
	}

	userMessage := &model.ChatMessage{
		SessionID:  sessionID,
		SchoolCode: schoolCode,
		Content:    content,
		IsUser:     true,
		Timestamp:  s.now().Truncate(time.Millisecond),
	}
	if err := s.chatRepo.CreateMessage(userMessage); err != nil {
		return nil, nil, fmt.Errorf("failed to save user message: %w", err)
	}

	reply := s.generator.GenerateResponse(ctx, content, schoolCode)

	// 机器人消息的时间戳必须严格晚于对应的用户消息
	botTs := s.now().Truncate(time.Millisecond)
	if !botTs.After(userMessage.Timestamp) {
		botTs = userMessage.Timestamp.Add(time.Millisecond)
	}
	meta, _ := json.Marshal(map[string]string{"model": s.model})
	aiMessage := &model.ChatMessage{
		SessionID:  sessionID,
		SchoolCode: schoolCode,
		Content:    reply,
		IsUser:     false,
		Timestamp:  botTs,
		Metadata:   datatypes.JSON(meta),
	}
	if err := s.chatRepo.CreateMessage(aiMessage); err != nil {
		return nil, nil, fmt.Errorf("failed to save ai message: %w", err)
	}
	return userMessage, aiMessage, nil
}

func (s *chatService) History(sessionID string) ([]model.ChatMessage, error) {
	messages, err := s.chatRepo.FindMessagesBySession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chat history: %w", err)
	}
	return messages, nil
}
