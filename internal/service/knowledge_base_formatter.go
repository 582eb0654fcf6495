package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/config"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/repository"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/llm"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/markdown"
	"gorm.io/gorm"
)

// NoKnowledgeBaseHTML 是资料为空时返回的固定片段。
const NoKnowledgeBaseHTML = `<span class="text-gray-500">No knowledge base found.</span>`

const formatPromptTemplate = "Format the following school knowledge base for display to the school's administrators.\n" +
	"Start directly with the school name as a heading. Do not write any introduction, preamble or closing remarks.\n" +
	"Include every available field. Use bullet points and relevant emojis for readability. Never use tables.\n" +
	"Respond in Markdown.\n\n" +
	"School data:\n%s\n"

// KnowledgeBaseFormatter 把学校资料渲染成可直接展示的 HTML。
type KnowledgeBaseFormatter interface {
	Format(ctx context.Context, schoolCode string) (string, error)
}

type knowledgeBaseFormatter struct {
	schoolRepo repository.SchoolRepository
	llmClient  llm.Client
	keys       keyResolver
}

// NewKnowledgeBaseFormatter 创建一个新的 KnowledgeBaseFormatter。
func NewKnowledgeBaseFormatter(schoolRepo repository.SchoolRepository, llmClient llm.Client, llmCfg config.LLMConfig) KnowledgeBaseFormatter {
	return &knowledgeBaseFormatter{
		schoolRepo: schoolRepo,
		llmClient:  llmClient,
		keys:       keyResolver{schoolRepo: schoolRepo, fallback: llmCfg.FallbackAPIKey},
	}
}

func (f *knowledgeBaseFormatter) Format(ctx context.Context, schoolCode string) (string, error) {
	profile, err := f.schoolRepo.FindProfile(schoolCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NoKnowledgeBaseHTML, nil
		}
		return "", fmt.Errorf("failed to load school profile: %w", err)
	}
	if profile.School.Data().IsEmpty() && !profile.HasKnowledgeBase() {
		return NoKnowledgeBaseHTML, nil
	}

	apiKey, err := f.keys.resolve(schoolCode)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(profileContext(profile), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal school profile: %w", err)
	}
	raw, err := f.llmClient.Chat(ctx, apiKey, nil, fmt.Sprintf(formatPromptTemplate, string(data)), nil)
	if err != nil {
		return "", fmt.Errorf("failed to call gemini: %w", err)
	}

	return markdown.ToHTML(TrimPreamble(raw))
}

// 结构标记类别：标题、项目符号、编号列表、emoji。
var bulletRunes = map[rune]bool{
	'-': true, '*': true, '+': true, '•': true, '●': true, '▪': true, '◦': true, '‣': true,
}

// emojiBlocks 是被视为 emoji 的码位区间（闭区间）。
var emojiBlocks = [][2]rune{
	{0x1F000, 0x1FAFF}, // 象形文字与表情
	{0x2600, 0x27BF},   // 杂项符号、装饰符号
	{0x2300, 0x23FF},   // 杂项技术符号（⌚ ⏰ 等）
	{0x2B00, 0x2BFF},   // 箭头与几何（⭐ 等）
	{0x1F1E6, 0x1F1FF}, // 区域指示符（国旗）
}

func isEmoji(r rune) bool {
	for _, b := range emojiBlocks {
		if r >= b[0] && r <= b[1] {
			return true
		}
	}
	return false
}

func isASCIIDigit(b byte) bool { return b >= '0' && b <= '9' }

// markerAt 判断 s[i:] 是否以结构标记开头。
func markerAt(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	switch {
	case r == '#':
		return true
	case bulletRunes[r]:
		return true
	case isEmoji(r):
		return true
	case isASCIIDigit(s[i]):
		j := i
		for j < len(s) && isASCIIDigit(s[j]) {
			j++
		}
		return j < len(s) && (s[j] == '.' || s[j] == ')')
	}
	return false
}

// TrimPreamble 删除第一个结构标记之前的全部文字；找不到标记时原样返回（去除首尾空白）。
func TrimPreamble(text string) string {
	for i := range text {
		if markerAt(text, i) {
			return strings.TrimSpace(text[i:])
		}
	}
	return strings.TrimSpace(text)
}
