package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/repository"
	"gorm.io/gorm"
)

// UserMessageNotFound 是找不到对应用户提问时的占位文本。
const UserMessageNotFound = "(User message not found)"

// refusalPhrases 是机器人未能回答时常见的道歉或拒绝措辞。
var refusalPhrases = []string{
	"I don't have",
	"I do not have",
	"I'm sorry",
	"I am sorry",
	"I cannot provide information",
	"I cannot fulfill this request",
	"I'm unable to",
	"I am unable to",
	"not configured",
	"error generating a response",
}

// buildRefusalPattern 把措辞转义后拼成一个忽略大小写的多选正则。
func buildRefusalPattern(phrases []string) *regexp.Regexp {
	escaped := make([]string, len(phrases))
	for i, p := range phrases {
		escaped[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(escaped, "|") + `)`)
}

var refusalPattern = buildRefusalPattern(refusalPhrases)

// UnansweredMessage 是一条疑似未回答的问题及机器人的回复。
type UnansweredMessage struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// UnansweredDetector 找出机器人以道歉或拒绝回复的提问。
type UnansweredDetector interface {
	Detect(schoolCode string) ([]UnansweredMessage, error)
}

type unansweredDetector struct {
	chatRepo repository.ChatRepository
	pattern  *regexp.Regexp
}

// NewUnansweredDetector 创建一个新的 UnansweredDetector。
func NewUnansweredDetector(chatRepo repository.ChatRepository) UnansweredDetector {
	return &unansweredDetector{chatRepo: chatRepo, pattern: refusalPattern}
}

// Detect 按时间倒序返回匹配的机器人消息，每条配上同一会话中时间严格更早的最近一条用户消息。
func (d *unansweredDetector) Detect(schoolCode string) ([]UnansweredMessage, error) {
	bots, err := d.chatRepo.FindBotMessages(schoolCode)
	if err != nil {
		return nil, fmt.Errorf("failed to load bot messages: %w", err)
	}

	results := make([]UnansweredMessage, 0)
	for _, bot := range bots {
		if !d.pattern.MatchString(bot.Content) {
			continue
		}
		question := UserMessageNotFound
		prev, err := d.chatRepo.FindLastUserMessageBefore(bot.SessionID, bot.Timestamp)
		switch {
		case err == nil:
			question = prev.Content
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("failed to load user message: %w", err)
		}
		results = append(results, UnansweredMessage{
			Question:  question,
			Answer:    bot.Content,
			Timestamp: bot.Timestamp,
		})
	}
	return results, nil
}
