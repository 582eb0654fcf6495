package service

import (
	"context"
	"sync"
	"testing"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/config"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/llm"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type llmCall struct {
	apiKey  string
	history []llm.Message
	message string
	gen     *llm.GenerationParams
}

// fakeLLM 记录每次调用并返回预设的回复。
type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []llmCall
}

func (f *fakeLLM) Chat(_ context.Context, apiKey string, history []llm.Message, message string, gen *llm.GenerationParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, llmCall{apiKey: apiKey, history: history, message: message, gen: gen})
	return f.reply, f.err
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var (
	testLLMConfig  = config.LLMConfig{Model: "gemini-test", MaxOutputTokens: 2048}
	testChatConfig = config.ChatConfig{DefaultSchoolCode: "SXSBT"}
)

func seedProfile(t *testing.T, db *gorm.DB, code string, info model.SchoolInfo) *model.SchoolProfile {
	t.Helper()
	p := &model.SchoolProfile{SchoolCode: code, School: datatypes.NewJSONType(info)}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedAuth(t *testing.T, db *gorm.DB, code, geminiKey, status string) *model.SchoolAuth {
	t.Helper()
	a := &model.SchoolAuth{SchoolCode: code, Name: code, GeminiAPIKey: geminiKey, Status: status, SubscriptionTier: model.TierBasic}
	require.NoError(t, db.Create(a).Error)
	return a
}
