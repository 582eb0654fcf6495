package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/config"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/repository"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/llm"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 知识库写入策略
const (
	ModeDirect = "direct"
	ModeMerge  = "merge"
)

const mergePromptTemplate = "You are an expert school admin assistant. Here is the current knowledge base for the school as JSON:\n%s\n\n" +
	"Here is new information to add or update (text and optional image URL):\n%s\n\n" +
	"Return the updated knowledge base as a JSON object. Only return valid JSON, no explanations."

const mergeInstruction = "Update the knowledge base."

// KnowledgeBaseFields 是直接写入路径可以修改的字段，nil 表示不修改。
type KnowledgeBaseFields struct {
	Name                  *string              `json:"name"`
	GeneralInfo           *string              `json:"generalInfo"`
	Infrastructure        *string              `json:"infrastructure"`
	Fees                  *string              `json:"fees"`
	AdmissionAndDocuments *string              `json:"admissionAndDocuments"`
	ImportantNotes        *string              `json:"importantNotes"`
	Bus                   *string              `json:"bus"`
	Links                 *string              `json:"links"`
	Miscellaneous         *string              `json:"miscellaneous"`
	Images                *[]model.SchoolImage `json:"images"`
}

// applyTo 把非 nil 字段写入 info，返回写入的字段数。
func (f KnowledgeBaseFields) applyTo(info *model.SchoolInfo) int {
	n := 0
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
			n++
		}
	}
	set(&info.Name, f.Name)
	set(&info.GeneralInfo, f.GeneralInfo)
	set(&info.Infrastructure, f.Infrastructure)
	set(&info.Fees, f.Fees)
	set(&info.AdmissionAndDocuments, f.AdmissionAndDocuments)
	set(&info.ImportantNotes, f.ImportantNotes)
	set(&info.Bus, f.Bus)
	set(&info.Links, f.Links)
	set(&info.Miscellaneous, f.Miscellaneous)
	if f.Images != nil {
		info.Images = *f.Images
		n++
	}
	return n
}

// UpdateRequest 是一次知识库更新。Mode 为空时使用配置的默认策略。
type UpdateRequest struct {
	Mode   string
	Text   string
	Image  string
	Fields KnowledgeBaseFields
}

// UpdateResult 是更新后的知识库。
type UpdateResult struct {
	Mode          string           `json:"mode"`
	School        model.SchoolInfo `json:"school"`
	KnowledgeBase json.RawMessage  `json:"knowledgeBase,omitempty"`
}

// KnowledgeBaseUpdater 以直接写字段或 LLM 合并两种方式更新学校知识库。
type KnowledgeBaseUpdater interface {
	Update(ctx context.Context, schoolCode string, req UpdateRequest) (*UpdateResult, error)
}

type knowledgeBaseUpdater struct {
	schoolRepo  repository.SchoolRepository
	llmClient   llm.Client
	keys        keyResolver
	defaultMode string
}

// NewKnowledgeBaseUpdater 创建一个新的 KnowledgeBaseUpdater。
func NewKnowledgeBaseUpdater(schoolRepo repository.SchoolRepository, llmClient llm.Client, llmCfg config.LLMConfig, kbCfg config.KnowledgeBaseConfig) KnowledgeBaseUpdater {
	mode := kbCfg.DefaultMode
	if mode == "" {
		mode = ModeDirect
	}
	return &knowledgeBaseUpdater{
		schoolRepo:  schoolRepo,
		llmClient:   llmClient,
		keys:        keyResolver{schoolRepo: schoolRepo, fallback: llmCfg.FallbackAPIKey},
		defaultMode: mode,
	}
}

func (u *knowledgeBaseUpdater) Update(ctx context.Context, schoolCode string, req UpdateRequest) (*UpdateResult, error) {
	mode := req.Mode
	if mode == "" {
		mode = u.defaultMode
	}
	switch mode {
	case ModeDirect:
		return u.updateDirect(schoolCode, req.Fields)
	case ModeMerge:
		return u.updateMerge(ctx, schoolCode, req.Text, req.Image)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

// updateDirect 把调用方给出的字段原样写入资料，不经过 LLM。
func (u *knowledgeBaseUpdater) updateDirect(schoolCode string, fields KnowledgeBaseFields) (*UpdateResult, error) {
	profile, err := u.schoolRepo.FindProfile(schoolCode)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load school profile: %w", err)
		}
		profile = &model.SchoolProfile{SchoolCode: schoolCode}
	}

	info := profile.School.Data()
	if fields.applyTo(&info) == 0 {
		return nil, ErrNoFields
	}
	profile.School = datatypes.NewJSONType(info)
	if err := u.schoolRepo.SaveProfile(profile); err != nil {
		return nil, fmt.Errorf("failed to save school profile: %w", err)
	}
	log.Infof("知识库已更新 (direct)，学校: %s", schoolCode)
	return &UpdateResult{Mode: ModeDirect, School: info}, nil
}

type mergeInput struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// updateMerge 让模型把新信息合并进当前知识库，并保存模型返回的 JSON。
func (u *knowledgeBaseUpdater) updateMerge(ctx context.Context, schoolCode, text, image string) (*UpdateResult, error) {
	if strings.TrimSpace(text) == "" && strings.TrimSpace(image) == "" {
		return nil, fmt.Errorf("%w: text or image is required", ErrInvalidInput)
	}

	profile, err := u.schoolRepo.FindProfile(schoolCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSchoolNotFound
		}
		return nil, fmt.Errorf("failed to load school profile: %w", err)
	}

	apiKey, err := u.keys.resolve(schoolCode)
	if err != nil {
		return nil, err
	}

	current := []byte(profile.KnowledgeBase)
	if !profile.HasKnowledgeBase() {
		if current, err = json.Marshal(profile.School.Data()); err != nil {
			return nil, fmt.Errorf("failed to marshal school info: %w", err)
		}
	}
	input, err := json.Marshal(mergeInput{Text: text, Image: image})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merge input: %w", err)
	}

	prompt := fmt.Sprintf(mergePromptTemplate, string(current), string(input))
	raw, err := u.llmClient.Chat(ctx, apiKey, []llm.Message{{Role: "user", Content: prompt}}, mergeInstruction, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call gemini: %w", err)
	}

	updated, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	profile.KnowledgeBase = datatypes.JSON(updated)
	if err := u.schoolRepo.SaveProfile(profile); err != nil {
		return nil, fmt.Errorf("failed to save knowledge base: %w", err)
	}
	log.Infof("知识库已更新 (merge)，学校: %s", schoolCode)
	return &UpdateResult{Mode: ModeMerge, School: profile.School.Data(), KnowledgeBase: updated}, nil
}

// ExtractJSON 取模型回复中第一个 '{' 到最后一个 '}' 之间的内容并解析为 JSON 对象。
// 前后文字里出现的花括号会破坏提取结果，这里不做修正。
func ExtractJSON(raw string) (json.RawMessage, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, ErrNoValidJSON
	}

	var obj map[string]interface{}
	candidate := raw[start : end+1]
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, fmt.Errorf("failed to parse gemini json: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(candidate)); err != nil {
		return nil, fmt.Errorf("failed to compact gemini json: %w", err)
	}
	return buf.Bytes(), nil
}
