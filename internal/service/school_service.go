package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/repository"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/log"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/storage"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/token"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultImageAlt = "School image"

var schoolCodePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// ValidSchoolCode 判断学校代码是否为非空的字母数字串。
func ValidSchoolCode(code string) bool {
	return schoolCodePattern.MatchString(code)
}

// SchoolProfileView 是返回给前端的资料，合并了授权记录里的 Gemini Key。
type SchoolProfileView struct {
	*model.SchoolProfile
	GeminiAPIKey string `json:"geminiApiKey"`
}

// ImageView 是图片列表中的一项。
type ImageView struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// SchoolSummary 是学校列表中的一行。
type SchoolSummary struct {
	ID               uint      `json:"id"`
	SchoolCode       string    `json:"schoolCode"`
	Name             string    `json:"name"`
	Status           string    `json:"status"`
	SubscriptionTier string    `json:"subscriptionTier"`
	TotalSessions    int64     `json:"totalSessions"`
	TotalMessages    int64     `json:"totalMessages"`
	CreatedAt        time.Time `json:"createdAt"`
}

// CreateSchoolResult 是学校开通后的返回，APIKey 只在此时可见。
type CreateSchoolResult struct {
	SchoolID  uint   `json:"schoolId"`
	APIKey    string `json:"apiKey"`
	EmbedCode string `json:"embedCode"`
}

// UploadImageInput 描述一次图片上传。
type UploadImageInput struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
	Alt         string
	Caption     string
	Keyword     string
}

// SchoolService 负责学校开通、资料读取、图片与凭据管理。
type SchoolService interface {
	GetProfile(schoolCode string) (*SchoolProfileView, error)
	ListImages(schoolCode string) ([]ImageView, error)
	FindImage(schoolCode, keyword string) (*ImageView, error)
	ImageKeywords(schoolCode string) ([]string, error)
	UploadImage(ctx context.Context, schoolCode string, in UploadImageInput) (*model.SchoolImage, error)
	UpdateGeminiKey(schoolCode, apiKey string) error

	CreateSchool(code, name, geminiAPIKey string) (*CreateSchoolResult, error)
	RotateAPIKey(schoolCode string) (string, error)
	ListSchools() ([]SchoolSummary, error)
	ListSchoolData() ([]model.SchoolProfile, error)
}

type schoolService struct {
	schoolRepo    repository.SchoolRepository
	chatRepo      repository.ChatRepository
	store         storage.ObjectStore
	publicBaseURL string
}

// NewSchoolService 创建一个新的 SchoolService 实例。store 为 nil 时图片上传不可用。
func NewSchoolService(schoolRepo repository.SchoolRepository, chatRepo repository.ChatRepository, store storage.ObjectStore, publicBaseURL string) SchoolService {
	return &schoolService{
		schoolRepo:    schoolRepo,
		chatRepo:      chatRepo,
		store:         store,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *schoolService) findProfile(schoolCode string) (*model.SchoolProfile, error) {
	profile, err := s.schoolRepo.FindProfile(schoolCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSchoolNotFound
		}
		return nil, fmt.Errorf("failed to load school profile: %w", err)
	}
	return profile, nil
}

// GetProfile 返回资料并合并授权记录中的 Gemini Key（没有授权记录时为空）。
func (s *schoolService) GetProfile(schoolCode string) (*SchoolProfileView, error) {
	profile, err := s.findProfile(schoolCode)
	if err != nil {
		return nil, err
	}
	view := &SchoolProfileView{SchoolProfile: profile}
	auth, err := s.schoolRepo.FindAuth(schoolCode)
	switch {
	case err == nil:
		view.GeminiAPIKey = auth.GeminiAPIKey
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to load school auth: %w", err)
	}
	return view, nil
}

func imageAlt(img model.SchoolImage) string {
	switch {
	case img.Alt != "":
		return img.Alt
	case img.Caption != "":
		return img.Caption
	default:
		return defaultImageAlt
	}
}

func (s *schoolService) ListImages(schoolCode string) ([]ImageView, error) {
	profile, err := s.findProfile(schoolCode)
	if err != nil {
		return nil, err
	}
	images := profile.School.Data().Images
	views := make([]ImageView, 0, len(images))
	for _, img := range images {
		views = append(views, ImageView{URL: img.URL, Alt: imageAlt(img)})
	}
	return views, nil
}

// FindImage 返回第一张 keyword、alt 或 caption 包含关键字的图片（忽略大小写）。
func (s *schoolService) FindImage(schoolCode, keyword string) (*ImageView, error) {
	profile, err := s.findProfile(schoolCode)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(keyword))
	for _, img := range profile.School.Data().Images {
		for _, field := range []string{img.Keyword, img.Alt, img.Caption} {
			if field != "" && strings.Contains(strings.ToLower(field), needle) {
				return &ImageView{URL: img.URL, Alt: imageAlt(img)}, nil
			}
		}
	}
	return nil, ErrImageNotFound
}

// ImageKeywords 返回每张图片的 keyword，缺失时依次使用 alt、caption。
func (s *schoolService) ImageKeywords(schoolCode string) ([]string, error) {
	profile, err := s.findProfile(schoolCode)
	if err != nil {
		return nil, err
	}
	keywords := make([]string, 0)
	for _, img := range profile.School.Data().Images {
		switch {
		case img.Keyword != "":
			keywords = append(keywords, img.Keyword)
		case img.Alt != "":
			keywords = append(keywords, img.Alt)
		case img.Caption != "":
			keywords = append(keywords, img.Caption)
		}
	}
	return keywords, nil
}

// UploadImage 把图片写入对象存储并追加到学校资料的图片列表。
func (s *schoolService) UploadImage(ctx context.Context, schoolCode string, in UploadImageInput) (*model.SchoolImage, error) {
	if s.store == nil {
		return nil, ErrStorageDisabled
	}
	profile, err := s.findProfile(schoolCode)
	if err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("%s/%s%s", schoolCode, uuid.NewString(), strings.ToLower(path.Ext(in.FileName)))
	url, err := s.store.Put(ctx, objectName, in.Body, in.Size, in.ContentType)
	if err != nil {
		return nil, err
	}

	img := model.SchoolImage{URL: url, Alt: in.Alt, Caption: in.Caption, Keyword: in.Keyword}
	info := profile.School.Data()
	info.Images = append(info.Images, img)
	profile.School = datatypes.NewJSONType(info)
	if err := s.schoolRepo.SaveProfile(profile); err != nil {
		return nil, fmt.Errorf("failed to save school profile: %w", err)
	}
	log.Infof("学校 %s 上传图片成功: %s", schoolCode, objectName)
	return &img, nil
}

// UpdateGeminiKey 替换学校的 Gemini Key。
func (s *schoolService) UpdateGeminiKey(schoolCode, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("%w: geminiApiKey is required", ErrInvalidInput)
	}
	auth, err := s.schoolRepo.FindAuth(schoolCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSchoolNotFound
		}
		return fmt.Errorf("failed to load school auth: %w", err)
	}
	auth.GeminiAPIKey = strings.TrimSpace(apiKey)
	if err := s.schoolRepo.UpdateAuth(auth); err != nil {
		return fmt.Errorf("failed to update gemini key: %w", err)
	}
	return nil
}

// generateCredentials 生成 sk_<schoolId>_<32位十六进制> 形式的 API Key 和 96 位十六进制的 Secret。
func generateCredentials(schoolID uint) (apiKey, apiSecret string, err error) {
	random, err := token.RandomHex(16)
	if err != nil {
		return "", "", err
	}
	secret, err := token.RandomHex(48)
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf("sk_%d_%s", schoolID, random), secret, nil
}

// CreateSchool 开通一个学校：授权记录、空白资料和嵌入代码。
func (s *schoolService) CreateSchool(code, name, geminiAPIKey string) (*CreateSchoolResult, error) {
	code, name, geminiAPIKey = strings.TrimSpace(code), strings.TrimSpace(name), strings.TrimSpace(geminiAPIKey)
	if code == "" || name == "" || geminiAPIKey == "" {
		return nil, fmt.Errorf("%w: all fields required", ErrInvalidInput)
	}
	if !ValidSchoolCode(code) {
		return nil, fmt.Errorf("%w: school code must be alphanumeric", ErrInvalidInput)
	}

	_, err := s.schoolRepo.FindAuth(code)
	if err == nil {
		return nil, ErrSchoolCodeExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check school code: %w", err)
	}

	auth := &model.SchoolAuth{
		SchoolCode:       code,
		Name:             name,
		GeminiAPIKey:     geminiAPIKey,
		Status:           model.SchoolStatusActive,
		SubscriptionTier: model.TierBasic,
	}
	profile := &model.SchoolProfile{
		SchoolCode: code,
		School:     datatypes.NewJSONType(model.SchoolInfo{Name: name}),
	}
	var apiKey string
	err = s.schoolRepo.CreateSchool(auth, profile, func(a *model.SchoolAuth) error {
		key, secret, err := generateCredentials(a.ID)
		if err != nil {
			return err
		}
		apiKey = key
		a.APIKey = &key
		a.APISecret = secret
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create school: %w", err)
	}

	log.Infof("学校 %s (%s) 开通成功", code, name)
	return &CreateSchoolResult{
		SchoolID:  auth.ID,
		APIKey:    apiKey,
		EmbedCode: fmt.Sprintf(`<script src="%s/%s/inject.js"></script>`, s.publicBaseURL, code),
	}, nil
}

// RotateAPIKey 为学校签发新的 API Key 与 Secret，旧 Key 立即失效。
func (s *schoolService) RotateAPIKey(schoolCode string) (string, error) {
	auth, err := s.schoolRepo.FindAuth(schoolCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrSchoolNotFound
		}
		return "", fmt.Errorf("failed to load school auth: %w", err)
	}
	key, secret, err := generateCredentials(auth.ID)
	if err != nil {
		return "", err
	}
	auth.APIKey = &key
	auth.APISecret = secret
	if err := s.schoolRepo.UpdateAuth(auth); err != nil {
		return "", fmt.Errorf("failed to rotate api key: %w", err)
	}
	return key, nil
}

func (s *schoolService) ListSchools() ([]SchoolSummary, error) {
	auths, err := s.schoolRepo.ListAuths()
	if err != nil {
		return nil, fmt.Errorf("failed to list schools: %w", err)
	}
	sessions, err := s.chatRepo.CountSessionsBySchool()
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}
	messages, err := s.chatRepo.CountUserMessagesBySchool()
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	out := make([]SchoolSummary, 0, len(auths))
	for _, a := range auths {
		out = append(out, SchoolSummary{
			ID:               a.ID,
			SchoolCode:       a.SchoolCode,
			Name:             a.Name,
			Status:           a.Status,
			SubscriptionTier: a.SubscriptionTier,
			TotalSessions:    sessions[a.SchoolCode],
			TotalMessages:    messages[a.SchoolCode],
			CreatedAt:        a.CreatedAt,
		})
	}
	return out, nil
}

func (s *schoolService) ListSchoolData() ([]model.SchoolProfile, error) {
	profiles, err := s.schoolRepo.ListProfiles()
	if err != nil {
		return nil, fmt.Errorf("failed to list school data: %w", err)
	}
	return profiles, nil
}
