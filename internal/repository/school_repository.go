// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"gorm.io/gorm"
)

// SchoolRepository 定义了学校资料（school_data）和授权记录（schools）的持久化操作。
type SchoolRepository interface {
	FindProfile(schoolCode string) (*model.SchoolProfile, error)
	SaveProfile(profile *model.SchoolProfile) error
	ListProfiles() ([]model.SchoolProfile, error)

	FindAuth(schoolCode string) (*model.SchoolAuth, error)
	FindActiveAuthByAPIKey(apiKey string) (*model.SchoolAuth, error)
	UpdateAuth(auth *model.SchoolAuth) error
	ListAuths() ([]model.SchoolAuth, error)

	// CreateSchool 在一个事务中写入授权记录和空白资料。
	// assignKeys 在授权记录获得 ID 之后被调用，用于生成依赖 ID 的 API Key。
	CreateSchool(auth *model.SchoolAuth, profile *model.SchoolProfile, assignKeys func(*model.SchoolAuth) error) error
}

type schoolRepository struct {
	db *gorm.DB
}

// NewSchoolRepository 创建一个新的 SchoolRepository 实例。
func NewSchoolRepository(db *gorm.DB) SchoolRepository {
	return &schoolRepository{db: db}
}

// FindProfile 根据学校代码查找资料，不存在时返回 gorm.ErrRecordNotFound。
func (r *schoolRepository) FindProfile(schoolCode string) (*model.SchoolProfile, error) {
	var profile model.SchoolProfile
	if err := r.db.Where("school_code = ?", schoolCode).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// SaveProfile 新建或整体覆盖一份资料（后写覆盖先写）。
func (r *schoolRepository) SaveProfile(profile *model.SchoolProfile) error {
	return r.db.Save(profile).Error
}

func (r *schoolRepository) ListProfiles() ([]model.SchoolProfile, error) {
	var profiles []model.SchoolProfile
	err := r.db.Order("school_code ASC").Find(&profiles).Error
	return profiles, err
}

// FindAuth 根据学校代码查找授权记录。
func (r *schoolRepository) FindAuth(schoolCode string) (*model.SchoolAuth, error) {
	var auth model.SchoolAuth
	if err := r.db.Where("school_code = ?", schoolCode).First(&auth).Error; err != nil {
		return nil, err
	}
	return &auth, nil
}

// FindActiveAuthByAPIKey 查找持有该 API Key 且状态为 active 的学校。
func (r *schoolRepository) FindActiveAuthByAPIKey(apiKey string) (*model.SchoolAuth, error) {
	var auth model.SchoolAuth
	err := r.db.Where("api_key = ? AND status = ?", apiKey, model.SchoolStatusActive).First(&auth).Error
	if err != nil {
		return nil, err
	}
	return &auth, nil
}

func (r *schoolRepository) UpdateAuth(auth *model.SchoolAuth) error {
	return r.db.Save(auth).Error
}

func (r *schoolRepository) ListAuths() ([]model.SchoolAuth, error) {
	var auths []model.SchoolAuth
	err := r.db.Order("created_at DESC").Find(&auths).Error
	return auths, err
}

func (r *schoolRepository) CreateSchool(auth *model.SchoolAuth, profile *model.SchoolProfile, assignKeys func(*model.SchoolAuth) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(auth).Error; err != nil {
			return err
		}
		if assignKeys != nil {
			if err := assignKeys(auth); err != nil {
				return err
			}
			if err := tx.Save(auth).Error; err != nil {
				return err
			}
		}
		// 已经存在的资料保留原样
		var count int64
		if err := tx.Model(&model.SchoolProfile{}).Where("school_code = ?", profile.SchoolCode).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return tx.Create(profile).Error
	})
}
