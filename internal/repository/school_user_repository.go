package repository

import (
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"gorm.io/gorm"
)

// SchoolUserRepository 定义了租户用户的持久化操作。
type SchoolUserRepository interface {
	Create(user *model.SchoolUser) error
	FindByUsername(schoolID uint, username string) (*model.SchoolUser, error)
	FindBySchool(schoolID uint) ([]model.SchoolUser, error)
	CountBySchool(schoolID uint) (int64, error)
}

type schoolUserRepository struct {
	db *gorm.DB
}

// NewSchoolUserRepository 创建一个新的 SchoolUserRepository 实例。
func NewSchoolUserRepository(db *gorm.DB) SchoolUserRepository {
	return &schoolUserRepository{db: db}
}

func (r *schoolUserRepository) Create(user *model.SchoolUser) error {
	return r.db.Create(user).Error
}

// FindByUsername 在指定学校内按用户名查找用户。
func (r *schoolUserRepository) FindByUsername(schoolID uint, username string) (*model.SchoolUser, error) {
	var user model.SchoolUser
	err := r.db.Where("school_id = ? AND username = ?", schoolID, username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *schoolUserRepository) FindBySchool(schoolID uint) ([]model.SchoolUser, error) {
	var users []model.SchoolUser
	err := r.db.Where("school_id = ?", schoolID).Order("created_at ASC").Find(&users).Error
	return users, err
}

func (r *schoolUserRepository) CountBySchool(schoolID uint) (int64, error) {
	var n int64
	err := r.db.Model(&model.SchoolUser{}).Where("school_id = ?", schoolID).Count(&n).Error
	return n, err
}
