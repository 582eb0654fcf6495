package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/repository"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SeedProfiles 导入 fsys 根目录下的 <学校代码>.json 文件作为学校资料（幂等）。
// 已存在资料的学校跳过，文件内容为 school 对象。返回新导入的数量。
func SeedProfiles(fsys fs.FS, schoolRepo repository.SchoolRepository) (int, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return 0, fmt.Errorf("failed to read seed directory: %w", err)
	}

	imported := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(path.Ext(name), ".json") {
			continue
		}
		code := strings.TrimSuffix(name, path.Ext(name))
		if !ValidSchoolCode(code) {
			log.Warnf("SeedProfiles: 文件名不是合法的学校代码，跳过: %s", name)
			continue
		}

		_, err := schoolRepo.FindProfile(code)
		if err == nil {
			log.Infof("SeedProfiles: 已存在，跳过: %s", code)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return imported, fmt.Errorf("failed to check profile %s: %w", code, err)
		}

		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return imported, fmt.Errorf("failed to read %s: %w", name, err)
		}
		var info model.SchoolInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			log.Warnf("SeedProfiles: 解析失败，跳过: %s, err=%v", name, err)
			continue
		}

		profile := &model.SchoolProfile{SchoolCode: code, School: datatypes.NewJSONType(info)}
		if err := schoolRepo.SaveProfile(profile); err != nil {
			return imported, fmt.Errorf("failed to save profile %s: %w", code, err)
		}
		imported++
		log.Infof("SeedProfiles: 导入完成: %s", code)
	}
	return imported, nil
}
