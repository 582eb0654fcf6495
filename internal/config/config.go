// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// EnvPrefix 是覆盖配置项时使用的环境变量前缀，例如 SCHOOLCHAT_LLM_FALLBACK_API_KEY。
const EnvPrefix = "SCHOOLCHAT"

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Chat          ChatConfig          `mapstructure:"chat"`
	KnowledgeBase KnowledgeBaseConfig `mapstructure:"knowledge_base"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Admin         AdminConfig         `mapstructure:"admin"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// PublicBaseURL 用于拼接嵌入代码和 widget iframe 地址。
	PublicBaseURL string   `mapstructure:"public_base_url"`
	CORSOrigins   []string `mapstructure:"cors_origins"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LLMConfig 存储 Gemini 接口相关的配置。
// 每个学校使用自己的 API Key，FallbackAPIKey 只在知识库编辑场景下兜底，且只能来自环境变量或密钥文件。
type LLMConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	Model           string `mapstructure:"model"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	MaxOutputTokens int    `mapstructure:"max_output_tokens"`
	FallbackAPIKey  string `mapstructure:"fallback_api_key"`
}

// ChatConfig 存储聊天相关的配置。
type ChatConfig struct {
	DefaultSchoolCode string `mapstructure:"default_school_code"`
}

// KnowledgeBaseConfig 配置知识库写入策略。
type KnowledgeBaseConfig struct {
	// DefaultMode 取值 direct 或 merge。
	DefaultMode string `mapstructure:"default_mode"`
}

// MetricsConfig 配置访问量统计。
type MetricsConfig struct {
	Backend              string `mapstructure:"backend"`
	ActiveWindowMinutes  int    `mapstructure:"active_window_minutes"`
	SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds"`
}

// AdminConfig 存储后台管理员凭据。PasswordHash 为 bcrypt 哈希。
type AdminConfig struct {
	Username      string `mapstructure:"username"`
	PasswordHash  string `mapstructure:"password_hash"`
	SessionSecret string `mapstructure:"session_secret"`
	SessionHours  int    `mapstructure:"session_hours"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	URLExpiryHours  int    `mapstructure:"url_expiry_hours"`
}

// setDefaults 为未在配置文件中出现的键提供默认值，同时让 AutomaticEnv 能够覆盖这些键。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("llm.model", "gemini-2.5-flash-lite-preview-06-17")
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("llm.max_output_tokens", 2048)
	v.SetDefault("llm.fallback_api_key", "")
	v.SetDefault("chat.default_school_code", "SXSBT")
	v.SetDefault("knowledge_base.default_mode", "direct")
	v.SetDefault("metrics.backend", "memory")
	v.SetDefault("metrics.active_window_minutes", 10)
	v.SetDefault("metrics.sweep_interval_seconds", 60)
	v.SetDefault("admin.username", "")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.session_secret", "")
	v.SetDefault("admin.session_hours", 12)
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.url_expiry_hours", 24*7)
}

// Load 从指定路径读取 YAML 文件，叠加 .env 与环境变量，并返回解析后的配置。
func Load(configPath string) (Config, error) {
	// .env 不存在时忽略，生产环境直接注入环境变量
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

// Init 初始化配置加载，并将结果写入全局变量 Conf。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
