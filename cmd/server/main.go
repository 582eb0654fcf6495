// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/config"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/handler"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/middleware"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/repository"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/service"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/database"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/llm"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/log"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/storage"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/token"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// seedDir 下的 <学校代码>.json 在启动时导入为学校资料
const seedDir = "initdata"

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 后台任务（访问统计清理）随 rootCtx 退出
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// 3. 初始化数据库、Redis 与对象存储
	database.InitMySQL(cfg.Database.MySQL.DSN)
	if cfg.Metrics.Backend == "redis" {
		database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	}
	var objectStore storage.ObjectStore
	if cfg.MinIO.Endpoint != "" && cfg.MinIO.AccessKeyID != "" {
		objectStore = storage.InitMinIO(cfg.MinIO)
	} else {
		log.Warnf("未配置 MinIO 凭据，图片上传不可用")
	}

	// 4. 初始化 Repository
	schoolRepo := repository.NewSchoolRepository(database.DB)
	chatRepo := repository.NewChatRepository(database.DB)
	schoolUserRepo := repository.NewSchoolUserRepository(database.DB)

	// 4.1 导入初始学校资料，已存在则跳过
	if info, err := os.Stat(seedDir); err == nil && info.IsDir() {
		if n, err := service.SeedProfiles(os.DirFS(seedDir), schoolRepo); err != nil {
			log.Errorf("导入初始学校资料失败: %v", err)
		} else {
			log.Infof("导入初始学校资料 %d 份", n)
		}
	}

	// 5. 初始化 Service (依赖注入)
	llmClient := llm.NewClient(cfg.LLM)
	jwtManager := token.NewJWTManager(cfg.Admin.SessionSecret, time.Duration(cfg.Admin.SessionHours)*time.Hour)
	viewTracker := service.NewViewTracker(rootCtx, cfg.Metrics.Backend, database.RDB,
		time.Duration(cfg.Metrics.ActiveWindowMinutes)*time.Minute,
		time.Duration(cfg.Metrics.SweepIntervalSeconds)*time.Second)

	generator := service.NewResponseGenerator(schoolRepo, llmClient, cfg.LLM, cfg.Chat)
	chatService := service.NewChatService(chatRepo, generator, cfg.LLM, cfg.Chat)
	kbUpdater := service.NewKnowledgeBaseUpdater(schoolRepo, llmClient, cfg.LLM, cfg.KnowledgeBase)
	kbFormatter := service.NewKnowledgeBaseFormatter(schoolRepo, llmClient, cfg.LLM)
	detector := service.NewUnansweredDetector(chatRepo)
	dashboardService := service.NewDashboardService(chatRepo, schoolRepo, viewTracker)
	schoolService := service.NewSchoolService(schoolRepo, chatRepo, objectStore, cfg.Server.PublicBaseURL)
	adminService := service.NewAdminService(cfg.Admin, jwtManager)
	tenantService := service.NewTenantService(schoolUserRepo, chatRepo)

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加 CORS、自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)), middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	api := r.Group("/api")
	{
		// 访客聊天
		chat := api.Group("/chat")
		{
			chat.POST("/session", handler.NewChatHandler(chatService).CreateSession)
			chat.POST("/message", handler.NewChatHandler(chatService).PostMessage)
			chat.GET("/history/:sessionId", handler.NewChatHandler(chatService).History)
			chat.GET("/ws/:sessionId", handler.NewChatHandler(chatService).Stream)
		}

		// 学校资料、知识库与仪表盘
		school := api.Group("/school/:schoolCode")
		{
			school.GET("", handler.NewSchoolHandler(schoolService).GetProfile)
			school.GET("/images", handler.NewSchoolHandler(schoolService).ListImages)
			school.POST("/images", handler.NewSchoolHandler(schoolService).UploadImage)
			school.GET("/image-keywords", handler.NewSchoolHandler(schoolService).ImageKeywords)
			school.PATCH("/gemini-api-key", handler.NewSchoolHandler(schoolService).UpdateGeminiKey)

			school.POST("/knowledge-base", handler.NewKnowledgeBaseHandler(kbUpdater, kbFormatter).Update)
			school.GET("/knowledge-base-formatted", handler.NewKnowledgeBaseHandler(kbUpdater, kbFormatter).Formatted)

			school.GET("/metrics", handler.NewDashboardHandler(dashboardService, detector).Metrics)
			school.GET("/analytics", handler.NewDashboardHandler(dashboardService, detector).Analytics)
			school.GET("/recent-activity", handler.NewDashboardHandler(dashboardService, detector).RecentActivity)
			school.GET("/sessions", handler.NewDashboardHandler(dashboardService, detector).Sessions)
			school.GET("/session/:sessionId/messages", handler.NewDashboardHandler(dashboardService, detector).SessionMessages)
			school.GET("/unanswered-messages", handler.NewDashboardHandler(dashboardService, detector).Unanswered)
		}

		// 超级管理员登录与平台仪表盘
		adminHandler := handler.NewAdminHandler(adminService, schoolService, dashboardService, jwtManager.TTL())
		schoolAdmin := api.Group("/school-admin")
		{
			schoolAdmin.POST("/login", adminHandler.Login)
			schoolAdmin.POST("/logout", adminHandler.Logout)
			schoolAdmin.GET("/check-auth", adminHandler.CheckAuth)

			// 需要管理员会话 cookie 的路由
			authed := schoolAdmin.Group("/")
			authed.Use(middleware.AdminSessionMiddleware(adminService))
			{
				authed.GET("/schools", adminHandler.ListSchools)
				authed.GET("/school-data-list", adminHandler.ListSchoolData)
				authed.GET("/analytics", adminHandler.PlatformAnalytics)
				authed.GET("/daily-usage", adminHandler.DailyUsage)
			}
		}

		// 学校开通
		admin := api.Group("/admin")
		admin.Use(middleware.AdminSessionMiddleware(adminService))
		{
			admin.POST("/schools", adminHandler.CreateSchool)
			admin.GET("/schools", adminHandler.ListSchools)
			admin.POST("/schools/:schoolCode/rotate-api-key", adminHandler.RotateAPIKey)
		}

		// 租户 API，需要 X-API-Key
		tenant := api.Group("/v1/schools")
		tenant.Use(middleware.SchoolAPIKeyMiddleware(schoolRepo))
		{
			tenant.GET("/dashboard", handler.NewTenantHandler(tenantService).Dashboard)
			tenant.GET("/users", handler.NewTenantHandler(tenantService).ListUsers)
			tenant.POST("/users", handler.NewTenantHandler(tenantService).CreateUser)
		}
	}

	// 嵌入脚本
	r.GET("/:schoolCode/inject.js", handler.NewWidgetHandler(cfg.Server.PublicBaseURL).InjectScript)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// 停止访问统计的清理协程
	cancelRoot()
	if database.RDB != nil {
		_ = database.RDB.Close()
	}
	log.Info("服务已优雅关闭")
}

// corsConfig 根据配置的来源列表构建 CORS 规则，包含 "*" 时放开所有来源（此时不允许携带凭据）。
func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization", "X-API-Key")
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
