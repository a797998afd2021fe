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

	"tabletalk-go/internal/config"
	"tabletalk-go/internal/handler"
	"tabletalk-go/internal/middleware"
	"tabletalk-go/internal/model"
	"tabletalk-go/internal/pipeline"
	"tabletalk-go/internal/repository"
	"tabletalk-go/internal/service"
	"tabletalk-go/pkg/database"
	"tabletalk-go/pkg/es"
	"tabletalk-go/pkg/kafka"
	"tabletalk-go/pkg/llm"
	"tabletalk-go/pkg/log"
	"tabletalk-go/pkg/speech"
	"tabletalk-go/pkg/storage"
	"tabletalk-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库与基础设施客户端
	db := database.InitMySQL(cfg.Database.MySQL.DSN)
	rdb := database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storageClient := storage.NewClient(cfg.MinIO)
	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		log.Errorf("Elasticsearch 初始化失败，检索将回退到数据库查询: %v", err)
		esClient = nil
	}
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	// 3.1 表结构迁移
	err = db.AutoMigrate(
		&model.Restaurant{},
		&model.MenuCategory{},
		&model.MenuItem{},
		&model.Ingredient{},
		&model.MenuItemIngredient{},
		&model.Conversation{},
		&model.Message{},
		&model.InteractionAnalytics{},
		&model.AdminUser{},
	)
	if err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	// 4. 初始化 Repository
	restaurantRepo := repository.NewRestaurantRepository(db)
	menuRepo := repository.NewMenuRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	adminRepo := repository.NewAdminUserRepository(db)
	menuCache := repository.NewMenuCache(rdb, cfg.Chat.MenuCacheTTLSeconds)
	audioCache := repository.NewAudioCache(rdb)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	llmClient := llm.NewClient(cfg.LLM)
	speechClient := speech.NewClient(cfg.Speech)

	restaurantService := service.NewRestaurantService(restaurantRepo)
	menuService := service.NewMenuService(menuRepo, menuCache, storageClient, producer)
	promptService := service.NewPromptService(cfg.Chat.HistoryTurns, cfg.Chat.HistoryBudget)
	chatService := service.NewChatService(promptService, menuService, llmClient, conversationRepo, producer, cfg.Chat.HistoryTurns)
	speechService := service.NewSpeechService(speechClient, audioCache, cfg.Speech)
	searchService := service.NewSearchService(esClient, menuRepo)
	conversationService := service.NewConversationService(conversationRepo)
	analyticsService := service.NewAnalyticsService(analyticsRepo)
	adminService := service.NewAdminService(adminRepo, jwtManager)
	adminService.EnsureDefaultAdmin(cfg.Admin.InitialUsername, cfg.Admin.InitialPassword)

	// 6. 初始化埋点消费管道
	processor := pipeline.NewAnalyticsProcessor(analyticsRepo, restaurantRepo, menuRepo, esClient)

	// 7. 启动后台 Kafka 消费者
	go kafka.StartConsumer(cfg.Kafka, rdb, processor)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 初始化 Handler
	chatHandler := handler.NewChatHandler(chatService, restaurantService)
	speechHandler := handler.NewSpeechHandler(speechService, restaurantService)
	restaurantHandler := handler.NewRestaurantHandler(restaurantService, menuService, searchService)
	menuHandler := handler.NewMenuHandler(menuService)
	adminHandler := handler.NewAdminHandler(adminService, conversationService, analyticsService)

	authRequired := middleware.AuthMiddleware(jwtManager, adminRepo)
	rateLimited := middleware.RateLimiter(rdb, cfg.RateLimit)

	// 10. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		// 公开餐厅与菜单读取
		restaurants := apiV1.Group("/restaurants")
		{
			restaurants.GET("/search", restaurantHandler.SearchRestaurants)
			restaurants.GET("/:slug", restaurantHandler.GetBySlug)
			restaurants.GET("/:slug/avatar", restaurantHandler.GetAvatarConfig)
			restaurants.GET("/:slug/menu", restaurantHandler.GetMenu)

			// 对话接口（限流）
			restaurants.POST("/:slug/chat", rateLimited, chatHandler.Send)
			restaurants.POST("/:slug/chat/stream", rateLimited, chatHandler.Stream)
			restaurants.GET("/:slug/chat/suggestions", chatHandler.GetSuggestions)
			restaurants.POST("/:slug/chat/feedback", rateLimited, chatHandler.Feedback)
		}

		// 公开菜品详情与检索
		apiV1.GET("/menu-items/:itemId", restaurantHandler.GetMenuItem)
		apiV1.GET("/search/menu-items", restaurantHandler.SearchMenuItems)

		// 语音接口（限流）
		speechGroup := apiV1.Group("/speech")
		{
			speechGroup.POST("/transcribe", rateLimited, speechHandler.Transcribe)
			speechGroup.POST("/synthesize", rateLimited, speechHandler.Synthesize)
			speechGroup.GET("/voices", speechHandler.GetVoices)
			speechGroup.GET("/config", speechHandler.GetConfig)
		}

		// 管理端路由
		admin := apiV1.Group("/admin")
		{
			admin.POST("/login", adminHandler.Login)
			admin.POST("/refresh-token", adminHandler.RefreshToken)

			authed := admin.Group("/")
			authed.Use(authRequired)
			{
				// 餐厅管理
				authed.POST("/restaurants", restaurantHandler.Create)
				authed.GET("/restaurants", restaurantHandler.List)
				authed.PUT("/restaurants/:id", restaurantHandler.Update)
				authed.PUT("/restaurants/:id/avatar", restaurantHandler.UpdateAvatarConfig)
				authed.DELETE("/restaurants/:id", restaurantHandler.Delete)

				// 菜单目录管理
				authed.POST("/categories", menuHandler.CreateCategory)
				authed.PUT("/categories/:categoryId", menuHandler.UpdateCategory)
				authed.DELETE("/categories/:categoryId", menuHandler.DeleteCategory)
				authed.POST("/menu-items", menuHandler.CreateItem)
				authed.PUT("/menu-items/:itemId", menuHandler.UpdateItem)
				authed.DELETE("/menu-items/:itemId", menuHandler.DeleteItem)
				authed.POST("/menu-items/:itemId/image", menuHandler.UploadItemImage)
				authed.POST("/ingredients", menuHandler.CreateIngredient)
				authed.GET("/ingredients", menuHandler.ListIngredients)
				authed.POST("/menu-items/:itemId/ingredients", menuHandler.LinkIngredient)
				authed.DELETE("/menu-items/:itemId/ingredients/:ingredientId", menuHandler.UnlinkIngredient)

				// 会话与埋点查看
				authed.GET("/restaurants/:id/conversations", adminHandler.ListConversations)
				authed.GET("/conversations/:conversationId", adminHandler.GetTranscript)
				authed.GET("/restaurants/:id/analytics", adminHandler.GetAnalyticsSummary)
				authed.GET("/restaurants/:id/analytics/events", adminHandler.GetRecentEvents)
			}
		}
	}

	// WebSocket 聊天入口
	r.GET("/ws/chat/:slug", chatHandler.HandleWS)

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

	log.Info("服务已优雅关闭")
}
