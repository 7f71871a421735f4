package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"docuchat/internal/ai"
	appsvc "docuchat/internal/app"
	"docuchat/internal/bootstrap"
	"docuchat/internal/cache"
	"docuchat/internal/platform/rabbitmq"
	"docuchat/internal/repository"
	"docuchat/internal/retrieval"
	"docuchat/internal/transport/http/handler"
	"docuchat/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	docRepo := repository.NewDocumentRepository(app.MySQL)
	chunkRepo := repository.NewChunkRepository(app.MySQL)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)

	searcher := retrieval.NewSearcher(
		chunkRepo,
		app.LLMClient,
		ai.EmbeddingConfig{
			BaseURL: app.Config.LLM.BaseURL,
			APIKey:  app.Config.LLM.APIKey,
			Model:   app.Config.LLM.EmbeddingModel,
		},
		retrieval.Params{
			TopK:           app.Config.Retriever.TopK,
			FetchK:         app.Config.Retriever.FetchK,
			ScoreThreshold: float32(app.Config.Retriever.ScoreThreshold),
		},
	)
	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	chatService := appsvc.NewChatService(
		app.SessionStore,
		searcher,
		app.LLMClient,
		ai.ChatConfig{
			BaseURL: app.Config.LLM.BaseURL,
			APIKey:  app.Config.LLM.APIKey,
			Model:   app.Config.LLM.Model,
		},
		historyCache,
		0,
	)

	ingestPublisher := rabbitmq.NewIngestPublisher(app.MQConn, app.Config.RabbitMQ.IngestQueue)
	documentService := appsvc.NewDocumentService(docRepo, chunkRepo, ingestPublisher)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)
	sessionHandler := handler.NewSessionHandler(chatService)
	documentHandler := handler.NewDocumentHandler(documentService)
	metaHandler := handler.NewMetaHandler()

	authJWT := middleware.AuthJWT(app.Config.Auth.JWTSecret)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authJWT, authHandler.Me)
	adminGroup := authGroup.Group("")
	adminGroup.Use(authJWT, middleware.AdminOnly())
	adminGroup.GET("/users", authHandler.ListUsers)
	adminGroup.GET("/users/by-login-id/:login_id", authHandler.LookupByLoginID)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(authJWT)
	chatGroup.POST("/send", chatHandler.Send)
	chatGroup.POST("/stream", chatHandler.Stream)

	sessionGroup := v1.Group("/sessions")
	sessionGroup.Use(authJWT)
	sessionGroup.GET("", sessionHandler.List)
	sessionGroup.GET("/:id/messages", sessionHandler.Messages)
	sessionGroup.DELETE("/:id", sessionHandler.Delete)

	docGroup := v1.Group("/documents")
	docGroup.Use(authJWT)
	docGroup.POST("/upload", documentHandler.Upload)
	docGroup.GET("", documentHandler.List)
	docGroup.DELETE("/:id", documentHandler.Delete)

	metaGroup := v1.Group("/meta")
	metaGroup.GET("/roles", metaHandler.Roles)
	metaGroup.GET("/confidentiality-levels", metaHandler.Levels)
	metaGroup.GET("/allowed-levels", authJWT, metaHandler.AllowedLevels)
	metaGroup.GET("/role-permissions", metaHandler.RolePermissions)

	return router
}
