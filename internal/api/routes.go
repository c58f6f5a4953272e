package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"certforge/internal/api/middleware"
	"certforge/internal/auth"
	"certforge/internal/render"
	"certforge/internal/storage"
)

// RegisterRoutes 注册 API 路由。
// /verify 下的端点面向公众，不做鉴权；/v1 下的业务端点需要经销商令牌。
func RegisterRoutes(
	router *gin.Engine,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.AuthService,
	redisClient *redis.Client,
	logger *slog.Logger,
	storageClient *storage.Client,
	pipeline *render.Pipeline,
) {
	templateHandler := NewTemplateHandler(db, asynqClient, pipeline)
	certificateHandler := NewCertificateHandler(db, asynqClient, storageClient)
	verifyHandler := NewVerifyHandler(db, redisClient, logger)
	assetHandler := NewAssetHandler(storageClient, logger)
	wsHandler := NewWsHandler(redisClient, authService, logger, nil)
	authMiddleware := middleware.AuthMiddleware(authService)

	verifyGroup := router.Group("/verify")
	{
		verifyGroup.GET("/lookup", verifyHandler.LookupByNumber)
		verifyGroup.GET("/:token", verifyHandler.LookupByToken)
	}

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		templateGroup := v1.Group("/templates")
		templateGroup.Use(authMiddleware)
		{
			templateGroup.GET("", templateHandler.ListTemplates)
			templateGroup.POST("", templateHandler.CreateTemplate)
			templateGroup.GET("/:id/layout", templateHandler.GetLayout)
			templateGroup.PUT("/:id/layout", templateHandler.SaveLayout)
			templateGroup.POST("/:id/preview", templateHandler.PreviewTemplate)
		}

		assetGroup := v1.Group("/assets")
		assetGroup.Use(authMiddleware)
		{
			assetGroup.POST("/upload", assetHandler.UploadAsset)
			assetGroup.GET("/view", assetHandler.GetAssetURL)
		}

		certificateGroup := v1.Group("/certificates")
		certificateGroup.Use(authMiddleware)
		{
			certificateGroup.GET("", certificateHandler.ListCertificates)
			certificateGroup.POST("", certificateHandler.IssueCertificate)
			certificateGroup.GET("/:id/download", certificateHandler.DownloadCertificate)
		}
	}
}
