package api

import (
	"github.com/gin-gonic/gin"

	"workflowhr/internal/api/middleware"
	"workflowhr/internal/auth"
)

// RegisterRoutes 注册 /v1 下的全部业务路由。
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	logger := deps.logger()

	authHandler := NewAuthHandler(deps.DB, deps.Auth, deps.LoginPolicy, deps.Revocations, deps.Config.CookieDomain)
	templateHandler := NewTemplateHandler(deps)
	documentHandler := NewDocumentHandler(deps)
	slipHandler := NewSalarySlipHandler(deps)

	authMiddleware := middleware.AuthMiddleware(deps.Auth)
	passwordGate := middleware.RequirePasswordChangeCompletedMiddleware()
	managers := middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)

	v1 := router.Group("/v1")
	{
		if deps.Redis != nil {
			wsHandler := NewWsHandler(deps.Redis, deps.Auth, logger, deps.Config.AllowedOrigins)
			v1.GET("/ws", wsHandler.HandleConnection)
		}

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.POST("/change-password", authMiddleware, authHandler.ChangePassword)
		}

		v1.GET("/verify/salary-slips/:code", slipHandler.Verify)

		protected := v1.Group("")
		protected.Use(authMiddleware, passwordGate)
		{
			protected.GET("/themes", ListThemes)

			templates := protected.Group("/templates")
			{
				templates.GET("", templateHandler.ListTemplates)
				templates.GET("/:id", templateHandler.GetTemplate)
				templates.GET("/:id/export", templateHandler.ExportTemplate)
				templates.POST("/:id/preview", templateHandler.PreviewTemplate)
				templates.POST("", managers, templateHandler.CreateTemplate)
				templates.POST("/import", managers, templateHandler.ImportTemplate)
				templates.PUT("/:id", managers, templateHandler.UpdateTemplate)
				templates.DELETE("/:id", managers, templateHandler.DeleteTemplate)
				templates.POST("/:id/thumbnail", managers, templateHandler.EnqueueThumbnail)
			}

			documents := protected.Group("/documents")
			{
				documents.POST("/generate", documentHandler.Generate)
				documents.POST("", documentHandler.Enqueue)
				documents.GET("", documentHandler.List)
				documents.GET("/:id/download-link", documentHandler.DownloadLink)
			}

			slips := protected.Group("/salary-slips")
			{
				slips.POST("", managers, slipHandler.Create)
				slips.GET("/:id", slipHandler.Get)
				slips.GET("/:id/pdf", slipHandler.PDF)
			}
		}
	}
}
