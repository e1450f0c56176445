package router

import (
	"arbitex/internal/adapter/api/handler"
	"arbitex/internal/adapter/api/middleware"

	"github.com/labstack/echo/v4"
)

// SetupSubChatRouter initializes the mediation channel routes
func SetupSubChatRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware) {
	subChatHandler := handler.GetSubChatHandler()

	subChats := e.Group("/v1/subchats")
	subChats.Use(authMiddleware.Authenticate)

	subChats.GET("", subChatHandler.ListMyChannels)
	subChats.GET("/:id/messages", subChatHandler.ListMessages)
	subChats.POST("/:id/messages", subChatHandler.PostMessage)
	subChats.POST("/:id/read", subChatHandler.MarkRead)
}
