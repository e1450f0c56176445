package router

import (
	"arbitex/internal/adapter/api/middleware"

	"github.com/labstack/echo/v4"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware) {
	SetupMediationRouter(e, authMiddleware, adminMiddleware)
	SetupSubChatRouter(e, authMiddleware, adminMiddleware)
	SetupHealthRouter(e)
}
