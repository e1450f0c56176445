package router

import (
	"arbitex/internal/adapter/api/handler"
	"arbitex/internal/adapter/api/middleware"

	"github.com/labstack/echo/v4"
)

// SetupMediationRouter initializes the mediation workflow routes
func SetupMediationRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware) {
	mediationHandler := handler.GetMediationHandler()
	queryHandler := handler.GetMediationQueryHandler()
	subChatHandler := handler.GetSubChatHandler()

	mediations := e.Group("/v1/mediations")
	mediations.Use(authMiddleware.Authenticate)

	mediations.POST("", mediationHandler.CreateMediation)

	// Read-side projections; registered before /:id so the literal paths win
	mediations.GET("/pending-decision", queryHandler.PendingDecision)
	mediations.GET("/awaiting-parties", queryHandler.AwaitingParties)
	mediations.GET("/summaries", queryHandler.MySummaries)

	mediations.GET("/:id", mediationHandler.GetMediation)
	mediations.GET("/:id/logs", mediationHandler.GetMediationLogs)

	// State machine commands
	mediations.POST("/:id/assign-mediator", mediationHandler.AssignMediator)
	mediations.POST("/:id/mediator-accept", mediationHandler.MediatorAccept)
	mediations.POST("/:id/mediator-reject", mediationHandler.MediatorReject)
	mediations.POST("/:id/fund-escrow", mediationHandler.FundEscrow)
	mediations.POST("/:id/confirm-readiness", mediationHandler.ConfirmReadiness)
	mediations.POST("/:id/open-dispute", mediationHandler.OpenDispute)
	mediations.POST("/:id/complete", mediationHandler.CompleteMediation)
	mediations.POST("/:id/reject", mediationHandler.BuyerReject)
	mediations.POST("/:id/withdraw", mediationHandler.WithdrawRequest)

	// Admin endpoints
	admin := e.Group("/v1/admin/mediations")
	admin.Use(authMiddleware.Authenticate)
	admin.Use(adminMiddleware.AdminOnly)

	admin.GET("/pending-assignment", queryHandler.PendingAssignments)
	admin.POST("/:id/resolve-dispute", mediationHandler.ResolveDispute)
	admin.POST("/:id/subchats", subChatHandler.CreateSubChat)
}
