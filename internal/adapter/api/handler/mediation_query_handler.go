package handler

import (
	"github.com/labstack/echo/v4"

	"arbitex/internal/usecase"
	"arbitex/pkg/response"
	"arbitex/pkg/utils"
)

type MediationQueryHandler struct {
	queryUseCase *usecase.MediationQueryUseCase
}

func NewMediationQueryHandler(queryUseCase *usecase.MediationQueryUseCase) *MediationQueryHandler {
	return &MediationQueryHandler{
		queryUseCase: queryUseCase,
	}
}

// PendingAssignments is the admin view of requests waiting for a mediator.
func (h *MediationQueryHandler) PendingAssignments(c echo.Context) error {
	params := utils.GetPaginationParams(c)

	result := h.queryUseCase.PendingAssignments(c.Request().Context(), params.PageSize, params.Offset)
	return response.Success(c, result)
}

// PendingDecision lists requests awaiting the caller's accept/reject.
func (h *MediationQueryHandler) PendingDecision(c echo.Context) error {
	userID := c.Get("uid").(string)
	params := utils.GetPaginationParams(c)

	result := h.queryUseCase.PendingDecision(c.Request().Context(), userID, params.PageSize, params.Offset)
	return response.Success(c, result)
}

// AwaitingParties lists the caller's accepted requests waiting on funding or
// readiness.
func (h *MediationQueryHandler) AwaitingParties(c echo.Context) error {
	userID := c.Get("uid").(string)
	params := utils.GetPaginationParams(c)

	result := h.queryUseCase.AwaitingParties(c.Request().Context(), userID, params.PageSize, params.Offset)
	return response.Success(c, result)
}

// MySummaries lists every mediation involving the caller with unread counts.
func (h *MediationQueryHandler) MySummaries(c echo.Context) error {
	userID := c.Get("uid").(string)
	params := utils.GetPaginationParams(c)

	result := h.queryUseCase.MySummaries(c.Request().Context(), userID, params.PageSize, params.Offset)
	return response.Success(c, result)
}
