package handler

import (
	"github.com/labstack/echo/v4"

	"arbitex/internal/domain/entity"
	"arbitex/internal/usecase"
	"arbitex/pkg/errors"
	"arbitex/pkg/response"
)

type MediationHandler struct {
	mediationUseCase *usecase.MediationUseCase
}

func NewMediationHandler(mediationUseCase *usecase.MediationUseCase) *MediationHandler {
	return &MediationHandler{
		mediationUseCase: mediationUseCase,
	}
}

type createMediationRequest struct {
	ProductID   string  `json:"product_id" validate:"required"`
	AgreedPrice float64 `json:"agreed_price" validate:"required,gt=0"`
	Currency    string  `json:"currency,omitempty"`
}

type assignMediatorRequest struct {
	MediatorID string `json:"mediator_id" validate:"required"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type resolveDisputeRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=release_to_seller refund_to_buyer split"`
	Notes   string `json:"notes,omitempty"`
}

func (h *MediationHandler) CreateMediation(c echo.Context) error {
	var req createMediationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	mediation, err := h.mediationUseCase.CreateMediation(c.Request().Context(), userID, usecase.CreateMediationInput{
		ProductID:   req.ProductID,
		AgreedPrice: req.AgreedPrice,
		Currency:    req.Currency,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, mediation)
}

func (h *MediationHandler) GetMediation(c echo.Context) error {
	mediationID := c.Param("id")
	if mediationID == "" {
		return response.Error(c, errors.BadRequest("Mediation ID is required", nil))
	}

	userID := c.Get("uid").(string)

	mediation, err := h.mediationUseCase.GetMediation(c.Request().Context(), userID, mediationID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, mediation)
}

func (h *MediationHandler) GetMediationLogs(c echo.Context) error {
	mediationID := c.Param("id")
	if mediationID == "" {
		return response.Error(c, errors.BadRequest("Mediation ID is required", nil))
	}

	userID := c.Get("uid").(string)

	logs, err := h.mediationUseCase.GetMediationLogs(c.Request().Context(), userID, mediationID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, logs)
}

func (h *MediationHandler) AssignMediator(c echo.Context) error {
	var req assignMediatorRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	mediation, err := h.mediationUseCase.AssignMediator(c.Request().Context(), userID, c.Param("id"), req.MediatorID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, mediation)
}

func (h *MediationHandler) MediatorAccept(c echo.Context) error {
	userID := c.Get("uid").(string)

	mediation, err := h.mediationUseCase.MediatorAccept(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, mediation)
}

func (h *MediationHandler) MediatorReject(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	mediation, err := h.mediationUseCase.MediatorReject(c.Request().Context(), userID, c.Param("id"), req.Reason)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, mediation)
}

func (h *MediationHandler) FundEscrow(c echo.Context) error {
	userID := c.Get("uid").(string)

	mediation, err := h.mediationUseCase.FundEscrow(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, mediation)
}

func (h *MediationHandler) ConfirmReadiness(c echo.Context) error {
	userID := c.Get("uid").(string)

	mediation, err := h.mediationUseCase.ConfirmReadiness(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, mediation)
}

func (h *MediationHandler) OpenDispute(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	mediation, err := h.mediationUseCase.OpenDispute(c.Request().Context(), userID, c.Param("id"), req.Reason)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, mediation)
}

func (h *MediationHandler) ResolveDispute(c echo.Context) error {
	var req resolveDisputeRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	mediation, err := h.mediationUseCase.ResolveDispute(c.Request().Context(), userID, c.Param("id"),
		entity.ResolutionOutcome(req.Outcome), req.Notes)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, mediation)
}

func (h *MediationHandler) CompleteMediation(c echo.Context) error {
	userID := c.Get("uid").(string)

	mediation, err := h.mediationUseCase.CompleteMediation(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, mediation)
}

func (h *MediationHandler) BuyerReject(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	mediation, err := h.mediationUseCase.BuyerRejectMediation(c.Request().Context(), userID, c.Param("id"), req.Reason)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, mediation)
}

func (h *MediationHandler) WithdrawRequest(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	mediation, err := h.mediationUseCase.WithdrawRequest(c.Request().Context(), userID, c.Param("id"), req.Reason)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, mediation)
}
