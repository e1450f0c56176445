package handler

import (
	"github.com/labstack/echo/v4"

	"arbitex/internal/usecase"
	"arbitex/pkg/errors"
	"arbitex/pkg/response"
	"arbitex/pkg/utils"
)

type SubChatHandler struct {
	subChatUseCase *usecase.SubChatUseCase
}

func NewSubChatHandler(subChatUseCase *usecase.SubChatUseCase) *SubChatHandler {
	return &SubChatHandler{
		subChatUseCase: subChatUseCase,
	}
}

type createSubChatRequest struct {
	Title          string   `json:"title" validate:"required"`
	ParticipantIDs []string `json:"participant_ids" validate:"required,min=1"`
}

type postMessageRequest struct {
	Type string `json:"type" validate:"required,oneof=text image file"`
	Body string `json:"body" validate:"required"`
}

type markReadRequest struct {
	UptoMessageID string `json:"upto_message_id" validate:"required"`
}

// CreateSubChat opens an admin side channel on a mediation.
func (h *SubChatHandler) CreateSubChat(c echo.Context) error {
	var req createSubChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)
	mediationID := c.Param("id")
	if mediationID == "" {
		return response.Error(c, errors.BadRequest("Mediation ID is required", nil))
	}

	subChat, err := h.subChatUseCase.CreateSubChat(c.Request().Context(), userID, mediationID, usecase.CreateSubChatInput{
		Title:          req.Title,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, subChat)
}

func (h *SubChatHandler) PostMessage(c echo.Context) error {
	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	message, err := h.subChatUseCase.PostMessage(c.Request().Context(), userID, c.Param("id"), usecase.PostMessageInput{
		Type: req.Type,
		Body: req.Body,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *SubChatHandler) MarkRead(c echo.Context) error {
	var req markReadRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	if err := h.subChatUseCase.MarkRead(c.Request().Context(), userID, c.Param("id"), req.UptoMessageID); err != nil {
		return response.Error(c, err)
	}

	return response.NoContent(c)
}

func (h *SubChatHandler) ListMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	params := utils.GetPaginationParams(c)

	messages, total, err := h.subChatUseCase.ListMessages(c.Request().Context(), userID, c.Param("id"), params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, params.Page, params.PageSize)
}

func (h *SubChatHandler) ListMyChannels(c echo.Context) error {
	userID := c.Get("uid").(string)
	params := utils.GetPaginationParams(c)

	subChats, total, err := h.subChatUseCase.ListMyChannels(c.Request().Context(), userID, params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, subChats, total, params.Page, params.PageSize)
}
