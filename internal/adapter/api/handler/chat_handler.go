package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"lapakchat/internal/usecase"
	"lapakchat/pkg/response"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type createChatRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Message   string `json:"message" validate:"omitempty,max=2000"`
}

type chatHistoryRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

// CreateChat opens (or returns) the caller's chat about a product. A new
// chat answers 201; an existing one answers 200.
func (h *ChatHandler) CreateChat(c echo.Context) error {
	var req createChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	result, err := h.chatUseCase.GetOrCreateChat(c.Request().Context(), userID, usecase.CreateChatInput{
		ProductID:      req.ProductID,
		InitialMessage: req.Message,
	})
	if err != nil {
		return response.Error(c, err)
	}

	if result.AlreadyExists {
		return c.JSON(http.StatusOK, response.Response{
			Success:   true,
			Data:      map[string]interface{}{"chat": result.Chat, "message": "Chat already exists"},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}

	return response.Created(c, map[string]interface{}{"chat": result.Chat})
}

// GetChatMessages returns the decoded history of the caller's chat for a
// product, creating the chat on first contact.
func (h *ChatHandler) GetChatMessages(c echo.Context) error {
	var req chatHistoryRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	history, err := h.chatUseCase.GetHistory(c.Request().Context(), userID, req.ProductID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, history)
}

// GetUserChats lists the caller's chats, most recent activity first.
func (h *ChatHandler) GetUserChats(c echo.Context) error {
	userID := c.Get("uid").(string)

	limit := 20
	offset := 0

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	chats, total, err := h.chatUseCase.ListChats(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, chats, total, limit, offset)
}
