package router

import (
	"github.com/labstack/echo/v4"

	"lapakchat/internal/adapter/api/handler"
	"lapakchat/internal/adapter/api/middleware"
)

// SetupChatRouter wires the chat bootstrap endpoints. Realtime traffic
// goes over the WebSocket route instead.
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	chatGroup := e.Group("/v1/chat")
	chatGroup.Use(authMiddleware.Authenticate)

	chatGroup.POST("/create", chatHandler.CreateChat)        // POST /v1/chat/create - Open (or fetch) the chat for a product
	chatGroup.POST("/messages", chatHandler.GetChatMessages) // POST /v1/chat/messages - Full decoded history

	listGroup := e.Group("/v1/chats")
	listGroup.Use(authMiddleware.Authenticate)
	listGroup.GET("", chatHandler.GetUserChats) // GET /v1/chats - Caller's chat list
}
