package handlers

import (
	"context"
	"net/http"

	"circle/internal/models"
	"circle/internal/utils"

	"github.com/gin-gonic/gin"
)

type ChatService interface {
	Open(ctx context.Context, userID uint, username string) (*models.Conversation, error)
	List(ctx context.Context, userID uint, page utils.Page) (utils.OffsetPage[models.Conversation], error)
	Messages(ctx context.Context, userID, conversationID uint, cursor string, limit int) (utils.CursorPage[models.Message], error)
	Send(ctx context.Context, userID, conversationID uint, content string) (*models.Message, error)
	MarkRead(ctx context.Context, userID, conversationID uint) (int64, error)
}

type ChatHandler struct {
	chat ChatService
}

func NewChatHandler(chat ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) Open(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	conv, err := h.chat.Open(c.Request.Context(), currentUser(c), req.Username)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *ChatHandler) List(c *gin.Context) {
	page, err := h.chat.List(c.Request.Context(), currentUser(c), pageQuery(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ChatHandler) Messages(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	page, err := h.chat.Messages(c.Request.Context(), currentUser(c), id, c.Query("cursor"), limitQuery(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ChatHandler) Send(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required,max=2000"`
	}
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.chat.Send(c.Request.Context(), currentUser(c), id, req.Content)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *ChatHandler) Read(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	n, err := h.chat.MarkRead(c.Request.Context(), currentUser(c), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
