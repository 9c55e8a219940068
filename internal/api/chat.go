package api

import (
	"net/http"

	"realtime-chat/backend/internal/broadcast"
	"realtime-chat/backend/internal/models"
	"realtime-chat/backend/internal/service"
	"realtime-chat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// statusMessageSent is the acknowledgment shown to the sender
const statusMessageSent = "Message sent!"

// ChatLimits bounds the recent window
type ChatLimits struct {
	Recent    int
	MaxRecent int
}

// ChatHandler serves the chat room page, the send endpoint and the message API
type ChatHandler struct {
	chat     *service.ChatService
	notifier *broadcast.Notifier
	limits   ChatLimits
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *service.ChatService, notifier *broadcast.Notifier, limits ChatLimits) *ChatHandler {
	if limits.Recent <= 0 {
		limits.Recent = models.DefaultRecentLimit
	}
	if limits.MaxRecent < limits.Recent {
		limits.MaxRecent = limits.Recent
	}
	return &ChatHandler{chat: chat, notifier: notifier, limits: limits}
}

// Index sends visitors to the chat room
func (h *ChatHandler) Index(c *gin.Context) {
	c.Redirect(http.StatusFound, "/chat")
}

// Page renders the chat room with the recent window, oldest first
func (h *ChatHandler) Page(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)

	messages, err := h.chat.GetRecentMessages(c.Request.Context(), h.limits.Recent)
	if err != nil {
		c.Error(err)
		c.HTML(http.StatusInternalServerError, "error.tmpl", gin.H{
			"Title":   "Chat",
			"Message": "The chat room is unavailable right now.",
		})
		return
	}

	c.HTML(http.StatusOK, "chat.tmpl", gin.H{
		"Title":         "Chat",
		"User":          identity,
		"CurrentUserID": identity.ID,
		"Messages":      messages,
	})
}

// Send handles POST /chat/send from the chat page (form or JSON field "message")
func (h *ChatHandler) Send(c *gin.Context) {
	h.store(c, http.StatusOK)
}

// List handles GET /api/v1/messages
func (h *ChatHandler) List(c *gin.Context) {
	limit, err := queryLimit(c, h.limits.Recent, h.limits.MaxRecent)
	if err != nil {
		c.Error(err)
		return
	}

	messages, err := h.chat.GetRecentMessages(c.Request.Context(), limit)
	if err != nil {
		c.Error(err)
		return
	}

	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// Create handles POST /api/v1/messages
func (h *ChatHandler) Create(c *gin.Context) {
	h.store(c, http.StatusCreated)
}

// store persists the posted message and then announces it. The broadcast
// outcome never changes the response: the message is already stored.
func (h *ChatHandler) store(c *gin.Context, status int) {
	var req models.SendMessageRequest
	if err := c.ShouldBind(&req); err != nil {
		c.Error(invalidBody(err))
		return
	}

	msg, err := h.chat.StoreMessage(c.Request.Context(), middleware.CurrentIdentity(c), req.Message)
	if err != nil {
		c.Error(err)
		return
	}

	h.notifier.Notify(c.Request.Context(), msg)

	c.JSON(status, models.SendMessageResponse{
		Status:  statusMessageSent,
		Message: msg,
	})
}
