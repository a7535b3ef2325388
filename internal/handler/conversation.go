package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/portal-service/internal/service"
)

type ConversationHandler struct {
	convs *service.ConversationService
	users *service.UserService
}

func NewConversationHandler(convs *service.ConversationService, users *service.UserService) *ConversationHandler {
	return &ConversationHandler{convs: convs, users: users}
}

// List отдаёт диалоги вызывающего; сотрудники могут указать ?user_id=.
func (h *ConversationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Query("user_id")
	if userID == "" {
		me, err := h.users.CurrentUser(ctx)
		if err != nil {
			writeError(c, err)
			return
		}
		userID = me.ID
	}
	items, err := h.convs.ListFor(ctx, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": items, "total": len(items)})
}

type openConversationRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// Open finds or creates the conversation between the caller and user_id.
func (h *ConversationHandler) Open(c *gin.Context) {
	var req openConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	ctx := c.Request.Context()
	me, err := h.users.CurrentUser(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	conv, err := h.convs.FindOrCreate(ctx, me.ID, req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) Messages(c *gin.Context) {
	items, err := h.convs.Messages(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": items})
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *ConversationHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	msg, err := h.convs.Send(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
