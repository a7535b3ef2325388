package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/portal-service/internal/model"
	"github.com/psds-microservice/portal-service/internal/searchindex"
	"github.com/psds-microservice/portal-service/internal/service"
	"github.com/psds-microservice/portal-service/internal/store"
)

type TicketHandler struct {
	svc    *service.SupportService
	search *searchindex.Client
}

func NewTicketHandler(svc *service.SupportService, search *searchindex.Client) *TicketHandler {
	return &TicketHandler{svc: svc, search: search}
}

// GetForBooking отдаёт тикет бронирования с сообщениями; null, если тикета нет.
func (h *TicketHandler) GetForBooking(c *gin.Context) {
	thread, err := h.svc.ForBooking(c.Request.Context(), c.Param("bookingId"))
	if err != nil {
		writeError(c, err)
		return
	}
	if thread == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, thread)
}

type createTicketRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message" binding:"required"`
}

func (h *TicketHandler) Create(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	ctx := c.Request.Context()
	id, created, err := h.svc.Create(ctx, c.Param("bookingId"), req.Subject, req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		if thread, _ := h.svc.ForBooking(ctx, c.Param("bookingId")); thread != nil {
			h.search.IndexTicketAsync(&thread.SupportTicket)
		}
	}
	c.JSON(status, gin.H{"ticket_id": id, "created": created})
}

type addMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *TicketHandler) AddMessage(c *gin.Context) {
	var req addMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	m, err := h.svc.AddMessage(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *TicketHandler) Close(c *gin.Context) {
	t, err := h.svc.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.search.IndexTicketAsync(t)
	c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) List(c *gin.Context) {
	filter := store.TicketFilter{
		Status: model.TicketStatus(c.Query("status")),
		UserID: c.Query("user_id"),
	}
	if filter.Status != "" && filter.Status != model.TicketStatusOpen && filter.Status != model.TicketStatusClosed {
		badRequest(c, "invalid status: must be 'open' or 'closed'")
		return
	}

	// Parse limit and offset
	limit := 0
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	items, total, err := h.svc.List(c.Request.Context(), filter, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tickets": items,
		"total":   total,
	})
}
