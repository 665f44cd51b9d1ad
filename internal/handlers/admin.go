package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openseva/seva-backend/internal/services"
	"github.com/openseva/seva-backend/internal/types"
)

type AdminHandler struct {
	reviewService  services.AdminReviewService
	catalogService services.CatalogService
}

func NewAdminHandler(reviewService services.AdminReviewService, catalogService services.CatalogService) *AdminHandler {
	return &AdminHandler{reviewService: reviewService, catalogService: catalogService}
}

func (h *AdminHandler) ReviewQueue(c *gin.Context) {
	var statuses []types.SessionStatus
	for _, s := range c.QueryArray("status") {
		statuses = append(statuses, types.SessionStatus(s))
	}
	sessions, err := h.reviewService.ListReviewQueue(c.Request.Context(), statuses)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"sessions": sessions})
}

func (h *AdminHandler) ApproveSession(c *gin.Context) {
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	decision, err := h.reviewService.Approve(c.Request.Context(), sessionID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, decision)
}

func (h *AdminHandler) RejectSession(c *gin.Context) {
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	session, err := h.reviewService.Reject(c.Request.Context(), sessionID, body.Reason)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"session": session})
}

func (h *AdminHandler) ApproveActivityType(c *gin.Context) {
	typeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	row, err := h.catalogService.ApproveActivityType(c.Request.Context(), typeID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"activity_type": row})
}
