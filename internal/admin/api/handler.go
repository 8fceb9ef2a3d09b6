package api

import (
	"errors"
	"fmt"
	"net/http"

	"ms-leadflow/internal/admin"
	"ms-leadflow/internal/auth"
	"ms-leadflow/internal/logger"
	"ms-leadflow/internal/models"
	"ms-leadflow/internal/utils"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Admin  *admin.Service
	Logger *logger.Logger
}

func NewHandler(adminService *admin.Service, log *logger.Logger) *Handler {
	return &Handler{Admin: adminService, Logger: log}
}

// actorFrom reads the audit actor from the already-verified bearer token,
// preferring the email claim, and falls back to the subject stored by the
// middleware.
func actorFrom(c *gin.Context) string {
	if actor, err := auth.ExtractActorFromRequest(c.Request); err == nil {
		return actor
	}
	return auth.GinActorID(c)
}

// GetLead returns a lead with its orders and audit trail.
func (h *Handler) GetLead(c *gin.Context) {
	overview, err := h.Admin.GetLeadOverview(c.Request.Context(), c.Param("leadId"))
	if err != nil {
		if errors.Is(err, admin.ErrLeadNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Lead not found", err.Error()))
			return
		}
		h.Logger.Error("ADMIN_API", fmt.Sprintf("GetLead: %v", err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to load lead", err.Error()))
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Lead loaded", overview))
}

// ForceLeadStatus applies a manual status override.
func (h *Handler) ForceLeadStatus(c *gin.Context) {
	var req struct {
		Status models.LeadStatus `json:"status"`
		Reason string            `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	actor := actorFrom(c)
	err := h.Admin.ForceLeadStatus(c.Request.Context(), actor, c.Param("leadId"), req.Status, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, admin.ErrReasonRequired), errors.Is(err, admin.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid override", err.Error()))
		case errors.Is(err, admin.ErrLeadNotFound):
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Lead not found", err.Error()))
		default:
			h.Logger.Error("ADMIN_API", fmt.Sprintf("ForceLeadStatus: %v", err))
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Override failed", err.Error()))
		}
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Lead status overridden", nil))
}

// RedispatchOrder replays side effects for a settled order.
func (h *Handler) RedispatchOrder(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	actor := actorFrom(c)
	err := h.Admin.RedispatchOrder(c.Request.Context(), actor, c.Param("orderId"), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, admin.ErrReasonRequired):
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request", err.Error()))
		case errors.Is(err, admin.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Order not found", err.Error()))
		case errors.Is(err, admin.ErrOrderNotSettled):
			c.JSON(http.StatusConflict, utils.ErrorResponse("Order has not settled", err.Error()))
		default:
			h.Logger.Error("ADMIN_API", fmt.Sprintf("RedispatchOrder: %v", err))
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Redispatch failed", err.Error()))
		}
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Side effects redispatched", nil))
}

// CreateWorkshop opens a workshop instance for sale.
func (h *Handler) CreateWorkshop(c *gin.Context) {
	var workshop models.Workshop
	if err := c.ShouldBindJSON(&workshop); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	created, err := h.Admin.CreateWorkshop(c.Request.Context(), actorFrom(c), workshop)
	if err != nil {
		if errors.Is(err, admin.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid workshop", err.Error()))
			return
		}
		h.Logger.Error("ADMIN_API", fmt.Sprintf("CreateWorkshop: %v", err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to create workshop", err.Error()))
		return
	}
	c.JSON(http.StatusCreated, utils.SuccessResponse("Workshop created", created))
}

// GetAudit lists the override history for an entity.
func (h *Handler) GetAudit(c *gin.Context) {
	entries, err := h.Admin.GetAuditTrail(c.Request.Context(), c.Query("entity"), c.Query("entity_id"))
	if err != nil {
		if errors.Is(err, admin.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid audit query", err.Error()))
			return
		}
		h.Logger.Error("ADMIN_API", fmt.Sprintf("GetAudit: %v", err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to load audit trail", err.Error()))
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Audit trail loaded", entries))
}

// GetWorkshop returns a workshop with its seat counts.
func (h *Handler) GetWorkshop(c *gin.Context) {
	workshop, err := h.Admin.GetWorkshop(c.Request.Context(), c.Param("workshopId"))
	if err != nil {
		if errors.Is(err, admin.ErrWorkshopNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Workshop not found", err.Error()))
			return
		}
		h.Logger.Error("ADMIN_API", fmt.Sprintf("GetWorkshop: %v", err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to load workshop", err.Error()))
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Workshop loaded", workshop))
}

// GetStats returns the funnel aggregates for the dashboard.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.Admin.GetFunnelStats(c.Request.Context())
	if err != nil {
		h.Logger.Error("ADMIN_API", fmt.Sprintf("GetStats: %v", err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to load stats", err.Error()))
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Stats loaded", stats))
}

// RecordProgress ingests module completion from the learning portal.
func (h *Handler) RecordProgress(c *gin.Context) {
	var progress models.ModuleProgress
	if err := c.ShouldBindJSON(&progress); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	if err := h.Admin.RecordModuleProgress(c.Request.Context(), progress); err != nil {
		if errors.Is(err, admin.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid progress record", err.Error()))
			return
		}
		h.Logger.Error("ADMIN_API", fmt.Sprintf("RecordProgress: %v", err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to record progress", err.Error()))
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Progress recorded", nil))
}

// RegisterRoutes mounts the admin surface on a gin router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/audit", h.GetAudit)
	rg.GET("/leads/:leadId", h.GetLead)
	rg.POST("/leads/:leadId/status", h.ForceLeadStatus)
	rg.POST("/orders/:orderId/redispatch", h.RedispatchOrder)
	rg.POST("/workshops", h.CreateWorkshop)
	rg.GET("/workshops/:workshopId", h.GetWorkshop)
	rg.POST("/progress", h.RecordProgress)
}
