package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/livestock/internal/services"
	"example.com/backstage/services/livestock/internal/tracing"
)

// InseminationsHandler serves insemination record operations
type InseminationsHandler struct {
	svc    *services.InseminationService
	tracer tracing.Tracer
}

// NewInseminationsHandler creates a new inseminations handler
func NewInseminationsHandler(svc *services.InseminationService, tracer tracing.Tracer) *InseminationsHandler {
	return &InseminationsHandler{svc: svc, tracer: tracer}
}

// HandleCreate records one insemination
func (h *InseminationsHandler) HandleCreate(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-create-insemination")
	defer h.tracer.EndTransaction(txn)

	company, ok := companyID(c)
	if !ok {
		return
	}
	user, ok := userID(c)
	if !ok {
		return
	}

	var req services.InseminationSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}
	req.CompanyID = company
	req.UserID = user
	h.tracer.AddAttribute(txn, "mother_id", req.MotherID)

	record, err := h.svc.Create(c, &req)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// HandleCancel cancels an insemination record
func (h *InseminationsHandler) HandleCancel(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-cancel-insemination")
	defer h.tracer.EndTransaction(txn)

	company, ok := companyID(c)
	if !ok {
		return
	}
	user, ok := userID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid insemination id"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.svc.Cancel(c, company, uint(id), user, req.Reason); err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleListByMother lists a mother's active insemination records
func (h *InseminationsHandler) HandleListByMother(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-list-inseminations")
	defer h.tracer.EndTransaction(txn)

	company, ok := companyID(c)
	if !ok {
		return
	}
	motherID := c.Param("motherID")

	records, err := h.svc.ListByMother(c, company, motherID)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inseminations": records, "count": len(records)})
}

// RegisterRoutes registers the handler's routes
func (h *InseminationsHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/inseminations", h.HandleCreate)
	router.POST("/inseminations/:id/cancel", h.HandleCancel)
	router.GET("/inseminations/mother/:motherID", h.HandleListByMother)
}
