package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/backstage/services/livestock/internal/services"
	"example.com/backstage/services/livestock/internal/tracing"
)

// FathersHandler serves father assignment operations
type FathersHandler struct {
	svc    *services.FatherService
	tracer tracing.Tracer
}

// NewFathersHandler creates a new fathers handler
func NewFathersHandler(svc *services.FatherService, tracer tracing.Tracer) *FathersHandler {
	return &FathersHandler{svc: svc, tracer: tracer}
}

// HandleRunBatch runs father inference over every fatherless registration of
// the company. Pass dry_run=true to preview without writing.
func (h *FathersHandler) HandleRunBatch(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-run-father-assignment")
	defer h.tracer.EndTransaction(txn)

	company, ok := companyID(c)
	if !ok {
		return
	}
	user, ok := userID(c)
	if !ok {
		return
	}
	dryRun := c.Query("dry_run") == "true"
	h.tracer.AddAttribute(txn, "dry_run", dryRun)

	summary, err := h.svc.ProcessAllRegistrations(c, company, user, dryRun)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// HandleValidate recomputes expected fathers and reports drift without
// mutating anything
func (h *FathersHandler) HandleValidate(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-validate-father-assignments")
	defer h.tracer.EndTransaction(txn)

	company, ok := companyID(c)
	if !ok {
		return
	}

	results, err := h.svc.ValidateAssignments(c, company, h.svc.Window())
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	invalid := 0
	for _, r := range results {
		if !r.IsValid {
			invalid++
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results), "invalid": invalid})
}

// RegisterRoutes registers the handler's routes
func (h *FathersHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/fathers/assign", h.HandleRunBatch)
	router.GET("/fathers/validate", h.HandleValidate)
}
