package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"example.com/backstage/services/livestock/internal/projector"
	"example.com/backstage/services/livestock/internal/tracing"
)

// AnimalsHandler serves snapshot reads
type AnimalsHandler struct {
	proj   *projector.Projector
	tracer tracing.Tracer
}

// NewAnimalsHandler creates a new animals handler
func NewAnimalsHandler(proj *projector.Projector, tracer tracing.Tracer) *AnimalsHandler {
	return &AnimalsHandler{proj: proj, tracer: tracer}
}

// HandleGetAnimal returns one animal snapshot by animal number
func (h *AnimalsHandler) HandleGetAnimal(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-get-animal")
	defer h.tracer.EndTransaction(txn)

	company, ok := companyID(c)
	if !ok {
		return
	}
	number := c.Param("number")
	h.tracer.AddAttribute(txn, "animal_number", number)

	snap, err := h.proj.GetByNumber(c, company, number)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// HandleGetAnimalByID returns one animal snapshot by animal id. Negative ids
// address unregistered relatives.
func (h *AnimalsHandler) HandleGetAnimalByID(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-get-animal-by-id")
	defer h.tracer.EndTransaction(txn)

	company, ok := companyID(c)
	if !ok {
		return
	}
	animalID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid animal id"})
		return
	}

	snap, err := h.proj.GetByID(c, company, animalID)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// HandleListAnimals lists snapshots for a company, optionally filtered by
// status
func (h *AnimalsHandler) HandleListAnimals(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-list-animals")
	defer h.tracer.EndTransaction(txn)

	company, ok := companyID(c)
	if !ok {
		return
	}

	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	status := c.Query("status")

	snaps, err := h.proj.List(c, company, status, limit, offset)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"animals": snaps, "count": len(snaps)})
}

// HandleRebuildAnimal forces a projection pass for one animal. Useful after
// manual event repairs.
func (h *AnimalsHandler) HandleRebuildAnimal(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-rebuild-animal")
	defer h.tracer.EndTransaction(txn)

	company, ok := companyID(c)
	if !ok {
		return
	}
	number := c.Param("number")

	snap, err := h.proj.Project(c, company, number)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// RegisterRoutes registers the handler's routes
func (h *AnimalsHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/animals", h.HandleListAnimals)
	router.GET("/animals/:number", h.HandleGetAnimal)
	router.GET("/animals/id/:id", h.HandleGetAnimalByID)
	router.POST("/animals/:number/rebuild", h.HandleRebuildAnimal)
}
