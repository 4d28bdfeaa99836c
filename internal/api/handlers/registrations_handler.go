package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/livestock/internal/repositories"
	"example.com/backstage/services/livestock/internal/search"
	"example.com/backstage/services/livestock/internal/services"
	"example.com/backstage/services/livestock/internal/tracing"
)

// RegistrationsHandler serves registration submissions and exports
type RegistrationsHandler struct {
	svc           *services.RegistrationService
	registrations *repositories.RegistrationRepository
	elastic       *search.ElasticClient
	tracer        tracing.Tracer
}

// NewRegistrationsHandler creates a new registrations handler
func NewRegistrationsHandler(
	svc *services.RegistrationService,
	registrations *repositories.RegistrationRepository,
	elastic *search.ElasticClient,
	tracer tracing.Tracer,
) *RegistrationsHandler {
	return &RegistrationsHandler{
		svc:           svc,
		registrations: registrations,
		elastic:       elastic,
		tracer:        tracer,
	}
}

// HandleSubmit handles one registration submission
func (h *RegistrationsHandler) HandleSubmit(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-submit-registration")
	defer h.tracer.EndTransaction(txn)

	company, ok := companyID(c)
	if !ok {
		return
	}
	user, ok := userID(c)
	if !ok {
		return
	}

	var req services.RegistrationSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}
	req.CompanyID = company
	req.UserID = user
	h.tracer.AddAttribute(txn, "animal_number", req.AnimalNumber)

	result, err := h.svc.Submit(c, &req)
	if err != nil {
		log.Error().Err(err).Str("animalNumber", req.AnimalNumber).Msg("Failed to submit registration")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if result.Genesis {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

// HandleSubmitBulk handles a batch of registration submissions. Rows are
// processed independently; the response reports a per-row outcome.
func (h *RegistrationsHandler) HandleSubmitBulk(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-submit-registrations-bulk")
	defer h.tracer.EndTransaction(txn)

	company, ok := companyID(c)
	if !ok {
		return
	}
	user, ok := userID(c)
	if !ok {
		return
	}

	var req []services.RegistrationSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}
	for i := range req {
		req[i].CompanyID = company
		req[i].UserID = user
	}
	h.tracer.AddAttribute(txn, "rows", len(req))

	results := h.svc.SubmitBulk(c, req)
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

// HandleExport returns flat registration rows for reporting consumers
func (h *RegistrationsHandler) HandleExport(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-export-registrations")
	defer h.tracer.EndTransaction(txn)

	company, ok := companyID(c)
	if !ok {
		return
	}
	limit := intQuery(c, "limit", 500)
	offset := intQuery(c, "offset", 0)

	rows, err := h.registrations.ExportRows(c, company, limit, offset)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"registrations": rows, "count": len(rows)})
}

// HandleSearch runs a full-text search over the registration reporting index
func (h *RegistrationsHandler) HandleSearch(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-search-registrations")
	defer h.tracer.EndTransaction(txn)

	company, ok := companyID(c)
	if !ok {
		return
	}
	if !h.elastic.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is disabled"})
		return
	}

	term := c.Query("q")
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  term,
							"fields": []string{"animal_number", "mother_id", "father_id", "rp_animal", "notes"},
						},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"company_id": company},
					},
				},
			},
		},
	}

	docs, err := h.elastic.SearchRegistrations(c, query)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": docs, "count": len(docs)})
}

// RegisterRoutes registers the handler's routes
func (h *RegistrationsHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/registrations", h.HandleSubmit)
	router.POST("/registrations/bulk", h.HandleSubmitBulk)
	router.GET("/registrations/export", h.HandleExport)
	router.GET("/registrations/search", h.HandleSearch)
}
