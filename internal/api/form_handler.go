package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/service"
)

// FormHandler handles schema backed form endpoints
type FormHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewFormHandler creates a new FormHandler
func NewFormHandler(services *service.Services, log zerolog.Logger) *FormHandler {
	return &FormHandler{
		services: services,
		log:      log.With().Str("handler", "form").Logger(),
	}
}

// ValidateForm handles POST /v1/forms/:schema/validate
// Runs every rule without storing anything
func (h *FormHandler) ValidateForm(c *gin.Context) {
	var req models.FormSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	errs, err := h.services.Form.Validate(c.Request.Context(), c.Param("schema"), req.Fields)
	if err != nil {
		respondError(c, h.log, err, "Failed to validate form")
		return
	}
	if errs == nil {
		errs = []models.FormFieldError{}
	}

	c.JSON(http.StatusOK, models.ValidationResult{Valid: len(errs) == 0, Errors: errs})
}

// SubmitForm handles POST /v1/forms/:schema
func (h *FormHandler) SubmitForm(c *gin.Context) {
	var req models.FormSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	schemaName := c.Param("schema")
	entity, err := h.services.Form.Submit(c.Request.Context(), schemaName, currentUser(c), req.Fields)
	if err != nil {
		respondError(c, h.log, err, "Failed to submit form")
		return
	}

	h.log.Info().
		Str("schema", schemaName).
		Str("entity_id", entity.ID).
		Str("slug", entity.Slug).
		Msg("Form submitted")

	c.JSON(http.StatusCreated, entity)
}
