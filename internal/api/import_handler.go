package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/config"
	"github.com/lms-discussions-api/internal/service"
)

// ImportHandler handles thread import endpoints
type ImportHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *ImportHandler {
	return &ImportHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "import").Logger(),
	}
}

// ImportThread handles POST /v1/discussions/:id/import
// Accepts an NDJSON file upload (multipart "file" part) and imports it synchronously
func (h *ImportHandler) ImportThread(c *gin.Context) {
	ctx := c.Request.Context()
	discussionID := c.Param("id")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file upload is required")
		return
	}
	defer file.Close()

	// Validate file size
	if header.Size > h.cfg.Import.MaxFileSize {
		badRequest(c, fmt.Sprintf("file too large, max size is %d MB", h.cfg.Import.MaxFileSize/(1024*1024)))
		return
	}

	// Determine file format from extension
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".ndjson" && ext != ".json" {
		badRequest(c, "thread import requires an NDJSON file")
		return
	}

	result, err := h.services.Import.ImportThread(ctx, discussionID, file)
	if err != nil {
		if result == nil {
			respondError(c, h.log, err, "Thread import failed")
			return
		}
		// Batches already written stay written; report what happened
		h.log.Error().Err(err).Str("discussion_id", discussionID).Msg("Thread import aborted")
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  err.Error(),
			"result": result,
		})
		return
	}

	h.log.Info().
		Str("discussion_id", discussionID).
		Str("file", header.Filename).
		Int64("size_bytes", header.Size).
		Int("successful", result.SuccessfulCount).
		Int("failed", result.FailedCount).
		Msg("Thread import finished")

	c.JSON(http.StatusOK, result)
}
