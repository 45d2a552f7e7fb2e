package api

import (
	"mime"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/service"
)

// ExportHandler handles export endpoints
type ExportHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(services *service.Services, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		services: services,
		log:      log.With().Str("handler", "export").Logger(),
	}
}

// StreamExport handles GET /v1/discussions/:id/export?format=...
// Streams the discussion directly to the response
func (h *ExportHandler) StreamExport(c *gin.Context) {
	ctx := c.Request.Context()
	discussionID := c.Param("id")

	format := c.Query("format")
	if format == "" {
		format = service.FormatNDJSON // Default to NDJSON for streaming
	}
	if format != service.FormatNDJSON && format != service.FormatJSON && format != service.FormatCSV {
		badRequest(c, "format must be one of: ndjson, json, csv")
		return
	}

	count, err := h.services.Export.Count(ctx, discussionID)
	if err != nil {
		respondError(c, h.log, err, "Failed to count comments")
		return
	}

	c.Header("X-Total-Count", strconv.Itoa(count))
	c.Header("Content-Disposition", attachmentDisposition("discussion_"+discussionID+"."+format))

	h.log.Info().
		Str("discussion_id", discussionID).
		Str("format", format).
		Int("count", count).
		Msg("Starting streaming export")

	if err := h.services.Export.StreamDiscussion(ctx, c.Writer, discussionID, format); err != nil {
		h.log.Error().Err(err).Str("discussion_id", discussionID).Msg("Export failed")
		// Can't return error JSON after streaming has started
		return
	}
}

// attachmentDisposition quotes or RFC 2231 encodes the filename as needed, so
// a discussion ID cannot inject extra header parameters
func attachmentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
