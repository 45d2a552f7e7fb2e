package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/config"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/service"
)

// UploadHandler handles file uploads for content items
type UploadHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "upload").Logger(),
	}
}

// Upload handles POST /v1/uploads
// Accepts a multipart "file" part and a "kind" field (content or video)
func (h *UploadHandler) Upload(c *gin.Context) {
	kind := c.PostForm("kind")
	if kind == "" {
		kind = c.DefaultQuery("kind", string(models.UploadKindContent))
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file upload is required")
		return
	}
	defer file.Close()

	// Reject early on the declared size; the service enforces the real one
	if header.Size > h.cfg.Upload.MaxUploadSize {
		badRequest(c, fmt.Sprintf("file too large, max size is %d MB", h.cfg.Upload.MaxUploadSize/(1024*1024)))
		return
	}

	result, err := h.services.Upload.Save(c.Request.Context(), service.UploadInput{
		Kind:        models.UploadKind(kind),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
		UserID:      currentUser(c),
	})
	if err != nil {
		respondError(c, h.log, err, "Failed to store upload")
		return
	}

	h.log.Info().
		Str("key", result.Key).
		Str("kind", kind).
		Str("file", header.Filename).
		Int64("size_bytes", result.Size).
		Msg("Upload stored")

	c.JSON(http.StatusCreated, result)
}
