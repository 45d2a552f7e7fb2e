package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/config"
	"github.com/lms-discussions-api/internal/metrics"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/repository"
	"github.com/lms-discussions-api/internal/validation"
)

// sniffLen is how much of the body is inspected to detect its content type
const sniffLen = 3072

type uploadService struct {
	uploads repository.UploadRepository
	cfg     config.UploadConfig
	now     func() time.Time
	log     zerolog.Logger
}

func newUploadService(uploads repository.UploadRepository, cfg config.UploadConfig, now func() time.Time, log zerolog.Logger) *uploadService {
	return &uploadService{
		uploads: uploads,
		cfg:     cfg,
		now:     now,
		log:     log.With().Str("service", "upload").Logger(),
	}
}

// Save writes the file under the upload directory and records it
func (s *uploadService) Save(ctx context.Context, in UploadInput) (*models.UploadResult, error) {
	if in.UserID == "" {
		return nil, apperr.ErrUnauthorized
	}
	ext, err := s.check(in)
	if err != nil {
		return nil, err
	}

	key := path.Join(string(in.Kind), uuid.New().String()+ext)
	dst := filepath.Join(s.cfg.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	body := bufio.NewReaderSize(&ctxReader{ctx: ctx, r: in.Body}, sniffLen)
	head, _ := body.Peek(sniffLen)
	contentType := mimetype.Detect(head).String()

	size, err := s.write(dst, body)
	if err != nil {
		os.Remove(dst)
		return nil, err
	}

	upload := &models.Upload{
		Key:         key,
		Kind:        in.Kind,
		Filename:    filepath.Base(in.Filename),
		ContentType: contentType,
		Size:        size,
		UploadedBy:  in.UserID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.uploads.Create(ctx, upload); err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("record upload: %w", err)
	}

	metrics.UploadBytes.WithLabelValues(string(in.Kind)).Add(float64(size))
	s.log.Info().
		Str("key", key).
		Str("kind", string(in.Kind)).
		Str("content_type", contentType).
		Int64("size_bytes", size).
		Msg("Upload stored")

	return &models.UploadResult{
		URL:  strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key,
		Key:  key,
		Size: size,
	}, nil
}

func (s *uploadService) check(in UploadInput) (string, error) {
	if !models.ValidUploadKinds[in.Kind] {
		return "", apperr.FieldErrors{{
			Field:   "kind",
			Code:    validation.CodeNotAllowed,
			Message: "Upload kind must be one of: " + strings.Join(models.Keys(models.ValidUploadKinds), ", "),
		}}
	}

	allowed := s.cfg.ContentExts
	if in.Kind == models.UploadKindVideo {
		allowed = s.cfg.VideoExts
	}
	ext := strings.ToLower(filepath.Ext(in.Filename))
	if ext == "" || !slices.Contains(allowed, ext) {
		return "", apperr.FieldErrors{{
			Field:   "file",
			Code:    validation.CodeNotAllowed,
			Message: fmt.Sprintf("File type %q is not allowed, use one of: %s", ext, strings.Join(allowed, ", ")),
		}}
	}

	if in.Size > s.cfg.MaxUploadSize {
		return "", tooLarge(s.cfg.MaxUploadSize)
	}
	return ext, nil
}

// write copies at most MaxUploadSize bytes; the declared size is not trusted
func (s *uploadService) write(dst string, body io.Reader) (int64, error) {
	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(body, s.cfg.MaxUploadSize+1))
	if err != nil {
		return 0, fmt.Errorf("write file: %w", err)
	}
	if n > s.cfg.MaxUploadSize {
		return 0, tooLarge(s.cfg.MaxUploadSize)
	}
	return n, f.Sync()
}

func tooLarge(max int64) error {
	return apperr.FieldErrors{{
		Field:   "file",
		Code:    validation.CodeMaxLength,
		Message: fmt.Sprintf("File is larger than %d MB", max/(1024*1024)),
	}}
}

// ctxReader stops a copy once the request is gone
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
