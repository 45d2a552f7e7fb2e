package service

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/config"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/repository"
	"github.com/lms-discussions-api/internal/thread"
)

// CommentService defines the interface for discussion thread operations
type CommentService interface {
	List(ctx context.Context, discussionID string) ([]models.Comment, error)
	Create(ctx context.Context, discussionID, authorID string, in models.NewComment) (*models.Comment, error)
	Update(ctx context.Context, commentID, userID string, in models.CommentUpdate) (*models.Comment, error)
	Delete(ctx context.Context, commentID, userID string) error
}

// ReactionService defines the interface for reaction operations.
// Both calls return the comment's reaction set after the change.
type ReactionService interface {
	Add(ctx context.Context, commentID, userID string, t models.ReactionType) ([]models.Reaction, error)
	Remove(ctx context.Context, commentID, userID string, t models.ReactionType) ([]models.Reaction, error)
}

// FormService validates and stores generic form submissions
type FormService interface {
	Validate(ctx context.Context, schemaName string, fields map[string]string) ([]models.FormFieldError, error)
	Submit(ctx context.Context, schemaName, userID string, fields map[string]string) (*models.Entity, error)
}

// UploadService stores uploaded files
type UploadService interface {
	Save(ctx context.Context, in UploadInput) (*models.UploadResult, error)
}

// UploadInput describes one file being uploaded
type UploadInput struct {
	Kind        models.UploadKind
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	UserID      string
}

// ExportService defines the interface for export operations
type ExportService interface {
	StreamDiscussion(ctx context.Context, w http.ResponseWriter, discussionID, format string) error
	Count(ctx context.Context, discussionID string) (int, error)
}

// ImportService defines the interface for thread imports
type ImportService interface {
	ImportThread(ctx context.Context, discussionID string, r io.Reader) (*models.ImportResult, error)
}

// Services holds all service interfaces
type Services struct {
	Comment  CommentService
	Reaction ReactionService
	Form     FormService
	Upload   UploadService
	Export   ExportService
	Import   ImportService

	// Health reports whether the backing store is reachable; nil means always healthy
	Health func(ctx context.Context) error
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, cfg *config.Config, log zerolog.Logger) *Services {
	policy := thread.Policy{MaxDepth: cfg.Thread.MaxDepth}

	return &Services{
		Comment:  newCommentService(repos, policy, time.Now, log),
		Reaction: newReactionService(repos, log),
		Form:     newFormService(repos.Entity, cfg.Server.ReservedWords, time.Now, log),
		Upload:   newUploadService(repos.Upload, cfg.Upload, time.Now, log),
		Export:   newExportService(repos, log),
		Import:   newImportService(repos, policy, cfg.Import, log),
		Health:   repos.Ping,
	}
}
