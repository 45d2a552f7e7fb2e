package repository

import (
	"context"
	"time"

	"github.com/lms-discussions-api/internal/database"
	"github.com/lms-discussions-api/internal/models"
)

// CommentRepository defines the interface for comment data operations.
// Lookups return (nil, nil) when the row does not exist.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	BatchInsert(ctx context.Context, comments []*models.Comment) (int, error)
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListByDiscussion(ctx context.Context, discussionID string) ([]models.Comment, error)
	UpdateContent(ctx context.Context, id, content string, at time.Time) (*models.Comment, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context, discussionID string) (int, error)
	StreamByDiscussion(ctx context.Context, discussionID string, callback func(*models.Comment) error) error
}

// ReactionRepository defines the interface for reaction data operations
type ReactionRepository interface {
	Add(ctx context.Context, reaction *models.Reaction) error
	Remove(ctx context.Context, commentID, userID string, t models.ReactionType) (bool, error)
	ListByComment(ctx context.Context, commentID string) ([]models.Reaction, error)
	ListByComments(ctx context.Context, commentIDs []string) (map[string][]models.Reaction, error)
	BatchInsert(ctx context.Context, reactions []*models.Reaction) (int, error)
}

// EntityRepository defines the interface for form-created entities
type EntityRepository interface {
	Create(ctx context.Context, entity *models.Entity) error
	GetByID(ctx context.Context, id string) (*models.Entity, error)
	SlugExists(ctx context.Context, kind, slug string) (bool, error)
	Count(ctx context.Context, kind string) (int, error)
}

// UploadRepository defines the interface for upload records
type UploadRepository interface {
	Create(ctx context.Context, upload *models.Upload) error
	GetByKey(ctx context.Context, key string) (*models.Upload, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Comment  CommentRepository
	Reaction ReactionRepository
	Entity   EntityRepository
	Upload   UploadRepository

	// Ping checks the underlying store; nil when there is none to check
	Ping func(ctx context.Context) error
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Comment:  NewCommentRepo(db),
		Reaction: NewReactionRepo(db),
		Entity:   NewEntityRepo(db),
		Upload:   NewUploadRepo(db),
		Ping:     db.HealthCheck,
	}
}

type scanner interface {
	Scan(dest ...any) error
}
