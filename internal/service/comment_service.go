package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/metrics"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/repository"
	"github.com/lms-discussions-api/internal/thread"
	"github.com/lms-discussions-api/internal/validation"
)

// commentService is the concrete implementation of CommentService
type commentService struct {
	repos  *repository.Repositories
	policy thread.Policy
	now    func() time.Time
	log    zerolog.Logger
}

// newCommentService creates a new CommentService
func newCommentService(repos *repository.Repositories, policy thread.Policy, now func() time.Time, log zerolog.Logger) *commentService {
	return &commentService{
		repos:  repos,
		policy: policy,
		now:    now,
		log:    log.With().Str("service", "comment").Logger(),
	}
}

// List returns the flat thread of a discussion
func (s *commentService) List(ctx context.Context, discussionID string) ([]models.Comment, error) {
	if strings.TrimSpace(discussionID) == "" {
		return nil, fmt.Errorf("%w: discussion id is required", apperr.ErrValidation)
	}
	comments, err := s.repos.Comment.ListByDiscussion(ctx, discussionID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// Create adds a top-level comment or a reply
func (s *commentService) Create(ctx context.Context, discussionID, authorID string, in models.NewComment) (comment *models.Comment, err error) {
	defer func() { metrics.CommentOperations.WithLabelValues("create", metrics.Result(err)).Inc() }()

	if authorID == "" {
		return nil, apperr.ErrUnauthorized
	}
	if strings.TrimSpace(discussionID) == "" {
		return nil, fmt.Errorf("%w: discussion id is required", apperr.ErrValidation)
	}
	if v := validation.ValidateCommentContent(in.Content); v != nil {
		return nil, contentFieldError(v)
	}

	depth := 0
	var parentID *string
	if in.ParentCommentID != nil && *in.ParentCommentID != "" {
		parent, err := s.parent(ctx, discussionID, *in.ParentCommentID)
		if err != nil {
			return nil, err
		}
		if !s.policy.CanReply(parent.Depth) {
			return nil, fmt.Errorf("reply to %s: %w", parent.ID, apperr.ErrMaxDepth)
		}
		depth = parent.Depth + 1
		id := parent.ID
		parentID = &id
	}

	now := s.now().UTC()
	comment = &models.Comment{
		ID:              uuid.New().String(),
		DiscussionID:    discussionID,
		AuthorID:        authorID,
		Content:         strings.TrimSpace(in.Content),
		ParentCommentID: parentID,
		Depth:           depth,
		Reactions:       []models.Reaction{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repos.Comment.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	s.log.Info().
		Str("comment_id", comment.ID).
		Str("discussion_id", discussionID).
		Int("depth", depth).
		Msg("Comment created")

	return comment, nil
}

func (s *commentService) parent(ctx context.Context, discussionID, parentID string) (*models.Comment, error) {
	if _, err := uuid.Parse(parentID); err != nil {
		return nil, fmt.Errorf("parent comment %q: %w", parentID, apperr.ErrNotFound)
	}
	parent, err := s.repos.Comment.GetByID(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("get parent comment: %w", err)
	}
	if parent == nil || parent.DiscussionID != discussionID {
		return nil, fmt.Errorf("parent comment %s: %w", parentID, apperr.ErrNotFound)
	}
	return parent, nil
}

// Update replaces the content of the caller's own comment
func (s *commentService) Update(ctx context.Context, commentID, userID string, in models.CommentUpdate) (comment *models.Comment, err error) {
	defer func() { metrics.CommentOperations.WithLabelValues("update", metrics.Result(err)).Inc() }()

	if userID == "" {
		return nil, apperr.ErrUnauthorized
	}
	if v := validation.ValidateCommentContent(in.Content); v != nil {
		return nil, contentFieldError(v)
	}

	existing, err := s.owned(ctx, commentID, userID, thread.CanEdit)
	if err != nil {
		return nil, err
	}

	updated, err := s.repos.Comment.UpdateContent(ctx, existing.ID, strings.TrimSpace(in.Content), s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("comment %s: %w", commentID, apperr.ErrNotFound)
	}

	s.log.Info().Str("comment_id", commentID).Msg("Comment updated")
	return updated, nil
}

// Delete removes the caller's own comment together with its replies
func (s *commentService) Delete(ctx context.Context, commentID, userID string) (err error) {
	defer func() { metrics.CommentOperations.WithLabelValues("delete", metrics.Result(err)).Inc() }()

	if userID == "" {
		return apperr.ErrUnauthorized
	}
	if _, err := s.owned(ctx, commentID, userID, thread.CanDelete); err != nil {
		return err
	}

	deleted, err := s.repos.Comment.Delete(ctx, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if !deleted {
		return fmt.Errorf("comment %s: %w", commentID, apperr.ErrNotFound)
	}

	s.log.Info().Str("comment_id", commentID).Msg("Comment deleted")
	return nil
}

func (s *commentService) owned(ctx context.Context, commentID, userID string, allowed func(*models.Comment, string) bool) (*models.Comment, error) {
	if _, err := uuid.Parse(commentID); err != nil {
		return nil, fmt.Errorf("comment %q: %w", commentID, apperr.ErrNotFound)
	}
	comment, err := s.repos.Comment.GetByID(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	if comment == nil {
		return nil, fmt.Errorf("comment %s: %w", commentID, apperr.ErrNotFound)
	}
	if !allowed(comment, userID) {
		return nil, fmt.Errorf("comment %s: %w", commentID, apperr.ErrForbidden)
	}
	return comment, nil
}

func contentFieldError(v *validation.Violation) error {
	return apperr.FieldErrors{{Field: "content", Code: v.Code, Message: v.Message}}
}
