package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/metrics"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/repository"
	"github.com/lms-discussions-api/internal/validation"
)

type reactionService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

func newReactionService(repos *repository.Repositories, log zerolog.Logger) *reactionService {
	return &reactionService{
		repos: repos,
		log:   log.With().Str("service", "reaction").Logger(),
	}
}

// Add sets the caller's reaction of type t; repeating it changes nothing
func (s *reactionService) Add(ctx context.Context, commentID, userID string, t models.ReactionType) (set []models.Reaction, err error) {
	defer func() { metrics.ReactionOperations.WithLabelValues("set", string(t), metrics.Result(err)).Inc() }()

	if err := s.check(ctx, commentID, userID, t); err != nil {
		return nil, err
	}
	if err := s.repos.Reaction.Add(ctx, &models.Reaction{CommentID: commentID, UserID: userID, Type: t}); err != nil {
		return nil, fmt.Errorf("add reaction: %w", err)
	}
	return s.list(ctx, commentID)
}

// Remove clears the caller's reaction of type t; clearing an absent one changes nothing
func (s *reactionService) Remove(ctx context.Context, commentID, userID string, t models.ReactionType) (set []models.Reaction, err error) {
	defer func() { metrics.ReactionOperations.WithLabelValues("clear", string(t), metrics.Result(err)).Inc() }()

	if err := s.check(ctx, commentID, userID, t); err != nil {
		return nil, err
	}
	removed, err := s.repos.Reaction.Remove(ctx, commentID, userID, t)
	if err != nil {
		return nil, fmt.Errorf("remove reaction: %w", err)
	}
	if removed {
		s.log.Debug().Str("comment_id", commentID).Str("type", string(t)).Msg("Reaction removed")
	}
	return s.list(ctx, commentID)
}

func (s *reactionService) check(ctx context.Context, commentID, userID string, t models.ReactionType) error {
	if userID == "" {
		return apperr.ErrUnauthorized
	}
	if !models.ValidReactionTypes[t] {
		return apperr.FieldErrors{{
			Field:   "type",
			Code:    validation.CodeNotAllowed,
			Message: "Reaction type must be one of: " + strings.Join(models.Keys(models.ValidReactionTypes), ", "),
		}}
	}
	if _, err := uuid.Parse(commentID); err != nil {
		return fmt.Errorf("comment %q: %w", commentID, apperr.ErrNotFound)
	}
	exists, err := s.repos.Comment.Exists(ctx, commentID)
	if err != nil {
		return fmt.Errorf("check comment: %w", err)
	}
	if !exists {
		return fmt.Errorf("comment %s: %w", commentID, apperr.ErrNotFound)
	}
	return nil
}

func (s *reactionService) list(ctx context.Context, commentID string) ([]models.Reaction, error) {
	set, err := s.repos.Reaction.ListByComment(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	return set, nil
}
