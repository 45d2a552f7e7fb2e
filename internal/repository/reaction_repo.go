package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/database"
	"github.com/lms-discussions-api/internal/models"
)

type reactionRepo struct {
	db *database.DB
}

// NewReactionRepo creates a new reaction repository
func NewReactionRepo(db *database.DB) ReactionRepository {
	return &reactionRepo{db: db}
}

// Add stores a reaction. Adding an existing (comment, user, type) is a no-op.
func (r *reactionRepo) Add(ctx context.Context, reaction *models.Reaction) error {
	if reaction.CreatedAt.IsZero() {
		reaction.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO comment_reactions (comment_id, user_id, type, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (comment_id, user_id, type) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, reaction.CommentID, reaction.UserID, reaction.Type, reaction.CreatedAt)
	if database.IsForeignKeyViolation(err) {
		return fmt.Errorf("comment %s: %w", reaction.CommentID, apperr.ErrNotFound)
	}
	return err
}

// Remove deletes a reaction and reports whether one existed
func (r *reactionRepo) Remove(ctx context.Context, commentID, userID string, t models.ReactionType) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM comment_reactions WHERE comment_id = $1 AND user_id = $2 AND type = $3",
		commentID, userID, t,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListByComment returns the reaction set of one comment
func (r *reactionRepo) ListByComment(ctx context.Context, commentID string) ([]models.Reaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT comment_id, user_id, type, created_at
		FROM comment_reactions
		WHERE comment_id = $1
		ORDER BY created_at, user_id, type
	`, commentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reactions := make([]models.Reaction, 0)
	for rows.Next() {
		var reaction models.Reaction
		if err := rows.Scan(&reaction.CommentID, &reaction.UserID, &reaction.Type, &reaction.CreatedAt); err != nil {
			return nil, err
		}
		reactions = append(reactions, reaction)
	}
	return reactions, rows.Err()
}

// ListByComments returns the reaction sets of several comments keyed by comment ID
func (r *reactionRepo) ListByComments(ctx context.Context, commentIDs []string) (map[string][]models.Reaction, error) {
	return reactionsByComment(ctx, r.db, commentIDs)
}

func reactionsByComment(ctx context.Context, db *database.DB, ids []string) (map[string][]models.Reaction, error) {
	out := make(map[string][]models.Reaction, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `
		SELECT comment_id, user_id, type, created_at
		FROM comment_reactions
		WHERE comment_id = ANY($1)
		ORDER BY created_at, user_id, type
	`
	rows, err := db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var reaction models.Reaction
		if err := rows.Scan(&reaction.CommentID, &reaction.UserID, &reaction.Type, &reaction.CreatedAt); err != nil {
			return nil, err
		}
		out[reaction.CommentID] = append(out[reaction.CommentID], reaction)
	}
	return out, rows.Err()
}

// BatchInsert copies reactions in bulk; callers dedupe beforehand
func (r *reactionRepo) BatchInsert(ctx context.Context, reactions []*models.Reaction) (int, error) {
	if len(reactions) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("comment_reactions", "comment_id", "user_id", "type", "created_at"))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now()
	for _, reaction := range reactions {
		created := reaction.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := stmt.ExecContext(ctx, reaction.CommentID, reaction.UserID, reaction.Type, created); err != nil {
			return 0, err
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(reactions), nil
}
