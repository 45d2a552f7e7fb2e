package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/database"
	"github.com/lms-discussions-api/internal/models"
)

const commentColumns = `id, discussion_id, author_id, content, parent_comment_id, depth, created_at, updated_at`

// commentRepo is the concrete implementation of CommentRepository
type commentRepo struct {
	db *database.DB
}

// NewCommentRepo creates a new comment repository
func NewCommentRepo(db *database.DB) CommentRepository {
	return &commentRepo{db: db}
}

func scanComment(row scanner) (*models.Comment, error) {
	var (
		comment models.Comment
		parent  sql.NullString
	)
	err := row.Scan(
		&comment.ID, &comment.DiscussionID, &comment.AuthorID, &comment.Content,
		&parent, &comment.Depth, &comment.CreatedAt, &comment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if parent.Valid {
		p := parent.String
		comment.ParentCommentID = &p
	}
	comment.Edited = comment.UpdatedAt.After(comment.CreatedAt)
	comment.Reactions = []models.Reaction{}
	return &comment, nil
}

// Create inserts a new comment. A parent that does not exist maps to ErrNotFound.
func (r *commentRepo) Create(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (id, discussion_id, author_id, content, parent_comment_id, depth, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		comment.ID, comment.DiscussionID, comment.AuthorID, comment.Content,
		comment.ParentCommentID, comment.Depth, comment.CreatedAt, comment.UpdatedAt,
	)
	if database.IsForeignKeyViolation(err) {
		return fmt.Errorf("parent comment: %w", apperr.ErrNotFound)
	}
	return err
}

// BatchInsert inserts multiple comments using PostgreSQL COPY.
// Parents must precede their replies in the slice or already exist.
func (r *commentRepo) BatchInsert(ctx context.Context, comments []*models.Comment) (int, error) {
	if len(comments) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("comments",
		"id", "discussion_id", "author_id", "content", "parent_comment_id", "depth", "created_at", "updated_at",
	))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, comment := range comments {
		_, err := stmt.ExecContext(ctx,
			comment.ID, comment.DiscussionID, comment.AuthorID, comment.Content,
			comment.ParentCommentID, comment.Depth, comment.CreatedAt, comment.UpdatedAt,
		)
		if err != nil {
			return 0, err
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return len(comments), nil
}

// GetByID retrieves a comment by ID, reactions included
func (r *commentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`

	comment, err := scanComment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	byComment, err := r.reactionsFor(ctx, []string{comment.ID})
	if err != nil {
		return nil, err
	}
	if rs, ok := byComment[comment.ID]; ok {
		comment.Reactions = rs
	}
	return comment, nil
}

// Exists checks if a comment with the given ID exists
func (r *commentRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1)", id).Scan(&exists)
	return exists, err
}

// ListByDiscussion returns the flat thread in creation order with reactions attached
func (r *commentRepo) ListByDiscussion(ctx context.Context, discussionID string) ([]models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE discussion_id = $1 ORDER BY created_at, depth, id`
	rows, err := r.db.QueryContext(ctx, query, discussionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]models.Comment, 0)
	ids := make([]string, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *comment)
		ids = append(ids, comment.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byComment, err := r.reactionsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		if rs, ok := byComment[comments[i].ID]; ok {
			comments[i].Reactions = rs
		}
	}
	return comments, nil
}

func (r *commentRepo) reactionsFor(ctx context.Context, ids []string) (map[string][]models.Reaction, error) {
	return reactionsByComment(ctx, r.db, ids)
}

// UpdateContent replaces the content and bumps updated_at
func (r *commentRepo) UpdateContent(ctx context.Context, id, content string, at time.Time) (*models.Comment, error) {
	query := `UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1 RETURNING ` + commentColumns

	comment, err := scanComment(r.db.QueryRowContext(ctx, query, id, content, at))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	comment.Edited = true

	byComment, err := r.reactionsFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if rs, ok := byComment[id]; ok {
		comment.Reactions = rs
	}
	return comment, nil
}

// Delete removes a comment; replies and reactions go with it
func (r *commentRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM comments WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Count returns the number of comments in a discussion
func (r *commentRepo) Count(ctx context.Context, discussionID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments WHERE discussion_id = $1", discussionID).Scan(&count)
	return count, err
}

// StreamByDiscussion streams a discussion's comments for export without reactions
func (r *commentRepo) StreamByDiscussion(ctx context.Context, discussionID string, callback func(*models.Comment) error) error {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE discussion_id = $1 ORDER BY created_at, depth, id`
	rows, err := r.db.QueryContext(ctx, query, discussionID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return err
		}

		if err := callback(comment); err != nil {
			return err
		}
	}

	return rows.Err()
}
