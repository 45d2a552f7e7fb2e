package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/database"
	"github.com/lms-discussions-api/internal/models"
)

type entityRepo struct {
	db *database.DB
}

// NewEntityRepo creates a new entity repository
func NewEntityRepo(db *database.DB) EntityRepository {
	return &entityRepo{db: db}
}

// Create inserts an entity. A slug already used by the same kind maps to ErrConflict.
func (r *entityRepo) Create(ctx context.Context, entity *models.Entity) error {
	raw, err := json.Marshal(entity.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	entity.FieldsRaw = raw

	var slug sql.NullString
	if entity.Slug != "" {
		slug = sql.NullString{String: entity.Slug, Valid: true}
	}

	query := `
		INSERT INTO entities (id, kind, slug, fields, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query,
		entity.ID, entity.Kind, slug, raw, entity.CreatedBy, entity.CreatedAt, entity.UpdatedAt,
	)
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %w", apperr.ErrConflict, SlugTaken(entity.Kind, entity.SlugField))
	}
	return err
}

// SlugTaken is the field error reported when an identifier is already used within kind
func SlugTaken(kind, field string) apperr.FieldErrors {
	if field == "" {
		field = "slug"
	}
	return apperr.FieldErrors{{
		Field:   field,
		Code:    "taken",
		Message: fmt.Sprintf("This %s is already used by another %s.", field, kind),
	}}
}

// GetByID retrieves an entity by ID
func (r *entityRepo) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	query := `SELECT id, kind, slug, fields, created_by, created_at, updated_at FROM entities WHERE id = $1`

	var (
		entity models.Entity
		slug   sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&entity.ID, &entity.Kind, &slug, &entity.FieldsRaw,
		&entity.CreatedBy, &entity.CreatedAt, &entity.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	entity.Slug = slug.String
	if err := json.Unmarshal(entity.FieldsRaw, &entity.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of entity %s: %w", id, err)
	}
	return &entity, nil
}

// SlugExists checks if a slug is taken within a kind
func (r *entityRepo) SlugExists(ctx context.Context, kind, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM entities WHERE kind = $1 AND slug = $2)", kind, slug,
	).Scan(&exists)
	return exists, err
}

// Count returns the number of entities of a kind
func (r *entityRepo) Count(ctx context.Context, kind string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities WHERE kind = $1", kind).Scan(&count)
	return count, err
}
