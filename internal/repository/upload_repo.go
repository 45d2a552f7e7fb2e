package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lms-discussions-api/internal/database"
	"github.com/lms-discussions-api/internal/models"
)

type uploadRepo struct {
	db *database.DB
}

// NewUploadRepo creates a new upload repository
func NewUploadRepo(db *database.DB) UploadRepository {
	return &uploadRepo{db: db}
}

// Create records a stored upload
func (r *uploadRepo) Create(ctx context.Context, upload *models.Upload) error {
	query := `
		INSERT INTO uploads (key, kind, filename, content_type, size, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		upload.Key, upload.Kind, upload.Filename, upload.ContentType,
		upload.Size, upload.UploadedBy, upload.CreatedAt,
	)
	return err
}

// GetByKey retrieves an upload record
func (r *uploadRepo) GetByKey(ctx context.Context, key string) (*models.Upload, error) {
	query := `SELECT key, kind, filename, content_type, size, uploaded_by, created_at FROM uploads WHERE key = $1`

	var upload models.Upload
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&upload.Key, &upload.Kind, &upload.Filename, &upload.ContentType,
		&upload.Size, &upload.UploadedBy, &upload.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &upload, nil
}
