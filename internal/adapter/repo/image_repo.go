package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"videokit/internal/domain"
	"videokit/internal/infra"
	"videokit/internal/sqlinline"
)

// ImageRepositorySQLite implements domain.ImageRepository with blobs stored inline.
type ImageRepositorySQLite struct {
	db infra.SQLExecutor
}

// NewImageRepository constructs a new image repository instance.
func NewImageRepository(db infra.SQLExecutor) *ImageRepositorySQLite {
	return &ImageRepositorySQLite{db: db}
}

// GetAll returns every stored image, newest first.
func (r *ImageRepositorySQLite) GetAll(ctx context.Context) ([]*domain.Image, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListImages)
	if err != nil {
		return nil, storeErr("list images", err)
	}
	defer rows.Close()

	var images []*domain.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list images", err)
	}
	return images, nil
}

// Get fetches one image with its blob.
func (r *ImageRepositorySQLite) Get(ctx context.Context, id string) (*domain.Image, error) {
	img, err := scanImage(r.db.QueryRow(ctx, sqlinline.QSelectImageByID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("image %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return img, nil
}

// Put inserts or replaces the image record.
func (r *ImageRepositorySQLite) Put(ctx context.Context, image *domain.Image) error {
	if image == nil {
		return fmt.Errorf("%w: nil image", domain.ErrValidation)
	}
	if err := image.Validate(); err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, sqlinline.QUpsertImage,
		image.ID,
		image.Filename,
		image.MimeType,
		formatTime(image.CreatedAt),
		image.Blob,
	); err != nil {
		return storeErr("put image", err)
	}
	return nil
}

// Delete removes the image. Missing ids are not an error.
func (r *ImageRepositorySQLite) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, sqlinline.QDeleteImage, id); err != nil {
		return storeErr("delete image", err)
	}
	return nil
}

// Clear removes every image in one statement.
func (r *ImageRepositorySQLite) Clear(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, sqlinline.QClearImages); err != nil {
		return storeErr("clear images", err)
	}
	return nil
}

func scanImage(row infra.Row) (*domain.Image, error) {
	var (
		img       domain.Image
		createdAt string
	)
	if err := row.Scan(&img.ID, &img.Filename, &img.MimeType, &createdAt, &img.Blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, storeErr("scan image", err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, storeErr("decode image", err)
	}
	img.CreatedAt = t
	return &img, nil
}

var _ domain.ImageRepository = (*ImageRepositorySQLite)(nil)
