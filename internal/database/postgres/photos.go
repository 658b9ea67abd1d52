package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/orchid/internal/database"
	"github.com/kozaktomas/orchid/internal/fingerprint"
)

// PhotoRepository provides PostgreSQL-backed photo storage
type PhotoRepository struct {
	pool *Pool
}

// NewPhotoRepository creates a new PostgreSQL photo repository
func NewPhotoRepository(pool *Pool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

const photoColumns = `id, file_name, original_name, content_type, width, height, phash, dhash, session_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*database.Photo, error) {
	var p database.Photo
	var phash, dhash string
	if err := row.Scan(&p.ID, &p.FileName, &p.OriginalName, &p.ContentType,
		&p.Width, &p.Height, &phash, &dhash, &p.SessionID, &p.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.PHash, err = fingerprint.ParseHex(phash); err != nil {
		return nil, fmt.Errorf("photo %d phash: %w", p.ID, err)
	}
	if p.DHash, err = fingerprint.ParseHex(dhash); err != nil {
		return nil, fmt.Errorf("photo %d dhash: %w", p.ID, err)
	}
	return &p, nil
}

func scanPhotos(rows *sql.Rows) ([]database.Photo, error) {
	var photos []database.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, nil
}

// Get retrieves a photo by ID, returns nil if not found
func (r *PhotoRepository) Get(ctx context.Context, id int64) (*database.Photo, error) {
	p, err := scanPhoto(r.pool.QueryRow(ctx, "SELECT "+photoColumns+" FROM photos WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

// List returns photos newest first
func (r *PhotoRepository) List(ctx context.Context, limit, offset int) ([]database.Photo, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+photoColumns+" FROM photos ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()
	return scanPhotos(rows)
}

// ListBySession returns the photos uploaded in a visitor session, newest first
func (r *PhotoRepository) ListBySession(ctx context.Context, sessionID string) ([]database.Photo, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+photoColumns+" FROM photos WHERE session_id = $1 ORDER BY created_at DESC, id DESC",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session photos: %w", err)
	}
	defer rows.Close()
	return scanPhotos(rows)
}

// Count returns the total number of photos
func (r *PhotoRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM photos").Scan(&count); err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}
	return count, nil
}

// Create inserts a photo and fills in its ID and CreatedAt
func (r *PhotoRepository) Create(ctx context.Context, photo *database.Photo) error {
	query := `
		INSERT INTO photos (file_name, original_name, content_type, width, height, phash, dhash, session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	h := fingerprint.Hashes{PHash: photo.PHash, DHash: photo.DHash}
	err := r.pool.QueryRow(ctx, query,
		photo.FileName, photo.OriginalName, photo.ContentType, photo.Width, photo.Height,
		h.PHashHex(), h.DHashHex(), photo.SessionID,
	).Scan(&photo.ID, &photo.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}
	return nil
}

// Delete removes a photo. Identities and phenotype rows cascade.
func (r *PhotoRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM photos WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}
