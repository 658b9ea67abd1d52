package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/orchid/internal/database"
)

// IdentityRepository provides PostgreSQL-backed identity storage
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

const identityColumns = `id, photo_id, rank, name, score, error, created_at`

func scanIdentities(rows *sql.Rows) ([]database.Identity, error) {
	var identities []database.Identity
	for rows.Next() {
		var i database.Identity
		if err := rows.Scan(&i.ID, &i.PhotoID, &i.Rank, &i.Name, &i.Score, &i.Error, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

// Get retrieves an identity by ID, returns nil if not found
func (r *IdentityRepository) Get(ctx context.Context, id int64) (*database.Identity, error) {
	var i database.Identity
	err := r.pool.QueryRow(ctx, "SELECT "+identityColumns+" FROM identities WHERE id = $1", id).
		Scan(&i.ID, &i.PhotoID, &i.Rank, &i.Name, &i.Score, &i.Error, &i.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return &i, nil
}

// List returns identities ordered by ID
func (r *IdentityRepository) List(ctx context.Context, limit, offset int) ([]database.Identity, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+identityColumns+" FROM identities ORDER BY id LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()
	return scanIdentities(rows)
}

// ListByPhoto returns the identities of a photo in the order they were ranked
func (r *IdentityRepository) ListByPhoto(ctx context.Context, photoID int64) ([]database.Identity, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+identityColumns+" FROM identities WHERE photo_id = $1 ORDER BY id", photoID)
	if err != nil {
		return nil, fmt.Errorf("list photo identities: %w", err)
	}
	defer rows.Close()
	return scanIdentities(rows)
}

// Replace deletes the identities of a photo and stores the given ones in a
// single transaction.
func (r *IdentityRepository) Replace(ctx context.Context, photoID int64, identities []database.Identity) ([]database.Identity, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM identities WHERE photo_id = $1", photoID); err != nil {
		return nil, fmt.Errorf("delete identities: %w", err)
	}

	stored := make([]database.Identity, 0, len(identities))
	for _, i := range identities {
		i.PhotoID = photoID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO identities (photo_id, rank, name, score, error)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, photoID, i.Rank, i.Name, i.Score, i.Error).Scan(&i.ID, &i.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert identity: %w", err)
		}
		stored = append(stored, i)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit identities: %w", err)
	}
	return stored, nil
}
