package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/orchid/internal/database"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// PhenotypeRepository provides PostgreSQL-backed phenotype storage with an
// optional in-memory HNSW index for similarity search.
type PhenotypeRepository struct {
	pool          *Pool
	hnswIndex     *database.PhenotypeIndex
	hnswEnabled   bool
	hnswIndexPath string
	hnswMu        sync.RWMutex
}

// NewPhenotypeRepository creates a new PostgreSQL phenotype repository
func NewPhenotypeRepository(pool *Pool) *PhenotypeRepository {
	return &PhenotypeRepository{pool: pool}
}

// Get retrieves the phenotype of a photo, returns nil if not found
func (r *PhenotypeRepository) Get(ctx context.Context, photoID int64) (*database.StoredPhenotype, error) {
	var p database.StoredPhenotype
	var vec pgvector.Vector
	err := r.pool.QueryRow(ctx,
		"SELECT photo_id, phenotype, created_at FROM photo_phenotypes WHERE photo_id = $1", photoID,
	).Scan(&p.PhotoID, &vec, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get phenotype: %w", err)
	}
	p.Phenotype = vec.Slice()
	return &p, nil
}

// Save stores the phenotype of a photo, replacing an existing one
func (r *PhenotypeRepository) Save(ctx context.Context, photoID int64, phenotype []float32) error {
	query := `
		INSERT INTO photo_phenotypes (photo_id, phenotype, dim)
		VALUES ($1, $2, $3)
		ON CONFLICT (photo_id) DO UPDATE SET
			phenotype = EXCLUDED.phenotype,
			dim = EXCLUDED.dim,
			created_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, photoID, pgvector.NewVector(phenotype), len(phenotype)); err != nil {
		return fmt.Errorf("save phenotype: %w", err)
	}

	if index := r.index(); index != nil {
		index.Add(database.StoredPhenotype{PhotoID: photoID, Phenotype: phenotype})
	}
	return nil
}

// Delete removes the phenotype of a photo
func (r *PhenotypeRepository) Delete(ctx context.Context, photoID int64) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM photo_phenotypes WHERE photo_id = $1", photoID); err != nil {
		return fmt.Errorf("delete phenotype: %w", err)
	}
	if index := r.index(); index != nil {
		index.Delete(photoID)
	}
	return nil
}

// FindSimilar returns the phenotypes closest to the given one by cosine
// distance. Uses the in-memory HNSW index if enabled, otherwise pgvector.
func (r *PhenotypeRepository) FindSimilar(ctx context.Context, phenotype []float32, limit int) ([]database.StoredPhenotype, []float64, error) {
	if index := r.index(); index != nil {
		results, distances, err := index.Search(phenotype, limit)
		if errors.Is(err, database.ErrIndexEmpty) {
			return nil, nil, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("HNSW search: %w", err)
		}
		return results, distances, nil
	}
	return r.findSimilarPostgres(ctx, phenotype, limit)
}

func (r *PhenotypeRepository) findSimilarPostgres(ctx context.Context, phenotype []float32, limit int) ([]database.StoredPhenotype, []float64, error) {
	query := `
		SELECT photo_id, phenotype, created_at, phenotype <=> $1 AS distance
		FROM photo_phenotypes
		WHERE dim = $2
		ORDER BY distance
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(phenotype), len(phenotype), limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar phenotypes: %w", err)
	}
	defer rows.Close()

	var results []database.StoredPhenotype
	var distances []float64
	for rows.Next() {
		var p database.StoredPhenotype
		var vec pgvector.Vector
		var distance float64
		if err := rows.Scan(&p.PhotoID, &vec, &p.CreatedAt, &distance); err != nil {
			return nil, nil, fmt.Errorf("scan phenotype: %w", err)
		}
		p.Phenotype = vec.Slice()
		results = append(results, p)
		distances = append(distances, distance)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate phenotypes: %w", err)
	}
	return results, distances, nil
}

func (r *PhenotypeRepository) all(ctx context.Context) ([]database.StoredPhenotype, error) {
	rows, err := r.pool.Query(ctx, "SELECT photo_id, phenotype, created_at FROM photo_phenotypes ORDER BY photo_id")
	if err != nil {
		return nil, fmt.Errorf("query phenotypes: %w", err)
	}
	defer rows.Close()

	var phenotypes []database.StoredPhenotype
	for rows.Next() {
		var p database.StoredPhenotype
		var vec pgvector.Vector
		if err := rows.Scan(&p.PhotoID, &vec, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan phenotype: %w", err)
		}
		p.Phenotype = vec.Slice()
		phenotypes = append(phenotypes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate phenotypes: %w", err)
	}
	return phenotypes, nil
}

func (r *PhenotypeRepository) index() *database.PhenotypeIndex {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if !r.hnswEnabled {
		return nil
	}
	return r.hnswIndex
}

// EnableHNSW switches similarity search to an in-memory HNSW index. With a
// path, the index is loaded from disk when present and rebuilt from the
// database when the stored count differs.
func (r *PhenotypeRepository) EnableHNSW(ctx context.Context, path string) error {
	index := database.NewPhenotypeIndex()
	if path != "" {
		if err := index.Load(path); err != nil {
			r.pool.logger.Warn("ignoring unreadable phenotype index", zap.String("path", path), zap.Error(err))
			index = database.NewPhenotypeIndex()
			index.SetPath(path)
		}
	}

	r.hnswMu.Lock()
	r.hnswIndex = index
	r.hnswIndexPath = path
	r.hnswEnabled = true
	r.hnswMu.Unlock()

	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM photo_phenotypes").Scan(&count); err != nil {
		return fmt.Errorf("count phenotypes: %w", err)
	}
	if !index.IsEmpty() && index.Count() == count {
		r.pool.logger.Info("loaded phenotype index", zap.String("path", path), zap.Int("count", count))
		return nil
	}
	return r.RebuildHNSW(ctx)
}

// RebuildHNSW rebuilds the in-memory HNSW index from the database
func (r *PhenotypeRepository) RebuildHNSW(ctx context.Context) error {
	phenotypes, err := r.all(ctx)
	if err != nil {
		return err
	}

	index := r.index()
	if index == nil {
		return errors.New("HNSW is not enabled")
	}
	index.Build(phenotypes)
	r.pool.logger.Info("built phenotype index", zap.Int("count", len(phenotypes)), zap.Int("widths", index.Widths()))
	return r.SaveHNSWIndex()
}

// HNSWCount returns the number of phenotypes in the HNSW index
func (r *PhenotypeRepository) HNSWCount() int {
	if index := r.index(); index != nil {
		return index.Count()
	}
	return 0
}

// IsHNSWEnabled returns whether HNSW is enabled
func (r *PhenotypeRepository) IsHNSWEnabled() bool {
	return r.index() != nil
}

// SaveHNSWIndex saves the current index to disk (if path configured)
func (r *PhenotypeRepository) SaveHNSWIndex() error {
	index := r.index()
	if index == nil {
		return nil
	}
	return index.Save()
}
