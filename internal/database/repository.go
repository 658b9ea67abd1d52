package database

import (
	"context"
)

// PhotoReader provides read-only access to uploaded photos
type PhotoReader interface {
	// Get retrieves a photo by ID, returns nil if not found
	Get(ctx context.Context, id int64) (*Photo, error)
	// List returns photos newest first
	List(ctx context.Context, limit, offset int) ([]Photo, error)
	// ListBySession returns the photos uploaded in a visitor session, newest first
	ListBySession(ctx context.Context, sessionID string) ([]Photo, error)
	// Count returns the total number of photos
	Count(ctx context.Context) (int, error)
}

// PhotoWriter provides write access to uploaded photos
type PhotoWriter interface {
	PhotoReader

	// Create inserts a photo and fills in its ID and CreatedAt
	Create(ctx context.Context, photo *Photo) error
	// Delete removes a photo together with its identities and phenotype
	Delete(ctx context.Context, id int64) error
}

// IdentityReader provides read-only access to photo identities
type IdentityReader interface {
	// Get retrieves an identity by ID, returns nil if not found
	Get(ctx context.Context, id int64) (*Identity, error)
	// List returns identities ordered by ID
	List(ctx context.Context, limit, offset int) ([]Identity, error)
	// ListByPhoto returns the identities of a photo, best first
	ListByPhoto(ctx context.Context, photoID int64) ([]Identity, error)
}

// IdentityWriter provides write access to photo identities
type IdentityWriter interface {
	IdentityReader

	// Replace deletes the identities of a photo and stores the given ones.
	// Returns the stored identities with IDs assigned.
	Replace(ctx context.Context, photoID int64, identities []Identity) ([]Identity, error)
}

// PhenotypeReader provides read-only access to photo phenotypes
type PhenotypeReader interface {
	// Get retrieves the phenotype of a photo, returns nil if not found
	Get(ctx context.Context, photoID int64) (*StoredPhenotype, error)
	// FindSimilar returns the phenotypes closest to the given one by cosine
	// distance, with their distances
	FindSimilar(ctx context.Context, phenotype []float32, limit int) ([]StoredPhenotype, []float64, error)
}

// PhenotypeWriter provides write access to photo phenotypes
type PhenotypeWriter interface {
	PhenotypeReader

	// Save stores the phenotype of a photo, replacing an existing one
	Save(ctx context.Context, photoID int64, phenotype []float32) error
	// Delete removes the phenotype of a photo
	Delete(ctx context.Context, photoID int64) error
}
