package database

import (
	"context"
	"errors"
)

// ErrNotInitialized is returned by the getters before a backend is registered.
var ErrNotInitialized = errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")

// HNSWRebuilder is an interface for repositories that support HNSW index rebuilding
type HNSWRebuilder interface {
	// RebuildHNSW rebuilds the in-memory HNSW index
	RebuildHNSW(ctx context.Context) error
	// HNSWCount returns the number of items in the HNSW index
	HNSWCount() int
	// IsHNSWEnabled returns whether HNSW is enabled
	IsHNSWEnabled() bool
	// SaveHNSWIndex saves the current index to disk (if path configured)
	SaveHNSWIndex() error
}

var (
	postgresPhotoWriter     func() PhotoWriter
	postgresIdentityWriter  func() IdentityWriter
	postgresPhenotypeWriter func() PhenotypeWriter
	postgresPhenotypeHNSW   HNSWRebuilder
	postgresInitialized     bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(
	photos func() PhotoWriter,
	identities func() IdentityWriter,
	phenotypes func() PhenotypeWriter,
) {
	postgresPhotoWriter = photos
	postgresIdentityWriter = identities
	postgresPhenotypeWriter = phenotypes
	postgresInitialized = true
}

// RegisterPhenotypeHNSWRebuilder registers the HNSW rebuilder for the phenotype repository.
func RegisterPhenotypeHNSWRebuilder(rebuilder HNSWRebuilder) {
	postgresPhenotypeHNSW = rebuilder
}

// GetPhenotypeHNSWRebuilder returns the registered phenotype HNSW rebuilder, or nil if not registered.
func GetPhenotypeHNSWRebuilder() HNSWRebuilder {
	return postgresPhenotypeHNSW
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// ResetForTesting clears all registered constructors.
func ResetForTesting() {
	postgresPhotoWriter = nil
	postgresIdentityWriter = nil
	postgresPhenotypeWriter = nil
	postgresPhenotypeHNSW = nil
	postgresInitialized = false
}

// GetPhotoWriter returns a PhotoWriter from the PostgreSQL backend
func GetPhotoWriter(ctx context.Context) (PhotoWriter, error) {
	if !postgresInitialized {
		return nil, ErrNotInitialized
	}
	if postgresPhotoWriter == nil {
		return nil, errors.New("PostgreSQL photo writer not registered")
	}
	return postgresPhotoWriter(), nil
}

// GetPhotoReader returns a PhotoReader from the PostgreSQL backend
func GetPhotoReader(ctx context.Context) (PhotoReader, error) {
	return GetPhotoWriter(ctx)
}

// GetIdentityWriter returns an IdentityWriter from the PostgreSQL backend
func GetIdentityWriter(ctx context.Context) (IdentityWriter, error) {
	if !postgresInitialized {
		return nil, ErrNotInitialized
	}
	if postgresIdentityWriter == nil {
		return nil, errors.New("PostgreSQL identity writer not registered")
	}
	return postgresIdentityWriter(), nil
}

// GetIdentityReader returns an IdentityReader from the PostgreSQL backend
func GetIdentityReader(ctx context.Context) (IdentityReader, error) {
	return GetIdentityWriter(ctx)
}

// GetPhenotypeWriter returns a PhenotypeWriter from the PostgreSQL backend
func GetPhenotypeWriter(ctx context.Context) (PhenotypeWriter, error) {
	if !postgresInitialized {
		return nil, ErrNotInitialized
	}
	if postgresPhenotypeWriter == nil {
		return nil, errors.New("PostgreSQL phenotype writer not registered")
	}
	return postgresPhenotypeWriter(), nil
}

// GetPhenotypeReader returns a PhenotypeReader from the PostgreSQL backend
func GetPhenotypeReader(ctx context.Context) (PhenotypeReader, error) {
	return GetPhenotypeWriter(ctx)
}
