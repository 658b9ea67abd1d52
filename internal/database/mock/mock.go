// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/orchid/internal/database"
)

// MockPhotoWriter is a mock implementation of database.PhotoWriter
type MockPhotoWriter struct {
	mu     sync.RWMutex
	photos map[int64]*database.Photo
	nextID int64

	// Error injection
	GetError    error
	ListError   error
	CreateError error
	DeleteError error
}

// NewMockPhotoWriter creates a new mock photo writer
func NewMockPhotoWriter() *MockPhotoWriter {
	return &MockPhotoWriter{photos: make(map[int64]*database.Photo), nextID: 1}
}

// AddPhoto adds a photo to the mock store, assigning an ID when unset
func (m *MockPhotoWriter) AddPhoto(p database.Photo) database.Photo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.nextID
	}
	m.nextID = max(m.nextID, p.ID+1)
	m.photos[p.ID] = &p
	return p
}

// Get retrieves a photo by ID
func (m *MockPhotoWriter) Get(ctx context.Context, id int64) (*database.Photo, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.photos[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *MockPhotoWriter) sorted(keep func(*database.Photo) bool) []database.Photo {
	var photos []database.Photo
	for _, p := range m.photos {
		if keep(p) {
			photos = append(photos, *p)
		}
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].ID > photos[j].ID })
	return photos
}

// List returns photos newest first
func (m *MockPhotoWriter) List(ctx context.Context, limit, offset int) ([]database.Photo, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	photos := m.sorted(func(*database.Photo) bool { return true })
	if offset >= len(photos) {
		return nil, nil
	}
	photos = photos[offset:]
	if limit > 0 && limit < len(photos) {
		photos = photos[:limit]
	}
	return photos, nil
}

// ListBySession returns the photos of a session, newest first
func (m *MockPhotoWriter) ListBySession(ctx context.Context, sessionID string) ([]database.Photo, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sorted(func(p *database.Photo) bool { return p.SessionID == sessionID }), nil
}

// Count returns the number of photos
func (m *MockPhotoWriter) Count(ctx context.Context) (int, error) {
	if m.ListError != nil {
		return 0, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.photos), nil
}

// Create inserts a photo
func (m *MockPhotoWriter) Create(ctx context.Context, photo *database.Photo) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	photo.ID = m.nextID
	photo.CreatedAt = time.Now()
	m.nextID++
	cp := *photo
	m.photos[photo.ID] = &cp
	return nil
}

// Delete removes a photo
func (m *MockPhotoWriter) Delete(ctx context.Context, id int64) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.photos, id)
	return nil
}

// MockIdentityWriter is a mock implementation of database.IdentityWriter
type MockIdentityWriter struct {
	mu         sync.RWMutex
	identities []database.Identity
	nextID     int64

	// Error injection
	GetError     error
	ListError    error
	ReplaceError error
}

// NewMockIdentityWriter creates a new mock identity writer
func NewMockIdentityWriter() *MockIdentityWriter {
	return &MockIdentityWriter{nextID: 1}
}

// Get retrieves an identity by ID
func (m *MockIdentityWriter) Get(ctx context.Context, id int64) (*database.Identity, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, i := range m.identities {
		if i.ID == id {
			return &i, nil
		}
	}
	return nil, nil
}

// List returns identities ordered by ID
func (m *MockIdentityWriter) List(ctx context.Context, limit, offset int) ([]database.Identity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if offset >= len(m.identities) {
		return nil, nil
	}
	out := slices.Clone(m.identities[offset:])
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// ListByPhoto returns the identities of a photo
func (m *MockIdentityWriter) ListByPhoto(ctx context.Context, photoID int64) ([]database.Identity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Identity
	for _, i := range m.identities {
		if i.PhotoID == photoID {
			out = append(out, i)
		}
	}
	return out, nil
}

// Replace swaps the identities of a photo
func (m *MockIdentityWriter) Replace(ctx context.Context, photoID int64, identities []database.Identity) ([]database.Identity, error) {
	if m.ReplaceError != nil {
		return nil, m.ReplaceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities = slices.DeleteFunc(m.identities, func(i database.Identity) bool { return i.PhotoID == photoID })
	stored := make([]database.Identity, 0, len(identities))
	for _, i := range identities {
		i.ID = m.nextID
		i.PhotoID = photoID
		i.CreatedAt = time.Now()
		m.nextID++
		m.identities = append(m.identities, i)
		stored = append(stored, i)
	}
	return stored, nil
}

// MockPhenotypeWriter is a mock implementation of database.PhenotypeWriter
// with brute-force similarity search.
type MockPhenotypeWriter struct {
	mu         sync.RWMutex
	phenotypes map[int64][]float32

	// Error injection
	SaveError        error
	FindSimilarError error
}

// NewMockPhenotypeWriter creates a new mock phenotype writer
func NewMockPhenotypeWriter() *MockPhenotypeWriter {
	return &MockPhenotypeWriter{phenotypes: make(map[int64][]float32)}
}

// Get retrieves the phenotype of a photo
func (m *MockPhenotypeWriter) Get(ctx context.Context, photoID int64) (*database.StoredPhenotype, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vec, ok := m.phenotypes[photoID]
	if !ok {
		return nil, nil
	}
	return &database.StoredPhenotype{PhotoID: photoID, Phenotype: slices.Clone(vec)}, nil
}

// Save stores the phenotype of a photo
func (m *MockPhenotypeWriter) Save(ctx context.Context, photoID int64, phenotype []float32) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phenotypes[photoID] = slices.Clone(phenotype)
	return nil
}

// Delete removes the phenotype of a photo
func (m *MockPhenotypeWriter) Delete(ctx context.Context, photoID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.phenotypes, photoID)
	return nil
}

// FindSimilar returns the closest phenotypes by cosine distance, ties by photo ID
func (m *MockPhenotypeWriter) FindSimilar(ctx context.Context, phenotype []float32, limit int) ([]database.StoredPhenotype, []float64, error) {
	if m.FindSimilarError != nil {
		return nil, nil, m.FindSimilarError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		p database.StoredPhenotype
		d float64
	}
	var all []scored
	for id, vec := range m.phenotypes {
		all = append(all, scored{database.StoredPhenotype{PhotoID: id, Phenotype: vec}, database.CosineDistance(phenotype, vec)})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].d != all[j].d {
			return all[i].d < all[j].d
		}
		return all[i].p.PhotoID < all[j].p.PhotoID
	})
	if limit < len(all) {
		all = all[:limit]
	}

	results := make([]database.StoredPhenotype, len(all))
	distances := make([]float64, len(all))
	for i, s := range all {
		results[i] = s.p
		distances[i] = s.d
	}
	return results, distances, nil
}
