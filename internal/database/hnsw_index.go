package database

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/coder/hnsw"
)

// ErrIndexEmpty is returned when searching an index with no graph.
var ErrIndexEmpty = errors.New("index not initialized")

// PhenotypeIndex is an in-memory HNSW index over photo phenotypes keyed by
// photo ID. Phenotypes of different widths live in separate graphs, so a
// query only meets phenotypes of its own width.
type PhenotypeIndex struct {
	graphs map[int]*hnsw.Graph[int64]
	live   map[int64]*StoredPhenotype
	mu     sync.RWMutex
	path   string
}

// NewPhenotypeIndex creates a new empty index.
func NewPhenotypeIndex() *PhenotypeIndex {
	return &PhenotypeIndex{
		graphs: make(map[int]*hnsw.Graph[int64]),
		live:   make(map[int64]*StoredPhenotype),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	return g
}

// graph returns the graph for phenotypes of the given width, creating it.
func (h *PhenotypeIndex) graph(dim int) *hnsw.Graph[int64] {
	g, ok := h.graphs[dim]
	if !ok {
		g = newGraph()
		h.graphs[dim] = g
	}
	return g
}

// remove drops a photo from its graph. Must be called with the lock held.
func (h *PhenotypeIndex) remove(photoID int64) {
	old, ok := h.live[photoID]
	if !ok {
		return
	}
	delete(h.live, photoID)
	dim := len(old.Phenotype)
	if g, ok := h.graphs[dim]; ok {
		g.Delete(photoID)
		if g.Len() == 0 {
			delete(h.graphs, dim)
		}
	}
}

// Build replaces the index contents with the given phenotypes.
func (h *PhenotypeIndex) Build(phenotypes []StoredPhenotype) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.graphs = make(map[int]*hnsw.Graph[int64])
	h.live = make(map[int64]*StoredPhenotype, len(phenotypes))
	for i := range phenotypes {
		p := &phenotypes[i]
		if len(p.Phenotype) == 0 {
			continue
		}
		h.remove(p.PhotoID)
		h.graph(len(p.Phenotype)).Add(hnsw.MakeNode(p.PhotoID, p.Phenotype))
		h.live[p.PhotoID] = p
	}
}

// Add inserts or replaces the phenotype of a photo.
func (h *PhenotypeIndex) Add(p StoredPhenotype) {
	if len(p.Phenotype) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.remove(p.PhotoID)
	h.graph(len(p.Phenotype)).Add(hnsw.MakeNode(p.PhotoID, p.Phenotype))
	h.live[p.PhotoID] = &p
}

// Delete removes a photo from the index.
func (h *PhenotypeIndex) Delete(photoID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(photoID)
}

// Search returns up to k photos nearest to the query, nearest first, with
// their cosine distances. Only phenotypes as wide as the query match.
func (h *PhenotypeIndex) Search(query []float32, k int) ([]StoredPhenotype, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.graphs) == 0 {
		return nil, nil, ErrIndexEmpty
	}
	g, ok := h.graphs[len(query)]
	if k <= 0 || !ok {
		return nil, nil, nil
	}

	neighbors := g.Search(query, k*HNSWSearchMultiplier)
	results := make([]StoredPhenotype, 0, k)
	distances := make([]float64, 0, k)
	for _, n := range neighbors {
		p, ok := h.live[n.Key]
		if !ok {
			continue
		}
		results = append(results, *p)
		distances = append(distances, CosineDistance(query, n.Value))
		if len(results) == k {
			break
		}
	}
	return results, distances, nil
}

// Get returns the indexed phenotype of a photo.
func (h *PhenotypeIndex) Get(photoID int64) *StoredPhenotype {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.live[photoID]
}

// Count returns the number of indexed photos.
func (h *PhenotypeIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.live)
}

// Widths returns the number of distinct phenotype widths in the index.
func (h *PhenotypeIndex) Widths() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.graphs)
}

// IsEmpty returns true if the index has no graph data loaded.
func (h *PhenotypeIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.graphs) == 0
}

// SetPath sets the path for saving the index.
func (h *PhenotypeIndex) SetPath(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = path
}

func graphPath(path string, dim int) string {
	return path + "." + strconv.Itoa(dim)
}

// graphFiles lists the per-width graph files written next to path.
func graphFiles(path string) []string {
	matches, _ := filepath.Glob(path + ".*")
	var files []string
	for _, m := range matches {
		if _, err := strconv.Atoi(strings.TrimPrefix(m, path+".")); err == nil {
			files = append(files, m)
		}
	}
	return files
}

// Save writes one graph file per phenotype width (path.<width>) and the
// phenotypes to path.phenotypes. An empty index removes the files.
func (h *PhenotypeIndex) Save() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.path == "" {
		return nil
	}
	for _, file := range graphFiles(h.path) {
		_ = os.Remove(file)
	}
	if len(h.graphs) == 0 {
		_ = os.Remove(h.path + ".phenotypes")
		return nil
	}

	for dim, g := range h.graphs {
		f, err := os.Create(graphPath(h.path, dim)) //nolint:gosec // path is from trusted config
		if err != nil {
			return fmt.Errorf("failed to create HNSW index file: %w", err)
		}
		if err := g.Export(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("exporting HNSW graph: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing HNSW index file: %w", err)
		}
	}

	phenotypes := make([]StoredPhenotype, 0, len(h.live))
	for _, p := range h.live {
		phenotypes = append(phenotypes, *p)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(phenotypes); err != nil {
		return fmt.Errorf("failed to encode phenotypes: %w", err)
	}
	if err := os.WriteFile(h.path+".phenotypes", buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write phenotypes file: %w", err)
	}
	return nil
}

// Load reads an index written by Save. A missing index leaves the index
// empty and is not an error. A width whose graph file is missing is
// rebuilt from the stored phenotypes.
func (h *PhenotypeIndex) Load(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.path = path
	data, err := os.ReadFile(path + ".phenotypes") //nolint:gosec // path is from trusted config
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read phenotypes file: %w", err)
	}
	var phenotypes []StoredPhenotype
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&phenotypes); err != nil {
		return fmt.Errorf("failed to decode phenotypes: %w", err)
	}

	byWidth := make(map[int][]*StoredPhenotype)
	for i := range phenotypes {
		p := &phenotypes[i]
		byWidth[len(p.Phenotype)] = append(byWidth[len(p.Phenotype)], p)
	}

	graphs := make(map[int]*hnsw.Graph[int64], len(byWidth))
	for dim, members := range byWidth {
		if dim == 0 {
			continue
		}
		file := graphPath(path, dim)
		if _, err := os.Stat(file); err == nil {
			saved, err := hnsw.LoadSavedGraph[int64](file)
			if err != nil {
				return fmt.Errorf("failed to load HNSW index: %w", err)
			}
			saved.Graph.Distance = hnsw.CosineDistance
			graphs[dim] = saved.Graph
			continue
		}
		g := newGraph()
		for _, p := range members {
			g.Add(hnsw.MakeNode(p.PhotoID, p.Phenotype))
		}
		graphs[dim] = g
	}

	h.graphs = graphs
	h.live = make(map[int64]*StoredPhenotype, len(phenotypes))
	for i := range phenotypes {
		if len(phenotypes[i].Phenotype) > 0 {
			h.live[phenotypes[i].PhotoID] = &phenotypes[i]
		}
	}
	return nil
}
