package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/searchworks/partfuse/internal/encode"
	fuseerrors "github.com/searchworks/partfuse/internal/errors"
	"github.com/searchworks/partfuse/internal/search"
)

// Snapshot file names inside the store directory.
const (
	SparseIndexName = "sparse.bleve"
	VectorIndexName = "vectors.hnsw"
	CatalogName     = "catalog.db"
	lockFileName    = ".lock"
)

// EmbeddedBackend bundles the sparse index, the vector index, and the
// product catalog behind the Backend interface, loaded from one snapshot
// directory. A shared flock guards the directory against a concurrent
// reindex writing under a live reader.
type EmbeddedBackend struct {
	mu      sync.RWMutex
	sparse  *BleveSparseIndex
	vectors *HNSWStore // nil when the snapshot has no dense index
	catalog *SQLiteCatalog
	lock    *flock.Flock
	dir     string
	dims    int
	closed  bool
}

var (
	_ Backend        = (*EmbeddedBackend)(nil)
	_ search.Catalog = (*EmbeddedBackend)(nil)
)

// Open loads the snapshot at dir, creating an empty one when the directory
// does not exist yet. dims is the embedding dimension used when the dense
// index must be created fresh; an existing dense index keeps its own.
func Open(dir string, dims int) (*EmbeddedBackend, error) {
	if dir == "" {
		return nil, fuseerrors.New(fuseerrors.ErrCodeSnapshotNotFound, "store directory is required", nil)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fuseerrors.New(fuseerrors.ErrCodeSnapshotNotFound,
			fmt.Sprintf("cannot create store directory %s", dir), err)
	}

	// Shared lock: many readers, writers take exclusive
	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryRLock()
	if err != nil {
		return nil, fuseerrors.New(fuseerrors.ErrCodeSnapshotLocked, "cannot acquire snapshot lock", err)
	}
	if !locked {
		return nil, fuseerrors.New(fuseerrors.ErrCodeSnapshotLocked,
			fmt.Sprintf("snapshot at %s is locked by a writer", dir), nil).
			WithSuggestion("wait for the running reindex to finish")
	}

	b := &EmbeddedBackend{lock: lock, dir: dir, dims: dims}
	if err := b.load(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	return b, nil
}

// load opens the three components from the snapshot directory.
// Caller holds b.mu or has exclusive ownership.
func (b *EmbeddedBackend) load() error {
	sparse, err := NewBleveSparseIndex(filepath.Join(b.dir, SparseIndexName), DefaultSparseConfig())
	if err != nil {
		return fuseerrors.New(fuseerrors.ErrCodeCorruptIndex, "cannot open sparse index", err)
	}

	catalog, err := OpenCatalog(filepath.Join(b.dir, CatalogName))
	if err != nil {
		_ = sparse.Close()
		return err
	}

	vectorPath := filepath.Join(b.dir, VectorIndexName)
	var vectors *HNSWStore
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		// Snapshot dimensions win over the configured ones
		storedDims, dimErr := ReadHNSWStoreDimensions(vectorPath)
		if dimErr != nil {
			_ = sparse.Close()
			_ = catalog.Close()
			return fuseerrors.New(fuseerrors.ErrCodeCorruptIndex, "cannot read vector index metadata", dimErr)
		}

		vectors, err = NewHNSWStore(DefaultVectorConfig(storedDims))
		if err == nil {
			err = vectors.Load(vectorPath)
		}
		if err != nil {
			_ = sparse.Close()
			_ = catalog.Close()
			return fuseerrors.New(fuseerrors.ErrCodeCorruptIndex, "cannot load vector index", err)
		}
	} else if b.dims > 0 {
		vectors, err = NewHNSWStore(DefaultVectorConfig(b.dims))
		if err != nil {
			_ = sparse.Close()
			_ = catalog.Close()
			return fuseerrors.New(fuseerrors.ErrCodeConfigInvalid, "cannot create vector index", err)
		}
	}

	b.sparse = sparse
	b.catalog = catalog
	b.vectors = vectors
	return nil
}

// DenseSearch finds the limit nearest documents to the embedding.
func (b *EmbeddedBackend) DenseSearch(ctx context.Context, embedding []float32, limit int) ([]Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}
	if b.vectors == nil {
		return nil, fuseerrors.New(fuseerrors.ErrCodeBackendUnavailable, "snapshot has no dense index", nil)
	}

	return b.vectors.Search(ctx, embedding, limit)
}

// SparseSearch runs lexical BM25 retrieval over the query terms.
func (b *EmbeddedBackend) SparseSearch(ctx context.Context, terms []string, limit int) ([]Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}

	return b.sparse.SparseSearch(ctx, terms, limit)
}

// NeuralSparseSearch retrieves by weighted-term disjunction.
func (b *EmbeddedBackend) NeuralSparseSearch(ctx context.Context, terms []encode.Term, limit int) ([]Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}

	return b.sparse.NeuralSparseSearch(ctx, terms, limit)
}

// Products implements search.Catalog for result enrichment.
func (b *EmbeddedBackend) Products(ctx context.Context, ids []string) (map[string]search.Product, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}

	return b.catalog.Products(ctx, ids)
}

// IndexProducts adds products to all three components. Documents without an
// embedding skip the dense index.
func (b *EmbeddedBackend) IndexProducts(ctx context.Context, docs []ProductDoc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("backend is closed")
	}

	if err := b.sparse.Index(ctx, docs); err != nil {
		return err
	}
	if err := b.catalog.Upsert(ctx, docs); err != nil {
		return err
	}

	if b.vectors != nil {
		var ids []string
		var vectors [][]float32
		for _, doc := range docs {
			if len(doc.Embedding) > 0 {
				ids = append(ids, doc.ID)
				vectors = append(vectors, doc.Embedding)
			}
		}
		if len(ids) > 0 {
			if err := b.vectors.Add(ctx, ids, vectors); err != nil {
				return err
			}
		}
	}

	return nil
}

// DeleteProducts removes products from all components.
func (b *EmbeddedBackend) DeleteProducts(ctx context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("backend is closed")
	}

	if err := b.sparse.Delete(ctx, ids); err != nil {
		return err
	}
	if err := b.catalog.Delete(ctx, ids); err != nil {
		return err
	}
	if b.vectors != nil {
		if err := b.vectors.Delete(ctx, ids); err != nil {
			return err
		}
	}
	return nil
}

// Save persists the dense index. The sparse index and catalog persist on
// write.
func (b *EmbeddedBackend) Save() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("backend is closed")
	}
	if b.vectors == nil {
		return nil
	}

	return b.vectors.Save(filepath.Join(b.dir, VectorIndexName))
}

// Reload closes and reopens the snapshot components, picking up an
// out-of-band reindex.
func (b *EmbeddedBackend) Reload() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("backend is closed")
	}

	b.closeComponents()

	if err := b.load(); err != nil {
		return err
	}

	slog.Info("snapshot_reloaded",
		slog.String("dir", b.dir),
		slog.Int("products", b.sparse.DocCount()))
	return nil
}

// Stats describes the loaded snapshot.
type Stats struct {
	Products int
	Vectors  int
	Dims     int
	HasDense bool
}

// Stats returns snapshot statistics.
func (b *EmbeddedBackend) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return Stats{}
	}

	s := Stats{Products: b.sparse.DocCount()}
	if b.vectors != nil {
		s.HasDense = true
		s.Vectors = b.vectors.Count()
		s.Dims = b.vectors.Dimensions()
	}
	return s
}

// Catalog exposes the catalog for sharing its database connection.
func (b *EmbeddedBackend) Catalog() *SQLiteCatalog {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.catalog
}

// Dir returns the snapshot directory.
func (b *EmbeddedBackend) Dir() string {
	return b.dir
}

// closeComponents closes the indexes and catalog. Caller holds b.mu.
func (b *EmbeddedBackend) closeComponents() {
	if b.sparse != nil {
		_ = b.sparse.Close()
	}
	if b.vectors != nil {
		_ = b.vectors.Close()
	}
	if b.catalog != nil {
		_ = b.catalog.Close()
	}
}

// Close releases all components and the snapshot lock.
func (b *EmbeddedBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	b.closeComponents()
	return b.lock.Unlock()
}
