package persistence

import (
	"fmt"
	"sort"
	"sync"

	"github.com/temporalab/modelconf/document"
)

// Compile-time interface check
var _ DocumentRepository = (*MemoryRepository)(nil)

// MemoryRepository holds configuration documents in memory. It backs tests
// and programmatic embedding where no conf directory exists. Safe for
// concurrent use.
type MemoryRepository struct {
	mu       sync.RWMutex
	base     *document.Document
	variants map[string]*document.Document
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		variants: make(map[string]*document.Document),
	}
}

// RegisterBase sets the base document.
func (r *MemoryRepository) RegisterBase(doc *document.Document) error {
	if doc == nil {
		return ErrNilDocument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.base = doc
	return nil
}

// RegisterVariant adds or replaces a variant document.
func (r *MemoryRepository) RegisterVariant(name string, doc *document.Document) error {
	if err := validateVariantName(name); err != nil {
		return err
	}
	if doc == nil {
		return ErrNilDocument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[name] = doc
	return nil
}

// LoadBase loads the base document shared by every variant.
func (r *MemoryRepository) LoadBase() (*document.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.base == nil {
		return nil, ErrBaseNotFound
	}
	return r.base, nil
}

// LoadVariant loads a model-variant document by name.
func (r *MemoryRepository) LoadVariant(name string) (*document.Document, error) {
	if err := validateVariantName(name); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.variants[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, name)
	}
	return doc, nil
}

// ListVariants returns all registered variant names, sorted.
func (r *MemoryRepository) ListVariants() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.variants))
	for name := range r.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Path reports a synthetic memory source label.
func (r *MemoryRepository) Path(name string) string {
	if name == "" {
		return "<memory:base>"
	}
	return fmt.Sprintf("<memory:%s>", name)
}
