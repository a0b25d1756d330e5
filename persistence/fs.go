package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/temporalab/modelconf/document"
)

// Compile-time interface check
var _ DocumentRepository = (*FSRepository)(nil)

const (
	defaultBaseFile = "config.yaml"
	defaultModelDir = "model"
)

// FSRepository loads configuration documents from a conf directory on disk.
// The expected layout is a base file at the directory root and one document
// per variant under the model subdirectory:
//
//	conf/
//	  config.yaml
//	  model/
//	    deepar.yaml
//	    tempflow.yaml
//
// Loaded documents are cached; documents are immutable, so cached values are
// shared safely. The repository is safe for concurrent use: a cold cache may
// read the same file twice under contention, with identical results.
type FSRepository struct {
	confDir  string
	baseFile string
	modelDir string

	mu    sync.RWMutex
	cache map[string]*document.Document
}

// FSOption configures an FSRepository.
type FSOption func(*FSRepository)

// WithBaseFile overrides the base document filename.
func WithBaseFile(name string) FSOption {
	return func(r *FSRepository) {
		r.baseFile = name
	}
}

// WithModelDir overrides the variant subdirectory name.
func WithModelDir(name string) FSOption {
	return func(r *FSRepository) {
		r.modelDir = name
	}
}

// NewFSRepository creates a repository rooted at confDir.
func NewFSRepository(confDir string, opts ...FSOption) *FSRepository {
	r := &FSRepository{
		confDir:  confDir,
		baseFile: defaultBaseFile,
		modelDir: defaultModelDir,
		cache:    make(map[string]*document.Document),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// cached returns the cache entry for a name ("" addresses the base document).
func (r *FSRepository) cached(name string) (*document.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.cache[name]
	return doc, ok
}

func (r *FSRepository) storeCached(name string, doc *document.Document) {
	r.mu.Lock()
	r.cache[name] = doc
	r.mu.Unlock()
}

// LoadBase loads the base document shared by every variant.
func (r *FSRepository) LoadBase() (*document.Document, error) {
	if cached, ok := r.cached(""); ok {
		return cached, nil
	}

	path := filepath.Join(r.confDir, r.baseFile)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBaseNotFound, path)
	}

	doc, err := document.Load(path)
	if err != nil {
		return nil, err
	}

	r.storeCached("", doc)
	return doc, nil
}

// LoadVariant loads a model-variant document by name. Lookup tries
// model/<name>.yaml and model/<name>.yml first, then falls back to scanning
// the model directory for a document whose name field matches.
func (r *FSRepository) LoadVariant(name string) (*document.Document, error) {
	if err := validateVariantName(name); err != nil {
		return nil, err
	}

	if cached, ok := r.cached(name); ok {
		return cached, nil
	}

	path, err := r.resolveVariantPath(name)
	if err != nil {
		return nil, err
	}

	doc, err := document.Load(path)
	if err != nil {
		return nil, err
	}

	r.storeCached(name, doc)
	return doc, nil
}

// resolveVariantPath finds the file holding a variant document.
func (r *FSRepository) resolveVariantPath(name string) (string, error) {
	dir := filepath.Join(r.confDir, r.modelDir)

	// Filename match first.
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	// Fall back to matching the name field inside each document.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrVariantNotFound, name)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		doc, err := document.Load(path)
		if err != nil {
			continue
		}
		if doc.GetString("name") == name {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrVariantNotFound, name)
}

// ListVariants returns the variant names in the model directory, sorted.
// The name is the file stem; files that do not parse are skipped.
func (r *FSRepository) ListVariants() ([]string, error) {
	dir := filepath.Join(r.confDir, r.modelDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read model directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if validateVariantName(stem) != nil {
			continue
		}
		names = append(names, stem)
	}
	sort.Strings(names)
	return names, nil
}

// Path reports the file a document is loaded from.
func (r *FSRepository) Path(name string) string {
	if name == "" {
		return filepath.Join(r.confDir, r.baseFile)
	}
	if path, err := r.resolveVariantPath(name); err == nil {
		return path
	}
	return filepath.Join(r.confDir, r.modelDir, name+".yaml")
}

// Invalidate drops all cached documents.
func (r *FSRepository) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*document.Document)
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// validateVariantName rejects names that cannot be path segments: variant
// names appear in dotted paths and run directories.
func validateVariantName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidVariantName)
	}
	if strings.ContainsAny(name, ". /\\") {
		return fmt.Errorf("%w: %q", ErrInvalidVariantName, name)
	}
	return nil
}
