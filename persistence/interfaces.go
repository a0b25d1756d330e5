// Package persistence provides repository access to configuration documents.
//
// This package implements the repository pattern to decouple composition from
// storage layout. A repository serves the base document and the model-variant
// documents of one configuration tree; implementations load from a conf
// directory on disk or from memory.
package persistence

import "github.com/temporalab/modelconf/document"

// DocumentRepository provides abstract access to a configuration tree.
type DocumentRepository interface {
	// LoadBase loads the base document shared by every variant.
	LoadBase() (*document.Document, error)

	// LoadVariant loads a model-variant document by name.
	LoadVariant(name string) (*document.Document, error)

	// ListVariants returns all available variant names, sorted.
	ListVariants() ([]string, error)

	// Path reports where a document comes from, for diagnostics. The name
	// "" addresses the base document.
	Path(name string) string
}
