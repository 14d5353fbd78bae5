package storage

import (
	"context"

	"cpp2puml/internal/extractor"
	"cpp2puml/internal/graph"
)

// CatalogStore persists parsed class graphs.
type CatalogStore interface {
	// SaveGraph replaces the catalog with the classes and edges of g.
	SaveGraph(ctx context.Context, g *graph.Graph) error

	// LoadGraph restores the classes in their original order together with
	// the stored edges.
	LoadGraph(ctx context.Context) (*graph.Graph, error)

	// FindClassesByFile retrieves all classes defined in a file.
	FindClassesByFile(ctx context.Context, path string) ([]*extractor.ClassEntity, error)

	Close() error
}
