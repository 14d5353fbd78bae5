package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"cpp2puml/internal/crawler"
	"cpp2puml/internal/extractor"
	"cpp2puml/internal/graph"

	"github.com/sirupsen/logrus"
)

// Indexer turns a set of inputs into a linked class graph.
type Indexer struct {
	crawler *crawler.Crawler
	logger  logrus.FieldLogger
}

// NewIndexer creates a new indexer.
func NewIndexer(c *crawler.Crawler, logger logrus.FieldLogger) *Indexer {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Indexer{
		crawler: c,
		logger:  logger,
	}
}

// BuildGraph parses every input and links the classes of all files together.
// The parsed files are returned alongside the graph, in sorted path order.
func (i *Indexer) BuildGraph(ctx context.Context, inputs []string) (*graph.Graph, []*extractor.FileModel, error) {
	var models []*extractor.FileModel
	err := i.crawler.ScanProject(ctx, inputs, func(m *extractor.FileModel) {
		models = append(models, m)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scan failed: %w", err)
	}
	return i.Link(models), models, nil
}

// Link builds a graph from already parsed files. Classes redefined in a later
// file are dropped with a warning.
func (i *Indexer) Link(models []*extractor.FileModel) *graph.Graph {
	g := graph.NewGraph()
	for _, m := range models {
		for _, dup := range g.AddFile(m) {
			i.logger.WithFields(logrus.Fields{
				"file":  dup.File,
				"line":  dup.StartLine,
				"class": dup.QualifiedName(),
			}).Warn("duplicate class definition ignored")
		}
	}

	// Resolve relationships after all classes are known
	g.LinkRelations()

	i.logger.WithFields(logrus.Fields{
		"classes":    len(g.Nodes),
		"edges":      len(g.Edges),
		"unresolved": len(g.Unresolved),
	}).Debug("graph linked")
	return g
}

// Snapshot is the JSON form of a parsed and linked model.
type Snapshot struct {
	Files      []*extractor.FileModel `json:"files"`
	Edges      []graph.Edge           `json:"edges"`
	Unresolved []graph.Unresolved     `json:"unresolved,omitempty"`
}

// SaveSnapshot writes the parsed files and the resolved edges as JSON.
func (i *Indexer) SaveSnapshot(path string, models []*extractor.FileModel, g *graph.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	defer f.Close()

	snap := Snapshot{Files: models, Edges: g.Edges, Unresolved: g.Unresolved}
	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// LoadSnapshot reads a model written by SaveSnapshot and relinks it.
func (i *Indexer) LoadSnapshot(path string) (*graph.Graph, []*extractor.FileModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer f.Close()

	var snap Snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, nil, fmt.Errorf("failed to decode model: %w", err)
	}

	// Name indices are not serialized; linking rebuilds them.
	return i.Link(snap.Files), snap.Files, nil
}
