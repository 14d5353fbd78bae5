package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"cpp2puml/internal/extractor"
	"cpp2puml/internal/generator"
	"cpp2puml/internal/graph"
	"cpp2puml/internal/index"
	"cpp2puml/internal/retrieval"
	"cpp2puml/internal/storage"

	"github.com/sirupsen/logrus"
)

var (
	ErrOutputExists = errors.New("output file already exists")
	ErrOutputIsDir  = errors.New("output path is a directory")
)

const (
	// Stdout as an output path writes the diagram to standard output.
	Stdout        = "-"
	DefaultOutput = "out.puml"
)

type Options struct {
	Inputs []string
	Output string
	Force  bool
	// DumpModel, when set, also writes the parsed model as JSON.
	DumpModel string
	Render    generator.Options
	// Focus limits the diagram to the named classes and the classes within
	// FocusDepth relationships of them.
	Focus      []string
	FocusDepth int
	// FocusKinds names the relationship kinds followed and drawn around
	// Focus. Empty follows every kind.
	FocusKinds []string
}

func (o Options) output() string {
	if o.Output == "" {
		return DefaultOutput
	}
	return o.Output
}

type Result struct {
	Files      int
	Classes    int
	Edges      int
	Unresolved int
	Output     string
}

// Converter runs read, parse, link, render and write.
type Converter struct {
	indexer *index.Indexer
	store   storage.CatalogStore
	stdout  io.Writer
	logger  logrus.FieldLogger
}

// NewConverter creates a converter. store may be nil; when set every
// converted graph is also saved to it.
func NewConverter(idx *index.Indexer, store storage.CatalogStore, stdout io.Writer, logger logrus.FieldLogger) *Converter {
	if stdout == nil {
		stdout = os.Stdout
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Converter{indexer: idx, store: store, stdout: stdout, logger: logger}
}

// CheckOutput applies the output policy: a directory is never a valid target
// and an existing file is only replaced with force.
func CheckOutput(path string, force bool) error {
	if path == Stdout {
		return nil
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("stat output %s: %w", path, err)
	case info.IsDir():
		return fmt.Errorf("%w: %s", ErrOutputIsDir, path)
	case !force:
		return fmt.Errorf("%w: %s (use --force to overwrite)", ErrOutputExists, path)
	}
	return nil
}

// Convert parses opts.Inputs and writes the diagram. The output target is
// checked before any input is read.
func (c *Converter) Convert(ctx context.Context, opts Options) (*Result, error) {
	if err := CheckOutput(opts.output(), opts.Force); err != nil {
		return nil, err
	}
	if _, err := retrieval.ParseKinds(opts.FocusKinds); err != nil {
		return nil, err
	}

	g, models, err := c.indexer.BuildGraph(ctx, opts.Inputs)
	if err != nil {
		return nil, err
	}
	return c.emit(ctx, g, models, opts)
}

// RenderGraph writes the diagram of an already built graph.
func (c *Converter) RenderGraph(ctx context.Context, g *graph.Graph, opts Options) (*Result, error) {
	if err := CheckOutput(opts.output(), opts.Force); err != nil {
		return nil, err
	}
	view, err := c.view(g, opts)
	if err != nil {
		return nil, err
	}
	if err := c.write(opts.output(), generator.NewPlantUMLGenerator(opts.Render).Generate(view)); err != nil {
		return nil, err
	}
	return c.report(g, 0, opts), nil
}

func (c *Converter) emit(ctx context.Context, g *graph.Graph, models []*extractor.FileModel, opts Options) (*Result, error) {
	view, err := c.view(g, opts)
	if err != nil {
		return nil, err
	}
	text := generator.NewPlantUMLGenerator(opts.Render).Generate(view)
	if err := c.write(opts.output(), text); err != nil {
		return nil, err
	}

	if opts.DumpModel != "" {
		if err := c.indexer.SaveSnapshot(opts.DumpModel, models, g); err != nil {
			return nil, err
		}
	}

	if c.store != nil {
		if err := c.store.SaveGraph(ctx, g); err != nil {
			return nil, fmt.Errorf("failed to save graph: %w", err)
		}
	}

	return c.report(g, len(models), opts), nil
}

// view is the part of g that gets rendered.
func (c *Converter) view(g *graph.Graph, opts Options) (*graph.Graph, error) {
	if len(opts.Focus) == 0 {
		return g, nil
	}
	cfg := retrieval.DefaultConfig()
	cfg.MaxHops = opts.FocusDepth
	kinds, err := retrieval.ParseKinds(opts.FocusKinds)
	if err != nil {
		return nil, err
	}
	cfg.AllowedKinds = kinds

	sub := retrieval.Focus(g, opts.Focus, cfg)
	for _, name := range sub.Missing {
		c.logger.WithField("class", name).Warn("focus class not found")
	}
	for _, key := range sub.Graph.Order {
		c.logger.WithFields(logrus.Fields{
			"class": key,
			"hops":  sub.Depth[key],
		}).Debug("focus includes")
	}
	c.logger.WithFields(logrus.Fields{
		"seeds":   len(sub.SeedIDs),
		"classes": len(sub.Graph.Nodes),
	}).Debug("focus applied")
	return sub.Graph, nil
}

func (c *Converter) write(path, text string) error {
	if path == Stdout {
		_, err := io.WriteString(c.stdout, text)
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func (c *Converter) report(g *graph.Graph, files int, opts Options) *Result {
	stats := g.Stats()
	res := &Result{
		Files:      files,
		Classes:    stats.Classes,
		Edges:      stats.Edges,
		Unresolved: len(g.Unresolved),
		Output:     opts.output(),
	}
	fields := logrus.Fields{
		"classes": res.Classes,
		"edges":   res.Edges,
		"output":  res.Output,
	}
	if files > 0 {
		fields["files"] = files
	}
	for reason, n := range stats.Unresolved {
		fields["unresolved_"+string(reason)] = n
	}
	c.logger.WithFields(fields).Info("diagram written")

	kinds := logrus.Fields{}
	for kind, n := range stats.ByKind {
		kinds[string(kind)] = n
	}
	c.logger.WithFields(kinds).Debug("edge kinds")
	return res
}
