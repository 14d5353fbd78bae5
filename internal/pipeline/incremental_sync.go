package pipeline

import (
	"context"
	"path/filepath"

	"cpp2puml/internal/analysis"
	"cpp2puml/internal/crawler"
	"cpp2puml/internal/extractor"

	"github.com/sirupsen/logrus"
)

// IncrementalSync keeps the parsed files of one conversion and re-parses
// only what changed, for use by watch mode.
type IncrementalSync struct {
	converter *Converter
	crawler   *crawler.Crawler
	opts      Options
	models    map[string]*extractor.FileModel
}

func NewIncrementalSync(conv *Converter, cr *crawler.Crawler, opts Options) *IncrementalSync {
	return &IncrementalSync{
		converter: conv,
		crawler:   cr,
		opts:      opts,
		models:    make(map[string]*extractor.FileModel),
	}
}

// Run performs a full conversion and primes the cache. The output policy of
// opts applies to this first run only; later refreshes overwrite the file
// they produced.
func (s *IncrementalSync) Run(ctx context.Context) (*Result, error) {
	if err := CheckOutput(s.opts.output(), s.opts.Force); err != nil {
		return nil, err
	}
	s.models = make(map[string]*extractor.FileModel)
	return s.sync(ctx, nil)
}

// Refresh re-parses the changed paths plus any newly discovered file, drops
// files that disappeared, and rewrites the diagram.
func (s *IncrementalSync) Refresh(ctx context.Context, changed []string) (*Result, error) {
	dirty := make(map[string]bool, len(changed))
	for _, p := range changed {
		dirty[filepath.Clean(p)] = true
	}
	return s.sync(ctx, dirty)
}

// Cached reports how many parsed files are held.
func (s *IncrementalSync) Cached() int {
	return len(s.models)
}

func (s *IncrementalSync) sync(ctx context.Context, dirty map[string]bool) (*Result, error) {
	paths, err := s.crawler.Discover(s.opts.Inputs)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(paths))
	var stale []string
	for _, p := range paths {
		present[p] = true
		if _, ok := s.models[p]; !ok || dirty == nil || dirty[p] || dirty[mustAbs(p)] {
			stale = append(stale, p)
		}
	}
	for p := range s.models {
		if !present[p] {
			delete(s.models, p)
		}
	}

	parsed, err := s.crawler.ScanFiles(ctx, stale)
	if err != nil {
		return nil, err
	}
	for i, p := range stale {
		s.models[p] = parsed[i]
	}

	models := make([]*extractor.FileModel, 0, len(paths))
	for _, p := range paths {
		models = append(models, s.models[p])
	}

	s.converter.logger.WithField("reparsed", len(stale)).Debug("sync")
	g := s.converter.indexer.Link(models)

	if len(dirty) > 0 {
		changed := make([]string, 0, len(dirty))
		for p := range dirty {
			changed = append(changed, p)
		}
		report := analysis.NewAnalyzer(g).AnalyzeImpact(changed)
		s.converter.logger.WithFields(logrus.Fields{
			"direct":   len(report.DirectlyAffected),
			"indirect": len(report.IndirectlyAffected),
		}).Info("classes affected by change")
	}

	return s.converter.emit(ctx, g, models, s.opts)
}

func mustAbs(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
