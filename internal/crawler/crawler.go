package crawler

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"cpp2puml/internal/extractor"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SourceExtensions are the file suffixes picked up when walking a directory.
var SourceExtensions = []string{".h", ".hpp", ".hh", ".hxx", ".cpp", ".cc", ".cxx", ".ipp", ".inl"}

// Options tunes discovery and extraction.
type Options struct {
	// Workers bounds parallel extraction. Zero means GOMAXPROCS.
	Workers int
	// Excludes are glob patterns matched against base names and slash
	// separated paths relative to the walked directory.
	Excludes []string
}

// Crawler discovers C++ sources and extracts their models.
type Crawler struct {
	extractor *extractor.Extractor
	ignored   []string
	excludes  []string
	workers   int
	logger    logrus.FieldLogger
	// parsed holds the last model of each path with the digest of the bytes
	// it came from.
	parsed *cache.Cache
}

type parsedEntry struct {
	digest [sha256.Size]byte
	model  *extractor.FileModel
}

// NewCrawler creates a new crawler instance.
func NewCrawler(ext *extractor.Extractor, opts Options, logger logrus.FieldLogger) *Crawler {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Crawler{
		extractor: ext,
		ignored:   []string{".git", ".hg", ".svn", "node_modules"},
		excludes:  opts.Excludes,
		workers:   workers,
		logger:    logger,
		parsed:    cache.New(30*time.Minute, 10*time.Minute),
	}
}

// IsSource reports whether path has one of the SourceExtensions.
func IsSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SourceExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Discover expands the inputs into a sorted, de-duplicated list of files.
// Files named explicitly are kept whatever their extension; directories are
// walked for SourceExtensions. A missing input is ErrInputUnavailable.
func (c *Crawler) Discover(inputs []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", extractor.ErrInputUnavailable, input, err)
		}
		if !info.IsDir() {
			if !c.excluded(input, filepath.Base(input)) {
				add(input)
			}
			continue
		}

		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, relErr := filepath.Rel(input, path)
			if relErr != nil {
				rel = path
			}

			if d.IsDir() {
				if path == input {
					return nil
				}
				for _, ign := range c.ignored {
					if d.Name() == ign {
						return filepath.SkipDir
					}
				}
				if c.excluded(rel, d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}

			if !IsSource(path) || c.excluded(rel, d.Name()) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", input, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

func (c *Crawler) excluded(rel, name string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range c.excludes {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if strings.HasPrefix(rel, strings.TrimSuffix(pattern, "/")+"/") {
			return true
		}
	}
	return false
}

// ScanFiles extracts every path in parallel. Models are returned in the
// order of paths, so callers that pass a sorted list get deterministic
// results. The first failure cancels the remaining work.
func (c *Crawler) ScanFiles(ctx context.Context, paths []string) ([]*extractor.FileModel, error) {
	models := make([]*extractor.FileModel, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			model, err := c.extract(path)
			if err != nil {
				return err
			}
			models[i] = model
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return models, nil
}

// extract parses path unless its bytes match the last parse of that path.
func (c *Crawler) extract(path string) (*extractor.FileModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", extractor.ErrInputUnavailable, path, err)
	}
	digest := sha256.Sum256(raw)
	if v, ok := c.parsed.Get(path); ok {
		if entry := v.(parsedEntry); entry.digest == digest {
			c.logger.WithField("file", path).Debug("unchanged")
			return entry.model, nil
		}
	}

	model, err := c.extractor.ExtractFromSource(path, raw)
	if err != nil {
		return nil, err
	}
	c.parsed.Set(path, parsedEntry{digest: digest, model: model}, cache.DefaultExpiration)

	log := c.logger.WithFields(logrus.Fields{"file": path, "classes": len(model.Classes)})
	log.Debug("parsed")
	for _, d := range model.Diagnostics {
		log.WithField("line", d.Line).Debug(d.Message)
	}
	return model, nil
}

// ScanProject discovers the inputs and streams each parsed file to onModel
// in sorted path order.
func (c *Crawler) ScanProject(ctx context.Context, inputs []string, onModel func(*extractor.FileModel)) error {
	paths, err := c.Discover(inputs)
	if err != nil {
		return err
	}
	c.logger.WithField("files", len(paths)).Debug("discovered sources")

	models, err := c.ScanFiles(ctx, paths)
	if err != nil {
		return err
	}
	for _, m := range models {
		onModel(m)
	}
	return nil
}
