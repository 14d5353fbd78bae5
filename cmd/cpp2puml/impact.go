package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cpp2puml/internal/analysis"
	"cpp2puml/internal/crawler"
	"cpp2puml/internal/git"
	"cpp2puml/internal/graph"
	"cpp2puml/internal/index"
	"cpp2puml/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	sinceRef string
	changed  []string
)

var impactCmd = &cobra.Command{
	Use:   "impact [<source>...]",
	Short: "List the classes affected by changed files",
	Long: `impact parses the sources and prints the classes defined in the changed
files, followed by the classes that inherit from, hold or use them.
Changed files are given with --changed or taken from git diff --since.
With --db the classes are read from the SQLite catalog written by scan
instead of parsing sources.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		files := append([]string(nil), changed...)
		if sinceRef != "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			diff, err := git.ChangedFiles(cmd.Context(), wd, sinceRef)
			if err != nil {
				return err
			}
			for _, f := range diff {
				if crawler.IsSource(f.Path) {
					files = append(files, f.Path)
					logger.WithFields(logrus.Fields{
						"file":  f.Path,
						"lines": len(f.ChangedLines),
					}).Debug("changed")
				}
			}
		}
		if len(files) == 0 {
			logger.Warn("no changed C++ files")
			return nil
		}

		var report *analysis.ImpactReport
		if cmd.Flags().Changed("db") {
			store, err := openStore(cmd, true)
			if err != nil {
				return err
			}
			defer store.Close()
			if report, err = catalogImpact(cmd.Context(), store, files); err != nil {
				return err
			}
		} else {
			if len(args) == 0 {
				return fmt.Errorf("impact needs sources or --db")
			}
			_, cr, err := newConverter(cmd, nil)
			if err != nil {
				return err
			}
			g, _, err := index.NewIndexer(cr, logger).BuildGraph(cmd.Context(), args)
			if err != nil {
				return err
			}
			report = analysis.NewAnalyzer(g).AnalyzeImpact(files)
		}

		out := cmd.OutOrStdout()
		list := func(label string, nodes []*graph.Node) {
			for _, n := range nodes {
				fmt.Fprintf(out, "%s\t%s\t%s\n", label, n.Key, n.Class.File)
			}
		}
		list("direct", report.DirectlyAffected)
		list("indirect", report.IndirectlyAffected)
		return nil
	},
}

// catalogImpact looks up the classes of the changed files in the catalog.
// A file is matched as given, in absolute form and relative to the working
// directory, since the catalog keeps paths the way scan was given them.
func catalogImpact(ctx context.Context, store storage.CatalogStore, files []string) (*analysis.ImpactReport, error) {
	g, err := store.LoadGraph(ctx)
	if err != nil {
		return nil, err
	}
	if len(g.Nodes) == 0 {
		logger.Warn("catalog is empty; run scan first")
	}

	var direct []*graph.Node
	for _, file := range files {
		for _, path := range pathForms(file) {
			classes, err := store.FindClassesByFile(ctx, path)
			if err != nil {
				return nil, fmt.Errorf("failed to query classes of %s: %w", path, err)
			}
			for _, c := range classes {
				if n := g.Nodes[graph.Key(c)]; n != nil {
					direct = append(direct, n)
				}
			}
		}
	}
	return analysis.NewAnalyzer(g).ImpactOf(direct), nil
}

func pathForms(path string) []string {
	forms := []string{path}
	add := func(p string) {
		for _, f := range forms {
			if f == p {
				return
			}
		}
		forms = append(forms, p)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return forms
	}
	add(abs)
	if wd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(wd, abs); err == nil {
			add(rel)
		}
	}
	return forms
}

func init() {
	impactCmd.Flags().StringVar(&sinceRef, "since", "", "git revision to diff the working tree against")
	impactCmd.Flags().StringSliceVar(&changed, "changed", nil, "changed files")
}
