package main

import (
	"errors"
	"fmt"
	"os"

	"cpp2puml/internal/config"
	"cpp2puml/internal/crawler"
	"cpp2puml/internal/extractor"
	"cpp2puml/internal/generator"
	"cpp2puml/internal/index"
	"cpp2puml/internal/pipeline"
	"cpp2puml/internal/retrieval"
	"cpp2puml/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"

	cfgFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config

	outPath    string
	force      bool
	title      string
	cstyle     bool
	icons      bool
	noPackages bool
	engine     string
	excludes   []string
	workers    int
	dbPath     string
	dumpModel  string
	focus      []string
	focusDepth int
	focusKinds []string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, extractor.ErrInputUnavailable):
		return 2
	case errors.Is(err, pipeline.ErrOutputExists), errors.Is(err, pipeline.ErrOutputIsDir):
		return 3
	default:
		return 1
	}
}

var rootCmd = &cobra.Command{
	Use:   "cpp2puml [flags] <source>...",
	Short: "Convert C++ sources into a PlantUML class diagram",
	Long: `cpp2puml reads C++ headers and sources, recognizes classes, structs,
unions and enums with their members, and writes their inheritance,
composition and association relationships as a PlantUML class diagram.
Directories are searched for C++ files.`,
	Version:       Version,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		logger = logrus.New()
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}

		// Load configuration
		path := cfgFile
		if path == "" {
			path = config.DefaultPath
		}
		var err error
		cfg, err = config.LoadConfig(path)
		if err != nil {
			return err
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := convertOptions(cmd, args)

		store, err := openStore(cmd, false)
		if err != nil {
			return err
		}
		var catalog storage.CatalogStore
		if store != nil {
			defer store.Close()
			catalog = store
		}

		conv, _, err := newConverter(cmd, catalog)
		if err != nil {
			return err
		}
		_, err = conv.Convert(cmd.Context(), opts)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: "+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.PersistentFlags().StringVarP(&outPath, "out", "o", pipeline.DefaultOutput, `output file, "-" for stdout`)
	rootCmd.PersistentFlags().BoolVarP(&force, "force", "f", false, "overwrite an existing output file")
	rootCmd.PersistentFlags().StringVar(&title, "title", "", "diagram title")
	rootCmd.PersistentFlags().BoolVar(&cstyle, "cstyle", false, `write types C style ("int x") instead of "x: int"`)
	rootCmd.PersistentFlags().BoolVar(&icons, "icons", false, "keep PlantUML visibility icons")
	rootCmd.PersistentFlags().BoolVar(&noPackages, "no-packages", false, "do not group classes into namespace packages")
	rootCmd.PersistentFlags().StringVar(&engine, "engine", extractor.EngineNative, "extraction engine: native or treesitter")
	rootCmd.PersistentFlags().StringSliceVar(&excludes, "exclude", nil, "glob patterns of files or directories to skip")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "parallel parser workers (default: number of CPUs)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite catalog to record the parsed model in")
	rootCmd.PersistentFlags().StringSliceVar(&focus, "focus", nil, "only draw these classes and their neighbours")
	rootCmd.PersistentFlags().IntVar(&focusDepth, "depth", retrieval.DefaultConfig().MaxHops, "relationship hops kept around --focus classes")
	rootCmd.PersistentFlags().StringSliceVar(&focusKinds, "focus-kinds", nil, "relationship kinds followed around --focus classes (inheritance, composition, association, dependency, nesting)")
	rootCmd.Flags().StringVar(&dumpModel, "dump-model", "", "also write the parsed model as JSON to this file")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(impactCmd)
}

// stringSetting returns the flag value when it was given, the configured
// value otherwise.
func stringSetting(cmd *cobra.Command, flag, flagValue, configured string) string {
	if cmd.Flags().Changed(flag) || configured == "" {
		return flagValue
	}
	return configured
}

func boolSetting(cmd *cobra.Command, flag string, flagValue, configured bool) bool {
	if cmd.Flags().Changed(flag) {
		return flagValue
	}
	return flagValue || configured
}

func convertOptions(cmd *cobra.Command, args []string) pipeline.Options {
	return pipeline.Options{
		Inputs:     args,
		Output:     stringSetting(cmd, "out", outPath, cfg.Output.Path),
		Force:      boolSetting(cmd, "force", force, cfg.Output.Force),
		DumpModel:  dumpModel,
		Focus:      focus,
		FocusDepth: focusDepth,
		FocusKinds: focusKinds,
		Render: generator.Options{
			Title:      stringSetting(cmd, "title", title, cfg.Render.Title),
			Icons:      boolSetting(cmd, "icons", icons, cfg.Render.Icons),
			CStyle:     boolSetting(cmd, "cstyle", cstyle, cfg.Render.CStyle),
			NoPackages: boolSetting(cmd, "no-packages", noPackages, cfg.Render.NoPackages),
		},
	}
}

func newConverter(cmd *cobra.Command, store storage.CatalogStore) (*pipeline.Converter, *crawler.Crawler, error) {
	ext, err := extractor.NewExtractor(stringSetting(cmd, "engine", engine, cfg.Parser.Engine))
	if err != nil {
		return nil, nil, err
	}

	scanOpts := crawler.Options{Workers: cfg.Scan.Workers, Excludes: cfg.Scan.Excludes}
	if cmd.Flags().Changed("workers") {
		scanOpts.Workers = workers
	}
	scanOpts.Excludes = append(scanOpts.Excludes, excludes...)

	cr := crawler.NewCrawler(ext, scanOpts, logger)
	idx := index.NewIndexer(cr, logger)
	return pipeline.NewConverter(idx, store, cmd.OutOrStdout(), logger), cr, nil
}

// openStore opens the SQLite catalog. Unless required, it is only opened when
// --db was given.
func openStore(cmd *cobra.Command, required bool) (*storage.SQLiteStore, error) {
	if !required && !cmd.Flags().Changed("db") {
		return nil, nil
	}
	path := stringSetting(cmd, "db", dbPath, cfg.Storage.Path)
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.WithField("db", path).Debug("catalog opened")
	return store, nil
}
