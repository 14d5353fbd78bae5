package main

import (
	"time"

	"cpp2puml/internal/index"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var modelPath string

var scanCmd = &cobra.Command{
	Use:   "scan <source>...",
	Short: "Parse the sources and store the model in the SQLite catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd, true)
		if err != nil {
			return err
		}
		defer store.Close()

		_, cr, err := newConverter(cmd, nil)
		if err != nil {
			return err
		}
		idx := index.NewIndexer(cr, logger)

		start := time.Now()
		g, models, err := idx.BuildGraph(cmd.Context(), args)
		if err != nil {
			return err
		}
		if err := store.SaveGraph(cmd.Context(), g); err != nil {
			return err
		}

		logger.WithFields(logrus.Fields{
			"files":    len(models),
			"classes":  len(g.Nodes),
			"edges":    len(g.Edges),
			"duration": time.Since(start).Round(time.Millisecond),
		}).Info("catalog updated")
		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the diagram from the SQLite catalog or a dumped model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, cr, err := newConverter(cmd, nil)
		if err != nil {
			return err
		}
		opts := convertOptions(cmd, nil)

		if modelPath != "" {
			g, _, err := index.NewIndexer(cr, logger).LoadSnapshot(modelPath)
			if err != nil {
				return err
			}
			_, err = conv.RenderGraph(cmd.Context(), g, opts)
			return err
		}

		store, err := openStore(cmd, true)
		if err != nil {
			return err
		}
		defer store.Close()

		g, err := store.LoadGraph(cmd.Context())
		if err != nil {
			return err
		}
		if len(g.Nodes) == 0 {
			logger.Warn("catalog is empty; run scan first")
		}
		_, err = conv.RenderGraph(cmd.Context(), g, opts)
		return err
	},
}

func init() {
	renderCmd.Flags().StringVar(&modelPath, "model", "", "render a model written by --dump-model instead of the catalog")
}
