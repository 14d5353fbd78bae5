package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"cpp2puml/internal/crawler"
	"cpp2puml/internal/pipeline"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var debounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <source>...",
	Short: "Convert, then re-render the diagram whenever a source changes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		conv, cr, err := newConverter(cmd, nil)
		if err != nil {
			return err
		}
		opts := convertOptions(cmd, args)
		sync := pipeline.NewIncrementalSync(conv, cr, opts)
		if _, err := sync.Run(ctx); err != nil {
			return err
		}

		wait := debounce
		if !cmd.Flags().Changed("debounce") && cfg.Watch.DebounceMS > 0 {
			wait = time.Duration(cfg.Watch.DebounceMS) * time.Millisecond
		}

		ignore := map[string]bool{}
		if opts.Output != pipeline.Stdout {
			if abs, err := filepath.Abs(opts.Output); err == nil {
				ignore[abs] = true
			}
		}

		logger.WithField("inputs", strings.Join(args, ",")).Info("watching for changes")
		return watchWithFSNotify(ctx, args, wait, ignore, func(changed []string) {
			log := logger.WithField("changed", len(changed))
			if _, err := sync.Refresh(ctx, changed); err != nil {
				log.WithError(err).Error("refresh failed")
				return
			}
			log.WithField("cached", sync.Cached()).Debug("refreshed")
		})
	},
}

func init() {
	watchCmd.Flags().DurationVar(&debounce, "debounce", 250*time.Millisecond, "quiet period before re-rendering")
}

func watchWithFSNotify(ctx context.Context, targets []string, debounce time.Duration, ignorePaths map[string]bool, onChange func(changedPaths []string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, target := range targets {
		root, err := watchRoot(target)
		if err != nil {
			return err
		}
		if err := addWatchRecursive(watcher, root); err != nil {
			return err
		}
	}

	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	pending := false
	pendingPaths := map[string]bool{}

	resetDebounce := func(path string) {
		pendingPaths[path] = true
		if pending {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		timer.Reset(debounce)
		pending = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			eventPath := filepath.Clean(event.Name)
			if ignorePaths[eventPath] {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(eventPath); statErr == nil && info.IsDir() {
					_ = addWatchRecursive(watcher, eventPath)
					continue
				}
			}
			if !crawler.IsSource(eventPath) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.WithFields(logrus.Fields{"file": eventPath, "op": event.Op.String()}).Debug("change")
			resetDebounce(eventPath)
		case <-timer.C:
			if pending {
				pending = false
				changed := make([]string, 0, len(pendingPaths))
				for path := range pendingPaths {
					changed = append(changed, path)
				}
				sort.Strings(changed)
				pendingPaths = map[string]bool{}
				onChange(changed)
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return watchErr
		}
	}
}

// watchRoot is the directory to watch for a target: the target itself for a
// directory, its parent for a file.
func watchRoot(target string) (string, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return abs, nil
	}
	return filepath.Dir(abs), nil
}

func addWatchRecursive(watcher *fsnotify.Watcher, root string) error {
	root = filepath.Clean(root)
	return filepath.WalkDir(root, func(path string, entry os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
