/*
Copyright © 2025 The mdtran Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	watchSourceDir  string
	watchTargetDir  string
	watchCatalogDir string
	watchWorkers    int
	watchDebounce   time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a directory tree and retranslate on change",
	Long: `Run an initial tree translation, then keep watching the source
directory. Edits to .md files trigger a new incremental run after a
short quiet period, so a burst of saves causes a single run.

Because runs are incremental, a triggered run only touches the blocks
the edit actually changed. Stop with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchCatalogDir == "" {
			watchCatalogDir = watchTargetDir
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner, cleanup, err := buildRunner(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		run := func() {
			stats, rerr := runner.ProcessTree(ctx, watchSourceDir, watchTargetDir, watchCatalogDir, watchWorkers)
			if rerr != nil {
				logrus.WithError(rerr).Error("tree run failed")
				return
			}
			fmt.Printf("%d processed, %d up to date, %d failed\n",
				stats.Processed, stats.Skipped, stats.Failed)
		}
		run()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer watcher.Close()

		if err := watchRecursive(watcher, watchSourceDir); err != nil {
			return err
		}

		fmt.Printf("Watching %s (Ctrl-C to stop)\n", watchSourceDir)

		var timer *time.Timer
		pending := make(chan struct{}, 1)
		for {
			select {
			case <-ctx.Done():
				fmt.Println("\nStopped.")
				return nil

			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				// New directories must be added before files inside
				// them produce events.
				if ev.Op.Has(fsnotify.Create) {
					if info, serr := os.Stat(ev.Name); serr == nil && info.IsDir() {
						watchRecursive(watcher, ev.Name)
					}
				}
				if !strings.EqualFold(filepath.Ext(ev.Name), ".md") {
					continue
				}
				if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) ||
					ev.Op.Has(fsnotify.Rename) || ev.Op.Has(fsnotify.Remove) {
					logrus.WithField("file", ev.Name).Debug("change detected")
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(watchDebounce, func() {
						select {
						case pending <- struct{}{}:
						default:
						}
					})
				}

			case <-pending:
				run()

			case werr, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				logrus.WithError(werr).Warn("watcher error")
			}
		}
	},
}

// watchRecursive registers dir and every subdirectory with the watcher.
func watchRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchSourceDir, "source-dir", "", "Directory with source Markdown files (required)")
	watchCmd.Flags().StringVar(&watchTargetDir, "target-dir", "", "Directory for translated files (required)")
	watchCmd.Flags().StringVar(&watchCatalogDir, "po-dir", "", "Directory for PO catalogs (default: target directory)")
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 4, "Concurrent files in flight")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "Quiet period before a triggered run")

	watchCmd.MarkFlagRequired("source-dir")
	watchCmd.MarkFlagRequired("target-dir")
}
