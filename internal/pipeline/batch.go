package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TreeStats aggregates a whole-tree run.
type TreeStats struct {
	Processed int
	Skipped   int
	Failed    int
	Files     []*FileStats
}

// ProcessTree translates every Markdown file under sourceRoot, mirroring
// relative paths into targetRoot and catalogRoot (as .po files). Files
// are independent runs: a failure in one never aborts the others, and
// up to workers files are in flight at once. The returned error is
// non-nil only for tree-level problems (an unreadable root, a canceled
// context), not for per-file failures, which land in the stats.
func (r *Runner) ProcessTree(ctx context.Context, sourceRoot, targetRoot, catalogRoot string, workers int) (*TreeStats, error) {
	files, err := collectMarkdown(sourceRoot)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log := r.log.WithFields(logrus.Fields{
		"run_id": runID,
		"root":   sourceRoot,
		"files":  len(files),
	})
	log.Info("starting tree run")

	if workers < 1 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	results := make(chan *FileStats, len(files))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for _, rel := range files {
		wg.Add(1)
		go func(rel string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			source := filepath.Join(sourceRoot, rel)
			target := filepath.Join(targetRoot, rel)
			poPath := filepath.Join(catalogRoot, catalogName(rel))

			stats, perr := r.ProcessDocument(ctx, source, target, poPath)
			if perr != nil {
				log.WithError(perr).WithField("file", rel).Error("file run failed")
			}
			results <- stats
		}(rel)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	tree := &TreeStats{}
	for stats := range results {
		tree.Files = append(tree.Files, stats)
		switch stats.Outcome {
		case OutcomeProcessed:
			tree.Processed++
		case OutcomeSkipped:
			tree.Skipped++
		case OutcomeFailed:
			tree.Failed++
		}
	}
	sort.Slice(tree.Files, func(i, j int) bool {
		return tree.Files[i].Source < tree.Files[j].Source
	})

	log.WithFields(logrus.Fields{
		"processed": tree.Processed,
		"skipped":   tree.Skipped,
		"failed":    tree.Failed,
	}).Info("tree run complete")

	if err := ctx.Err(); err != nil {
		return tree, fmt.Errorf("tree run canceled: %w", err)
	}
	return tree, nil
}

// collectMarkdown returns the relative paths of all .md files under
// root, sorted for deterministic dispatch order.
func collectMarkdown(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".md") {
			rel, rerr := filepath.Rel(root, path)
			if rerr != nil {
				return rerr
			}
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// catalogName maps a relative Markdown path to its catalog file name.
func catalogName(rel string) string {
	return strings.TrimSuffix(rel, filepath.Ext(rel)) + ".po"
}
