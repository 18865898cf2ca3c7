// Package pipeline orchestrates translation runs: it reconciles parsed
// blocks against the PO catalog, sends only the blocks that need work
// to the transform service, and reassembles the output document. One
// Runner processes one document at a time per call; every document owns
// its catalog and reference pool exclusively, so batch mode shares no
// mutable state across files.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opentranslate/mdtran/internal/block"
	"github.com/opentranslate/mdtran/internal/catalog"
	"github.com/opentranslate/mdtran/internal/glossary"
	"github.com/opentranslate/mdtran/internal/placeholder"
	"github.com/opentranslate/mdtran/internal/refiner"
	"github.com/opentranslate/mdtran/internal/refpool"
	"github.com/opentranslate/mdtran/internal/store"
	"github.com/opentranslate/mdtran/internal/transform"
)

// Options configures a Runner.
type Options struct {
	// TargetLang is the BCP 47 target locale written to catalog headers
	// and passed to capable transforms.
	TargetLang string
	// MaxReferences caps the few-shot pairs attached per request.
	MaxReferences int
	// Parallel is the number of concurrent in-flight transform calls
	// within one document; values below 2 mean sequential processing.
	Parallel int
	// CodeLangs is the allow-list of fence languages eligible for
	// translation. A nil list leaves every code block eligible; a
	// non-nil list skips code blocks whose language is absent from it.
	CodeLangs []string
	// Protect wraps inline markup in placeholder markers around the
	// transform call.
	Protect bool
	// Glossary supplies forced terminology; nil disables injection.
	Glossary *glossary.Resolver
	// Memory short-circuits exact repeats across runs; nil disables it.
	Memory *store.Store
	// Refiner runs an optional polish pass over each fresh translation.
	Refiner refiner.Refiner
	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// Runner drives document and tree runs against one transform service.
type Runner struct {
	svc  transform.Service
	caps transform.Capabilities
	opts Options
	log  logrus.FieldLogger
}

// NewRunner queries the service's capability descriptor once and fixes
// the call strategy for all subsequent runs.
func NewRunner(svc transform.Service, opts Options) *Runner {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		svc:  svc,
		caps: svc.Capabilities(),
		opts: opts,
		log:  log,
	}
}

// Outcome classifies a finished document run.
type Outcome string

const (
	// OutcomeProcessed: at least one block was translated or failed.
	OutcomeProcessed Outcome = "processed"
	// OutcomeSkipped: no block required work and no write was needed.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed: a document-level error aborted the run.
	OutcomeFailed Outcome = "failed"
)

// BlockError records one failed block.
type BlockError struct {
	Key string
	Err error
}

func (e BlockError) Error() string {
	return fmt.Sprintf("block %s: %v", e.Key, e.Err)
}

// FileStats reports one document run.
type FileStats struct {
	Source     string
	Target     string
	Catalog    string
	Blocks     int
	Translated int
	Reused     int
	Skipped    int
	Failed     int
	// Coverage is (translated + reused) / total blocks.
	Coverage float64
	Outcome  Outcome
	Errors   []BlockError
}

// skipBlock routes rules and disallowed code blocks to pass-through.
func (r *Runner) skipBlock(b block.Block) bool {
	switch b.Kind {
	case block.Rule:
		return true
	case block.Code:
		if r.opts.CodeLangs == nil {
			return false
		}
		for _, lang := range r.opts.CodeLangs {
			if lang == b.Lang {
				return false
			}
		}
		return true
	}
	return false
}

// ProcessDocument runs one document end to end. The catalog is loaded
// from catalogPath (an empty catalog when absent), mutated in memory,
// and saved atomically only after the processing pass completes; a
// canceled or aborted run leaves the on-disk catalog untouched. Block
// failures are recorded in the stats, never propagated.
func (r *Runner) ProcessDocument(ctx context.Context, sourcePath, targetPath, catalogPath string) (*FileStats, error) {
	stats := &FileStats{Source: sourcePath, Target: targetPath, Catalog: catalogPath}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		stats.Outcome = OutcomeFailed
		return stats, fmt.Errorf("failed to read source: %w", err)
	}

	doc := block.Parse(string(data))
	stats.Blocks = len(doc.Blocks)

	cat, loadErr := catalog.Load(catalogPath, r.opts.TargetLang)
	if loadErr != nil {
		// Source remains the ground truth: retranslate everything
		// rather than refusing the run.
		r.log.WithError(loadErr).WithField("catalog", catalogPath).
			Warn("catalog unreadable, starting from an empty one")
	}

	decisions := cat.Sync(doc.Blocks, r.skipBlock)

	pool := refpool.New(r.opts.MaxReferences)
	pool.Seed(cat)

	var pending []catalog.Decision
	for _, d := range decisions {
		switch d.Action {
		case catalog.ActionReuse:
			stats.Reused++
		case catalog.ActionSkip:
			stats.Skipped++
		case catalog.ActionTranslate:
			pending = append(pending, d)
		}
	}

	r.log.WithFields(logrus.Fields{
		"source":  sourcePath,
		"blocks":  stats.Blocks,
		"pending": len(pending),
		"reused":  stats.Reused,
		"skipped": stats.Skipped,
	}).Debug("classified blocks")

	if len(pending) > 0 {
		if err := r.processPending(ctx, pending, pool, stats); err != nil {
			stats.Outcome = OutcomeFailed
			return stats, err
		}
	}

	if stats.Blocks > 0 {
		stats.Coverage = float64(stats.Translated+stats.Reused) / float64(stats.Blocks)
	}

	needsWrite := stats.Translated > 0
	if !needsWrite {
		if _, err := os.Stat(targetPath); err != nil {
			needsWrite = true
		}
	}

	if needsWrite {
		output := block.Render(doc, func(b block.Block) (string, bool) {
			if r.skipBlock(b) {
				return "", false
			}
			e, ok := cat.Lookup(b.Key())
			if !ok || e.Target == "" {
				return "", false
			}
			// Fuzzy entries keep showing the stale translation until a
			// retranslation lands.
			return e.Target, true
		})
		if err := writeDocument(targetPath, output); err != nil {
			stats.Outcome = OutcomeFailed
			return stats, err
		}
	}

	if err := catalog.Save(cat, catalogPath); err != nil {
		stats.Outcome = OutcomeFailed
		return stats, err
	}

	if stats.Translated == 0 && stats.Failed == 0 && !needsWrite {
		stats.Outcome = OutcomeSkipped
	} else {
		stats.Outcome = OutcomeProcessed
	}
	return stats, nil
}

// processPending translates the classified blocks. The catalog and
// stats are mutated only from this goroutine; workers communicate
// results over a channel, so the catalog has a single writer even in
// parallel mode.
func (r *Runner) processPending(ctx context.Context, pending []catalog.Decision, pool *refpool.Pool, stats *FileStats) error {
	workers := r.opts.Parallel
	if workers < 1 {
		workers = 1
	}
	if workers > len(pending) {
		workers = len(pending)
	}

	type outcome struct {
		decision catalog.Decision
		text     string
		service  string
		err      error
	}

	if workers == 1 {
		for _, d := range pending {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("run canceled: %w", err)
			}
			text, service, err := r.translateBlock(ctx, d, pool)
			r.apply(ctx, d, text, service, err, pool, stats)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run canceled: %w", err)
		}
		return nil
	}

	results := make(chan outcome, len(pending))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for _, d := range pending {
		wg.Add(1)
		go func(d catalog.Decision) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			text, service, err := r.translateBlock(ctx, d, pool)
			results <- outcome{decision: d, text: text, service: service, err: err}
		}(d)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		r.apply(ctx, res.decision, res.text, res.service, res.err, pool, stats)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run canceled: %w", err)
	}
	return nil
}

// apply commits one block result to the catalog, pool and stats.
func (r *Runner) apply(ctx context.Context, d catalog.Decision, text, service string, err error, pool *refpool.Pool, stats *FileStats) {
	key := d.Block.Key()
	if err != nil {
		// Entry state stays as-is: untranslated or fuzzy entries are
		// picked up again on the next run.
		stats.Failed++
		stats.Errors = append(stats.Errors, BlockError{Key: key, Err: err})
		r.log.WithError(err).WithField("block", key).Warn("block transform failed")
		return
	}

	d.Entry.SetTranslated(text)
	pool.Record(d.Block.Text, text)
	stats.Translated++

	if r.opts.Memory != nil && service != memoryService {
		if merr := r.opts.Memory.Remember(ctx, d.Block.Text, r.opts.TargetLang, text, service); merr != nil {
			r.log.WithError(merr).Debug("failed to update translation memory")
		}
	}
}

// memoryService marks results served from the translation memory.
const memoryService = "memory"

// translateBlock performs one transform call: memory lookup, request
// assembly narrowed to the service's capabilities, optional placeholder
// protection, the blocking call itself (no locks held), and the
// optional refinement pass.
func (r *Runner) translateBlock(ctx context.Context, d catalog.Decision, pool *refpool.Pool) (string, string, error) {
	source := d.Block.Text

	if r.opts.Memory != nil {
		if cached, ok, err := r.opts.Memory.GetCached(ctx, source, r.opts.TargetLang); err == nil && ok {
			r.log.WithField("block", d.Block.Key()).Debug("translation memory hit")
			return cached, memoryService, nil
		}
	}

	req := transform.Request{
		Text:       source,
		TargetLang: r.opts.TargetLang,
	}
	if r.caps.ReferencePairs {
		req.ReferencePairs = pool.Query(source)
	}
	if r.caps.GlossaryTerms {
		req.GlossaryTerms = r.opts.Glossary.TermsIn(source)
	}
	req = transform.Narrow(r.caps, req)

	var markers []string
	if r.opts.Protect {
		req.Text, markers = placeholder.Protect(req.Text)
	}

	result, err := r.svc.Translate(ctx, req)
	if err != nil {
		return "", "", err
	}
	text := result.Text

	if r.opts.Protect {
		if missing := placeholder.Validate(text, markers); len(missing) > 0 {
			r.log.WithFields(logrus.Fields{
				"block":   d.Block.Key(),
				"missing": missing,
			}).Warn("transform dropped placeholder markers")
		}
		text = placeholder.Restore(text, markers)
	}

	if r.opts.Refiner != nil {
		refined, rerr := r.opts.Refiner.Refine(ctx, r.opts.TargetLang, source, text)
		if rerr != nil {
			r.log.WithError(rerr).WithField("block", d.Block.Key()).Warn("refinement failed, keeping draft")
		} else {
			text = refined
		}
	}

	if text == "" {
		return "", "", fmt.Errorf("transform returned empty text")
	}
	return text, result.ServiceName, nil
}

func writeDocument(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
