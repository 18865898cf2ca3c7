package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/opentranslate/mdtran/internal/glossary"
	"github.com/opentranslate/mdtran/internal/pipeline"
	"github.com/opentranslate/mdtran/internal/store"
	"github.com/opentranslate/mdtran/internal/transform"
)

// stubService translates by prefixing each line, counts calls, and can
// be told to fail specific block texts. onCall, when set, runs with the
// 1-based call number before the reply is built.
type stubService struct {
	mu         sync.Mutex
	calls      int
	refSizes   []int
	glossaries [][]glossary.Term
	failOn     map[string]bool
	onCall     func(n int)
}

func (s *stubService) Name() string { return "stub" }

func (s *stubService) Capabilities() transform.Capabilities {
	return transform.Capabilities{ReferencePairs: true, GlossaryTerms: true, TargetLocale: true}
}

func (s *stubService) Translate(ctx context.Context, req transform.Request) (*transform.Result, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.refSizes = append(s.refSizes, len(req.ReferencePairs))
	s.glossaries = append(s.glossaries, req.GlossaryTerms)
	fail := s.failOn[req.Text]
	s.mu.Unlock()

	if s.onCall != nil {
		s.onCall(n)
	}
	if fail {
		return nil, fmt.Errorf("induced failure")
	}

	lines := strings.Split(req.Text, "\n")
	for i, l := range lines {
		lines[i] = "UK:" + l
	}
	return &transform.Result{ServiceName: s.Name(), Text: strings.Join(lines, "\n")}, nil
}

func (s *stubService) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubService) resetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = 0
	s.refSizes = nil
	s.glossaries = nil
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newRunner(svc transform.Service, opts pipeline.Options) *pipeline.Runner {
	if opts.TargetLang == "" {
		opts.TargetLang = "uk"
	}
	return pipeline.NewRunner(svc, opts)
}

// --- document run tests ---

func TestProcessDocument_FirstRunTranslatesEverything(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "doc.md", "# Title\n\nHello world.\n")
	out := filepath.Join(dir, "doc.uk.md")
	po := filepath.Join(dir, "doc.po")

	svc := &stubService{}
	stats, err := newRunner(svc, pipeline.Options{}).ProcessDocument(context.Background(), src, out, po)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if stats.Translated != 2 || stats.Failed != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Outcome != pipeline.OutcomeProcessed {
		t.Errorf("expected processed outcome, got %s", stats.Outcome)
	}

	output, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	want := "UK:# Title\n\nUK:Hello world.\n"
	if string(output) != want {
		t.Errorf("expected %q, got %q", want, output)
	}

	if _, err := os.Stat(po); err != nil {
		t.Errorf("catalog not written: %v", err)
	}
}

func TestProcessDocument_SecondRunIsFree(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "doc.md", "# Title\n\nHello world.\n")
	out := filepath.Join(dir, "doc.uk.md")
	po := filepath.Join(dir, "doc.po")

	svc := &stubService{}
	runner := newRunner(svc, pipeline.Options{})
	ctx := context.Background()

	if _, err := runner.ProcessDocument(ctx, src, out, po); err != nil {
		t.Fatal(err)
	}
	svc.resetCalls()

	stats, err := runner.ProcessDocument(ctx, src, out, po)
	if err != nil {
		t.Fatal(err)
	}
	if svc.callCount() != 0 {
		t.Errorf("unchanged document must make no transform calls, made %d", svc.callCount())
	}
	if stats.Reused != 2 || stats.Outcome != pipeline.OutcomeSkipped {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestProcessDocument_EditRetranslatesOnlyChangedBlock(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "doc.md", "# Title\n\nFirst paragraph.\n\nSecond paragraph.\n")
	out := filepath.Join(dir, "doc.uk.md")
	po := filepath.Join(dir, "doc.po")

	svc := &stubService{}
	runner := newRunner(svc, pipeline.Options{})
	ctx := context.Background()

	if _, err := runner.ProcessDocument(ctx, src, out, po); err != nil {
		t.Fatal(err)
	}
	svc.resetCalls()

	writeSource(t, dir, "doc.md", "# Title\n\nFirst paragraph, edited.\n\nSecond paragraph.\n")
	stats, err := runner.ProcessDocument(ctx, src, out, po)
	if err != nil {
		t.Fatal(err)
	}
	if svc.callCount() != 1 {
		t.Errorf("expected exactly 1 call for the edited block, got %d", svc.callCount())
	}
	if stats.Translated != 1 || stats.Reused != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}

	output, _ := os.ReadFile(out)
	if !strings.Contains(string(output), "UK:First paragraph, edited.") {
		t.Errorf("edited block not retranslated: %q", output)
	}
	if !strings.Contains(string(output), "UK:Second paragraph.") {
		t.Errorf("unchanged block lost its translation: %q", output)
	}
}

func TestProcessDocument_FailureIsolatedAndRetried(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "doc.md", "Good one.\n\nBad one.\n\nAnother good.\n")
	out := filepath.Join(dir, "doc.uk.md")
	po := filepath.Join(dir, "doc.po")

	svc := &stubService{failOn: map[string]bool{"Bad one.": true}}
	runner := newRunner(svc, pipeline.Options{})
	ctx := context.Background()

	stats, err := runner.ProcessDocument(ctx, src, out, po)
	if err != nil {
		t.Fatalf("block failures must not fail the run: %v", err)
	}
	if stats.Translated != 2 || stats.Failed != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if len(stats.Errors) != 1 {
		t.Errorf("expected 1 block error, got %+v", stats.Errors)
	}

	// Failed block passes through as source text.
	output, _ := os.ReadFile(out)
	if !strings.Contains(string(output), "Bad one.") {
		t.Errorf("failed block must pass through: %q", output)
	}

	// Next run retries only the failed block.
	svc.mu.Lock()
	svc.failOn = nil
	svc.mu.Unlock()
	svc.resetCalls()

	stats, err = runner.ProcessDocument(ctx, src, out, po)
	if err != nil {
		t.Fatal(err)
	}
	if svc.callCount() != 1 {
		t.Errorf("expected 1 retry call, got %d", svc.callCount())
	}
	if stats.Translated != 1 || stats.Reused != 2 {
		t.Errorf("unexpected retry stats %+v", stats)
	}
}

func TestProcessDocument_SkipPolicy(t *testing.T) {
	dir := t.TempDir()
	doc := "Intro.\n\n---\n\n```python\nprint(1)\n```\n\n```go\nfmt.Println(1)\n```\n"
	src := writeSource(t, dir, "doc.md", doc)
	out := filepath.Join(dir, "doc.uk.md")
	po := filepath.Join(dir, "doc.po")

	svc := &stubService{}
	runner := newRunner(svc, pipeline.Options{CodeLangs: []string{"go"}})
	stats, err := runner.ProcessDocument(context.Background(), src, out, po)
	if err != nil {
		t.Fatal(err)
	}

	// rule + python block skipped, paragraph + go block translated
	if stats.Skipped != 2 || stats.Translated != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}

	output, _ := os.ReadFile(out)
	if !strings.Contains(string(output), "```python\nprint(1)\n```") {
		t.Errorf("skipped code block altered: %q", output)
	}
	if !strings.Contains(string(output), "UK:```go") {
		t.Errorf("allow-listed code block not translated: %q", output)
	}
	if !strings.Contains(string(output), "---") {
		t.Errorf("rule lost: %q", output)
	}
}

func TestProcessDocument_ReferencePoolGrowsDuringRun(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "doc.md", "One.\n\nTwo.\n\nThree.\n")
	out := filepath.Join(dir, "doc.uk.md")
	po := filepath.Join(dir, "doc.po")

	svc := &stubService{}
	runner := newRunner(svc, pipeline.Options{MaxReferences: 5})
	if _, err := runner.ProcessDocument(context.Background(), src, out, po); err != nil {
		t.Fatal(err)
	}

	want := []int{0, 1, 2}
	if len(svc.refSizes) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(svc.refSizes))
	}
	for i, n := range want {
		if svc.refSizes[i] != n {
			t.Errorf("call %d: expected %d reference pairs, got %d", i, n, svc.refSizes[i])
		}
	}
}

func TestProcessDocument_MemoryShortCircuits(t *testing.T) {
	dir := t.TempDir()
	db, err := store.New(filepath.Join(dir, "mem.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	svc := &stubService{}
	runner := newRunner(svc, pipeline.Options{Memory: db})
	ctx := context.Background()

	srcA := writeSource(t, dir, "a.md", "Shared paragraph.\n")
	if _, err := runner.ProcessDocument(ctx, srcA, filepath.Join(dir, "a.uk.md"), filepath.Join(dir, "a.po")); err != nil {
		t.Fatal(err)
	}
	svc.resetCalls()

	// Same text in a different document: served from memory.
	srcB := writeSource(t, dir, "b.md", "Shared paragraph.\n")
	stats, err := runner.ProcessDocument(ctx, srcB, filepath.Join(dir, "b.uk.md"), filepath.Join(dir, "b.po"))
	if err != nil {
		t.Fatal(err)
	}
	if svc.callCount() != 0 {
		t.Errorf("expected memory hit, made %d transform calls", svc.callCount())
	}
	if stats.Translated != 1 {
		t.Errorf("memory hit must still count as translated, got %+v", stats)
	}

	output, _ := os.ReadFile(filepath.Join(dir, "b.uk.md"))
	if !strings.Contains(string(output), "UK:Shared paragraph.") {
		t.Errorf("memory result not applied: %q", output)
	}
}

func TestProcessDocument_ParallelMatchesSequential(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "doc.md", "Alpha.\n\nBeta.\n\nGamma.\n\nDelta.\n")
	out := filepath.Join(dir, "doc.uk.md")
	po := filepath.Join(dir, "doc.po")

	svc := &stubService{}
	runner := newRunner(svc, pipeline.Options{Parallel: 4})
	stats, err := runner.ProcessDocument(context.Background(), src, out, po)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Translated != 4 {
		t.Errorf("unexpected stats %+v", stats)
	}

	output, _ := os.ReadFile(out)
	want := "UK:Alpha.\n\nUK:Beta.\n\nUK:Gamma.\n\nUK:Delta.\n"
	if string(output) != want {
		t.Errorf("parallel run must keep document order:\nwant %q\ngot  %q", want, output)
	}
}

func TestProcessDocument_GlossaryTermsReachTransform(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "doc.md", "The cluster has a node.\n\nNothing relevant here.\n")
	out := filepath.Join(dir, "doc.uk.md")
	po := filepath.Join(dir, "doc.po")

	svc := &stubService{}
	runner := newRunner(svc, pipeline.Options{
		Glossary: glossary.NewResolver(map[string]string{
			"cluster": "кластер",
			"orphan":  "сирота",
		}),
	})
	if _, err := runner.ProcessDocument(context.Background(), src, out, po); err != nil {
		t.Fatal(err)
	}

	if len(svc.glossaries) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(svc.glossaries))
	}
	first := svc.glossaries[0]
	if len(first) != 1 || first[0].Term != "cluster" || first[0].Translation != "кластер" {
		t.Errorf("expected only the present term, got %+v", first)
	}
	if len(svc.glossaries[1]) != 0 {
		t.Errorf("block without glossary terms must get none, got %+v", svc.glossaries[1])
	}
}

func TestProcessDocument_CancellationLeavesDiskUntouched(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "doc.md", "One.\n\nTwo.\n\nThree.\n")
	out := filepath.Join(dir, "doc.uk.md")
	po := filepath.Join(dir, "doc.po")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := &stubService{onCall: func(n int) {
		if n == 2 {
			cancel()
		}
	}}

	stats, err := newRunner(svc, pipeline.Options{}).ProcessDocument(ctx, src, out, po)
	if err == nil {
		t.Fatal("canceled run must report an error")
	}
	if stats.Outcome != pipeline.OutcomeFailed {
		t.Errorf("expected failed outcome, got %s", stats.Outcome)
	}

	// Nothing may be persisted: the catalog and output are written only
	// after a full pass.
	if _, serr := os.Stat(po); !os.IsNotExist(serr) {
		t.Errorf("canceled run must not write the catalog: %v", serr)
	}
	if _, serr := os.Stat(out); !os.IsNotExist(serr) {
		t.Errorf("canceled run must not write the output document: %v", serr)
	}
}

func TestProcessDocument_MissingSourceFails(t *testing.T) {
	dir := t.TempDir()
	svc := &stubService{}
	runner := newRunner(svc, pipeline.Options{})

	stats, err := runner.ProcessDocument(context.Background(),
		filepath.Join(dir, "absent.md"), filepath.Join(dir, "out.md"), filepath.Join(dir, "out.po"))
	if err == nil {
		t.Fatal("missing source must fail the run")
	}
	if stats.Outcome != pipeline.OutcomeFailed {
		t.Errorf("expected failed outcome, got %s", stats.Outcome)
	}
}

// --- tree run tests ---

func TestProcessTree_MirrorsLayout(t *testing.T) {
	dir := t.TempDir()
	srcRoot := filepath.Join(dir, "src")
	dstRoot := filepath.Join(dir, "dst")
	poRoot := filepath.Join(dir, "po")

	writeSource(t, srcRoot, "index.md", "Top level.\n")
	writeSource(t, srcRoot, filepath.Join("guide", "setup.md"), "Nested.\n")
	writeSource(t, srcRoot, "notes.txt", "not markdown\n")

	svc := &stubService{}
	runner := newRunner(svc, pipeline.Options{})
	stats, err := runner.ProcessTree(context.Background(), srcRoot, dstRoot, poRoot, 2)
	if err != nil {
		t.Fatalf("tree run failed: %v", err)
	}
	if stats.Processed != 2 || stats.Failed != 0 {
		t.Errorf("unexpected tree stats %+v", stats)
	}

	for _, rel := range []string{"index.md", filepath.Join("guide", "setup.md")} {
		if _, err := os.Stat(filepath.Join(dstRoot, rel)); err != nil {
			t.Errorf("output %s missing: %v", rel, err)
		}
	}
	if _, err := os.Stat(filepath.Join(poRoot, "guide", "setup.po")); err != nil {
		t.Errorf("mirrored catalog missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dstRoot, "notes.txt")); err == nil {
		t.Error("non-markdown file must not be copied")
	}
}

func TestProcessTree_FileFailureDoesNotAbortOthers(t *testing.T) {
	dir := t.TempDir()
	srcRoot := filepath.Join(dir, "src")
	writeSource(t, srcRoot, "ok.md", "Fine.\n")
	writeSource(t, srcRoot, "bad.md", "Broken block.\n")

	svc := &stubService{failOn: map[string]bool{"Broken block.": true}}
	runner := newRunner(svc, pipeline.Options{})
	stats, err := runner.ProcessTree(context.Background(), srcRoot,
		filepath.Join(dir, "dst"), filepath.Join(dir, "po"), 1)
	if err != nil {
		t.Fatalf("tree run failed: %v", err)
	}

	// Block-level failures leave the file processed, not failed.
	if stats.Processed != 2 {
		t.Errorf("unexpected tree stats %+v", stats)
	}
	var failedBlocks int
	for _, fs := range stats.Files {
		failedBlocks += fs.Failed
	}
	if failedBlocks != 1 {
		t.Errorf("expected 1 failed block across the tree, got %d", failedBlocks)
	}
	if _, err := os.Stat(filepath.Join(dir, "dst", "ok.md")); err != nil {
		t.Errorf("healthy file output missing: %v", err)
	}
}

// --- report tests ---

func TestBuildReport_Coverage(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "doc.md", "# Title\n\nDone.\n\nPending.\n")
	out := filepath.Join(dir, "doc.uk.md")
	po := filepath.Join(dir, "doc.po")

	svc := &stubService{failOn: map[string]bool{"Pending.": true}}
	runner := newRunner(svc, pipeline.Options{})
	if _, err := runner.ProcessDocument(context.Background(), src, out, po); err != nil {
		t.Fatal(err)
	}

	report, err := runner.BuildReport(src, po)
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if report.Blocks != 3 || report.Translated != 2 || report.Pending != 1 {
		t.Errorf("unexpected report %+v", report)
	}
	text := report.Format()
	if !strings.Contains(text, "Coverage:") || !strings.Contains(text, "By kind:") {
		t.Errorf("formatted report incomplete:\n%s", text)
	}
}
