package refpool_test

import (
	"sync"
	"testing"

	"github.com/opentranslate/mdtran/internal/block"
	"github.com/opentranslate/mdtran/internal/catalog"
	"github.com/opentranslate/mdtran/internal/refpool"
)

// --- seeding tests ---

func TestSeed_OnlyCommittedTranslations(t *testing.T) {
	cat := catalog.New("uk")
	blocks := block.Parse("One.\n\nTwo.\n\nThree.\n").Blocks
	decisions := cat.Sync(blocks, nil)

	decisions[0].Entry.SetTranslated("один")
	decisions[1].Entry.SetTranslated("два")
	// decisions[2] stays untranslated.

	// Make the second entry fuzzy by re-syncing with an edit.
	cat.Sync(block.Parse("One.\n\nTwo edited.\n\nThree.\n").Blocks, nil)

	pool := refpool.New(5)
	pool.Seed(cat)
	if pool.Len() != 1 {
		t.Fatalf("expected only the clean translation seeded, got %d pairs", pool.Len())
	}
	pairs := pool.Query("anything")
	if len(pairs) != 1 || pairs[0].Target != "один" {
		t.Errorf("unexpected seeded pairs: %+v", pairs)
	}
}

// --- growth tests ---

func TestQuery_GrowsWithinRun(t *testing.T) {
	pool := refpool.New(5)

	if got := pool.Query("The first paragraph."); len(got) != 0 {
		t.Fatalf("empty pool must return no pairs, got %d", len(got))
	}

	pool.Record("The first paragraph.", "Перший абзац.")
	if got := pool.Query("The second paragraph."); len(got) != 1 {
		t.Fatalf("expected 1 pair after one record, got %d", len(got))
	}

	pool.Record("The second paragraph.", "Другий абзац.")
	if got := pool.Query("The third paragraph."); len(got) != 2 {
		t.Fatalf("expected 2 pairs after two records, got %d", len(got))
	}
}

func TestQuery_ExcludesExactSelfMatch(t *testing.T) {
	pool := refpool.New(5)
	pool.Record("Hello world.", "Привіт, світе.")
	pool.Record("Other text.", "Інший текст.")

	for _, p := range pool.Query("Hello world.") {
		if p.Source == "Hello world." {
			t.Error("query must not return the pair for the text being translated")
		}
	}
}

func TestQuery_RanksBySimilarity(t *testing.T) {
	pool := refpool.New(2)
	pool.Record("The quick brown fox jumps.", "a")
	pool.Record("Completely unrelated sentence about databases.", "b")
	pool.Record("The quick brown fox sleeps.", "c")

	got := pool.Query("The quick brown fox runs.")
	if len(got) != 2 {
		t.Fatalf("expected limit of 2 pairs, got %d", len(got))
	}
	for _, p := range got {
		if p.Target == "b" {
			t.Errorf("least similar pair ranked into the top results: %+v", got)
		}
	}
}

func TestQuery_DeterministicOrder(t *testing.T) {
	build := func() *refpool.Pool {
		pool := refpool.New(3)
		pool.Record("alpha beta gamma", "1")
		pool.Record("alpha beta delta", "2")
		pool.Record("alpha beta epsilon", "3")
		return pool
	}

	first := build().Query("alpha beta zeta")
	for i := 0; i < 10; i++ {
		again := build().Query("alpha beta zeta")
		if len(again) != len(first) {
			t.Fatal("result size changed between identical queries")
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("ordering changed between identical queries: %+v vs %+v", first, again)
			}
		}
	}
}

func TestPool_ConcurrentRecordAndQuery(t *testing.T) {
	pool := refpool.New(5)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Record("some source text", "some target text")
			pool.Query("another text entirely")
		}()
	}
	wg.Wait()
	if pool.Len() != 8 {
		t.Errorf("expected 8 recorded pairs, got %d", pool.Len())
	}
}
