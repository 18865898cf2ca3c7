package block_test

import (
	"strings"
	"testing"

	"github.com/opentranslate/mdtran/internal/block"
)

const sampleDoc = `# Guide

Intro paragraph with **bold** text.

## Setup

- item one
- item two

` + "```go\nfmt.Println(\"hi\")\n```" + `

> A quoted line.
> Another quoted line.

| a | b |
|---|---|
| 1 | 2 |

---

Final words.
`

// --- segmentation tests ---

func TestParse_Kinds(t *testing.T) {
	doc := block.Parse(sampleDoc)

	want := []block.Kind{
		block.Heading, block.Paragraph,
		block.Heading, block.List, block.Code,
		block.Quote, block.Table, block.Rule,
		block.Paragraph,
	}
	if len(doc.Blocks) != len(want) {
		for _, b := range doc.Blocks {
			t.Logf("%s %q", b.Kind, b.Text)
		}
		t.Fatalf("expected %d blocks, got %d", len(want), len(doc.Blocks))
	}
	for i, b := range doc.Blocks {
		if b.Kind != want[i] {
			t.Errorf("block %d: expected kind %s, got %s (%q)", i, want[i], b.Kind, b.Text)
		}
	}
}

func TestParse_Deterministic(t *testing.T) {
	a := block.Parse(sampleDoc)
	b := block.Parse(sampleDoc)
	if len(a.Blocks) != len(b.Blocks) {
		t.Fatalf("block counts differ: %d vs %d", len(a.Blocks), len(b.Blocks))
	}
	for i := range a.Blocks {
		if a.Blocks[i].Key() != b.Blocks[i].Key() || a.Blocks[i].Text != b.Blocks[i].Text {
			t.Errorf("block %d differs between identical parses", i)
		}
	}
}

func TestParse_HeadingPaths(t *testing.T) {
	doc := block.Parse("# A\n\npara a\n\n## B\n\npara ab\n\n# C\n\npara c\n")

	keys := map[string]string{}
	for _, b := range doc.Blocks {
		if b.Kind == block.Paragraph {
			keys[b.Text] = b.Key()
		}
	}
	if keys["para a"] != "a::paragraph:0" {
		t.Errorf("expected a::paragraph:0, got %s", keys["para a"])
	}
	if keys["para ab"] != "a/b::paragraph:0" {
		t.Errorf("expected a/b::paragraph:0, got %s", keys["para ab"])
	}
	// A new top-level heading resets the path stack.
	if keys["para c"] != "c::paragraph:0" {
		t.Errorf("expected c::paragraph:0, got %s", keys["para c"])
	}
}

func TestParse_DuplicateHeadings(t *testing.T) {
	doc := block.Parse("## Setup\n\none\n\n## Setup\n\ntwo\n")

	var headingKeys []string
	for _, b := range doc.Blocks {
		if b.Kind == block.Heading {
			headingKeys = append(headingKeys, b.Key())
		}
	}
	if len(headingKeys) != 2 {
		t.Fatalf("expected 2 headings, got %d", len(headingKeys))
	}
	if headingKeys[0] == headingKeys[1] {
		t.Errorf("duplicate headings share a key: %s", headingKeys[0])
	}
	if !strings.Contains(headingKeys[1], "setup-1") {
		t.Errorf("second heading should get a numbered slug, got %s", headingKeys[1])
	}
}

func TestParse_IdenticalBlocksGetDistinctKeys(t *testing.T) {
	doc := block.Parse("# T\n\nSame text.\n\nSame text.\n")

	var keys []string
	for _, b := range doc.Blocks {
		if b.Kind == block.Paragraph {
			keys = append(keys, b.Key())
		}
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(keys))
	}
	if keys[0] == keys[1] {
		t.Errorf("identical paragraphs share key %s", keys[0])
	}
}

func TestParse_CodeFenceLang(t *testing.T) {
	tests := []struct {
		fence string
		want  string
	}{
		{"```go\nx\n```\n", "go"},
		{"```Python extra\nx\n```\n", "python"},
		{"```\nx\n```\n", block.UnknownLang},
		{"~~~rust\nx\n~~~\n", "rust"},
	}
	for _, tt := range tests {
		doc := block.Parse(tt.fence)
		if len(doc.Blocks) != 1 || doc.Blocks[0].Kind != block.Code {
			t.Fatalf("fence %q: expected one code block", tt.fence)
		}
		if doc.Blocks[0].Lang != tt.want {
			t.Errorf("fence %q: expected lang %q, got %q", tt.fence, tt.want, doc.Blocks[0].Lang)
		}
	}
}

func TestParse_UnclosedFence(t *testing.T) {
	doc := block.Parse("```go\nnever closed\n")
	if len(doc.Blocks) != 1 || doc.Blocks[0].Kind != block.Code {
		t.Fatalf("expected a single code block, got %+v", doc.Blocks)
	}
	if doc.Blocks[0].End != 2 {
		t.Errorf("unclosed fence should run to EOF, got end %d", doc.Blocks[0].End)
	}
}

func TestParse_OrderedAndUnorderedListsSplit(t *testing.T) {
	doc := block.Parse("- a\n- b\n1. one\n2. two\n")
	if len(doc.Blocks) != 2 {
		t.Fatalf("expected 2 list blocks, got %d", len(doc.Blocks))
	}
	for _, b := range doc.Blocks {
		if b.Kind != block.List {
			t.Errorf("expected list, got %s", b.Kind)
		}
	}
}

func TestParse_RuleVariants(t *testing.T) {
	for _, line := range []string{"---\n", "***\n", "___\n", "- - -\n"} {
		doc := block.Parse(line)
		if len(doc.Blocks) != 1 || doc.Blocks[0].Kind != block.Rule {
			t.Errorf("%q should parse as a rule, got %+v", line, doc.Blocks)
		}
	}
	doc := block.Parse("--\n")
	if len(doc.Blocks) == 1 && doc.Blocks[0].Kind == block.Rule {
		t.Error("two dashes must not parse as a rule")
	}
}

func TestKindOfKey(t *testing.T) {
	b := block.Block{Kind: block.Paragraph, Path: []string{"a", "b"}, Section: 3}
	if got := block.KindOfKey(b.Key()); got != block.Paragraph {
		t.Errorf("expected paragraph, got %q", got)
	}
	if got := block.KindOfKey("not a key"); got != "" {
		t.Errorf("expected empty kind for malformed key, got %q", got)
	}
}
