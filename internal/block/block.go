// Package block segments Markdown documents into typed blocks for
// translation and reassembles them afterwards. Segmentation is line-span
// based: every block remembers the half-open range of source lines it
// covers, so a document rebuilt with no replacements is byte-identical
// to its source.
package block

import (
	"fmt"
	"strings"
)

// Kind classifies a block by its Markdown structure.
type Kind string

const (
	Heading   Kind = "heading"
	Paragraph Kind = "paragraph"
	Code      Kind = "code"
	List      Kind = "list"
	Table     Kind = "table"
	Quote     Kind = "quote"
	Rule      Kind = "rule"
	Other     Kind = "other"
)

// UnknownLang is the language tag assigned to fenced code blocks whose
// info string carries no language.
const UnknownLang = "unknown"

// Block is one structural unit of a document.
type Block struct {
	// Index is the ordinal position in the parsed sequence.
	Index int
	// Kind is the structural type.
	Kind Kind
	// Text is the block content with line separators normalized to \n
	// and no trailing newline.
	Text string
	// Start and End delimit the half-open source line span [Start, End).
	Start, End int
	// Path is the heading slug stack active where the block appears.
	Path []string
	// Section is the per-(path, kind) occurrence ordinal, disambiguating
	// repeated identical blocks under the same heading.
	Section int
	// Lang is the fence info-string language of a code block; empty for
	// other kinds, UnknownLang when the fence has no info string.
	Lang string
}

// Key returns the stable identity used as the catalog msgctxt. It combines
// the heading path, the kind, and the per-section ordinal, so two blocks
// with identical text in different positions get distinct keys.
func (b Block) Key() string {
	return fmt.Sprintf("%s::%s:%d", strings.Join(b.Path, "/"), b.Kind, b.Section)
}

// KindOfKey extracts the block kind encoded in a catalog key. It returns
// an empty string when the key does not follow the Key format.
func KindOfKey(key string) Kind {
	start := strings.Index(key, "::")
	if start == -1 {
		return ""
	}
	rest := key[start+2:]
	end := strings.LastIndex(rest, ":")
	if end == -1 {
		return ""
	}
	return Kind(rest[:end])
}

// Document pairs the source lines (line endings preserved) with the parsed
// block sequence.
type Document struct {
	Lines  []string
	Blocks []Block
}

// splitLines splits s into lines keeping the trailing newline on each
// line. The final line has no newline when the source does not end with
// one, which Render relies on for byte-exact round trips.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// stripEOL removes a trailing \n or \r\n from a source line.
func stripEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
