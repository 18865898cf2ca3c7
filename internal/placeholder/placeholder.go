// Package placeholder protects inline markup that must survive an LLM
// round trip — inline code spans, HTML tags, and link targets — by
// replacing each with a numbered [PHn] marker before the call and
// substituting the originals back afterwards. Fenced code blocks need
// no protection here: they are whole blocks and the pipeline's skip
// policy decides their fate.
package placeholder

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// inline code spans: `...`
	reInlineCode = regexp.MustCompile("`[^`]+`")

	// HTML/XML tags: opening, closing, and self-closing
	reHTMLTag = regexp.MustCompile(`<[^>]+>`)

	// link/image targets: the (url) part of [text](url) and ![alt](url)
	reLinkTarget = regexp.MustCompile(`\]\([^)\s]+\)`)

	// placeholder reference in translated text
	rePlaceholder = regexp.MustCompile(`\[PH(\d+)\]`)
)

// Protect replaces protected spans with numbered placeholders [PH0],
// [PH1], … in the order they appear. It returns the modified text and
// the captured originals for Restore.
func Protect(text string) (string, []string) {
	var markers []string
	counter := 0

	replace := func(match string) string {
		id := fmt.Sprintf("[PH%d]", counter)
		markers = append(markers, match)
		counter++
		return id
	}

	// Longest spans first so a code span containing a tag is captured whole.
	text = reInlineCode.ReplaceAllStringFunc(text, replace)
	text = reHTMLTag.ReplaceAllStringFunc(text, replace)
	text = reLinkTarget.ReplaceAllStringFunc(text, func(match string) string {
		// Keep the closing bracket so link text stays translatable.
		return "]" + replace(match[1:])
	})

	return text, markers
}

// Restore substitutes [PHn] markers back with the originals captured by
// Protect. Unrecognised indices leave the placeholder as-is.
func Restore(text string, markers []string) string {
	return rePlaceholder.ReplaceAllStringFunc(text, func(match string) string {
		sub := rePlaceholder.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		idx := 0
		fmt.Sscanf(sub[1], "%d", &idx)
		if idx < 0 || idx >= len(markers) {
			return match
		}
		return markers[idx]
	})
}

// InstructionHint returns a sentence to append to the transform prompt
// so the model leaves placeholders intact.
func InstructionHint() string {
	return "Preserve all [PHn] markers exactly as they appear — do not translate, move, or remove them."
}

// Validate reports the indices of markers missing from the translated
// text. A non-empty result usually means the model mangled the markup.
func Validate(text string, markers []string) []int {
	var missing []int
	for i := range markers {
		if !strings.Contains(text, fmt.Sprintf("[PH%d]", i)) {
			missing = append(missing, i)
		}
	}
	return missing
}
