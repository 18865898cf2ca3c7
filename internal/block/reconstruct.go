package block

import "strings"

// Resolver returns the replacement text for a block and whether one
// exists. Blocks without a replacement are copied from the source
// verbatim.
type Resolver func(b Block) (string, bool)

// Render reassembles the document. Lines outside any block span and
// blocks with no resolved text are copied byte-for-byte; resolved texts
// are spliced in at their block's position, in original block order.
// Rendering with a Resolver that never resolves returns the exact
// source bytes.
func Render(doc *Document, resolve Resolver) string {
	var out strings.Builder
	pos := 0

	for _, b := range doc.Blocks {
		for ; pos < b.Start; pos++ {
			out.WriteString(doc.Lines[pos])
		}
		if text, ok := resolve(b); ok {
			out.WriteString(text)
			// Mirror the source block's final line terminator so a file
			// without a trailing newline stays that way.
			out.WriteString(eolOf(doc.Lines[b.End-1]))
		} else {
			for p := b.Start; p < b.End; p++ {
				out.WriteString(doc.Lines[p])
			}
		}
		pos = b.End
	}

	for ; pos < len(doc.Lines); pos++ {
		out.WriteString(doc.Lines[pos])
	}

	return out.String()
}

// eolOf returns a line's terminator: "\r\n", "\n" or "".
func eolOf(line string) string {
	if strings.HasSuffix(line, "\r\n") {
		return "\r\n"
	}
	if strings.HasSuffix(line, "\n") {
		return "\n"
	}
	return ""
}
