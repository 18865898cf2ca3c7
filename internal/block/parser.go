package block

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reHeading = regexp.MustCompile(`^(#{1,6})\s+(.*)`)
	reList    = regexp.MustCompile(`^(\s*)([-*+]|\d+\.)\s+`)
	reOrdered = regexp.MustCompile(`^\s*\d+\.`)
	reTable   = regexp.MustCompile(`^\s*\|`)
	reSpaces  = regexp.MustCompile(`\s+`)
)

// Parse segments source into an ordered block sequence. It is a pure
// function of its input: calling it twice on the same text yields
// identical documents.
func Parse(source string) *Document {
	p := &parser{slugs: make(map[int]map[string]int)}
	doc := &Document{Lines: splitLines(source)}

	lines := make([]string, len(doc.Lines))
	for i, l := range doc.Lines {
		lines[i] = stripEOL(l)
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		switch {
		case isFence(line):
			i = p.parseCode(lines, i, doc)
		case reHeading.MatchString(line):
			i = p.parseHeading(lines, i, doc)
		case isRule(line):
			p.emit(doc, Rule, line, i, i+1)
			i++
		case strings.HasPrefix(strings.TrimLeft(line, " \t"), ">"):
			i = p.parseQuote(lines, i, doc)
		case reList.MatchString(line):
			i = p.parseList(lines, i, doc)
		case strings.Contains(line, "|") && reTable.MatchString(line):
			i = p.parseTable(lines, i, doc)
		case strings.TrimSpace(line) == "":
			i++
		default:
			i = p.parseParagraph(lines, i, doc)
		}
	}

	numberSections(doc.Blocks)
	return doc
}

type parser struct {
	path  []string
	slugs map[int]map[string]int // heading level -> slug -> duplicate count
}

func (p *parser) emit(doc *Document, kind Kind, text string, start, end int) *Block {
	b := Block{
		Index: len(doc.Blocks),
		Kind:  kind,
		Text:  text,
		Start: start,
		End:   end,
		Path:  append([]string(nil), p.path...),
	}
	doc.Blocks = append(doc.Blocks, b)
	return &doc.Blocks[len(doc.Blocks)-1]
}

// isFence reports whether a line opens or closes a fenced code block.
func isFence(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~")
}

// isRule matches thematic breaks: three or more of the same marker
// (-, * or _) separated only by whitespace.
func isRule(line string) bool {
	t := strings.TrimSpace(line)
	if t == "" {
		return false
	}
	marker := rune(0)
	count := 0
	for _, r := range t {
		if unicode.IsSpace(r) {
			continue
		}
		if r != '-' && r != '*' && r != '_' {
			return false
		}
		if marker == 0 {
			marker = r
		} else if r != marker {
			return false
		}
		count++
	}
	return count >= 3
}

func (p *parser) parseCode(lines []string, start int, doc *Document) int {
	fence := strings.TrimSpace(lines[start])[:3]
	i := start + 1
	for i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), fence) {
		i++
	}
	if i < len(lines) {
		i++ // consume the closing fence
	}
	b := p.emit(doc, Code, strings.Join(lines[start:i], "\n"), start, i)
	b.Lang = fenceLang(lines[start])
	return i
}

// fenceLang extracts the language from a fence info string,
// e.g. "```go run" -> "go". Absent info string maps to UnknownLang.
func fenceLang(fenceLine string) string {
	info := strings.TrimSpace(fenceLine)
	info = strings.TrimLeft(info, "`~")
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return UnknownLang
	}
	return strings.ToLower(fields[0])
}

func (p *parser) parseHeading(lines []string, start int, doc *Document) int {
	m := reHeading.FindStringSubmatch(lines[start])
	level := len(m[1])
	slug := p.uniqueSlug(level, slugify(strings.TrimSpace(m[2])))

	// Leaving a deeper section invalidates its duplicate counters.
	for l := range p.slugs {
		if l > level {
			delete(p.slugs, l)
		}
	}

	if level-1 <= len(p.path) {
		p.path = append(p.path[:level-1], slug)
	} else {
		p.path = append(p.path, slug)
	}
	p.emit(doc, Heading, lines[start], start, start+1)
	return start + 1
}

func (p *parser) uniqueSlug(level int, base string) string {
	if p.slugs[level] == nil {
		p.slugs[level] = make(map[string]int)
	}
	n, seen := p.slugs[level][base]
	if !seen {
		p.slugs[level][base] = 0
		return base
	}
	p.slugs[level][base] = n + 1
	return base + "-" + itoa(n+1)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// slugify lowercases text and reduces it to letters, digits, hyphens and
// underscores joined by single hyphens. Empty results become "section".
func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	slug := strings.Trim(reSpaces.ReplaceAllString(b.String(), "-"), "-")
	if slug == "" {
		return "section"
	}
	return slug
}

func (p *parser) parseQuote(lines []string, start int, doc *Document) int {
	i := start + 1
	for i < len(lines) && strings.HasPrefix(strings.TrimLeft(lines[i], " \t"), ">") {
		i++
	}
	p.emit(doc, Quote, strings.Join(lines[start:i], "\n"), start, i)
	return i
}

func (p *parser) parseTable(lines []string, start int, doc *Document) int {
	i := start + 1
	for i < len(lines) && strings.Contains(lines[i], "|") {
		i++
	}
	p.emit(doc, Table, strings.Join(lines[start:i], "\n"), start, i)
	return i
}

func (p *parser) parseList(lines []string, start int, doc *Document) int {
	first := lines[start]
	ordered := reOrdered.MatchString(first)
	baseIndent := len(reList.FindStringSubmatch(first)[1])

	i := start + 1
	for i < len(lines) {
		line := lines[i]

		if m := reList.FindStringSubmatch(line); m != nil {
			indent := len(m[1])
			if indent < baseIndent {
				break
			}
			// An ordered list directly abutting an unordered one (or vice
			// versa) at the same indent starts a new block.
			if indent == baseIndent && reOrdered.MatchString(line) != ordered {
				break
			}
			i++
			continue
		}

		if strings.TrimSpace(line) == "" {
			// Blank lines stay inside the list only when more items follow.
			next := i + 1
			for next < len(lines) && strings.TrimSpace(lines[next]) == "" {
				next++
			}
			if next < len(lines) && reList.MatchString(lines[next]) {
				if m := reList.FindStringSubmatch(lines[next]); m != nil &&
					len(m[1]) == baseIndent && reOrdered.MatchString(lines[next]) != ordered {
					break
				}
				i++
				continue
			}
			break
		}

		// Continuation line: indented content, or an unindented wrapped
		// line that does not open another block type.
		if !startsOtherBlock(line) {
			if len(line) > baseIndent && strings.HasPrefix(line, strings.Repeat(" ", baseIndent+2)) {
				i++
				continue
			}
			if !reList.MatchString(line) && !strings.HasPrefix(line, "#") {
				i++
				continue
			}
		}
		break
	}

	p.emit(doc, List, strings.Join(lines[start:i], "\n"), start, i)
	return i
}

func startsOtherBlock(line string) bool {
	return isFence(line) ||
		reHeading.MatchString(line) ||
		strings.HasPrefix(strings.TrimLeft(line, " \t"), ">") ||
		isRule(line) ||
		(strings.Contains(line, "|") && reTable.MatchString(line))
}

func (p *parser) parseParagraph(lines []string, start int, doc *Document) int {
	i := start + 1
	for i < len(lines) &&
		strings.TrimSpace(lines[i]) != "" &&
		!startsOtherBlock(lines[i]) &&
		!reList.MatchString(lines[i]) {
		i++
	}
	p.emit(doc, Paragraph, strings.Join(lines[start:i], "\n"), start, i)
	return i
}

// numberSections assigns the per-(path, kind) occurrence ordinal that
// makes repeated identical blocks distinguishable.
func numberSections(blocks []Block) {
	counters := make(map[string]int)
	for idx := range blocks {
		b := &blocks[idx]
		k := strings.Join(b.Path, "/") + "\x00" + string(b.Kind)
		b.Section = counters[k]
		counters[k]++
	}
}
