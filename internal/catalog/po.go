package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CorruptError reports a PO file that could not be parsed. Callers are
// expected to fall back to an empty catalog: the source document is the
// ground truth, so an unreadable store only costs retranslation.
type CorruptError struct {
	Path string
	Line int
	Msg  string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt catalog %s: line %d: %s", e.Path, e.Line, e.Msg)
}

// Load reads a PO catalog from path. A missing file yields an empty
// catalog with the given target language and no error. A malformed file
// yields an empty catalog and a *CorruptError so the caller can warn
// and continue.
func Load(path, targetLang string) (*File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(targetLang), nil
	}
	if err != nil {
		return New(targetLang), &CorruptError{Path: path, Msg: err.Error()}
	}

	f, perr := parse(string(data))
	if perr != nil {
		perr.Path = path
		return New(targetLang), perr
	}
	if targetLang != "" && f.Language() == "" {
		f.setHeader("Language", targetLang)
	}
	return f, nil
}

// Save serializes the catalog and writes it atomically: to a temporary
// file in the destination directory, then renamed over path. A failed
// write leaves any existing file untouched.
func Save(f *File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".mdtran-*.po")
	if err != nil {
		return fmt.Errorf("failed to create temp catalog: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(serialize(f)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close catalog: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace catalog: %w", err)
	}
	return nil
}

// --- serialization ---

func serialize(f *File) string {
	var b strings.Builder

	b.WriteString("msgid \"\"\nmsgstr \"\"\n")
	for _, h := range f.header {
		b.WriteString(quote(h.name + ": " + h.value + "\n"))
		b.WriteString("\n")
	}

	for _, e := range f.entries {
		b.WriteString("\n")
		prefix := ""
		if e.obsolete {
			prefix = "#~ "
		}
		if e.fuzzy {
			b.WriteString(prefix)
			b.WriteString("#, fuzzy\n")
		}
		writeField(&b, prefix, "msgctxt", e.Key)
		writeField(&b, prefix, "msgid", e.Source)
		writeField(&b, prefix, "msgstr", e.Target)
	}

	return b.String()
}

// writeField emits a PO keyword with its quoted value, using the
// multi-line form when the value spans lines.
func writeField(b *strings.Builder, prefix, keyword, value string) {
	b.WriteString(prefix)
	b.WriteString(keyword)
	b.WriteString(" ")
	if !strings.Contains(value, "\n") {
		b.WriteString(quote(value))
		b.WriteString("\n")
		return
	}
	b.WriteString("\"\"\n")
	lines := strings.SplitAfter(value, "\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		b.WriteString(prefix)
		b.WriteString(quote(line))
		b.WriteString("\n")
	}
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// --- parsing ---

func parse(text string) (*File, *CorruptError) {
	f := &File{}

	var cur *Entry
	var curObsolete, curFuzzy, headerSeen bool
	var field *string // target of quoted continuation lines
	var headerValue string
	inHeader := false

	flush := func() {
		if inHeader {
			parseHeader(f, headerValue)
			headerValue = ""
			inHeader = false
		}
		if cur != nil {
			cur.fuzzy = curFuzzy && cur.Target != ""
			cur.obsolete = curObsolete
			cur.staleOnLoad = curObsolete
			f.entries = append(f.entries, cur)
			cur = nil
		}
		curObsolete, curFuzzy = false, false
		field = nil
	}

	for lineNo, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		obsolete := false
		if strings.HasPrefix(line, "#~") {
			obsolete = true
			line = strings.TrimSpace(strings.TrimPrefix(line, "#~"))
		}

		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "#,"):
			if strings.Contains(line, "fuzzy") {
				curFuzzy = true
				curObsolete = obsolete
			}
		case strings.HasPrefix(line, "#"):
			// translator/extracted comments are not tracked
		case strings.HasPrefix(line, "msgctxt "):
			if cur != nil && (cur.Key != "" || cur.Source != "" || cur.Target != "") {
				flush()
			}
			if cur == nil {
				cur = &Entry{}
			}
			curObsolete = obsolete
			v, err := unquote(strings.TrimPrefix(line, "msgctxt "))
			if err != nil {
				return nil, &CorruptError{Line: lineNo + 1, Msg: err.Error()}
			}
			cur.Key = v
			field = &cur.Key
		case strings.HasPrefix(line, "msgid "):
			v, err := unquote(strings.TrimPrefix(line, "msgid "))
			if err != nil {
				return nil, &CorruptError{Line: lineNo + 1, Msg: err.Error()}
			}
			if cur == nil {
				// header or context-less entry
				if !headerSeen {
					inHeader = true
					headerSeen = true
					headerValue = ""
					field = &headerValue
					continue
				}
				cur = &Entry{}
			}
			curObsolete = curObsolete || obsolete
			if inHeader {
				field = &headerValue
				continue
			}
			cur.Source = v
			field = &cur.Source
		case strings.HasPrefix(line, "msgstr "):
			v, err := unquote(strings.TrimPrefix(line, "msgstr "))
			if err != nil {
				return nil, &CorruptError{Line: lineNo + 1, Msg: err.Error()}
			}
			if inHeader {
				headerValue = v
				field = &headerValue
				continue
			}
			if cur == nil {
				return nil, &CorruptError{Line: lineNo + 1, Msg: "msgstr without msgid"}
			}
			cur.Target = v
			field = &cur.Target
		case strings.HasPrefix(line, "\""):
			if field == nil {
				return nil, &CorruptError{Line: lineNo + 1, Msg: "unexpected continuation line"}
			}
			v, err := unquote(line)
			if err != nil {
				return nil, &CorruptError{Line: lineNo + 1, Msg: err.Error()}
			}
			*field += v
		default:
			return nil, &CorruptError{Line: lineNo + 1, Msg: fmt.Sprintf("unrecognized line %q", line)}
		}
	}
	flush()

	return f, nil
}

func parseHeader(f *File, value string) {
	for _, line := range strings.Split(value, "\n") {
		name, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		f.setHeader(strings.TrimSpace(name), strings.TrimSpace(val))
	}
}

func unquote(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("malformed quoted string %q", s)
	}
	s = s[1 : len(s)-1]

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}
