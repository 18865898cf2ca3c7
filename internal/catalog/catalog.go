// Package catalog tracks every block of a document across translation
// runs in a gettext PO file. Each block is one entry keyed by its
// structural identity (msgctxt); entry state encodes the lifecycle
// untranslated -> translated -> fuzzy -> obsolete.
package catalog

import (
	"github.com/opentranslate/mdtran/internal/block"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	Untranslated Status = "untranslated"
	Translated   Status = "translated"
	Fuzzy        Status = "fuzzy"
	Obsolete     Status = "obsolete"
)

// Entry tracks one source block.
type Entry struct {
	// Key is the block identity, stored as msgctxt.
	Key string
	// Source is the block text at the time of the last sync (msgid).
	Source string
	// Target is the translated text (msgstr); empty while untranslated.
	Target string
	// fuzzy marks a retained translation whose source has changed.
	fuzzy bool
	// obsolete marks an entry whose block no longer exists.
	obsolete bool
	// staleOnLoad records that the entry was already obsolete on disk,
	// so the next sync may prune it.
	staleOnLoad bool
}

// Status derives the lifecycle state from the entry flags.
func (e *Entry) Status() Status {
	switch {
	case e.obsolete:
		return Obsolete
	case e.fuzzy:
		return Fuzzy
	case e.Target != "":
		return Translated
	default:
		return Untranslated
	}
}

// IsFuzzy reports whether the retained translation is stale.
func (e *Entry) IsFuzzy() bool { return e.fuzzy }

// IsObsolete reports whether the tracked block has disappeared.
func (e *Entry) IsObsolete() bool { return e.obsolete }

// SetTranslated stores a fresh translation and clears the fuzzy flag.
func (e *Entry) SetTranslated(target string) {
	e.Target = target
	e.fuzzy = false
}

// File is an ordered PO catalog: header metadata plus entries in
// last-seen document order. A File is owned by exactly one document run
// and is not safe for concurrent mutation.
type File struct {
	header  []headerField
	entries []*Entry
}

type headerField struct {
	name, value string
}

// New returns an empty catalog. When targetLang is non-empty a Language
// header is written on save.
func New(targetLang string) *File {
	f := &File{}
	f.setHeader("Content-Type", "text/plain; charset=UTF-8")
	if targetLang != "" {
		f.setHeader("Language", targetLang)
	}
	return f
}

func (f *File) setHeader(name, value string) {
	for i := range f.header {
		if f.header[i].name == name {
			f.header[i].value = value
			return
		}
	}
	f.header = append(f.header, headerField{name, value})
}

// Language returns the Language header, or "" when none is set.
func (f *File) Language() string {
	for _, h := range f.header {
		if h.name == "Language" {
			return h.value
		}
	}
	return ""
}

// Entries returns the entries in catalog order. Callers must not
// reorder the slice.
func (f *File) Entries() []*Entry { return f.entries }

// Lookup finds the non-obsolete entry for a key.
func (f *File) Lookup(key string) (*Entry, bool) {
	for _, e := range f.entries {
		if e.Key == key && !e.obsolete {
			return e, true
		}
	}
	return nil, false
}

// Len counts non-obsolete entries.
func (f *File) Len() int {
	n := 0
	for _, e := range f.entries {
		if !e.obsolete {
			n++
		}
	}
	return n
}

// Action is the per-block classification outcome of a sync pass.
type Action int

const (
	// ActionReuse keeps the stored translation; no transform call.
	ActionReuse Action = iota
	// ActionTranslate sends the block to the transform.
	ActionTranslate
	// ActionSkip passes the block through untouched.
	ActionSkip
)

// Reasons attached to ActionTranslate decisions.
const (
	ReasonNew     = "new"
	ReasonChanged = "changed"
)

// Decision pairs a block with its classification and catalog entry.
type Decision struct {
	Block  block.Block
	Entry  *Entry
	Action Action
	Reason string
}

// Sync reconciles the catalog with the current block sequence and
// classifies every block. skip marks blocks that must pass through
// untouched; they are still tracked for change detection but never set
// fuzzy. Entries whose key is absent from blocks become obsolete;
// entries that were already obsolete on disk are pruned.
func (f *File) Sync(blocks []block.Block, skip func(block.Block) bool) []Decision {
	seen := make(map[string]bool, len(blocks))
	decisions := make([]Decision, 0, len(blocks))

	for _, b := range blocks {
		key := b.Key()
		seen[key] = true

		e, ok := f.Lookup(key)
		if !ok {
			e = &Entry{Key: key, Source: b.Text}
			f.entries = append(f.entries, e)
			if skip != nil && skip(b) {
				decisions = append(decisions, Decision{Block: b, Entry: e, Action: ActionSkip})
			} else {
				decisions = append(decisions, Decision{Block: b, Entry: e, Action: ActionTranslate, Reason: ReasonNew})
			}
			continue
		}

		if skip != nil && skip(b) {
			e.Source = b.Text
			decisions = append(decisions, Decision{Block: b, Entry: e, Action: ActionSkip})
			continue
		}

		if e.Source != b.Text {
			e.Source = b.Text
			if e.Target != "" {
				// Stale translation is kept for inspection until the
				// retranslation succeeds.
				e.fuzzy = true
			}
			decisions = append(decisions, Decision{Block: b, Entry: e, Action: ActionTranslate, Reason: ReasonChanged})
			continue
		}

		switch e.Status() {
		case Translated:
			decisions = append(decisions, Decision{Block: b, Entry: e, Action: ActionReuse})
		case Fuzzy:
			decisions = append(decisions, Decision{Block: b, Entry: e, Action: ActionTranslate, Reason: ReasonChanged})
		default:
			// Untranslated, typically a block that failed last run.
			decisions = append(decisions, Decision{Block: b, Entry: e, Action: ActionTranslate, Reason: ReasonNew})
		}
	}

	kept := f.entries[:0]
	for _, e := range f.entries {
		switch {
		case seen[e.Key] && !e.obsolete:
			kept = append(kept, e)
		case seen[e.Key] && e.obsolete:
			// Key came back as a fresh entry; drop the stale record so at
			// most one entry exists per key.
		case e.staleOnLoad:
			// Obsolete across two runs: prune.
		default:
			e.obsolete = true
			kept = append(kept, e)
		}
	}
	f.entries = kept

	return decisions
}

// CatalogStats summarises entry states.
type CatalogStats struct {
	Total        int
	Translated   int
	Fuzzy        int
	Untranslated int
	Obsolete     int
}

// Stats counts entries by lifecycle state. Total excludes obsolete
// entries.
func (f *File) Stats() CatalogStats {
	var s CatalogStats
	for _, e := range f.entries {
		switch e.Status() {
		case Obsolete:
			s.Obsolete++
			continue
		case Translated:
			s.Translated++
		case Fuzzy:
			s.Fuzzy++
		default:
			s.Untranslated++
		}
		s.Total++
	}
	return s
}
