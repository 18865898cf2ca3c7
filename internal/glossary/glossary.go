// Package glossary resolves forced terminology for a target locale and
// filters it down to the terms actually present in a block, so prompt
// size stays bounded by the block rather than the glossary.
package glossary

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Term is one glossary rule. An empty Translation means the term must
// be kept untranslated.
type Term struct {
	Term        string
	Translation string
}

// Resolver holds the flattened glossary for one target locale.
type Resolver struct {
	terms map[string]string
}

// NewResolver builds a resolver from a term -> translation map. Empty
// translations mean "do not translate".
func NewResolver(terms map[string]string) *Resolver {
	r := &Resolver{terms: make(map[string]string, len(terms))}
	for term, tr := range terms {
		r.terms[term] = tr
	}
	return r
}

// LoadFile reads a JSON glossary and flattens it for locale. The format
// maps each term to either null (keep as-is), a string (exact
// translation for every locale), or a locale -> translation object.
//
//	{
//	  "Kubernetes": null,
//	  "cluster": "кластер",
//	  "node": {"uk": "вузол", "de": "Knoten"}
//	}
func LoadFile(path, locale string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed glossary %s: %w", path, err)
	}

	terms := make(map[string]string, len(raw))
	for term, value := range raw {
		switch {
		case string(value) == "null":
			terms[term] = ""
		case len(value) > 0 && value[0] == '"':
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return nil, fmt.Errorf("malformed glossary entry %q: %w", term, err)
			}
			terms[term] = s
		case len(value) > 0 && value[0] == '{':
			var perLocale map[string]string
			if err := json.Unmarshal(value, &perLocale); err != nil {
				return nil, fmt.Errorf("malformed glossary entry %q: %w", term, err)
			}
			// A per-locale entry without the active locale keeps the term
			// untranslated.
			terms[term] = perLocale[locale]
		default:
			return nil, fmt.Errorf("malformed glossary entry %q: unsupported value %s", term, value)
		}
	}

	return &Resolver{terms: terms}, nil
}

// Merge overlays other on top of the receiver; other's terms win.
func (r *Resolver) Merge(other *Resolver) {
	if other == nil {
		return
	}
	for term, tr := range other.terms {
		r.terms[term] = tr
	}
}

// Len returns the number of resolved terms.
func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.terms)
}

// Terms returns a copy of the full term -> translation map.
func (r *Resolver) Terms() map[string]string {
	if r == nil {
		return nil
	}
	out := make(map[string]string, len(r.terms))
	for term, tr := range r.terms {
		out[term] = tr
	}
	return out
}

// TermsIn returns the glossary terms that occur in text, sorted by term
// for deterministic prompts.
func (r *Resolver) TermsIn(text string) []Term {
	if r == nil || len(r.terms) == 0 {
		return nil
	}
	var out []Term
	for term, tr := range r.terms {
		if strings.Contains(text, term) {
			out = append(out, Term{Term: term, Translation: tr})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Term < out[j].Term })
	return out
}
