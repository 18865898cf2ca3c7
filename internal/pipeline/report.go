package pipeline

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/opentranslate/mdtran/internal/block"
	"github.com/opentranslate/mdtran/internal/catalog"
)

// KindCoverage breaks coverage down for one block kind.
type KindCoverage struct {
	Kind       block.Kind
	Total      int
	Translated int
	Fuzzy      int
	Skipped    int
}

// Report summarizes how much of a document its catalog already covers.
// It is computed offline from the source file and the catalog, without
// touching any transform service.
type Report struct {
	Source     string
	Catalog    string
	TargetLang string
	Blocks     int
	Translated int
	Fuzzy      int
	Pending    int
	Skipped    int
	Obsolete   int
	Coverage   float64
	Kinds      []KindCoverage
}

// BuildReport inspects sourcePath against its catalog. The skip policy
// must match the one used for translation runs so the numbers line up.
func (r *Runner) BuildReport(sourcePath, catalogPath string) (*Report, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	doc := block.Parse(string(data))

	cat, loadErr := catalog.Load(catalogPath, r.opts.TargetLang)
	if loadErr != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", loadErr)
	}

	rep := &Report{
		Source:     sourcePath,
		Catalog:    catalogPath,
		TargetLang: cat.Language(),
		Blocks:     len(doc.Blocks),
	}

	byKind := map[block.Kind]*KindCoverage{}
	covered := 0
	for _, b := range doc.Blocks {
		kc := byKind[b.Kind]
		if kc == nil {
			kc = &KindCoverage{Kind: b.Kind}
			byKind[b.Kind] = kc
		}
		kc.Total++

		if r.skipBlock(b) {
			rep.Skipped++
			kc.Skipped++
			covered++
			continue
		}
		e, ok := cat.Lookup(b.Key())
		if !ok {
			rep.Pending++
			continue
		}
		switch e.Status() {
		case catalog.Translated:
			rep.Translated++
			kc.Translated++
			covered++
		case catalog.Fuzzy:
			rep.Fuzzy++
			kc.Fuzzy++
		default:
			rep.Pending++
		}
	}

	for _, e := range cat.Entries() {
		if e.IsObsolete() {
			rep.Obsolete++
		}
	}

	if rep.Blocks > 0 {
		rep.Coverage = float64(covered) / float64(rep.Blocks)
	}

	for _, kc := range byKind {
		rep.Kinds = append(rep.Kinds, *kc)
	}
	sort.Slice(rep.Kinds, func(i, j int) bool {
		return rep.Kinds[i].Kind < rep.Kinds[j].Kind
	})
	return rep, nil
}

// Format renders the report as the text the stats command prints.
func (rep *Report) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source:     %s\n", rep.Source)
	fmt.Fprintf(&b, "Catalog:    %s\n", rep.Catalog)
	if rep.TargetLang != "" {
		fmt.Fprintf(&b, "Language:   %s\n", rep.TargetLang)
	}
	fmt.Fprintf(&b, "Blocks:     %d\n", rep.Blocks)
	fmt.Fprintf(&b, "Translated: %d\n", rep.Translated)
	fmt.Fprintf(&b, "Fuzzy:      %d\n", rep.Fuzzy)
	fmt.Fprintf(&b, "Pending:    %d\n", rep.Pending)
	fmt.Fprintf(&b, "Skipped:    %d\n", rep.Skipped)
	if rep.Obsolete > 0 {
		fmt.Fprintf(&b, "Obsolete:   %d\n", rep.Obsolete)
	}
	fmt.Fprintf(&b, "Coverage:   %.1f%%\n", rep.Coverage*100)
	if len(rep.Kinds) > 0 {
		b.WriteString("\nBy kind:\n")
		for _, kc := range rep.Kinds {
			fmt.Fprintf(&b, "  %-10s %3d total, %3d translated, %3d fuzzy, %3d skipped\n",
				kc.Kind, kc.Total, kc.Translated, kc.Fuzzy, kc.Skipped)
		}
	}
	return b.String()
}
