// Package refiner implements the optional second pass of a two-pass
// run. It takes a block's draft translation and polishes it for fluency
// while keeping the Markdown structure intact.
package refiner

import "context"

// Refiner reviews and improves a draft translation.
type Refiner interface {
	Refine(ctx context.Context, targetLang, sourceText, draftText string) (string, error)
}
