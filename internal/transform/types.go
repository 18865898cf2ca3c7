// Package transform defines the external translation capability and its
// backends. Services declare which optional request fields they accept
// through a Capabilities descriptor; the pipeline queries it once per
// run and strips unsupported fields instead of reflecting per call.
package transform

import (
	"context"
	"time"

	"github.com/opentranslate/mdtran/internal/glossary"
	"github.com/opentranslate/mdtran/internal/refpool"
)

// Capabilities describes the optional request fields a service accepts.
type Capabilities struct {
	// ReferencePairs: the service can take few-shot (source, translation)
	// examples.
	ReferencePairs bool
	// GlossaryTerms: the service can take forced terminology.
	GlossaryTerms bool
	// TargetLocale: the service takes an explicit target language tag.
	TargetLocale bool
}

// Request carries one block's text plus the optional context a capable
// service may use.
type Request struct {
	Text           string
	TargetLang     string
	ReferencePairs []refpool.Pair
	GlossaryTerms  []glossary.Term
}

// Result is a successful transform response.
type Result struct {
	ServiceName string
	Text        string
	Metadata    map[string]string
	Latency     time.Duration
}

// Service is a translation backend. Translate blocks until the call
// completes or ctx is done; callers must not hold locks across it.
type Service interface {
	Name() string
	Capabilities() Capabilities
	Translate(ctx context.Context, req Request) (*Result, error)
}

// Narrow returns req with the fields the service does not support
// cleared, preserving compatibility with backends that only accept
// source text.
func Narrow(caps Capabilities, req Request) Request {
	if !caps.ReferencePairs {
		req.ReferencePairs = nil
	}
	if !caps.GlossaryTerms {
		req.GlossaryTerms = nil
	}
	if !caps.TargetLocale {
		req.TargetLang = ""
	}
	return req
}
