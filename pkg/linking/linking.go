// pkg/linking/linking.go

// Package linking resolves entity mentions against a knowledge base.
//
// The package is built around the Resolver interface. The production
// implementation is Client, which speaks the entity-fishing HTTP API;
// Cache wraps any Resolver with memoization and optional persistence.
package linking

import "context"

// Mention is a single surface form to resolve.
type Mention struct {
	// Surface is the mention text as it appears in the document.
	Surface string

	// Language is the ISO 639-1 code of the document language.
	// Empty falls back to the resolver's configured language.
	Language string

	// Context is the sentence surrounding the mention, if known.
	Context string

	// KBID is a knowledge-base id already assigned by an annotator
	// (a Wikidata Q-id). When set, resolution is a direct concept
	// lookup instead of a disambiguation query.
	KBID string
}

// Entity is the knowledge-base record a mention resolved to.
type Entity struct {
	ID         string  // Wikidata Q-id
	PageID     string  // Wikipedia page id in the request language
	Name       string  // preferred term in the request language
	Source     string  // resolving backend tag
	Confidence float64 // disambiguation score; 1.0 for direct lookups
}

// Resolver maps mentions to knowledge-base entities.
//
// A (nil, nil) return is an authoritative no-match: the service
// answered and knows nothing about the mention. An error means the
// service could not be consulted.
type Resolver interface {
	Resolve(ctx context.Context, m Mention) (*Entity, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, m Mention) (*Entity, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, m Mention) (*Entity, error) {
	return f(ctx, m)
}
