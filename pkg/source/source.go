// Package source discovers trending keyword candidates from external
// platforms and normalizes them into tracked keyword identities.
package source

import "context"

// SourceType identifies which platform a candidate came from.
type SourceType string

const (
	SourceCreativeCenter SourceType = "creative-center"
	SourceRSS            SourceType = "rss"
)

// Candidate is one raw keyword observation before normalization.
type Candidate struct {
	Text   string
	Source SourceType
}

// Source is the interface every keyword collector must implement.
type Source interface {
	Name() SourceType
	Collect(ctx context.Context) ([]Candidate, error)
}
