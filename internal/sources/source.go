package sources

import (
	"context"
	"fmt"
	"sort"

	"github.com/examforge/harvester/pkg/question"
)

// Source is the two-operation contract every site extractor satisfies:
// resolve candidate URLs for a subject, and turn one fetched page into
// zero or more raw question candidates.
type Source interface {
	Name() string
	Subjects() []question.Subject
	CandidateURLs(ctx context.Context, subject question.Subject) ([]string, error)
	Extract(url string, page []byte) ([]question.RawQuestion, error)
}

// Registry dispatches to concrete sources by name
type Registry struct {
	sources map[string]Source
}

// NewRegistry builds a registry over the given sources
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source)}
	for _, s := range sources {
		r.sources[s.Name()] = s
	}
	return r
}

// Register adds or replaces a source
func (r *Registry) Register(s Source) {
	r.sources[s.Name()] = s
}

// Get returns the source registered under name
func (r *Registry) Get(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown source: %q", name)
	}
	return s, nil
}

// Names returns registered source names in stable order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry wires up every built-in site extractor
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewOpenQuizSource(""),
		NewPastPapersSource(""),
		NewExamPortalSource(""),
	)
}
