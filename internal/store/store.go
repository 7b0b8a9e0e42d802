package store

import (
	"context"

	"github.com/examforge/harvester/pkg/question"
)

// QuestionStore is the persistence contract for the harvested corpus.
// Upsert keys on the dedup fingerprint so re-importing a batch is safe.
type QuestionStore interface {
	// Upsert inserts or refreshes a question, returning true when a new
	// row was created.
	Upsert(ctx context.Context, q *question.Canonical) (bool, error)

	// Fingerprints returns every stored fingerprint, used to seed the
	// dedup index with the prior corpus.
	Fingerprints(ctx context.Context) ([]string, error)

	// Count returns the number of stored questions
	Count(ctx context.Context) (int, error)

	Close() error
}
