package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examforge/harvester/pkg/question"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "corpus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func storedQ(text string) *question.Canonical {
	return &question.Canonical{
		Subject:      question.SubjectMath,
		QuestionType: question.TypeArithmetic,
		Format:       question.FormatMultipleChoice,
		Difficulty:   2,
		Content:      question.Content{Text: text, Options: []string{"1", "2"}},
		Answer:       question.Answer{Value: "2"},
		Source:       "openquiz:https://example.com/q",
	}
}

func TestUpsertInsertsThenUpdates(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	q := storedQ("What is 1 + 1?")
	inserted, err := s.Upsert(ctx, q)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same fingerprint, refreshed fields
	q.Difficulty = 4
	inserted, err = s.Upsert(ctx, q)
	require.NoError(t, err)
	assert.False(t, inserted)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	loaded, err := s.Get(ctx, question.Fingerprint(q))
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Difficulty)
}

func TestFingerprintsRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first := storedQ("What is 1 + 1?")
	second := storedQ("What is 2 + 2?")
	_, err := s.Upsert(ctx, first)
	require.NoError(t, err)
	_, err = s.Upsert(ctx, second)
	require.NoError(t, err)

	fps, err := s.Fingerprints(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		question.Fingerprint(first),
		question.Fingerprint(second),
	}, fps)
}

func TestGetUnknownFingerprint(t *testing.T) {
	s := openStore(t)
	_, err := s.Get(context.Background(), "no-such-fingerprint")
	assert.Error(t, err)
}
