package question

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// NormalizeText lowers, trims and collapses whitespace so that
// cosmetic formatting differences do not defeat duplicate detection.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// UsesCompositeKey reports whether a question type needs the composite
// fingerprint. Verbal-reasoning sources share long instruction
// preambles across distinct questions, so hashing text alone would
// wrongly merge them.
func UsesCompositeKey(t QuestionType) bool {
	switch t {
	case TypeAnalogy, TypeSequence, TypeCodeWord, TypeOddOneOut, TypeWordLogic:
		return true
	}
	return false
}

// Fingerprint returns the dedup key for a canonical question: SHA-256
// of the normalized text for most types, or the composite key of
// text + answer + sorted options for composite-key types.
func Fingerprint(q *Canonical) string {
	if UsesCompositeKey(q.QuestionType) {
		return CompositeFingerprint(q)
	}
	return TextFingerprint(q.Content.Text)
}

// TextFingerprint hashes normalized question text only
func TextFingerprint(text string) string {
	sum := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// CompositeFingerprint hashes normalized text, the resolved answer and
// the sorted normalized option list. Option order is deliberately
// discarded so option-shuffling does not defeat dedup.
func CompositeFingerprint(q *Canonical) string {
	opts := make([]string, 0, len(q.Content.Options))
	for _, opt := range q.Content.Options {
		opts = append(opts, NormalizeText(opt))
	}
	sort.Strings(opts)

	var b strings.Builder
	b.WriteString(NormalizeText(q.Content.Text))
	b.WriteString("|")
	b.WriteString(NormalizeText(q.Answer.Value))
	b.WriteString("|")
	b.WriteString(strings.Join(opts, "|"))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
