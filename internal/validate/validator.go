package validate

import (
	"fmt"
	"strings"

	"github.com/examforge/harvester/pkg/question"
)

// Config tunes validation, dedup and quality thresholds
type Config struct {
	FuzzyThreshold       float64 `json:"fuzzy_threshold" yaml:"fuzzy_threshold"`
	MinExplanationLength int     `json:"min_explanation_length" yaml:"min_explanation_length"`
	MinOptions           int     `json:"min_options" yaml:"min_options"`
	MaxOptions           int     `json:"max_options" yaml:"max_options"`
}

// DefaultConfig returns default validation configuration
func DefaultConfig() *Config {
	return &Config{
		FuzzyThreshold:       0.85,
		MinExplanationLength: 20,
		MinOptions:           2,
		MaxOptions:           6,
	}
}

// placeholderTokens disqualify a question from the high-quality bucket
var placeholderTokens = []string{"todo", "placeholder", "tbd", "lorem ipsum", "xxx"}

// Validate checks structural validity and returns a list of problems.
// A non-empty list routes the question to the invalid bucket; it is
// never an exception.
func Validate(q *question.Canonical, config *Config) []string {
	if config == nil {
		config = DefaultConfig()
	}

	var errs []string

	if !question.ValidSubject(q.Subject) {
		errs = append(errs, fmt.Sprintf("unknown subject %q", q.Subject))
	} else if !question.ValidType(q.Subject, q.QuestionType) {
		errs = append(errs, fmt.Sprintf("type %q not valid for subject %q", q.QuestionType, q.Subject))
	}

	if q.Format != question.FormatMultipleChoice && q.Format != question.FormatOpenAnswer {
		errs = append(errs, fmt.Sprintf("unknown format %q", q.Format))
	}

	if strings.TrimSpace(q.Content.Text) == "" {
		errs = append(errs, "question text is empty")
	}

	if q.Format == question.FormatMultipleChoice {
		if count := len(q.Content.Options); count < config.MinOptions || count > config.MaxOptions {
			errs = append(errs, fmt.Sprintf("option count %d outside [%d,%d]", count, config.MinOptions, config.MaxOptions))
		}
	}

	if strings.TrimSpace(q.Answer.Value) == "" {
		errs = append(errs, "answer value is empty")
	}

	if q.Difficulty < 1 || q.Difficulty > 5 {
		errs = append(errs, fmt.Sprintf("difficulty %d outside [1,5]", q.Difficulty))
	}

	for i, hint := range q.Hints {
		if hint.Level < 1 || hint.Level > 3 {
			errs = append(errs, fmt.Sprintf("hint %d level %d outside [1,3]", i, hint.Level))
		}
		if strings.TrimSpace(hint.Text) == "" {
			errs = append(errs, fmt.Sprintf("hint %d text is empty", i))
		}
		if hint.Penalty < 0 {
			errs = append(errs, fmt.Sprintf("hint %d penalty is negative", i))
		}
	}

	return errs
}

// Deduplicator tracks fingerprints and accepted texts across one
// aggregation pass. It is deliberately not goroutine-safe: dedup runs
// single-threaded over the union of all crawl results, which is the
// one serialization point protecting the fingerprint index.
type Deduplicator struct {
	threshold float64
	seen      map[string]struct{}
	// accepted normalized texts for fuzzy comparison, only for types
	// that do not use composite-key exact dedup
	acceptedTexts []string
}

// NewDeduplicator creates a deduplicator seeded with fingerprints from
// a prior corpus.
func NewDeduplicator(threshold float64, prior []string) *Deduplicator {
	d := &Deduplicator{
		threshold: threshold,
		seen:      make(map[string]struct{}, len(prior)),
	}
	for _, fp := range prior {
		d.seen[fp] = struct{}{}
	}
	return d
}

// Check reports whether q duplicates anything already accepted, and
// accepts it otherwise. The exact pass uses the type-appropriate
// fingerprint; the fuzzy trigram pass is skipped for composite-key
// types, whose shared boilerplate would trigger false positives.
func (d *Deduplicator) Check(q *question.Canonical) (bool, string) {
	fp := question.Fingerprint(q)
	if _, dup := d.seen[fp]; dup {
		return true, "exact fingerprint match"
	}

	normalized := question.NormalizeText(q.Content.Text)
	if !question.UsesCompositeKey(q.QuestionType) {
		for _, accepted := range d.acceptedTexts {
			if TrigramJaccard(normalized, accepted) >= d.threshold {
				return true, "fuzzy text match"
			}
		}
		d.acceptedTexts = append(d.acceptedTexts, normalized)
	}

	d.seen[fp] = struct{}{}
	return false, ""
}

// TrigramJaccard computes Jaccard similarity over character trigram
// sets. Strings shorter than three characters compare as whole tokens.
func TrigramJaccard(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		if a == b {
			return 1
		}
		return 0
	}

	intersection := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

func trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	runes := []rune(s)
	if len(runes) < 3 {
		if len(runes) > 0 {
			set[s] = struct{}{}
		}
		return set
	}
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

// IsHighQuality applies the quality gate: a real explanation, the
// resolved answer present among the options, and no placeholder
// text. Low-quality questions are demoted, never discarded.
func IsHighQuality(q *question.Canonical, config *Config) bool {
	if config == nil {
		config = DefaultConfig()
	}

	if len(q.Explanation) <= config.MinExplanationLength {
		return false
	}
	if !q.AnswerInOptions() {
		return false
	}

	lower := strings.ToLower(q.Content.Text)
	for _, token := range placeholderTokens {
		if strings.Contains(lower, token) {
			return false
		}
	}
	return true
}

// ConfidenceScore estimates how trustworthy the resolved answer is.
// Used for triage, never for gating.
func ConfidenceScore(q *question.Canonical, config *Config) float64 {
	if config == nil {
		config = DefaultConfig()
	}

	score := 0.5
	if q.AnswerInOptions() {
		score += 0.2
	}
	if len(q.Explanation) > config.MinExplanationLength {
		score += 0.2
	}
	if q.Answer.Value != "" && strings.Contains(strings.ToLower(q.Explanation), strings.ToLower(q.Answer.Value)) {
		score += 0.1
	}
	return score
}

// ConfidenceBucket maps a score to its triage tier
func ConfidenceBucket(score float64) string {
	switch {
	case score >= 0.8:
		return "high"
	case score >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

// Invalid pairs a rejected question with its validation errors
type Invalid struct {
	Question *question.Canonical `json:"question"`
	Errors   []string            `json:"errors"`
}

// Report is the outcome of one aggregation pass
type Report struct {
	Valid       []*question.Canonical `json:"valid"`
	Invalid     []Invalid             `json:"invalid"`
	HighQuality []*question.Canonical `json:"high_quality"`
	LowQuality  []*question.Canonical `json:"low_quality"`
	Duplicates  int                   `json:"duplicates"`
	Confidence  map[string]int        `json:"confidence"`
}

// Process runs validation, dedup and quality filtering over a batch in
// submission order. priorFingerprints seeds the exact-dedup index with
// the existing corpus.
func Process(batch []*question.Canonical, priorFingerprints []string, config *Config) *Report {
	if config == nil {
		config = DefaultConfig()
	}

	report := &Report{Confidence: map[string]int{"high": 0, "medium": 0, "low": 0}}
	dedup := NewDeduplicator(config.FuzzyThreshold, priorFingerprints)

	for _, q := range batch {
		if errs := Validate(q, config); len(errs) > 0 {
			report.Invalid = append(report.Invalid, Invalid{Question: q, Errors: errs})
			continue
		}

		if dup, _ := dedup.Check(q); dup {
			report.Duplicates++
			continue
		}

		report.Valid = append(report.Valid, q)
		if IsHighQuality(q, config) {
			report.HighQuality = append(report.HighQuality, q)
		} else {
			report.LowQuality = append(report.LowQuality, q)
		}
		report.Confidence[ConfidenceBucket(ConfidenceScore(q, config))]++
	}

	return report
}
