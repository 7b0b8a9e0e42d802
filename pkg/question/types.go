package question

import (
	"fmt"
	"time"
)

// Subject identifies the exam subject a question belongs to
type Subject string

const (
	SubjectMath               Subject = "math"
	SubjectEnglish            Subject = "english"
	SubjectVerbalReasoning    Subject = "verbal_reasoning"
	SubjectNonVerbalReasoning Subject = "non_verbal_reasoning"
	SubjectScience            Subject = "science"
)

// AllSubjects lists every supported subject in a stable order
func AllSubjects() []Subject {
	return []Subject{
		SubjectMath,
		SubjectEnglish,
		SubjectVerbalReasoning,
		SubjectNonVerbalReasoning,
		SubjectScience,
	}
}

// ValidSubject reports whether s is a known subject
func ValidSubject(s Subject) bool {
	switch s {
	case SubjectMath, SubjectEnglish, SubjectVerbalReasoning,
		SubjectNonVerbalReasoning, SubjectScience:
		return true
	}
	return false
}

// QuestionType is the per-subject closed vocabulary of question types
type QuestionType string

const (
	// Math
	TypeArithmetic  QuestionType = "arithmetic"
	TypeAlgebra     QuestionType = "algebra"
	TypeGeometry    QuestionType = "geometry"
	TypeFractions   QuestionType = "fractions"
	TypeWordProblem QuestionType = "word_problem"

	// English
	TypeComprehension QuestionType = "comprehension"
	TypeGrammar       QuestionType = "grammar"
	TypeVocabulary    QuestionType = "vocabulary"
	TypeSpelling      QuestionType = "spelling"

	// Verbal reasoning
	TypeAnalogy    QuestionType = "analogy"
	TypeSequence   QuestionType = "sequence"
	TypeCodeWord   QuestionType = "code_word"
	TypeOddOneOut  QuestionType = "odd_one_out"
	TypeWordLogic  QuestionType = "word_logic"

	// Non-verbal reasoning
	TypePatternSeries QuestionType = "pattern_series"
	TypeRotation      QuestionType = "rotation"
	TypeMirrorImage   QuestionType = "mirror_image"

	// Science
	TypeBiology   QuestionType = "biology"
	TypeChemistry QuestionType = "chemistry"
	TypePhysics   QuestionType = "physics"
)

// TypesForSubject returns the closed type vocabulary for a subject
func TypesForSubject(s Subject) []QuestionType {
	switch s {
	case SubjectMath:
		return []QuestionType{TypeArithmetic, TypeAlgebra, TypeGeometry, TypeFractions, TypeWordProblem}
	case SubjectEnglish:
		return []QuestionType{TypeComprehension, TypeGrammar, TypeVocabulary, TypeSpelling}
	case SubjectVerbalReasoning:
		return []QuestionType{TypeAnalogy, TypeSequence, TypeCodeWord, TypeOddOneOut, TypeWordLogic}
	case SubjectNonVerbalReasoning:
		return []QuestionType{TypePatternSeries, TypeRotation, TypeMirrorImage}
	case SubjectScience:
		return []QuestionType{TypeBiology, TypeChemistry, TypePhysics}
	}
	return nil
}

// ValidType reports whether t belongs to the subject's vocabulary
func ValidType(s Subject, t QuestionType) bool {
	for _, known := range TypesForSubject(s) {
		if known == t {
			return true
		}
	}
	return false
}

// Format describes how a question is answered
type Format string

const (
	FormatMultipleChoice Format = "multiple_choice"
	FormatOpenAnswer     Format = "open_answer"
)

// AnswerUnknown is the sentinel used by extractors when a source
// carries no resolvable answer at all.
const AnswerUnknown = "Unknown"

// RawQuestion is the unvalidated, source-specific extraction result.
// Deliberately permissive: nothing is enforced before normalization.
type RawQuestion struct {
	QuestionText  string    `json:"question_text"`
	Options       []string  `json:"options"`
	CorrectAnswer string    `json:"correct_answer"`
	Explanation   string    `json:"explanation,omitempty"`
	SourceURL     string    `json:"source_url"`
	SourceName    string    `json:"source_name"`
	Category      string    `json:"category,omitempty"`
	ImageRefs     []string  `json:"image_refs,omitempty"`
	CapturedAt    time.Time `json:"captured_at"`
}

// StampSource fills source attribution after extraction. This is the
// only post-creation mutation a RawQuestion sees.
func (r *RawQuestion) StampSource(name, url string) {
	if r.SourceName == "" {
		r.SourceName = name
	}
	if r.SourceURL == "" {
		r.SourceURL = url
	}
}

// CrawlResult accumulates the outcome of one (source, subject) run.
// It is mutated while the run progresses and frozen once CompletedAt
// is set.
type CrawlResult struct {
	Source                   string        `json:"source"`
	Subject                  Subject       `json:"subject"`
	Questions                []RawQuestion `json:"questions"`
	TotalURLsFound           int           `json:"total_urls_found"`
	TotalURLsCrawled         int           `json:"total_urls_crawled"`
	TotalQuestionsExtracted  int           `json:"total_questions_extracted"`
	Errors                   []string      `json:"errors"`
	StartedAt                time.Time     `json:"started_at"`
	CompletedAt              *time.Time    `json:"completed_at,omitempty"`
}

// NewCrawlResult starts a crawl result for a (source, subject) unit
func NewCrawlResult(source string, subject Subject) *CrawlResult {
	return &CrawlResult{
		Source:    source,
		Subject:   subject,
		Questions: make([]RawQuestion, 0),
		Errors:    make([]string, 0),
		StartedAt: time.Now().UTC(),
	}
}

// AddError records a non-fatal failure for this unit
func (c *CrawlResult) AddError(format string, args ...interface{}) {
	c.Errors = append(c.Errors, fmt.Sprintf(format, args...))
}

// Complete freezes the result
func (c *CrawlResult) Complete() {
	now := time.Now().UTC()
	c.CompletedAt = &now
}

// DurationSeconds is derived, never stored
func (c *CrawlResult) DurationSeconds() float64 {
	if c.CompletedAt == nil {
		return time.Since(c.StartedAt).Seconds()
	}
	return c.CompletedAt.Sub(c.StartedAt).Seconds()
}

// SuccessRate is the fraction of found URLs that were crawled
func (c *CrawlResult) SuccessRate() float64 {
	if c.TotalURLsFound == 0 {
		return 0
	}
	return float64(c.TotalURLsCrawled) / float64(c.TotalURLsFound)
}

// Content holds the displayable parts of a canonical question
type Content struct {
	Text     string   `json:"text"`
	Options  []string `json:"options"`
	ImageURL string   `json:"image_url,omitempty"`
	Images   []string `json:"images,omitempty"`
	Passage  string   `json:"passage,omitempty"`
}

// Answer holds the resolved answer value
type Answer struct {
	Value         string   `json:"value"`
	CaseSensitive bool     `json:"case_sensitive"`
	Variations    []string `json:"variations,omitempty"`
}

// Hint is a progressive hint with a score penalty
type Hint struct {
	Level   int     `json:"level"`
	Text    string  `json:"text"`
	Penalty float64 `json:"penalty"`
}

// Canonical is the fully normalized, schema-conformant question record.
// The validator only tags it; it never edits fields after normalization.
type Canonical struct {
	Subject      Subject      `json:"subject"`
	QuestionType QuestionType `json:"question_type"`
	Format       Format       `json:"format"`
	Difficulty   int          `json:"difficulty"`
	Content      Content      `json:"content"`
	Answer       Answer       `json:"answer"`
	Explanation  string       `json:"explanation"`
	Hints        []Hint       `json:"hints"`
	Tags         []string     `json:"tags"`
	Source       string       `json:"source"`
}

// HasTag reports whether the question carries the given tag
func (q *Canonical) HasTag(tag string) bool {
	for _, t := range q.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AnswerInOptions reports whether the resolved answer literally appears
// among the options (case-insensitive comparison is the caller's choice;
// this is the literal check used by quality filtering).
func (q *Canonical) AnswerInOptions() bool {
	for _, opt := range q.Content.Options {
		if opt == q.Answer.Value {
			return true
		}
	}
	return false
}
