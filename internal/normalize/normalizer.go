package normalize

import (
	"regexp"
	"strings"

	"github.com/examforge/harvester/pkg/logging"
	"github.com/examforge/harvester/pkg/question"
)

// TagNeedsReview marks questions whose answer fell through to the
// first-option default and needs manual verification.
const TagNeedsReview = "needs_review"

// Config tunes the normalization heuristics
type Config struct {
	// Options longer than this with no internal whitespace are treated
	// as mis-parsed concatenations.
	CorruptedOptionLength int `json:"corrupted_option_length" yaml:"corrupted_option_length"`
	// Canonical questions surface at most this many options.
	MaxOptions int `json:"max_options" yaml:"max_options"`
}

// DefaultConfig returns default normalizer configuration
func DefaultConfig() *Config {
	return &Config{
		CorruptedOptionLength: 40,
		MaxOptions:            4,
	}
}

// Normalizer converts raw question candidates into canonical records
type Normalizer struct {
	config *Config
}

// New creates a normalizer. A nil config gets defaults.
func New(config *Config) *Normalizer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Normalizer{config: config}
}

// complexityMarkers bump estimated difficulty when present in the text
var complexityMarkers = []string{
	"however",
	"calculate",
	"which of the following",
	"estimate",
	"justify",
	"explain why",
	"in terms of",
}

// Normalize converts one raw candidate into a canonical question.
// It returns nil when the candidate is unusable: empty text, or fewer
// than two usable options. Everything else degrades gracefully; the
// answer chain in particular always resolves to some value.
func (n *Normalizer) Normalize(raw *question.RawQuestion, subject question.Subject) *question.Canonical {
	logger := logging.GetLogger("normalizer")

	text := collapseWhitespace(raw.QuestionText)
	if text == "" {
		return nil
	}

	options := n.filterCorruptedOptions(raw.Options)
	if len(options) < 2 {
		logger.Debug().
			Str("text", truncate(text, 60)).
			Int("options", len(options)).
			Msg("Rejecting candidate with too few options")
		return nil
	}

	qType := n.classifyType(subject, raw.Category, text)
	difficulty := n.estimateDifficulty(text, options)
	answer, needsReview := n.resolveAnswer(raw.CorrectAnswer, raw.Explanation, options)

	shown := n.visibleOptions(options, answer)

	canonical := &question.Canonical{
		Subject:      subject,
		QuestionType: qType,
		Format:       question.FormatMultipleChoice,
		Difficulty:   difficulty,
		Content: question.Content{
			Text:    text,
			Options: shown,
		},
		Answer:      question.Answer{Value: answer, CaseSensitive: false},
		Explanation: collapseWhitespace(raw.Explanation),
		Hints:       n.buildHints(subject, shown),
		Tags:        n.buildTags(subject, raw, needsReview),
		Source:      raw.SourceName + ":" + raw.SourceURL,
	}

	if len(raw.ImageRefs) > 0 {
		canonical.Content.ImageURL = raw.ImageRefs[0]
		canonical.Content.Images = raw.ImageRefs
	}

	return canonical
}

// filterCorruptedOptions drops options that look like mis-parsed
// concatenations: either they contain two or more other options as
// substrings, or they are long runs with no internal whitespace. If
// filtering would leave fewer than two options the original list is
// kept; filtering must never be what makes a question unusable.
func (n *Normalizer) filterCorruptedOptions(options []string) []string {
	trimmed := make([]string, 0, len(options))
	for _, opt := range options {
		if opt = collapseWhitespace(opt); opt != "" {
			trimmed = append(trimmed, opt)
		}
	}

	kept := make([]string, 0, len(trimmed))
	for i, opt := range trimmed {
		if n.isCorruptedOption(opt, i, trimmed) {
			continue
		}
		kept = append(kept, opt)
	}

	if len(kept) < 2 {
		return trimmed
	}
	return kept
}

func (n *Normalizer) isCorruptedOption(opt string, index int, all []string) bool {
	lower := strings.ToLower(opt)

	contained := 0
	for i, other := range all {
		if i == index {
			continue
		}
		if other != "" && strings.Contains(lower, strings.ToLower(other)) {
			contained++
		}
	}
	if contained >= 2 {
		return true
	}

	return len(opt) > n.config.CorruptedOptionLength && !strings.ContainsAny(opt, " \t")
}

// typeRule maps keywords in question text to a type
type typeRule struct {
	keywords []string
	qType    question.QuestionType
}

// subjectTypeRules is the ordered per-subject rule chain; the first
// rule whose keyword appears in the lower-cased text wins.
var subjectTypeRules = map[question.Subject][]typeRule{
	question.SubjectMath: {
		{[]string{"fraction", "decimal", "percent"}, question.TypeFractions},
		{[]string{"solve for", "equation", "algebra", "value of x"}, question.TypeAlgebra},
		{[]string{"area", "perimeter", "angle", "triangle", "rectangle", "circle"}, question.TypeGeometry},
		{[]string{"train", "journey", "costs", "buys", "shares", "how many"}, question.TypeWordProblem},
	},
	question.SubjectEnglish: {
		{[]string{"passage", "paragraph", "according to the text"}, question.TypeComprehension},
		{[]string{"spelled", "spelling", "spelt"}, question.TypeSpelling},
		{[]string{"verb", "noun", "adjective", "punctuation", "grammar"}, question.TypeGrammar},
		{[]string{"synonym", "antonym", "means the same", "opposite"}, question.TypeVocabulary},
	},
	question.SubjectVerbalReasoning: {
		{[]string{"is to", "analogy"}, question.TypeAnalogy},
		{[]string{"sequence", "next in", "series"}, question.TypeSequence},
		{[]string{"code", "stands for"}, question.TypeCodeWord},
		{[]string{"odd one out", "does not belong"}, question.TypeOddOneOut},
	},
	question.SubjectNonVerbalReasoning: {
		{[]string{"rotated", "rotation", "turned"}, question.TypeRotation},
		{[]string{"mirror", "reflection", "reflected"}, question.TypeMirrorImage},
	},
	question.SubjectScience: {
		{[]string{"plant", "animal", "cell", "organ", "habitat"}, question.TypeBiology},
		{[]string{"element", "acid", "chemical", "reaction", "dissolve"}, question.TypeChemistry},
		{[]string{"force", "energy", "electric", "magnet", "gravity"}, question.TypePhysics},
	},
}

// defaultTypes is the per-subject fallback when nothing matches
var defaultTypes = map[question.Subject]question.QuestionType{
	question.SubjectMath:               question.TypeArithmetic,
	question.SubjectEnglish:            question.TypeVocabulary,
	question.SubjectVerbalReasoning:    question.TypeWordLogic,
	question.SubjectNonVerbalReasoning: question.TypePatternSeries,
	question.SubjectScience:            question.TypeBiology,
}

// classifyType prefers the source's category hint when it maps to a
// known type, then falls back to the keyword rule chain.
func (n *Normalizer) classifyType(subject question.Subject, category, text string) question.QuestionType {
	if category != "" {
		hint := question.QuestionType(strings.ReplaceAll(strings.ToLower(collapseWhitespace(category)), " ", "_"))
		if question.ValidType(subject, hint) {
			return hint
		}
	}

	lower := strings.ToLower(text)
	for _, rule := range subjectTypeRules[subject] {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.qType
			}
		}
	}

	return defaultTypes[subject]
}

// estimateDifficulty scores 1-5 from length, option count and
// complexity markers.
func (n *Normalizer) estimateDifficulty(text string, options []string) int {
	difficulty := 3

	words := len(strings.Fields(text))
	if words > 50 {
		difficulty++
	}
	if words < 15 {
		difficulty--
	}
	if len(options) >= 5 {
		difficulty++
	}

	lower := strings.ToLower(text)
	for _, marker := range complexityMarkers {
		if strings.Contains(lower, marker) {
			difficulty++
			break
		}
	}

	if difficulty < 1 {
		difficulty = 1
	}
	if difficulty > 5 {
		difficulty = 5
	}
	return difficulty
}

var (
	singleLetterPattern = regexp.MustCompile(`^([A-Ea-e])[.)]?\s*$`)
	multiLetterPattern  = regexp.MustCompile(`^[A-Ea-e][.)]?(\s*,\s*[A-Ea-e][.)]?)+$`)
	letterTokenPattern  = regexp.MustCompile(`[A-Ea-e]`)

	explanationAnswerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)the answer is\s+([^.,;\n]+)`),
		regexp.MustCompile(`(?i)correct answer is\s+([^.,;\n]+)`),
		regexp.MustCompile(`(?i)([^.,;\n]+?)\s+is correct`),
	}
)

// resolveAnswer runs the graceful-degradation chain: letter code,
// multi-letter list, verbatim text, explanation extraction, then the
// flagged first-option default. It always returns some value.
func (n *Normalizer) resolveAnswer(rawAnswer, explanation string, options []string) (string, bool) {
	answer := collapseWhitespace(rawAnswer)

	if answer != "" && answer != question.AnswerUnknown {
		if m := singleLetterPattern.FindStringSubmatch(answer); m != nil {
			if opt, ok := optionByLetter(m[1], options); ok {
				return opt, false
			}
		}

		if multiLetterPattern.MatchString(answer) {
			letters := letterTokenPattern.FindAllString(answer, -1)
			resolved := make([]string, 0, len(letters))
			for _, letter := range letters {
				if opt, ok := optionByLetter(letter, options); ok {
					resolved = append(resolved, opt)
				}
			}
			if len(resolved) == len(letters) {
				return strings.Join(resolved, ", "), false
			}
		}

		if !n.looksGarbled(answer, options) {
			for _, opt := range options {
				if strings.EqualFold(opt, answer) {
					return opt, false
				}
			}
		}
	}

	if fromExplanation, ok := extractAnswerFromExplanation(explanation, options); ok {
		return fromExplanation, false
	}

	return options[0], true
}

// looksGarbled detects answers that are several options concatenated
// by a broken parser.
func (n *Normalizer) looksGarbled(answer string, options []string) bool {
	lower := strings.ToLower(answer)

	matches := 0
	for _, opt := range options {
		if opt != "" && strings.Contains(lower, strings.ToLower(opt)) {
			matches++
		}
	}

	if len(answer) > n.config.CorruptedOptionLength/2 &&
		!strings.ContainsAny(answer, " \t") && matches >= 2 {
		return true
	}

	return answer == strings.ToUpper(answer) && answer != strings.ToLower(answer) && matches >= 2
}

// extractAnswerFromExplanation scans the explanation for the fixed
// answer-statement phrasings and resolves the captured value against
// the option list, as a letter or as text.
func extractAnswerFromExplanation(explanation string, options []string) (string, bool) {
	if explanation == "" {
		return "", false
	}

	for _, pattern := range explanationAnswerPatterns {
		m := pattern.FindStringSubmatch(explanation)
		if m == nil {
			continue
		}
		candidate := collapseWhitespace(m[1])

		// The capture often trails off into prose ("Berlin because it
		// has been..."), so try successively shorter word prefixes.
		words := strings.Fields(candidate)
		for k := len(words); k >= 1; k-- {
			prefix := strings.Join(words[:k], " ")

			if letter := singleLetterPattern.FindStringSubmatch(prefix); letter != nil {
				if opt, ok := optionByLetter(letter[1], options); ok {
					return opt, true
				}
			}
			for _, opt := range options {
				if strings.EqualFold(opt, prefix) {
					return opt, true
				}
			}
		}
	}

	return "", false
}

func optionByLetter(letter string, options []string) (string, bool) {
	if letter == "" {
		return "", false
	}
	index := int(strings.ToUpper(letter)[0] - 'A')
	if index < 0 || index >= len(options) {
		return "", false
	}
	return options[index], true
}

// visibleOptions caps the shown option list while keeping the resolved
// answer visible.
func (n *Normalizer) visibleOptions(options []string, answer string) []string {
	if n.config.MaxOptions <= 0 || len(options) <= n.config.MaxOptions {
		return options
	}

	shown := make([]string, n.config.MaxOptions)
	copy(shown, options[:n.config.MaxOptions])

	for _, opt := range shown {
		if opt == answer {
			return shown
		}
	}
	for _, opt := range options[n.config.MaxOptions:] {
		if opt == answer {
			shown[len(shown)-1] = opt
			break
		}
	}
	return shown
}

// subjectHints is the generic level-1 hint per subject
var subjectHints = map[question.Subject]string{
	question.SubjectMath:               "Break the problem into smaller steps and check each calculation.",
	question.SubjectEnglish:            "Read the question again slowly and look for clue words.",
	question.SubjectVerbalReasoning:    "Look for the relationship between the given words first.",
	question.SubjectNonVerbalReasoning: "Compare each figure to the previous one and note what changed.",
	question.SubjectScience:            "Think about what you know of the topic before reading the options.",
}

func (n *Normalizer) buildHints(subject question.Subject, options []string) []question.Hint {
	hints := []question.Hint{
		{Level: 1, Text: subjectHints[subject], Penalty: 0.1},
	}
	if len(options) >= 3 {
		hints = append(hints, question.Hint{
			Level:   2,
			Text:    "Eliminate the options you are sure are wrong first.",
			Penalty: 0.2,
		})
	}
	return hints
}

func (n *Normalizer) buildTags(subject question.Subject, raw *question.RawQuestion, needsReview bool) []string {
	tags := []string{string(subject)}
	if raw.Category != "" {
		tags = append(tags, strings.ToLower(collapseWhitespace(raw.Category)))
	}
	if raw.SourceName != "" {
		tags = append(tags, "source:"+raw.SourceName)
	}
	if needsReview {
		tags = append(tags, TagNeedsReview)
	}
	return tags
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
