package sources

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/examforge/harvester/pkg/logging"
	"github.com/examforge/harvester/pkg/question"
)

const pastPapersDefaultBase = "https://pastpaperarchive.co.uk"

var pastPapersSubjectPaths = map[question.Subject][]string{
	question.SubjectMath:            {"papers/maths-paper-1", "papers/maths-paper-2", "papers/mental-arithmetic"},
	question.SubjectEnglish:         {"papers/english-paper-1", "papers/english-comprehension"},
	question.SubjectVerbalReasoning: {"papers/vr-pack-a", "papers/vr-pack-b"},
	question.SubjectScience:         {"papers/science-sampler"},
}

// Line patterns for the archive's loosely formatted paper transcripts
var (
	ppQuestionStart = regexp.MustCompile(`^\s*(?:Q(?:uestion)?\s*)?(\d{1,3})[.)]\s+(.*)$`)
	ppOptionLine    = regexp.MustCompile(`^\s*\(?([A-Ea-e])[.)]\s+(.*)$`)
	ppAnswerLine    = regexp.MustCompile(`(?i)^\s*(?:answer|ans)\s*[:\-]\s*(.+)$`)
	ppExplainLine   = regexp.MustCompile(`(?i)^\s*(?:explanation|solution|working)\s*[:\-]\s*(.+)$`)
)

// PastPapersSource extracts questions from the past-paper archive.
// Pages there are transcriptions of printed papers with no usable
// structure, so extraction flattens the page to text and scans it
// line by line with the numbered-question / lettered-option patterns.
type PastPapersSource struct {
	baseURL string
}

// NewPastPapersSource creates the extractor; an empty base URL uses
// the production archive.
func NewPastPapersSource(baseURL string) *PastPapersSource {
	if baseURL == "" {
		baseURL = pastPapersDefaultBase
	}
	return &PastPapersSource{baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *PastPapersSource) Name() string { return "pastpapers" }

func (s *PastPapersSource) Subjects() []question.Subject {
	return []question.Subject{
		question.SubjectMath,
		question.SubjectEnglish,
		question.SubjectVerbalReasoning,
		question.SubjectScience,
	}
}

func (s *PastPapersSource) CandidateURLs(_ context.Context, subject question.Subject) ([]string, error) {
	paths, ok := pastPapersSubjectPaths[subject]
	if !ok {
		return nil, fmt.Errorf("subject %s not offered by %s", subject, s.Name())
	}

	urls := make([]string, 0, len(paths))
	for _, path := range paths {
		urls = append(urls, fmt.Sprintf("%s/%s", s.baseURL, path))
	}
	return urls, nil
}

func (s *PastPapersSource) Extract(url string, page []byte) ([]question.RawQuestion, error) {
	logger := logging.GetLogger("pastpapers")
	strategies := []Strategy{
		{Name: "numbered-text", Run: extractPastPaperText},
	}
	return RunStrategies(logger, url, page, strategies), nil
}

// extractPastPaperText flattens the page and scans for numbered
// questions with lettered options. Inline "Answer:" and
// "Explanation:" lines attach to the current question.
func extractPastPaperText(page []byte) ([]question.RawQuestion, error) {
	text, err := flattenHTML(page)
	if err != nil {
		return nil, err
	}

	var out []question.RawQuestion
	var current *question.RawQuestion
	sawOption := false

	flush := func() {
		if current != nil && current.QuestionText != "" {
			out = append(out, *current)
		}
		current = nil
		sawOption = false
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := ppQuestionStart.FindStringSubmatch(line); m != nil {
			flush()
			current = &question.RawQuestion{
				QuestionText:  strings.TrimSpace(m[2]),
				CorrectAnswer: question.AnswerUnknown,
			}
			continue
		}

		if current == nil {
			continue
		}

		if m := ppOptionLine.FindStringSubmatch(line); m != nil {
			current.Options = append(current.Options, strings.TrimSpace(m[2]))
			sawOption = true
			continue
		}

		if m := ppAnswerLine.FindStringSubmatch(line); m != nil {
			current.CorrectAnswer = strings.TrimSpace(m[1])
			continue
		}

		if m := ppExplainLine.FindStringSubmatch(line); m != nil {
			current.Explanation = strings.TrimSpace(m[1])
			continue
		}

		// Continuation lines before the first option extend the stem
		if !sawOption {
			current.QuestionText += " " + line
		}
	}
	flush()

	return out, nil
}
