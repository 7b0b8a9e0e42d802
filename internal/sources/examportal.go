package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/examforge/harvester/pkg/logging"
	"github.com/examforge/harvester/pkg/question"
)

const examPortalDefaultBase = "https://portal.examprep.io"

var examPortalSubjectIDs = map[question.Subject]string{
	question.SubjectMath:               "mathematics",
	question.SubjectEnglish:            "english",
	question.SubjectVerbalReasoning:    "verbal",
	question.SubjectNonVerbalReasoning: "non-verbal",
}

const examPortalSetsPerSubject = 4

// examPortalPayload mirrors the JSON blob the portal embeds for its
// client-side renderer.
type examPortalPayload struct {
	Questions []struct {
		Prompt      string   `json:"prompt"`
		Choices     []string `json:"choices"`
		Answer      string   `json:"answer"`
		Explanation string   `json:"explanation"`
		Topic       string   `json:"topic"`
		Images      []string `json:"images"`
	} `json:"questions"`
}

var windowDataPattern = regexp.MustCompile(`(?s)window\.__EXAM_DATA__\s*=\s*(\{.*?\})\s*;`)

// ExamPortalSource extracts questions from a portal that renders
// quizzes client-side. The server response carries the question set
// as embedded JSON, either in an application/json script tag or
// assigned to window.__EXAM_DATA__; a DOM strategy covers the few
// server-rendered fallback pages.
type ExamPortalSource struct {
	baseURL string
}

// NewExamPortalSource creates the extractor; an empty base URL uses
// the production portal.
func NewExamPortalSource(baseURL string) *ExamPortalSource {
	if baseURL == "" {
		baseURL = examPortalDefaultBase
	}
	return &ExamPortalSource{baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *ExamPortalSource) Name() string { return "examportal" }

func (s *ExamPortalSource) Subjects() []question.Subject {
	return []question.Subject{
		question.SubjectMath,
		question.SubjectEnglish,
		question.SubjectVerbalReasoning,
		question.SubjectNonVerbalReasoning,
	}
}

func (s *ExamPortalSource) CandidateURLs(_ context.Context, subject question.Subject) ([]string, error) {
	id, ok := examPortalSubjectIDs[subject]
	if !ok {
		return nil, fmt.Errorf("subject %s not offered by %s", subject, s.Name())
	}

	urls := make([]string, 0, examPortalSetsPerSubject)
	for set := 1; set <= examPortalSetsPerSubject; set++ {
		urls = append(urls, fmt.Sprintf("%s/quiz/%s/set-%d", s.baseURL, id, set))
	}
	return urls, nil
}

func (s *ExamPortalSource) Extract(url string, page []byte) ([]question.RawQuestion, error) {
	logger := logging.GetLogger("examportal")
	strategies := []Strategy{
		{Name: "json-script-tag", Run: extractExamPortalScriptTag},
		{Name: "window-data", Run: extractExamPortalWindowData},
		{Name: "rendered-dom", Run: extractExamPortalDOM},
	}
	return RunStrategies(logger, url, page, strategies), nil
}

// extractExamPortalScriptTag reads the question payload from the
// portal's <script id="exam-data" type="application/json"> tag.
func extractExamPortalScriptTag(page []byte) ([]question.RawQuestion, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	blob := doc.Find(`script#exam-data[type="application/json"]`).First().Text()
	if strings.TrimSpace(blob) == "" {
		return nil, nil
	}
	return decodeExamPortalPayload([]byte(blob))
}

// extractExamPortalWindowData handles older pages that assign the
// payload to window.__EXAM_DATA__ inside an inline script.
func extractExamPortalWindowData(page []byte) ([]question.RawQuestion, error) {
	m := windowDataPattern.FindSubmatch(page)
	if m == nil {
		return nil, nil
	}
	return decodeExamPortalPayload(m[1])
}

func decodeExamPortalPayload(blob []byte) ([]question.RawQuestion, error) {
	var payload examPortalPayload
	if err := json.Unmarshal(blob, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode embedded payload: %w", err)
	}

	out := make([]question.RawQuestion, 0, len(payload.Questions))
	for _, q := range payload.Questions {
		if strings.TrimSpace(q.Prompt) == "" {
			continue
		}
		answer := strings.TrimSpace(q.Answer)
		if answer == "" {
			answer = question.AnswerUnknown
		}
		out = append(out, question.RawQuestion{
			QuestionText:  strings.TrimSpace(q.Prompt),
			Options:       q.Choices,
			CorrectAnswer: answer,
			Explanation:   strings.TrimSpace(q.Explanation),
			Category:      strings.TrimSpace(q.Topic),
			ImageRefs:     q.Images,
		})
	}
	return out, nil
}

// extractExamPortalDOM covers the portal's no-script fallback pages
func extractExamPortalDOM(page []byte) ([]question.RawQuestion, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	var out []question.RawQuestion
	doc.Find("section.quiz-item").Each(func(_ int, item *goquery.Selection) {
		raw := question.RawQuestion{
			QuestionText:  strings.TrimSpace(item.Find("h3").First().Text()),
			CorrectAnswer: question.AnswerUnknown,
		}
		item.Find("li.choice").Each(func(_ int, li *goquery.Selection) {
			if opt := strings.TrimSpace(li.Text()); opt != "" {
				raw.Options = append(raw.Options, opt)
			}
		})
		if answer, ok := item.Find("li.choice[data-correct='true']").First().Attr("data-value"); ok {
			raw.CorrectAnswer = strings.TrimSpace(answer)
		}
		if raw.QuestionText != "" {
			out = append(out, raw)
		}
	})

	return out, nil
}
