package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/examforge/harvester/pkg/logging"
	"github.com/examforge/harvester/pkg/question"
)

const openQuizDefaultBase = "https://www.openquizbank.org"

// openQuizSubjectSlugs maps subjects to the site's URL section names
var openQuizSubjectSlugs = map[question.Subject]string{
	question.SubjectMath:            "maths",
	question.SubjectEnglish:         "english",
	question.SubjectVerbalReasoning: "verbal-reasoning",
	question.SubjectScience:         "science",
}

const openQuizPagesPerSubject = 5

// OpenQuizSource extracts questions from the OpenQuizBank practice
// pages. The site has shipped three different quiz layouts over the
// years, so extraction runs an ordered strategy chain: the current
// card markup, the older ordered-list markup, then a table layout
// still used by a few archived sections.
type OpenQuizSource struct {
	baseURL string
}

// NewOpenQuizSource creates the extractor; an empty base URL uses the
// production site.
func NewOpenQuizSource(baseURL string) *OpenQuizSource {
	if baseURL == "" {
		baseURL = openQuizDefaultBase
	}
	return &OpenQuizSource{baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *OpenQuizSource) Name() string { return "openquiz" }

func (s *OpenQuizSource) Subjects() []question.Subject {
	return []question.Subject{
		question.SubjectMath,
		question.SubjectEnglish,
		question.SubjectVerbalReasoning,
		question.SubjectScience,
	}
}

// CandidateURLs builds the paginated practice URLs for a subject
func (s *OpenQuizSource) CandidateURLs(_ context.Context, subject question.Subject) ([]string, error) {
	slug, ok := openQuizSubjectSlugs[subject]
	if !ok {
		return nil, fmt.Errorf("subject %s not offered by %s", subject, s.Name())
	}

	urls := make([]string, 0, openQuizPagesPerSubject)
	for page := 1; page <= openQuizPagesPerSubject; page++ {
		urls = append(urls, fmt.Sprintf("%s/practice/%s?page=%d", s.baseURL, slug, page))
	}
	return urls, nil
}

// Extract runs the strategy chain against a fetched page
func (s *OpenQuizSource) Extract(url string, page []byte) ([]question.RawQuestion, error) {
	logger := logging.GetLogger("openquiz")
	strategies := []Strategy{
		{Name: "question-cards", Run: extractOpenQuizCards},
		{Name: "ordered-list", Run: extractOpenQuizList},
		{Name: "legacy-table", Run: extractOpenQuizTable},
	}
	return RunStrategies(logger, url, page, strategies), nil
}

// extractOpenQuizCards handles the current markup: one
// div.question-card per question with explicit answer/explanation
// nodes and the category carried on a data attribute.
func extractOpenQuizCards(page []byte) ([]question.RawQuestion, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	var out []question.RawQuestion
	doc.Find("div.question-card").Each(func(_ int, card *goquery.Selection) {
		raw := question.RawQuestion{
			QuestionText:  strings.TrimSpace(card.Find(".question-text").First().Text()),
			CorrectAnswer: question.AnswerUnknown,
		}

		card.Find("ul.options li").Each(func(_ int, li *goquery.Selection) {
			if opt := strings.TrimSpace(li.Text()); opt != "" {
				raw.Options = append(raw.Options, opt)
			}
		})

		if answer, ok := card.Attr("data-answer"); ok && strings.TrimSpace(answer) != "" {
			raw.CorrectAnswer = strings.TrimSpace(answer)
		} else if answer := strings.TrimSpace(card.Find(".correct-answer").First().Text()); answer != "" {
			raw.CorrectAnswer = answer
		}

		raw.Explanation = strings.TrimSpace(card.Find(".explanation").First().Text())
		if category, ok := card.Attr("data-category"); ok {
			raw.Category = strings.TrimSpace(category)
		}

		card.Find(".question-text img, .question-media img").Each(func(_ int, img *goquery.Selection) {
			if src, ok := img.Attr("src"); ok {
				raw.ImageRefs = append(raw.ImageRefs, src)
			}
		})

		if raw.QuestionText != "" {
			out = append(out, raw)
		}
	})

	return out, nil
}

// extractOpenQuizList handles the older markup: an ordered list of
// questions where the answer sits in a span inside each item.
func extractOpenQuizList(page []byte) ([]question.RawQuestion, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	var out []question.RawQuestion
	doc.Find("ol.quiz-questions > li").Each(func(_ int, item *goquery.Selection) {
		raw := question.RawQuestion{
			QuestionText:  strings.TrimSpace(item.Find("p.stem").First().Text()),
			CorrectAnswer: question.AnswerUnknown,
		}

		item.Find("ul.choices li").Each(func(_ int, li *goquery.Selection) {
			if opt := strings.TrimSpace(li.Text()); opt != "" {
				raw.Options = append(raw.Options, opt)
			}
		})

		if answer := strings.TrimSpace(item.Find("span.answer").First().Text()); answer != "" {
			raw.CorrectAnswer = answer
		}
		raw.Explanation = strings.TrimSpace(item.Find("div.why").First().Text())

		if raw.QuestionText != "" {
			out = append(out, raw)
		}
	})

	return out, nil
}

// extractOpenQuizTable handles archived sections that render quizzes
// as a table: question, pipe-separated options, answer, explanation.
func extractOpenQuizTable(page []byte) ([]question.RawQuestion, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	var out []question.RawQuestion
	doc.Find("table.quiz tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		raw := question.RawQuestion{
			QuestionText:  strings.TrimSpace(cells.Eq(0).Text()),
			CorrectAnswer: strings.TrimSpace(cells.Eq(2).Text()),
		}
		for _, opt := range strings.Split(cells.Eq(1).Text(), "|") {
			if opt = strings.TrimSpace(opt); opt != "" {
				raw.Options = append(raw.Options, opt)
			}
		}
		if cells.Length() > 3 {
			raw.Explanation = strings.TrimSpace(cells.Eq(3).Text())
		}
		if raw.CorrectAnswer == "" {
			raw.CorrectAnswer = question.AnswerUnknown
		}

		if raw.QuestionText != "" {
			out = append(out, raw)
		}
	})

	return out, nil
}
