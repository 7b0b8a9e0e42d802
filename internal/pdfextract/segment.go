package pdfextract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/examforge/harvester/pkg/logging"
	"github.com/examforge/harvester/pkg/question"
)

var (
	questionStartPattern = regexp.MustCompile(`(?m)^[ \t]*(\d{1,3})[.)][ \t]+`)
	optionLinePattern    = regexp.MustCompile(`^\s*\(?([A-Ea-e])[.)][ \t]+(.*)$`)
	answerKeyHeading     = regexp.MustCompile(`(?im)^\s*(?:answer\s*key|answers|solutions)\s*:?\s*$`)
	answerKeyEntry       = regexp.MustCompile(`(\d{1,3})\s*[.):\-]?\s*([A-Ea-e])\b`)
)

// ParseQuestions segments extracted PDF text into raw question
// candidates. Each candidate spans from one numbered question start to
// the next; lettered lines inside the span become options, and
// non-option lines before the first option extend the question text.
// An answer-key section, when present, takes precedence over anything
// inline; without one the answer stays Unknown so the normalizer
// applies its flagged first-option default.
func ParseQuestions(text string) []question.RawQuestion {
	logger := logging.GetLogger("pdf-segment")

	body, key := splitAnswerKey(text)

	starts := questionStartPattern.FindAllStringSubmatchIndex(body, -1)
	if len(starts) == 0 {
		logger.Warn().Msg("No question starts found in PDF text")
		return nil
	}

	out := make([]question.RawQuestion, 0, len(starts))
	for idx, start := range starts {
		spanEnd := len(body)
		if idx+1 < len(starts) {
			spanEnd = starts[idx+1][0]
		}

		number, err := strconv.Atoi(body[start[2]:start[3]])
		if err != nil {
			continue
		}
		span := body[start[1]:spanEnd]

		raw := parseSpan(span)
		if raw == nil {
			continue
		}

		if letter, ok := key[number]; ok {
			raw.CorrectAnswer = letter
		}
		out = append(out, *raw)
	}

	logger.Debug().
		Int("questions", len(out)).
		Int("answer_key_entries", len(key)).
		Msg("PDF text segmented")

	return out
}

// parseSpan parses the text of one question candidate
func parseSpan(span string) *question.RawQuestion {
	raw := &question.RawQuestion{CorrectAnswer: question.AnswerUnknown}

	var stem []string
	for _, line := range strings.Split(span, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := optionLinePattern.FindStringSubmatch(line); m != nil {
			raw.Options = append(raw.Options, strings.TrimSpace(m[2]))
			continue
		}

		if len(raw.Options) == 0 {
			stem = append(stem, line)
		}
	}

	raw.QuestionText = strings.TrimSpace(strings.Join(stem, " "))
	if raw.QuestionText == "" {
		return nil
	}
	return raw
}

// splitAnswerKey cuts the text at an answer-key heading and parses the
// key section into a question-number to answer-letter map.
func splitAnswerKey(text string) (string, map[int]string) {
	key := make(map[int]string)

	loc := answerKeyHeading.FindStringIndex(text)
	if loc == nil {
		return text, key
	}

	body := text[:loc[0]]
	section := text[loc[1]:]

	for _, m := range answerKeyEntry.FindAllStringSubmatch(section, -1) {
		number, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		key[number] = strings.ToUpper(m[2])
	}

	return body, key
}

// AttachImages assigns extracted images to questions by position. If
// counts match exactly, each question gets one image in document
// order; if images outnumber questions, each question gets an even
// slice; otherwise nothing is attached. This is a best-effort
// heuristic with no correctness guarantee, so uneven cases stay
// unattached and attached questions keep their low confidence.
func AttachImages(questions []question.RawQuestion, images []ImageRef) {
	if len(questions) == 0 || len(images) == 0 {
		return
	}

	logger := logging.GetLogger("pdf-images")

	switch {
	case len(images) == len(questions):
		for i := range questions {
			questions[i].ImageRefs = append(questions[i].ImageRefs, images[i].Ref())
		}
	case len(images) > len(questions):
		per := len(images) / len(questions)
		for i := range questions {
			for _, img := range images[i*per : (i+1)*per] {
				questions[i].ImageRefs = append(questions[i].ImageRefs, img.Ref())
			}
		}
	default:
		logger.Warn().
			Int("images", len(images)).
			Int("questions", len(questions)).
			Msg("Image count below question count, leaving images unattached")
	}
}
