package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examforge/harvester/pkg/question"
)

const examPortalScriptPage = `<html><head>
<script id="exam-data" type="application/json">
{"questions":[
  {"prompt":"Which planet is closest to the sun?","choices":["Venus","Mercury","Mars"],"answer":"Mercury","explanation":"Mercury orbits nearest.","topic":"physics"},
  {"prompt":"Select the odd one out.","choices":["apple","pear","carrot","plum"],"answer":"carrot","topic":"odd_one_out","images":["img/q2.png"]}
]}
</script>
</head><body><div id="app"></div></body></html>`

const examPortalWindowPage = `<html><body>
<script>
window.__EXAM_DATA__ = {"questions":[{"prompt":"What is 9 squared?","choices":["18","81","99"],"answer":"81"}]};
</script>
</body></html>`

const examPortalDOMPage = `<html><body>
<section class="quiz-item">
  <h3>Pick the correctly spelled word.</h3>
  <ul>
    <li class="choice" data-value="necessary" data-correct="true">necessary</li>
    <li class="choice" data-value="neccessary">neccessary</li>
  </ul>
</section>
</body></html>`

func TestExamPortalScriptTagStrategy(t *testing.T) {
	src := NewExamPortalSource("")
	raw, err := src.Extract("https://example.com/set-1", []byte(examPortalScriptPage))
	require.NoError(t, err)
	require.Len(t, raw, 2)

	assert.Equal(t, "Which planet is closest to the sun?", raw[0].QuestionText)
	assert.Equal(t, "Mercury", raw[0].CorrectAnswer)
	assert.Equal(t, "physics", raw[0].Category)
	assert.Equal(t, "Mercury orbits nearest.", raw[0].Explanation)

	assert.Equal(t, []string{"img/q2.png"}, raw[1].ImageRefs)
}

func TestExamPortalWindowDataStrategy(t *testing.T) {
	src := NewExamPortalSource("")
	raw, err := src.Extract("https://example.com/set-2", []byte(examPortalWindowPage))
	require.NoError(t, err)
	require.Len(t, raw, 1)

	assert.Equal(t, "What is 9 squared?", raw[0].QuestionText)
	assert.Equal(t, "81", raw[0].CorrectAnswer)
}

func TestExamPortalDOMFallback(t *testing.T) {
	src := NewExamPortalSource("")
	raw, err := src.Extract("https://example.com/set-3", []byte(examPortalDOMPage))
	require.NoError(t, err)
	require.Len(t, raw, 1)

	assert.Equal(t, "Pick the correctly spelled word.", raw[0].QuestionText)
	assert.Equal(t, []string{"necessary", "neccessary"}, raw[0].Options)
	assert.Equal(t, "necessary", raw[0].CorrectAnswer)
}

func TestExamPortalMissingAnswerBecomesUnknown(t *testing.T) {
	page := `<html><script id="exam-data" type="application/json">{"questions":[{"prompt":"Untracked?","choices":["a","b"]}]}</script></html>`
	src := NewExamPortalSource("")
	raw, err := src.Extract("https://example.com/set-4", []byte(page))
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, question.AnswerUnknown, raw[0].CorrectAnswer)
}

func TestExamPortalCandidateURLs(t *testing.T) {
	src := NewExamPortalSource("https://portal.test")
	urls, err := src.CandidateURLs(context.Background(), question.SubjectNonVerbalReasoning)
	require.NoError(t, err)
	require.Len(t, urls, examPortalSetsPerSubject)
	assert.Equal(t, "https://portal.test/quiz/non-verbal/set-1", urls[0])

	_, err = src.CandidateURLs(context.Background(), question.SubjectScience)
	assert.Error(t, err)
}
