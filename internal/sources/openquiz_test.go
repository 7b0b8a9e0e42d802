package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examforge/harvester/pkg/question"
)

const openQuizCardPage = `<html><body>
<div class="question-card" data-answer="B" data-category="arithmetic">
  <p class="question-text">What is 7 x 8?</p>
  <ul class="options"><li>54</li><li>56</li><li>63</li><li>64</li></ul>
  <div class="explanation">7 multiplied by 8 equals 56.</div>
</div>
<div class="question-card">
  <p class="question-text">What is half of 90?</p>
  <ul class="options"><li>40</li><li>45</li><li>50</li></ul>
  <span class="correct-answer">45</span>
</div>
</body></html>`

const openQuizListPage = `<html><body>
<ol class="quiz-questions">
  <li>
    <p class="stem">Which word is a synonym of rapid?</p>
    <ul class="choices"><li>slow</li><li>quick</li><li>late</li></ul>
    <span class="answer">quick</span>
    <div class="why">Rapid means fast.</div>
  </li>
</ol>
</body></html>`

const openQuizTablePage = `<html><body>
<table class="quiz"><tbody>
<tr><td>What is 12 + 9?</td><td>19 | 20 | 21</td><td>21</td><td>Add the units first.</td></tr>
<tr><td>What is 30 / 5?</td><td>5 | 6 | 7</td><td>6</td></tr>
</tbody></table>
</body></html>`

func TestOpenQuizCardStrategy(t *testing.T) {
	src := NewOpenQuizSource("")
	raw, err := src.Extract("https://example.com/p1", []byte(openQuizCardPage))
	require.NoError(t, err)
	require.Len(t, raw, 2)

	assert.Equal(t, "What is 7 x 8?", raw[0].QuestionText)
	assert.Equal(t, []string{"54", "56", "63", "64"}, raw[0].Options)
	assert.Equal(t, "B", raw[0].CorrectAnswer)
	assert.Equal(t, "arithmetic", raw[0].Category)
	assert.Equal(t, "7 multiplied by 8 equals 56.", raw[0].Explanation)

	assert.Equal(t, "45", raw[1].CorrectAnswer)
}

func TestOpenQuizFallsBackToListStrategy(t *testing.T) {
	src := NewOpenQuizSource("")
	raw, err := src.Extract("https://example.com/p2", []byte(openQuizListPage))
	require.NoError(t, err)
	require.Len(t, raw, 1)

	assert.Equal(t, "Which word is a synonym of rapid?", raw[0].QuestionText)
	assert.Equal(t, "quick", raw[0].CorrectAnswer)
	assert.Equal(t, "Rapid means fast.", raw[0].Explanation)
}

func TestOpenQuizFallsBackToTableStrategy(t *testing.T) {
	src := NewOpenQuizSource("")
	raw, err := src.Extract("https://example.com/p3", []byte(openQuizTablePage))
	require.NoError(t, err)
	require.Len(t, raw, 2)

	assert.Equal(t, []string{"19", "20", "21"}, raw[0].Options)
	assert.Equal(t, "21", raw[0].CorrectAnswer)
	assert.Equal(t, "6", raw[1].CorrectAnswer)
	assert.Empty(t, raw[1].Explanation)
}

func TestOpenQuizEmptyPageYieldsNothing(t *testing.T) {
	src := NewOpenQuizSource("")
	raw, err := src.Extract("https://example.com/empty", []byte("<html><body><p>maintenance</p></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestOpenQuizCandidateURLs(t *testing.T) {
	src := NewOpenQuizSource("https://quiz.test")
	urls, err := src.CandidateURLs(context.Background(), question.SubjectMath)
	require.NoError(t, err)
	require.Len(t, urls, openQuizPagesPerSubject)
	assert.Equal(t, "https://quiz.test/practice/maths?page=1", urls[0])

	_, err = src.CandidateURLs(context.Background(), question.SubjectNonVerbalReasoning)
	assert.Error(t, err)
}
