package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examforge/harvester/internal/export"
	"github.com/examforge/harvester/internal/fetch"
	"github.com/examforge/harvester/internal/sources"
	"github.com/examforge/harvester/internal/store"
	"github.com/examforge/harvester/pkg/question"
)

// stubSource serves a fixed set of questions through a real HTTP
// round trip so the fetcher stays in the loop.
type stubSource struct {
	name      string
	baseURL   string
	questions []question.RawQuestion
}

func (s *stubSource) Name() string                 { return s.name }
func (s *stubSource) Subjects() []question.Subject { return []question.Subject{question.SubjectMath} }

func (s *stubSource) CandidateURLs(ctx context.Context, subject question.Subject) ([]string, error) {
	return []string{s.baseURL + "/math"}, nil
}

func (s *stubSource) Extract(url string, page []byte) ([]question.RawQuestion, error) {
	var out []question.RawQuestion
	if err := json.Unmarshal(page, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	config := DefaultConfig()
	config.Fetch = &fetch.Config{
		UserAgent:      "test",
		Timeout:        2 * time.Second,
		MinDelay:       0,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
		MaxContentSize: 1 << 20,
	}
	config.Export = &export.Config{OutputDir: t.TempDir(), Indent: false, ValidateSchema: true}
	config.Crawl = &CrawlConfig{
		Sources:            []string{"stub"},
		Subjects:           []question.Subject{question.SubjectMath},
		MaxConcurrentUnits: 2,
	}
	return config
}

func stubServer(t *testing.T, questions []question.RawQuestion) *httptest.Server {
	t.Helper()
	payload, err := json.Marshal(questions)
	require.NoError(t, err)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	t.Cleanup(server.Close)
	return server
}

func fixtureQuestions() []question.RawQuestion {
	return []question.RawQuestion{
		{
			QuestionText:  "What is 6 x 7?",
			Options:       []string{"40", "42", "44", "46"},
			CorrectAnswer: "B",
			Explanation:   "Six sevens are 42, by the standard times table.",
		},
		{
			QuestionText:  "What is 6 x 7?",
			Options:       []string{"40", "42", "44", "46"},
			CorrectAnswer: "B",
		},
		{
			QuestionText:  "What is half of 90?",
			Options:       []string{"40", "45"},
			CorrectAnswer: "B",
			Explanation:   "Dividing 90 by two gives 45 exactly.",
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	server := stubServer(t, fixtureQuestions())
	registry := sources.NewRegistry(&stubSource{name: "stub", baseURL: server.URL})

	config := testConfig(t)
	config.Store = &StoreConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "corpus.db")}

	o, err := NewOrchestrator(config, registry, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []EventType
	o.Bus().Subscribe(nil, func(e *RunEvent) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
	})

	stats, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.UnitsRun)
	assert.Zero(t, stats.UnitsWithError)
	assert.Equal(t, 3, stats.RawQuestions)
	assert.Equal(t, 3, stats.Normalized)
	assert.Equal(t, 2, stats.Valid, "identical stems collapse to one")
	assert.Equal(t, 1, stats.Duplicates)
	assert.Zero(t, stats.Invalid)
	assert.Equal(t, 2, stats.Inserted)
	assert.Zero(t, stats.Updated)
	assert.NotEmpty(t, stats.CorpusPath)
	require.NotNil(t, stats.CompletedAt)

	var corpus export.CorpusFile
	raw, err := os.ReadFile(stats.CorpusPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &corpus))
	assert.Equal(t, 2, corpus.TotalQuestions)
	assert.Equal(t, "42", corpus.Questions[0].Answer.Value)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, EventUnitStarted)
	assert.Contains(t, seen, EventUnitCompleted)
	assert.Contains(t, seen, EventAggregationCompleted)
	assert.Contains(t, seen, EventRunCompleted)
}

func TestRunSeedsDedupFromPriorCorpus(t *testing.T) {
	server := stubServer(t, fixtureQuestions())
	registry := sources.NewRegistry(&stubSource{name: "stub", baseURL: server.URL})

	config := testConfig(t)
	config.Store = &StoreConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "corpus.db")}

	o, err := NewOrchestrator(config, registry, nil)
	require.NoError(t, err)

	first, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, first.Inserted)

	// The second run sees every fingerprint already stored
	second, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Valid)
	assert.Equal(t, 3, second.Duplicates)
	assert.Zero(t, second.Inserted)

	s, err := store.NewSQLiteStore(config.Store.Path)
	require.NoError(t, err)
	defer s.Close()
	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRunDryRunMakesNoRequests(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()
	registry := sources.NewRegistry(&stubSource{name: "stub", baseURL: server.URL})

	config := testConfig(t)
	config.DryRun = true
	config.Crawl.PDFJobs = []PDFJob{{Subject: question.SubjectMath, URL: server.URL + "/paper.pdf"}}

	o, err := NewOrchestrator(config, registry, nil)
	require.NoError(t, err)

	stats, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, atomic.LoadInt32(&hits), "dry run must not touch the network")
	assert.Zero(t, stats.RawQuestions)
	assert.Zero(t, stats.UnitsRun)
	assert.Empty(t, stats.CorpusPath)
	require.NotNil(t, stats.CompletedAt)

	// Intended targets are reported instead
	require.Len(t, stats.Planned, 2)
	assert.Equal(t, "stub", stats.Planned[0].Source)
	assert.Equal(t, []string{server.URL + "/math"}, stats.Planned[0].URLs)
	assert.Equal(t, "pdf", stats.Planned[1].Source)
	assert.Equal(t, []string{server.URL + "/paper.pdf"}, stats.Planned[1].URLs)
}

func TestRunSkipValidationExportsEverything(t *testing.T) {
	server := stubServer(t, fixtureQuestions())
	registry := sources.NewRegistry(&stubSource{name: "stub", baseURL: server.URL})

	config := testConfig(t)
	config.SkipValidation = true

	o, err := NewOrchestrator(config, registry, nil)
	require.NoError(t, err)

	stats, err := o.Run(context.Background())
	require.NoError(t, err)

	// The duplicate question survives because dedup never ran
	assert.Equal(t, 3, stats.Valid)
	assert.Zero(t, stats.Duplicates)
	assert.Zero(t, stats.Invalid)

	var corpus export.CorpusFile
	raw, err := os.ReadFile(stats.CorpusPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &corpus))
	assert.Equal(t, 3, corpus.TotalQuestions)
}

func TestRunUnknownSourceIsConfigError(t *testing.T) {
	config := testConfig(t)
	config.Crawl.Sources = []string{"nope"}

	o, err := NewOrchestrator(config, sources.DefaultRegistry(), nil)
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestRunSurvivesFailingUnit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()
	registry := sources.NewRegistry(&stubSource{name: "stub", baseURL: server.URL})

	o, err := NewOrchestrator(testConfig(t), registry, nil)
	require.NoError(t, err)

	stats, err := o.Run(context.Background())
	require.NoError(t, err, "unit failures never fail the run")
	assert.Equal(t, 1, stats.UnitsRun)
	assert.Equal(t, 1, stats.UnitsWithError)
	assert.Zero(t, stats.RawQuestions)
}
