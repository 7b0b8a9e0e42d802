package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/examforge/harvester/internal/export"
	"github.com/examforge/harvester/internal/fetch"
	"github.com/examforge/harvester/internal/normalize"
	"github.com/examforge/harvester/internal/pdfextract"
	"github.com/examforge/harvester/internal/sources"
	"github.com/examforge/harvester/internal/store"
	"github.com/examforge/harvester/internal/validate"
	"github.com/examforge/harvester/pkg/logging"
	"github.com/examforge/harvester/pkg/question"
)

// RunStats summarizes one harvest run. Unit errors live inside the
// per-unit crawl results; Errors here only carries run-level failures
// such as an unwritable export directory.
type RunStats struct {
	RunID       string     `json:"run_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	UnitsRun       int `json:"units_run"`
	UnitsWithError int `json:"units_with_error"`
	PDFJobsRun     int `json:"pdf_jobs_run"`
	PDFJobsFailed  int `json:"pdf_jobs_failed"`

	RawQuestions     int `json:"raw_questions"`
	Normalized       int `json:"normalized"`
	DroppedMalformed int `json:"dropped_malformed"`

	Valid          int            `json:"valid"`
	Invalid        int            `json:"invalid"`
	Duplicates     int            `json:"duplicates"`
	HighQuality    int            `json:"high_quality"`
	LowQuality     int            `json:"low_quality"`
	Confidence     map[string]int `json:"confidence,omitempty"`
	SchemaRejected int            `json:"schema_rejected"`

	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`

	CorpusPath string   `json:"corpus_path,omitempty"`
	Errors     []string `json:"errors,omitempty"`

	// Planned is filled on dry runs instead of any of the above
	Planned []PlannedTarget `json:"planned,omitempty"`
}

// PlannedTarget is one crawl or PDF target a dry run would visit
type PlannedTarget struct {
	Source  string           `json:"source"`
	Subject question.Subject `json:"subject"`
	URLs    []string         `json:"urls"`
}

// Complete freezes the stats
func (s *RunStats) Complete() {
	now := time.Now().UTC()
	s.CompletedAt = &now
}

// AddError records a run-level failure
func (s *RunStats) AddError(format string, args ...interface{}) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// Orchestrator drives a full harvest run: concurrent crawl units and
// PDF jobs, then a single-threaded aggregation pass over everything
// they produced.
type Orchestrator struct {
	config     *Config
	registry   *sources.Registry
	normalizer *normalize.Normalizer
	exporter   *export.Exporter
	pdf        *pdfextract.Extractor
	bus        *EventBus
	logger     zerolog.Logger
}

// NewOrchestrator wires an orchestrator from configuration. A nil bus
// creates a private one.
func NewOrchestrator(config *Config, registry *sources.Registry, bus *EventBus) (*Orchestrator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Check(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = sources.DefaultRegistry()
	}
	if bus == nil {
		bus = NewEventBus()
	}

	return &Orchestrator{
		config:     config,
		registry:   registry,
		normalizer: normalize.New(config.Normalize),
		exporter:   export.New(config.Export),
		pdf:        pdfextract.New(config.PDF),
		bus:        bus,
		logger:     logging.GetLogger("orchestrator"),
	}, nil
}

// Bus exposes the event bus for subscribers
func (o *Orchestrator) Bus() *EventBus { return o.bus }

// unit is one (source, subject) crawl
type unit struct {
	source  sources.Source
	subject question.Subject
}

// Run executes the whole pipeline and always returns stats, even when
// every unit failed. The error is non-nil only for run-level problems.
func (o *Orchestrator) Run(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	logger := logging.GetStageLogger(stats.RunID, "run")
	logger.Info().Msg("Starting harvest run")

	units, err := o.buildUnits()
	if err != nil {
		return stats, err
	}

	// A dry run resolves targets and stops before any fetch
	if o.config.DryRun {
		o.plan(ctx, stats, units)
		stats.Complete()
		logger.Info().Int("targets", len(stats.Planned)).Msg("Dry run, no pages fetched")
		return stats, nil
	}

	results := o.runUnits(ctx, stats.RunID, units)
	stats.UnitsRun = len(results)
	for _, r := range results {
		if len(r.Errors) > 0 {
			stats.UnitsWithError++
		}
	}

	pdfResults := o.runPDFJobs(ctx, stats.RunID)
	stats.PDFJobsRun = len(pdfResults)
	for _, r := range pdfResults {
		if len(r.Errors) > 0 {
			stats.PDFJobsFailed++
		}
	}
	results = append(results, pdfResults...)

	for _, r := range results {
		stats.RawQuestions += len(r.Questions)
		if _, err := o.exporter.WriteRawDump(r); err != nil {
			stats.AddError("raw dump for %s/%s: %v", r.Source, r.Subject, err)
		}
	}

	if err := o.aggregate(ctx, stats, results); err != nil {
		stats.AddError("aggregation: %v", err)
		stats.Complete()
		return stats, err
	}

	stats.Complete()
	event := NewRunEvent(EventRunCompleted, stats.RunID)
	event.Questions = stats.Valid
	o.bus.Publish(event)

	logger.Info().
		Int("units", stats.UnitsRun).
		Int("raw", stats.RawQuestions).
		Int("valid", stats.Valid).
		Int("duplicates", stats.Duplicates).
		Msg("Harvest run complete")
	return stats, nil
}

// plan lists what a real run would fetch. Candidate URL resolution is
// local to each source; nothing is requested.
func (o *Orchestrator) plan(ctx context.Context, stats *RunStats, units []unit) {
	logger := logging.GetStageLogger(stats.RunID, "plan")

	for _, u := range units {
		urls, err := u.source.CandidateURLs(ctx, u.subject)
		if err != nil {
			stats.AddError("candidate URLs for %s/%s: %v", u.source.Name(), u.subject, err)
			continue
		}
		stats.Planned = append(stats.Planned, PlannedTarget{
			Source:  u.source.Name(),
			Subject: u.subject,
			URLs:    urls,
		})
		logger.Info().
			Str("source", u.source.Name()).
			Str("subject", string(u.subject)).
			Strs("urls", urls).
			Msg("Would crawl")
	}

	for _, job := range o.config.Crawl.PDFJobs {
		stats.Planned = append(stats.Planned, PlannedTarget{
			Source:  "pdf",
			Subject: job.Subject,
			URLs:    []string{job.URL},
		})
		logger.Info().
			Str("subject", string(job.Subject)).
			Str("url", job.URL).
			Msg("Would ingest PDF")
	}
}

// buildUnits expands configured sources and subjects into the crawl
// unit list, skipping pairs the source does not cover.
func (o *Orchestrator) buildUnits() ([]unit, error) {
	names := o.config.Crawl.Sources
	if len(names) == 0 {
		names = o.registry.Names()
	}

	subjects := o.config.Crawl.Subjects
	if len(subjects) == 0 {
		subjects = question.AllSubjects()
	}

	var units []unit
	for _, name := range names {
		src, err := o.registry.Get(name)
		if err != nil {
			return nil, err
		}
		covered := make(map[question.Subject]struct{})
		for _, s := range src.Subjects() {
			covered[s] = struct{}{}
		}
		for _, subject := range subjects {
			if _, ok := covered[subject]; ok {
				units = append(units, unit{source: src, subject: subject})
			}
		}
	}
	return units, nil
}

// runUnits crawls every unit with bounded concurrency. Each source
// gets its own fetcher so politeness delays serialize per site, not
// across the whole run.
func (o *Orchestrator) runUnits(ctx context.Context, runID string, units []unit) []*question.CrawlResult {
	fetchers := make(map[string]*fetch.Fetcher)
	for _, u := range units {
		if _, ok := fetchers[u.source.Name()]; !ok {
			fetchers[u.source.Name()] = fetch.New(o.config.Fetch)
		}
	}

	results := make([]*question.CrawlResult, len(units))
	sem := make(chan struct{}, o.config.Crawl.MaxConcurrentUnits)
	var wg sync.WaitGroup

	for i, u := range units {
		wg.Add(1)
		go func(i int, u unit) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			event := NewRunEvent(EventUnitStarted, runID)
			event.Source = u.source.Name()
			event.Subject = u.subject
			o.bus.Publish(event)

			result := sources.CrawlSubject(ctx, fetchers[u.source.Name()], u.source, u.subject)
			results[i] = result

			done := NewRunEvent(EventUnitCompleted, runID)
			if len(result.Questions) == 0 && len(result.Errors) > 0 {
				done.Type = EventUnitFailed
				done.Error = result.Errors[0]
			}
			done.Source = u.source.Name()
			done.Subject = u.subject
			done.Questions = len(result.Questions)
			o.bus.Publish(done)
		}(i, u)
	}
	wg.Wait()

	return results
}

// runPDFJobs downloads and segments each configured paper. A PDF job
// produces a crawl result like any site unit so downstream stages do
// not care where questions came from.
func (o *Orchestrator) runPDFJobs(ctx context.Context, runID string) []*question.CrawlResult {
	var results []*question.CrawlResult
	for _, job := range o.config.Crawl.PDFJobs {
		result := o.runPDFJob(ctx, job)
		results = append(results, result)

		event := NewRunEvent(EventPDFCompleted, runID)
		event.Subject = job.Subject
		event.Questions = len(result.Questions)
		if len(result.Errors) > 0 {
			event.Error = result.Errors[0]
		}
		o.bus.Publish(event)
	}
	return results
}

func (o *Orchestrator) runPDFJob(ctx context.Context, job PDFJob) *question.CrawlResult {
	result := question.NewCrawlResult("pdf", job.Subject)
	result.TotalURLsFound = 1
	defer result.Complete()

	path, err := o.pdf.Download(ctx, job.URL)
	if err != nil {
		result.AddError("download %s: %v", job.URL, err)
		return result
	}
	defer os.Remove(path)
	result.TotalURLsCrawled = 1

	text, err := o.pdf.ExtractText(path)
	if err != nil {
		result.AddError("extract %s: %v", job.URL, err)
		return result
	}

	questions := pdfextract.ParseQuestions(text)
	if images, err := o.pdf.ExtractImages(path); err == nil && len(images) > 0 {
		pdfextract.AttachImages(questions, images)
	}

	now := time.Now().UTC()
	for i := range questions {
		questions[i].StampSource("pdf", job.URL)
		questions[i].CapturedAt = now
	}

	result.Questions = questions
	result.TotalQuestionsExtracted = len(questions)
	return result
}

// aggregate runs the single-threaded tail of the pipeline: normalize,
// validate, dedup, export, and optionally import into the store.
func (o *Orchestrator) aggregate(ctx context.Context, stats *RunStats, results []*question.CrawlResult) error {
	logger := logging.GetStageLogger(stats.RunID, "aggregate")

	var batch []*question.Canonical
	for _, r := range results {
		for i := range r.Questions {
			q := o.normalizer.Normalize(&r.Questions[i], r.Subject)
			if q == nil {
				stats.DroppedMalformed++
				continue
			}
			batch = append(batch, q)
		}
	}
	stats.Normalized = len(batch)

	var st store.QuestionStore
	var prior []string
	if o.config.Store != nil && o.config.Store.Enabled {
		sqlite, err := store.NewSQLiteStore(o.config.Store.Path)
		if err != nil {
			return err
		}
		defer sqlite.Close()
		st = sqlite

		prior, err = st.Fingerprints(ctx)
		if err != nil {
			return err
		}
		logger.Debug().Int("prior_fingerprints", len(prior)).Msg("Seeded dedup from store")
	}

	var report *validate.Report
	if o.config.SkipValidation {
		logger.Warn().Msg("Validation skipped, exporting every normalized question")
		report = &validate.Report{Valid: batch}
	} else {
		report = validate.Process(batch, prior, o.config.Validate)
	}
	stats.Valid = len(report.Valid)
	stats.Invalid = len(report.Invalid)
	stats.Duplicates = report.Duplicates
	stats.HighQuality = len(report.HighQuality)
	stats.LowQuality = len(report.LowQuality)
	stats.Confidence = report.Confidence

	path, skipped, err := o.exporter.WriteCorpus(report.Valid, stats.RunID)
	if err != nil {
		return err
	}
	stats.CorpusPath = path
	stats.SchemaRejected = skipped

	if st != nil {
		for _, q := range report.Valid {
			inserted, err := st.Upsert(ctx, q)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			if inserted {
				stats.Inserted++
			} else {
				stats.Updated++
			}
		}
	}

	event := NewRunEvent(EventAggregationCompleted, stats.RunID)
	event.Questions = stats.Valid
	o.bus.Publish(event)

	logger.Info().
		Int("normalized", stats.Normalized).
		Int("valid", stats.Valid).
		Int("invalid", stats.Invalid).
		Int("duplicates", stats.Duplicates).
		Int("schema_rejected", stats.SchemaRejected).
		Msg("Aggregation complete")
	return nil
}
