package sources

import (
	"context"
	"time"

	"github.com/examforge/harvester/internal/fetch"
	"github.com/examforge/harvester/pkg/logging"
	"github.com/examforge/harvester/pkg/question"
)

// CrawlSubject drives one (source, subject) crawl unit: resolve
// candidate URLs, then sequentially fetch and extract each one. Every
// per-URL failure is recorded on the result and never aborts the unit;
// only a candidate-URL resolution failure is terminal for the subject.
func CrawlSubject(ctx context.Context, fetcher *fetch.Fetcher, source Source, subject question.Subject) *question.CrawlResult {
	logger := logging.GetCrawlLogger(source.Name(), string(subject))
	result := question.NewCrawlResult(source.Name(), subject)

	urls, err := source.CandidateURLs(ctx, subject)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to resolve candidate URLs")
		result.AddError("candidate URLs for %s: %v", subject, err)
		result.Complete()
		return result
	}
	result.TotalURLsFound = len(urls)

	logger.Info().Int("urls", len(urls)).Msg("Starting subject crawl")

	for _, url := range urls {
		if ctx.Err() != nil {
			result.AddError("crawl interrupted: %v", ctx.Err())
			break
		}

		page, err := fetcher.Fetch(ctx, url)
		if err != nil {
			result.AddError("fetch %s: %v", url, err)
			continue
		}
		result.TotalURLsCrawled++

		raw, err := source.Extract(url, page)
		if err != nil {
			logger.Warn().Err(err).Str("url", url).Msg("Extraction failed")
			result.AddError("extract %s: %v", url, err)
			continue
		}

		now := time.Now().UTC()
		for i := range raw {
			raw[i].StampSource(source.Name(), url)
			if raw[i].CapturedAt.IsZero() {
				raw[i].CapturedAt = now
			}
		}

		result.Questions = append(result.Questions, raw...)
		result.TotalQuestionsExtracted += len(raw)
	}

	result.Complete()

	logger.Info().
		Int("urls_found", result.TotalURLsFound).
		Int("urls_crawled", result.TotalURLsCrawled).
		Int("questions", result.TotalQuestionsExtracted).
		Int("errors", len(result.Errors)).
		Float64("duration_seconds", result.DurationSeconds()).
		Msg("Subject crawl completed")

	return result
}
