package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/examforge/harvester/pkg/logging"
)

// PermanentAbsenceError marks an HTTP 404: the page is gone and the
// fetch must not be retried.
type PermanentAbsenceError struct {
	URL string
}

func (e *PermanentAbsenceError) Error() string {
	return fmt.Sprintf("permanently absent: %s", e.URL)
}

// FetchError is a transient fetch failure that survived the whole
// retry budget.
type FetchError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Last)
}

func (e *FetchError) Unwrap() error { return e.Last }

// Config configures fetcher behavior
type Config struct {
	UserAgent      string        `json:"user_agent" yaml:"user_agent"`
	Timeout        time.Duration `json:"timeout" yaml:"timeout"`
	MinDelay       time.Duration `json:"min_delay" yaml:"min_delay"`
	MaxRetries     int           `json:"max_retries" yaml:"max_retries"`
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay"`
	MaxContentSize int64         `json:"max_content_size" yaml:"max_content_size"`
}

// DefaultConfig returns default fetcher configuration
func DefaultConfig() *Config {
	return &Config{
		UserAgent:      "ExamForge-Harvester/1.0 (+https://examforge.dev/bot)",
		Timeout:        30 * time.Second,
		MinDelay:       2 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 5 * time.Second,
		MaxContentSize: 10 * 1024 * 1024,
	}
}

// Fetcher performs polite HTTP GETs: one request in flight per
// instance, a minimum delay between completed fetches, and a bounded
// linear-backoff retry budget. 404s are permanent and never retried.
type Fetcher struct {
	client *http.Client
	config *Config

	mu        sync.Mutex
	lastFetch time.Time
}

// New creates a fetcher. A nil config gets defaults.
func New(config *Config) *Fetcher {
	if config == nil {
		config = DefaultConfig()
	}
	return &Fetcher{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
	}
}

// Fetch retrieves a URL, honoring the politeness delay and retry
// policy. It returns the body on success, a *PermanentAbsenceError on
// 404, or a *FetchError once the retry budget is exhausted. Every
// failure mode comes back as a value; nothing escapes the boundary.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	// Serializing the whole fetch keeps the per-instance delay contract
	// honest even when callers misuse a fetcher from multiple goroutines.
	f.mu.Lock()
	defer f.mu.Unlock()

	logger := logging.GetLogger("fetcher")

	if err := f.waitPoliteness(ctx); err != nil {
		return nil, err
	}

	attempts := f.config.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := f.doGet(ctx, url)
		f.lastFetch = time.Now()

		if err == nil {
			return body, nil
		}

		if absent, ok := err.(*PermanentAbsenceError); ok {
			logger.Debug().Str("url", url).Msg("Page permanently absent, not retrying")
			return nil, absent
		}

		lastErr = err
		logger.Warn().
			Err(err).
			Str("url", url).
			Int("attempt", attempt).
			Int("max_retries", attempts).
			Msg("Fetch attempt failed")

		if attempt < attempts {
			if err := f.sleep(ctx, RetryDelay(f.config.RetryBaseDelay, attempt)); err != nil {
				return nil, err
			}
		}
	}

	logger.Error().
		Err(lastErr).
		Str("url", url).
		Int("attempts", attempts).
		Msg("Fetch retry budget exhausted")

	return nil, &FetchError{URL: url, Attempts: attempts, Last: lastErr}
}

// RetryDelay returns the linear-backoff delay taken after the given
// failed attempt: base delay multiplied by the attempt number.
func RetryDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt)
}

// waitPoliteness enforces the minimum inter-request delay
func (f *Fetcher) waitPoliteness(ctx context.Context) error {
	if f.lastFetch.IsZero() || f.config.MinDelay <= 0 {
		return nil
	}
	elapsed := time.Since(f.lastFetch)
	if elapsed >= f.config.MinDelay {
		return nil
	}
	return f.sleep(ctx, f.config.MinDelay-elapsed)
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// doGet performs one GET attempt
func (f *Fetcher) doGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &PermanentAbsenceError{URL: url}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	// Read one byte past the cap so a body of exactly the maximum passes
	limited := &io.LimitedReader{R: resp.Body, N: f.config.MaxContentSize + 1}
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.config.MaxContentSize {
		return nil, fmt.Errorf("content exceeds maximum size of %d bytes", f.config.MaxContentSize)
	}

	return body, nil
}
