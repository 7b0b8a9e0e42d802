package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/examforge/harvester/internal/export"
	"github.com/examforge/harvester/internal/fetch"
	"github.com/examforge/harvester/internal/normalize"
	"github.com/examforge/harvester/internal/pdfextract"
	"github.com/examforge/harvester/internal/validate"
	"github.com/examforge/harvester/pkg/logging"
	"github.com/examforge/harvester/pkg/question"
)

// PDFJob names one paper to download and segment
type PDFJob struct {
	Subject question.Subject `json:"subject" yaml:"subject"`
	URL     string           `json:"url" yaml:"url"`
}

// CrawlConfig selects what to harvest and how wide to run
type CrawlConfig struct {
	// Source names to run; empty means every registered source
	Sources []string `json:"sources" yaml:"sources"`

	// Subjects to harvest; empty means all
	Subjects []question.Subject `json:"subjects" yaml:"subjects"`

	// Crawl units in flight at once. Politeness is per source, so
	// this mostly overlaps distinct sites.
	MaxConcurrentUnits int `json:"max_concurrent_units" yaml:"max_concurrent_units"`

	// PDF papers to ingest alongside the site crawls
	PDFJobs []PDFJob `json:"pdf_jobs" yaml:"pdf_jobs"`
}

// StoreConfig controls the optional corpus database import
type StoreConfig struct {
	// Enabled turns on the SQLite import after export
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path of the database file
	Path string `json:"path" yaml:"path"`
}

// Config holds complete harvest pipeline configuration
type Config struct {
	Logging   *logging.LogConfig `json:"logging" yaml:"logging"`
	Fetch     *fetch.Config      `json:"fetch" yaml:"fetch"`
	PDF       *pdfextract.Config `json:"pdf" yaml:"pdf"`
	Normalize *normalize.Config  `json:"normalize" yaml:"normalize"`
	Validate  *validate.Config   `json:"validate" yaml:"validate"`
	Export    *export.Config     `json:"export" yaml:"export"`
	Crawl     *CrawlConfig       `json:"crawl" yaml:"crawl"`
	Store     *StoreConfig       `json:"store" yaml:"store"`

	// DryRun resolves and reports intended targets without fetching
	DryRun bool `json:"dry_run" yaml:"dry_run"`

	// SkipValidation bypasses the validate/dedup stage: every
	// normalized question flows straight to export.
	SkipValidation bool `json:"skip_validation" yaml:"skip_validation"`
}

// DefaultConfig returns a complete default configuration
func DefaultConfig() *Config {
	return &Config{
		Logging:   logging.DefaultLogConfig(),
		Fetch:     fetch.DefaultConfig(),
		PDF:       pdfextract.DefaultConfig(),
		Normalize: normalize.DefaultConfig(),
		Validate:  validate.DefaultConfig(),
		Export:    export.DefaultConfig(),
		Crawl: &CrawlConfig{
			MaxConcurrentUnits: 2,
		},
		Store: &StoreConfig{
			Enabled: false,
			Path:    "data/corpus.db",
		},
	}
}

// DevelopmentConfig returns a configuration for fast local iteration
func DevelopmentConfig() *Config {
	config := DefaultConfig()
	config.Logging.Level = "debug"
	config.Logging.Format = "pretty"
	config.Fetch.MinDelay = 0
	config.Crawl.MaxConcurrentUnits = 1
	return config
}

// LoadConfig reads a YAML file over the defaults, so partial files
// only override what they mention.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := config.Check(); err != nil {
		return nil, err
	}
	return config, nil
}

// Check verifies the configuration is runnable
func (c *Config) Check() error {
	if c.Crawl == nil {
		return fmt.Errorf("crawl configuration is required")
	}
	if c.Crawl.MaxConcurrentUnits < 1 {
		return fmt.Errorf("max_concurrent_units must be at least 1, got %d", c.Crawl.MaxConcurrentUnits)
	}
	for _, s := range c.Crawl.Subjects {
		if !question.ValidSubject(s) {
			return fmt.Errorf("unknown subject %q", s)
		}
	}
	for _, job := range c.Crawl.PDFJobs {
		if !question.ValidSubject(job.Subject) {
			return fmt.Errorf("pdf job %s: unknown subject %q", job.URL, job.Subject)
		}
		if job.URL == "" {
			return fmt.Errorf("pdf job for %s has no URL", job.Subject)
		}
	}
	if c.Store != nil && c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store is enabled but has no path")
	}
	return nil
}
