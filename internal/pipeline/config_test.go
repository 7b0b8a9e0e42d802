package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examforge/harvester/pkg/question"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	// Durations are plain nanosecond integers to yaml.v3
	path := writeConfig(t, `
fetch:
  min_delay: 1000000000
  max_retries: 5
crawl:
  sources: [openquiz]
  subjects: [math, english]
  max_concurrent_units: 3
  pdf_jobs:
    - subject: math
      url: https://example.com/paper.pdf
store:
  enabled: true
  path: /tmp/corpus.db
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, time.Second, config.Fetch.MinDelay)
	assert.Equal(t, 5, config.Fetch.MaxRetries)
	// Untouched sections keep their defaults
	assert.Equal(t, "ExamForge-Harvester/1.0 (+https://examforge.dev/bot)", config.Fetch.UserAgent)

	assert.Equal(t, []string{"openquiz"}, config.Crawl.Sources)
	assert.Equal(t, []question.Subject{question.SubjectMath, question.SubjectEnglish}, config.Crawl.Subjects)
	assert.Equal(t, 3, config.Crawl.MaxConcurrentUnits)
	require.Len(t, config.Crawl.PDFJobs, 1)
	assert.Equal(t, question.SubjectMath, config.Crawl.PDFJobs[0].Subject)

	assert.True(t, config.Store.Enabled)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad subject", "crawl:\n  subjects: [latin]\n", "unknown subject"},
		{"zero concurrency", "crawl:\n  max_concurrent_units: 0\n", "max_concurrent_units"},
		{"pdf job without url", "crawl:\n  pdf_jobs:\n    - subject: math\n", "no URL"},
		{"store without path", "store:\n  enabled: true\n  path: \"\"\n", "no path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDevelopmentConfigIsRunnable(t *testing.T) {
	config := DevelopmentConfig()
	require.NoError(t, config.Check())
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Zero(t, config.Fetch.MinDelay)
}
