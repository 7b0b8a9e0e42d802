package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/examforge/harvester/pkg/logging"
	"github.com/examforge/harvester/pkg/question"
)

// Config controls where and how export files are written
type Config struct {
	OutputDir      string `json:"output_dir" yaml:"output_dir"`
	Indent         bool   `json:"indent" yaml:"indent"`
	ValidateSchema bool   `json:"validate_schema" yaml:"validate_schema"`
}

// DefaultConfig returns default export configuration
func DefaultConfig() *Config {
	return &Config{
		OutputDir:      "output",
		Indent:         true,
		ValidateSchema: true,
	}
}

// canonicalSchema is the contract every exported question must meet.
// Kept inline so the binary stays self-contained.
const canonicalSchema = `{
  "type": "object",
  "required": ["subject", "question_type", "format", "difficulty", "content", "answer"],
  "properties": {
    "subject": {
      "type": "string",
      "enum": ["math", "english", "verbal_reasoning", "non_verbal_reasoning", "science"]
    },
    "question_type": {"type": "string", "minLength": 1},
    "format": {"type": "string", "enum": ["multiple_choice", "open_answer"]},
    "difficulty": {"type": "integer", "minimum": 1, "maximum": 5},
    "content": {
      "type": "object",
      "required": ["text"],
      "properties": {
        "text": {"type": "string", "minLength": 1},
        "options": {"type": ["array", "null"], "items": {"type": "string"}}
      }
    },
    "answer": {
      "type": "object",
      "required": ["value"],
      "properties": {
        "value": {"type": "string", "minLength": 1}
      }
    },
    "explanation": {"type": "string"},
    "hints": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["level", "text"],
        "properties": {
          "level": {"type": "integer", "minimum": 1, "maximum": 3},
          "text": {"type": "string", "minLength": 1},
          "penalty": {"type": "number", "minimum": 0}
        }
      }
    },
    "tags": {"type": ["array", "null"], "items": {"type": "string"}},
    "source": {"type": "string"}
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(canonicalSchema)

// ValidateRecord checks one canonical question against the export
// schema and returns human-readable problems.
func ValidateRecord(q *question.Canonical) ([]string, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(q))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return problems, nil
}

// RawDump is the on-disk shape of one crawl unit's output
type RawDump struct {
	Source         string                 `json:"source"`
	Subject        question.Subject       `json:"subject"`
	CrawledAt      time.Time              `json:"crawled_at"`
	TotalQuestions int                    `json:"total_questions"`
	Errors         []string               `json:"errors"`
	Questions      []question.RawQuestion `json:"questions"`
}

// CorpusFile is the on-disk shape of the aggregated corpus
type CorpusFile struct {
	RunID          string                `json:"run_id"`
	ExportedAt     time.Time             `json:"exported_at"`
	TotalQuestions int                   `json:"total_questions"`
	Questions      []*question.Canonical `json:"questions"`
}

// Exporter writes raw dumps and the aggregated corpus to disk
type Exporter struct {
	config *Config
}

// New creates an exporter with the given configuration
func New(config *Config) *Exporter {
	if config == nil {
		config = DefaultConfig()
	}
	return &Exporter{config: config}
}

// WriteRawDump persists one crawl result before any validation, so a
// bad aggregation run never loses harvested data. Returns the file path.
func (e *Exporter) WriteRawDump(result *question.CrawlResult) (string, error) {
	dump := RawDump{
		Source:         result.Source,
		Subject:        result.Subject,
		CrawledAt:      result.StartedAt,
		TotalQuestions: len(result.Questions),
		Errors:         result.Errors,
		Questions:      result.Questions,
	}

	name := fmt.Sprintf("raw_%s_%s_%s.json", result.Source, result.Subject,
		result.StartedAt.Format("20060102T150405"))
	path, err := e.writeJSON(name, dump)
	if err != nil {
		return "", err
	}

	logger := logging.GetLogger("export")
	logger.Debug().
		Str("path", path).
		Int("questions", dump.TotalQuestions).
		Msg("Wrote raw dump")
	return path, nil
}

// WriteCorpus persists the validated corpus. With schema validation
// enabled, records failing the contract are skipped and reported; they
// never abort the export.
func (e *Exporter) WriteCorpus(questions []*question.Canonical, runID string) (string, int, error) {
	logger := logging.GetLogger("export")

	kept := questions
	skipped := 0
	if e.config.ValidateSchema {
		kept = make([]*question.Canonical, 0, len(questions))
		for _, q := range questions {
			problems, err := ValidateRecord(q)
			if err != nil {
				return "", 0, err
			}
			if len(problems) > 0 {
				skipped++
				logger.Warn().
					Strs("problems", problems).
					Str("source", q.Source).
					Msg("Question failed export schema")
				continue
			}
			kept = append(kept, q)
		}
	}

	corpus := CorpusFile{
		RunID:          runID,
		ExportedAt:     time.Now().UTC(),
		TotalQuestions: len(kept),
		Questions:      kept,
	}

	path, err := e.writeJSON(fmt.Sprintf("corpus_%s.json", runID), corpus)
	if err != nil {
		return "", 0, err
	}

	logger.Info().
		Str("path", path).
		Int("questions", len(kept)).
		Int("schema_rejected", skipped).
		Msg("Wrote corpus export")
	return path, skipped, nil
}

func (e *Exporter) writeJSON(name string, v interface{}) (string, error) {
	if err := os.MkdirAll(e.config.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var data []byte
	var err error
	if e.config.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	path := filepath.Join(e.config.OutputDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
