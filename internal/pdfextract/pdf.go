package pdfextract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/examforge/harvester/pkg/logging"
)

// ProcessingError is a non-retryable PDF processing failure
type ProcessingError struct {
	Message string
}

func (e *ProcessingError) Error() string {
	return e.Message
}

// Config bounds PDF downloads and extraction
type Config struct {
	UserAgent       string        `json:"user_agent" yaml:"user_agent"`
	DownloadTimeout time.Duration `json:"download_timeout" yaml:"download_timeout"`
	MaxFileSize     int64         `json:"max_file_size" yaml:"max_file_size"`
	MaxPages        int           `json:"max_pages" yaml:"max_pages"`
	ExtractImages   bool          `json:"extract_images" yaml:"extract_images"`
	TempDir         string        `json:"temp_dir" yaml:"temp_dir"`
}

// DefaultConfig returns default PDF extraction configuration
func DefaultConfig() *Config {
	return &Config{
		UserAgent:       "ExamForge-Harvester/1.0 (+https://examforge.dev/bot)",
		DownloadTimeout: 60 * time.Second,
		MaxFileSize:     25 * 1024 * 1024,
		MaxPages:        200,
		ExtractImages:   false,
	}
}

// Extractor downloads exam paper PDFs and turns them into raw
// question candidates.
type Extractor struct {
	client *http.Client
	config *Config
}

// New creates a PDF extractor. A nil config gets defaults.
func New(config *Config) *Extractor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Extractor{
		client: &http.Client{Timeout: config.DownloadTimeout},
		config: config,
	}
}

// Download fetches a PDF to a temp file. Non-PDF content types and
// oversized files are rejected.
func (e *Extractor) Download(ctx context.Context, url string) (string, error) {
	logger := logging.GetLogger("pdf-download")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", e.config.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: HTTP %d", url, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]); mediaType != "application/pdf" {
		return "", &ProcessingError{Message: fmt.Sprintf("not a PDF: content type %q", contentType)}
	}

	file, err := os.CreateTemp(e.config.TempDir, "harvester-*.pdf")
	if err != nil {
		return "", err
	}
	defer file.Close()

	// Copy one byte past the cap so a file of exactly the maximum passes
	limited := &io.LimitedReader{R: resp.Body, N: e.config.MaxFileSize + 1}
	written, err := io.Copy(file, limited)
	if err != nil {
		os.Remove(file.Name())
		return "", err
	}
	if written > e.config.MaxFileSize {
		os.Remove(file.Name())
		return "", &ProcessingError{Message: fmt.Sprintf("PDF exceeds maximum size of %d bytes", e.config.MaxFileSize)}
	}

	logger.Debug().
		Str("url", url).
		Str("path", file.Name()).
		Int64("bytes", written).
		Msg("PDF downloaded")

	return file.Name(), nil
}

// ExtractText pulls the plain text out of a PDF file, page by page.
// Pages that fail to decode are skipped rather than failing the file.
func (e *Extractor) ExtractText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", &ProcessingError{Message: fmt.Sprintf("failed to parse PDF: %v", err)}
	}
	defer f.Close()

	var b strings.Builder
	pages := reader.NumPage()
	if e.config.MaxPages > 0 && pages > e.config.MaxPages {
		pages = e.config.MaxPages
	}

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n\n")
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", &ProcessingError{Message: "PDF contains no extractable text"}
	}
	return text, nil
}

// ImageRef describes an image found in the PDF, with enough metadata
// to attach it to a question later.
type ImageRef struct {
	Page   int    `json:"page"`
	Name   string `json:"name"`
	Width  int64  `json:"width,omitempty"`
	Height int64  `json:"height,omitempty"`
}

// Ref returns a stable reference string for the image
func (r ImageRef) Ref() string {
	return fmt.Sprintf("pdf:page=%d:xobject=%s", r.Page, r.Name)
}

// ExtractImages walks each page's XObject resources and collects
// image entries in document order. This reads metadata only; raster
// decoding is out of scope for the corpus build.
func (e *Extractor) ExtractImages(path string) ([]ImageRef, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, &ProcessingError{Message: fmt.Sprintf("failed to parse PDF: %v", err)}
	}
	defer f.Close()

	var images []ImageRef
	pages := reader.NumPage()
	if e.config.MaxPages > 0 && pages > e.config.MaxPages {
		pages = e.config.MaxPages
	}

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		xobjects := page.V.Key("Resources").Key("XObject")
		if xobjects.IsNull() {
			continue
		}
		for _, name := range xobjects.Keys() {
			obj := xobjects.Key(name)
			if obj.Key("Subtype").Name() != "Image" {
				continue
			}
			images = append(images, ImageRef{
				Page:   i,
				Name:   name,
				Width:  obj.Key("Width").Int64(),
				Height: obj.Key("Height").Int64(),
			})
		}
	}

	return images, nil
}
