package parser

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driven"
	"github.com/custodia-labs/sourcestack/internal/logger"
)

// Ensure Parser implements the interface.
var _ driven.DocumentParser = (*Parser)(nil)

// CommandRunner executes external commands.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// OCRConfig controls the tesseract fallback.
type OCRConfig struct {
	TesseractPath string
	Timeout       time.Duration
}

// Parser is the driven.DocumentParser used by the job pipeline and the
// single-file parse.
type Parser struct {
	runner      CommandRunner
	pdfToText   string
	ocrConfig   func(ctx context.Context) OCRConfig
	minTextSize int
}

// Option configures a Parser.
type Option func(*Parser)

// WithRunner replaces the command runner.
func WithRunner(r CommandRunner) Option {
	return func(p *Parser) { p.runner = r }
}

// WithPDFToText sets the pdftotext executable.
func WithPDFToText(path string) Option {
	return func(p *Parser) { p.pdfToText = path }
}

// WithOCRConfig sets how the OCR settings are resolved. It is called once per
// OCR attempt so changed settings apply without a restart.
func WithOCRConfig(fn func(ctx context.Context) OCRConfig) Option {
	return func(p *Parser) { p.ocrConfig = fn }
}

// New creates a parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		runner:    execRunner{},
		pdfToText: "pdftotext",
		ocrConfig: func(context.Context) OCRConfig {
			return OCRConfig{
				TesseractPath: domain.DefaultTesseractPath,
				Timeout:       domain.DefaultOCRTimeoutSeconds * time.Second,
			}
		},
		minTextSize: 50,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseBytes extracts contact fields from one file. The extension selects
// the format. Failures are reported in the result's Errors.
func (p *Parser) ParseBytes(ctx context.Context, fileName string, data []byte) domain.ExtractionResult {
	ext := strings.ToLower(filepath.Ext(fileName))

	var (
		text    string
		ocrUsed bool
		err     error
	)
	switch ext {
	case ".pdf":
		text, ocrUsed, err = p.pdfText(ctx, data)
	case ".docx":
		text, err = docxText(data)
	case ".txt":
		text = plainText(data)
	default:
		if ext == "" {
			ext = "(none)"
		}
		return domain.ExtractionResult{
			Errors: []string{"Unsupported file type: " + ext},
		}
	}
	if err != nil {
		logger.Debug("Parse of %s failed: %v", fileName, err)
		return domain.ExtractionResult{
			OCRUsed: ocrUsed,
			Errors:  []string{fmt.Sprintf("Parse error: %v", err)},
		}
	}

	return Extract(text, ocrUsed)
}

// Extract runs the field heuristics over already-extracted text.
func Extract(text string, ocrUsed bool) domain.ExtractionResult {
	r := domain.ExtractionResult{
		Name:     GuessName(text),
		Email:    ExtractEmail(text),
		Phone:    NormalizePhone(text),
		LinkedIn: ExtractLinkedIn(text),
		GitHub:   ExtractGitHub(text),
		OCRUsed:  ocrUsed,
	}
	r.Confidence = ScoreConfidence(r)
	return r
}

func plainText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}
