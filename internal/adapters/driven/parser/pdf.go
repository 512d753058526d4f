package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/custodia-labs/sourcestack/internal/logger"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>'"\)]+`)

// pdfText extracts text from a PDF, falling back to OCR when the text layer
// is missing or too short.
func (p *Parser) pdfText(ctx context.Context, data []byte) (string, bool, error) {
	dir, err := os.MkdirTemp("", "sourcestack-pdf-")
	if err != nil {
		return "", false, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "resume.pdf")
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return "", false, fmt.Errorf("write temp file: %w", err)
	}

	out, err := p.runner.Run(ctx, p.pdfToText, "-layout", "-enc", "UTF-8", input, "-")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
		logger.Debug("pdftotext failed, trying OCR: %v", err)
		return p.ocr(ctx, input), true, nil
	}

	text := string(out)
	if links := hyperlinks(data); len(links) > 0 {
		text += "\n" + strings.Join(links, "\n")
	}
	if len(strings.TrimSpace(text)) < p.minTextSize {
		return p.ocr(ctx, input), true, nil
	}
	return text, false, nil
}

// ocr runs tesseract on the file. Failures and timeouts yield empty text.
func (p *Parser) ocr(ctx context.Context, input string) string {
	cfg := p.ocrConfig(ctx)
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	out, err := p.runner.Run(ctx, cfg.TesseractPath, input, "stdout", "-l", "eng")
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.Debug("OCR timed out after %s", cfg.Timeout)
		} else {
			logger.Debug("OCR failed: %v", err)
		}
		return ""
	}
	return string(out)
}

// hyperlinks returns the distinct URLs found in the raw PDF bytes. Link
// annotations are not part of the text layer.
func hyperlinks(data []byte) []string {
	var links []string
	for _, m := range urlPattern.FindAll(data, -1) {
		link := string(m)
		dup := false
		for _, existing := range links {
			if strings.EqualFold(existing, link) {
				dup = true
				break
			}
		}
		if !dup {
			links = append(links, link)
		}
	}
	return links
}
