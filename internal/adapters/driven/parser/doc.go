// Package parser extracts contact fields from resumes.
//
// PDF text comes from the pdftotext tool (poppler-utils). When it yields
// fewer than 50 characters, or fails, the file is passed to tesseract for
// OCR. DOCX text is read from word/document.xml. Plain text passes through.
//
// Install the tools with:
//
//	macOS:  brew install poppler tesseract
//	Debian: apt install poppler-utils tesseract-ocr
package parser
