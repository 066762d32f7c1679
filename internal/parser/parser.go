// Package parser extracts plain text from uploaded document files.
//
// Supported formats: PDF (go-fitz), DOCX (zip container with WordprocessingML),
// plain text and Markdown, and CSV. The extracted text is handed whole to the
// chunker; no segmentation happens here.
package parser

import (
	"archive/zip"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

var (
	// ErrUnsupportedFormat indicates a file extension with no extraction routine.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrParse indicates the file matched a known format but could not be parsed.
	ErrParse = errors.New("parse failure")
)

// Parser extracts text from files. It is stateless; the type exists so
// consumers can depend on a narrow interface.
type Parser struct{}

// New returns a Parser.
func New() *Parser {
	return &Parser{}
}

// ExtractText implements extraction dispatch for a Parser value.
func (*Parser) ExtractText(path string) (string, error) {
	return ExtractText(path)
}

// ExtractText maps the file's extension to an extraction routine and returns
// the extracted text, trimmed. Parsing the same file twice yields identical
// output.
func ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".docx":
		return extractDOCX(path)
	case ".txt", ".md":
		return extractPlain(path)
	case ".csv":
		return extractCSV(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func extractPDF(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("%w: opening pdf: %v", ErrParse, err)
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err == nil && strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	return strings.TrimSpace(strings.Join(pages, "\n\n")), nil
}

// wordDocument mirrors the subset of WordprocessingML needed for text
// extraction: paragraphs containing runs containing text nodes.
type wordDocument struct {
	Body struct {
		Paragraphs []struct {
			Runs []struct {
				Text string `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

func extractDOCX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: opening docx container: %v", ErrParse, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: reading docx document: %v", ErrParse, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: reading docx document: %v", ErrParse, err)
		}

		var doc wordDocument
		if err := xml.Unmarshal(content, &doc); err != nil {
			return "", fmt.Errorf("%w: decoding docx xml: %v", ErrParse, err)
		}

		var paragraphs []string
		for _, p := range doc.Body.Paragraphs {
			var sb strings.Builder
			for _, run := range p.Runs {
				sb.WriteString(run.Text)
			}
			paragraphs = append(paragraphs, sb.String())
		}
		return strings.TrimSpace(strings.Join(paragraphs, "\n")), nil
	}

	return "", fmt.Errorf("%w: docx missing word/document.xml", ErrParse)
}

func extractPlain(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: reading text file: %v", ErrParse, err)
	}
	return strings.TrimSpace(string(content)), nil
}

// extractCSV renders each data row as "header: value, header: value" lines.
// The header row itself is skipped; rows shorter than the header silently
// drop the missing trailing fields.
func extractCSV(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: opening csv: %v", ErrParse, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // rows may be ragged

	rows, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("%w: reading csv: %v", ErrParse, err)
	}
	if len(rows) == 0 {
		return "", nil
	}

	headers := rows[0]
	lines := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		fields := make([]string, 0, len(row))
		for i, value := range row {
			if i >= len(headers) {
				break
			}
			fields = append(fields, headers[i]+": "+value)
		}
		lines = append(lines, strings.Join(fields, ", "))
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
