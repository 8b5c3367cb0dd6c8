// Package ingest extracts plain text from uploaded chapter documents.
package ingest

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// ErrUnsupportedFormat is returned for document types the platform cannot
// extract text from.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ErrEmptyDocument is returned when a document yields no text at all.
var ErrEmptyDocument = errors.New("no text extracted from document")

var supportedExtensions = map[string]bool{
	".pdf":  true,
	".epub": true,
	".txt":  true,
	".md":   true,
}

// SupportedExtension reports whether the filename has an extractable format.
func SupportedExtension(filename string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ExtractText returns the plain text of an uploaded chapter document.
func ExtractText(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return extractPDF(data)
	case ".epub":
		return extractEPUB(data)
	case ".txt", ".md":
		return extractPlain(data)
	default:
		return "", ErrUnsupportedFormat
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var b strings.Builder
	totalPages := reader.NumPage()
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing the whole document.
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	text := normalizeText(b.String())
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

func extractEPUB(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open epub: %w", err)
	}
	var b strings.Builder
	for _, file := range reader.File {
		name := strings.ToLower(file.Name)
		if !(strings.HasSuffix(name, ".xhtml") || strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm")) {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("read epub file: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read epub content: %w", err)
		}
		doc, err := html.Parse(bytes.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("parse epub html: %w", err)
		}
		b.WriteString(extractHTMLText(doc))
		b.WriteString("\n")
	}
	text := normalizeText(b.String())
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

func extractPlain(data []byte) (string, error) {
	text := normalizeText(string(data))
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

func extractHTMLText(node *html.Node) string {
	if node.Type == html.TextNode {
		return node.Data
	}
	if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
		return ""
	}
	var b strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		b.WriteString(extractHTMLText(child))
		if child.Type == html.ElementNode {
			b.WriteString(" ")
		}
	}
	return b.String()
}

func normalizeText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
