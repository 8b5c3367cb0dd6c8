package ingest

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestSupportedExtension(t *testing.T) {
	cases := map[string]bool{
		"chapter.pdf":  true,
		"chapter.PDF":  true,
		"chapter.epub": true,
		"chapter.txt":  true,
		"notes.md":     true,
		"cover.png":    false,
		"chapter":      false,
	}
	for name, want := range cases {
		if got := SupportedExtension(name); got != want {
			t.Fatalf("SupportedExtension(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestExtractPlainText(t *testing.T) {
	text, err := ExtractText("chapter.txt", []byte("  First line. \r\n\r\n Second   line. \n"))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := "First line.\nSecond line."
	if text != want {
		t.Fatalf("got %q, want %q", text, want)
	}
}

func TestExtractPlainTextEmpty(t *testing.T) {
	if _, err := ExtractText("chapter.txt", []byte("   \n \n")); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got: %v", err)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	if _, err := ExtractText("cover.png", []byte("data")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got: %v", err)
	}
}

func TestExtractEPUB(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entry, err := w.Create("OEBPS/chapter1.xhtml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	_, _ = entry.Write([]byte(`<html><head><style>p{}</style></head><body><h1>One</h1><p>The first chapter.</p></body></html>`))
	meta, _ := w.Create("mimetype")
	_, _ = meta.Write([]byte("application/epub+zip"))
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	text, err := ExtractText("book.epub", buf.Bytes())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(text, "One") || !strings.Contains(text, "The first chapter.") {
		t.Fatalf("missing content: %q", text)
	}
	if strings.Contains(text, "p{}") {
		t.Fatalf("style content leaked: %q", text)
	}
}

func TestExtractPDFGarbage(t *testing.T) {
	if _, err := ExtractText("chapter.pdf", []byte("not a pdf")); err == nil {
		t.Fatalf("expected error for invalid pdf")
	}
}
