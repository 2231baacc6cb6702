// Package source turns input files into markdown text for chunking.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var ErrUnsupported = errors.New("unsupported file type")

// Kind says what the pipeline does with a file.
type Kind int

const (
	KindSkip        Kind = iota
	KindDocument         // extracted and chunked
	KindPassthrough      // copied to the output unchanged
)

var extractors = map[string]func([]byte) (string, error){
	".md":       plainText,
	".markdown": plainText,
	".txt":      plainText,
	".pdf":      extractPDF,
	".html":     extractHTML,
	".htm":      extractHTML,
	".docx":     extractDOCX,
}

// Classify decides how a file is handled from its extension.
func Classify(name string) Kind {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".json" {
		return KindPassthrough
	}
	if _, ok := extractors[ext]; ok {
		return KindDocument
	}
	return KindSkip
}

// Supported lists the extensions Extract understands.
func Supported() []string {
	return []string{".md", ".markdown", ".txt", ".pdf", ".html", ".htm", ".docx"}
}

// Extract converts file content to markdown text. Headings in structured
// formats become ATX headers so the section tree can see them.
func Extract(name string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	fn, ok := extractors[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	text, err := fn(data)
	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", name, err)
	}
	return text, nil
}

// ReadFile reads and extracts a document from disk.
func ReadFile(path string) (string, error) {
	if Classify(path) != KindDocument {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Extract(filepath.Base(path), data)
}

// Stem is the file name without directory or extension.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func plainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("content is not valid UTF-8")
	}
	return string(data), nil
}

func heading(level int, title string) string {
	return strings.Repeat("#", level) + " " + title
}
