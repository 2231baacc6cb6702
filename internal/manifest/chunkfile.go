package manifest

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"doc-chunker/internal/chunker"
)

const fence = "---\n"

var ErrNoFrontmatter = errors.New("chunk file has no frontmatter")

// Frontmatter is the YAML header of a chunk file.
type Frontmatter struct {
	Title  string `yaml:"title"`
	Source string `yaml:"source"`
	Chunk  int    `yaml:"chunk"`
	Total  int    `yaml:"total"`
	Tokens int    `yaml:"tokens"`
	Method string `yaml:"method"`
}

// Render produces a chunk file: YAML frontmatter, a blank line, then the
// chunk content unchanged.
func Render(c chunker.Chunk) ([]byte, error) {
	fm, err := yaml.Marshal(Frontmatter{
		Title:  c.Title,
		Source: c.Source,
		Chunk:  c.Seq,
		Total:  c.Total,
		Tokens: c.Tokens,
		Method: string(c.Method),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(fm) + len(c.Content) + 2*len(fence) + 1)
	buf.WriteString(fence)
	buf.Write(fm)
	buf.WriteString(fence)
	buf.WriteByte('\n')
	buf.WriteString(c.Content)
	return buf.Bytes(), nil
}

// ParseChunkFile splits a rendered chunk file back into frontmatter and content.
func ParseChunkFile(data []byte) (Frontmatter, string, error) {
	if !bytes.HasPrefix(data, []byte(fence)) {
		return Frontmatter{}, "", ErrNoFrontmatter
	}
	rest := data[len(fence):]
	end := bytes.Index(rest, []byte("\n"+fence))
	if end < 0 {
		return Frontmatter{}, "", ErrNoFrontmatter
	}
	var fm Frontmatter
	if err := yaml.Unmarshal(rest[:end+1], &fm); err != nil {
		return Frontmatter{}, "", fmt.Errorf("failed to decode frontmatter: %w", err)
	}
	body := rest[end+1+len(fence):]
	body = bytes.TrimPrefix(body, []byte("\n"))
	return fm, string(body), nil
}
